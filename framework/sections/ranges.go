package sections

import (
	"cmp"
	"context"
	"slices"
	"unicode/utf16"

	"go.lsp.dev/protocol"
)

// usableFoldingRanges drops kind-tagged ranges (imports, comments, regions)
// and rejects ranges that end before they start. Ranges starting past the
// last line of doc are dropped and ends past it are clamped, so a stale
// answer cannot produce sections outside the text. Exact duplicates, also
// those created by clamping, are dropped.
func usableFoldingRanges(doc Document, ranges []protocol.FoldingRange) ([]protocol.FoldingRange, error) {
	type span struct{ start, end uint32 }
	lineCount := doc.LineCount()
	seen := make(map[span]bool, len(ranges))
	result := make([]protocol.FoldingRange, 0, len(ranges))
	for _, fr := range ranges {
		if fr.Kind != "" {
			continue
		}
		if fr.EndLine < fr.StartLine {
			return nil, ErrMalformedRange
		}
		if int64(fr.StartLine) >= int64(lineCount) {
			continue
		}
		fr.EndLine = min(fr.EndLine, uint32(lineCount-1))
		key := span{fr.StartLine, fr.EndLine}
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, fr)
	}
	return result, nil
}

func contains(outer, inner protocol.FoldingRange) bool {
	return outer.StartLine <= inner.StartLine && inner.EndLine <= outer.EndLine
}

// topLevel returns the indices of live ranges not contained in another live range.
func topLevel(ranges []protocol.FoldingRange, removed []bool) []int {
	var result []int
	for i := range ranges {
		if removed[i] {
			continue
		}
		nested := false
		for j := range ranges {
			if i != j && !removed[j] && contains(ranges[j], ranges[i]) {
				nested = true
				break
			}
		}
		if !nested {
			result = append(result, i)
		}
	}
	return result
}

func hasNested(ranges []protocol.FoldingRange, removed []bool, outer int) bool {
	for j := range ranges {
		if j != outer && !removed[j] && contains(ranges[outer], ranges[j]) {
			return true
		}
	}
	return false
}

// removeOutermostFoldingRanges replaces wrapper ranges by the ranges they
// contain. Newly exposed ranges are checked again, so a namespace holding a
// single class unwraps down to the class members. A wrapper with nothing
// inside it is kept.
func removeOutermostFoldingRanges(ctx context.Context, doc Document, ranges []protocol.FoldingRange, strategy wrapperStrategy) ([]protocol.FoldingRange, error) {
	removed := make([]bool, len(ranges))
	checked := make([]bool, len(ranges))
	for {
		var frontier []int
		for _, idx := range topLevel(ranges, removed) {
			if !checked[idx] {
				frontier = append(frontier, idx)
			}
		}
		if len(frontier) == 0 {
			break
		}
		candidates := make([]protocol.FoldingRange, len(frontier))
		for i, idx := range frontier {
			candidates[i] = ranges[idx]
			checked[idx] = true
		}
		wrappers, err := strategy.wrappers(ctx, doc, candidates)
		if err != nil {
			return nil, err
		}
		for i, idx := range frontier {
			if wrappers[i] && hasNested(ranges, removed, idx) {
				removed[idx] = true
			}
		}
	}
	result := make([]protocol.FoldingRange, 0, len(ranges))
	for i, fr := range ranges {
		if !removed[i] {
			result = append(result, fr)
		}
	}
	return result, nil
}

// removeNestedFoldingRanges keeps, in document order, every range that the
// strategy does not absorb into an already kept range. Outer ranges sort
// first, so of a nested pair the outer one survives. Kept ranges are
// disjoint, so only the last one needs checking.
func removeNestedFoldingRanges(doc Document, ranges []protocol.FoldingRange, strategy wrapperStrategy) []protocol.FoldingRange {
	sorted := slices.Clone(ranges)
	slices.SortStableFunc(sorted, func(a, b protocol.FoldingRange) int {
		if c := cmp.Compare(a.StartLine, b.StartLine); c != 0 {
			return c
		}
		return cmp.Compare(b.EndLine, a.EndLine)
	})
	kept := make([]protocol.FoldingRange, 0, len(sorted))
	for _, fr := range sorted {
		if n := len(kept); n > 0 {
			if merged, ok := strategy.absorb(doc, kept[n-1], fr); ok {
				kept[n-1] = merged
				continue
			}
		}
		kept = append(kept, fr)
	}
	return kept
}

// FoldingRangeToRange widens a line-only folding range to whole lines: from
// the start of its first line to the end of its last line. Character offsets
// are UTF-16 code units as in LSP. Lines past the document end are clamped;
// a document without lines yields the empty range at its start.
func FoldingRangeToRange(doc Document, fr protocol.FoldingRange) protocol.Range {
	lineCount := doc.LineCount()
	if lineCount <= 0 {
		return protocol.Range{}
	}
	last := uint32(lineCount - 1)
	start, end := min(fr.StartLine, last), min(fr.EndLine, last)
	return protocol.Range{
		Start: protocol.Position{Line: start},
		End: protocol.Position{
			Line:      end,
			Character: uint32(len(utf16.Encode([]rune(doc.LineText(int(end)))))),
		},
	}
}

// RangeLines recovers the folding lines of a range built by FoldingRangeToRange.
func RangeLines(r protocol.Range) (start, end uint32) {
	return r.Start.Line, r.End.Line
}
