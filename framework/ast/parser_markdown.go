package ast

import (
	"regexp"
	"strings"

	"go.lsp.dev/protocol"
)

// MarkdownParser folds heading sections and fenced code blocks.
type MarkdownParser struct {
	heading *regexp.Regexp
	fence   *regexp.Regexp
}

// NewMarkdownParser creates a parser.
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{
		heading: regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*#*\s*$`),
		fence:   regexp.MustCompile("^\\s*(```|~~~)"),
	}
}

func (mp *MarkdownParser) Language() string { return "markdown" }

type mdHeading struct {
	line  int
	level int
	title string
}

// Parse folds each heading down to the last non-blank line before the next
// heading of the same or higher level. Level-one headings that own
// sub-headings are reported as module symbols so the title heading of a
// document unwraps into its sections; other headings are string symbols as
// editors report them.
func (mp *MarkdownParser) Parse(content string) (*Outline, error) {
	lines := strings.Split(content, "\n")
	outline := &Outline{}

	var headings []mdHeading
	fenceStart := -1
	for idx, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		if mp.fence.MatchString(line) {
			if fenceStart < 0 {
				fenceStart = idx
				continue
			}
			if fr, ok := lineRange(fenceStart, idx-1, ""); ok {
				outline.FoldingRanges = append(outline.FoldingRanges, fr)
			}
			fenceStart = -1
			continue
		}
		if fenceStart >= 0 {
			continue
		}
		if match := mp.heading.FindStringSubmatch(line); match != nil {
			headings = append(headings, mdHeading{line: idx, level: len(match[1]), title: match[2]})
		}
	}

	ends := make([]int, len(headings))
	for i, h := range headings {
		next := len(lines)
		for _, later := range headings[i+1:] {
			if later.level <= h.level {
				next = later.line
				break
			}
		}
		end := next - 1
		for end > h.line && strings.TrimSpace(lines[end]) == "" {
			end--
		}
		ends[i] = end
		if fr, ok := lineRange(h.line, end, ""); ok {
			outline.FoldingRanges = append(outline.FoldingRanges, fr)
		}
	}

	outline.Symbols, _ = mp.headingSymbols(lines, headings, ends, 0, 0)
	return outline, nil
}

// headingSymbols builds the symbol tree for headings[from:] whose level is
// deeper than parentLevel and returns the index of the first heading that
// belongs to an ancestor.
func (mp *MarkdownParser) headingSymbols(lines []string, headings []mdHeading, ends []int, from, parentLevel int) ([]protocol.DocumentSymbol, int) {
	var symbols []protocol.DocumentSymbol
	i := from
	for i < len(headings) && headings[i].level > parentLevel {
		h := headings[i]
		children, next := mp.headingSymbols(lines, headings, ends, i+1, h.level)
		kind := protocol.SymbolKindString
		if h.level == 1 && len(children) > 0 {
			kind = protocol.SymbolKindModule
		}
		endText := strings.TrimSuffix(lines[ends[i]], "\r")
		headText := strings.TrimSuffix(lines[h.line], "\r")
		symbols = append(symbols, protocol.DocumentSymbol{
			Name: h.title,
			Kind: kind,
			Range: protocol.Range{
				Start: protocol.Position{Line: uint32(h.line)},
				End:   protocol.Position{Line: uint32(ends[i]), Character: utf16Column(endText, len(endText))},
			},
			SelectionRange: protocol.Range{
				Start: protocol.Position{Line: uint32(h.line)},
				End:   protocol.Position{Line: uint32(h.line), Character: utf16Column(headText, len(headText))},
			},
			Children: children,
		})
		i = next
	}
	return symbols, i
}
