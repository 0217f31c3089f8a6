package sections

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
)

func TestFoldingRangeToRangeRoundTrip(t *testing.T) {
	doc := newDoc("typescript", greeterLines...)
	for _, fr := range []protocol.FoldingRange{fold(0, 7), fold(1, 2), fold(5, 6), fold(4, 4)} {
		start, end := RangeLines(FoldingRangeToRange(doc, fr))
		assert.Equal(t, fr.StartLine, start)
		assert.Equal(t, fr.EndLine, end)
	}
}

func TestFoldingRangeToRangeCharacters(t *testing.T) {
	doc := newDoc("markdown", "# Title", "héllo 😀", "")
	r := FoldingRangeToRange(doc, fold(0, 1))
	assert.Equal(t, uint32(0), r.Start.Character)
	// The emoji is a surrogate pair in UTF-16.
	assert.Equal(t, uint32(8), r.End.Character)

	r = FoldingRangeToRange(doc, fold(1, 40))
	assert.Equal(t, uint32(2), r.End.Line)
	assert.Equal(t, uint32(0), r.End.Character)
}

func TestUsableFoldingRanges(t *testing.T) {
	doc := newDoc("typescript", greeterLines...)
	got, err := usableFoldingRanges(doc, []protocol.FoldingRange{
		fold(0, 3),
		{StartLine: 4, EndLine: 9, Kind: protocol.RegionFoldingRange},
		fold(0, 3),
		fold(5, 6),
	})
	require.NoError(t, err)
	assert.Equal(t, []protocol.FoldingRange{fold(0, 3), fold(5, 6)}, got)

	_, err = usableFoldingRanges(doc, []protocol.FoldingRange{fold(3, 1)})
	assert.ErrorIs(t, err, ErrMalformedRange)
}

func TestUsableFoldingRangesPastDocumentEnd(t *testing.T) {
	doc := newDoc("typescript", "a", "  b", "c")
	got, err := usableFoldingRanges(doc, []protocol.FoldingRange{
		fold(0, 1), fold(5, 6), fold(8, 9), fold(1, 7), fold(1, 2),
	})
	require.NoError(t, err)
	assert.Equal(t, []protocol.FoldingRange{fold(0, 1), fold(1, 2)}, got)
}

// lineless is a Document with no lines at all.
type lineless struct{}

func (lineless) URI() protocol.DocumentURI { return testURI }
func (lineless) LanguageID() string        { return "typescript" }
func (lineless) LineCount() int            { return 0 }
func (lineless) LineText(int) string       { return "" }

func TestFoldingRangeToRangeWithoutLines(t *testing.T) {
	assert.Equal(t, protocol.Range{}, FoldingRangeToRange(lineless{}, fold(2, 4)))

	ranges, err := DocumentSections(context.Background(), lineless{}, foldings(fold(0, 1)), nil)
	require.NoError(t, err)
	assert.Empty(t, ranges)
}

func TestPlainTextAbsorbExtendsKeptRange(t *testing.T) {
	doc := newDoc(PlainTextLanguage, "if (a) {", "  x()", "} else {", "  y()", "}")
	merged, ok := plainTextStrategy{}.absorb(doc, fold(0, 1), fold(2, 3))
	assert.True(t, ok)
	assert.Equal(t, fold(0, 3), merged)

	_, ok = plainTextStrategy{}.absorb(doc, fold(0, 1), fold(3, 3))
	assert.False(t, ok)
}

func TestRemoveNestedFoldingRangesOrdersAndDropsOverlap(t *testing.T) {
	doc := newDoc("go", greeterLines...)
	strategy := newStrategy(ModeSymbols, nil)
	got := removeNestedFoldingRanges(doc, []protocol.FoldingRange{fold(6, 8), fold(0, 2), fold(2, 4), fold(1, 1)}, strategy)
	assert.Equal(t, []protocol.FoldingRange{fold(0, 2), fold(6, 8)}, got)
}

func TestRemoveOutermostKeepsNonWrappers(t *testing.T) {
	doc := newDoc("plaintext", "intro", "def a():", "  x", "  y", "outro")
	got, err := removeOutermostFoldingRanges(context.Background(), doc, []protocol.FoldingRange{fold(1, 3), fold(2, 3)}, newStrategy(ModePlainText, nil))
	require.NoError(t, err)
	assert.Equal(t, []protocol.FoldingRange{fold(1, 3), fold(2, 3)}, got)
}

func TestPlainTextWrapperHeuristic(t *testing.T) {
	doc := newDoc(PlainTextLanguage,
		"",
		"export default class Widget {",
		"  render() {",
		"  }",
		"}",
		"",
	)
	wrappers, err := plainTextStrategy{}.wrappers(context.Background(), doc, []protocol.FoldingRange{fold(1, 3), fold(2, 2)})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, wrappers)
	assert.True(t, spansDocument(doc, fold(1, 3)))
	assert.False(t, spansDocument(doc, fold(2, 2)))
}

func TestLargestInteriorValue(t *testing.T) {
	_, ok := LargestInteriorValue([]int{})
	assert.False(t, ok)

	cases := []struct {
		name   string
		values []int
		want   int
	}{
		{"single", []int{5}, 5},
		{"pair", []int{1, 7}, 1},
		{"interior wins", []int{3, 9, 1}, 9},
		{"last never compared", []int{3, 1, 99}, 3},
		{"seed survives", []int{10, 2, 4, 1}, 10},
		{"negative", []int{-5, -2, -9, -1}, -2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := LargestInteriorValue(tc.values)
			require.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}

	f, ok := LargestInteriorValue([]float64{0.5, 2.5, 2.5, 0})
	require.True(t, ok)
	assert.Equal(t, 2.5, f)
}
