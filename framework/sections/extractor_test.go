package sections

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
)

const testURI = protocol.DocumentURI("file:///workspace/greeter.ts")

func newDoc(language string, lines ...string) *TextDocument {
	return NewTextDocument(testURI, language, strings.Join(lines, "\n"))
}

func foldings(ranges ...protocol.FoldingRange) FoldingRangeProvider {
	return FoldingRangeFunc(func(context.Context, protocol.DocumentURI) (FoldingRanges, error) {
		return Present(ranges), nil
	})
}

func fold(start, end uint32) protocol.FoldingRange {
	return protocol.FoldingRange{StartLine: start, EndLine: end}
}

func symbolsOf(symbols ...protocol.DocumentSymbol) SymbolProvider {
	return SymbolFunc(func(context.Context, Document) ([]protocol.DocumentSymbol, error) {
		return symbols, nil
	})
}

func symbol(name string, kind protocol.SymbolKind, start, end uint32, children ...protocol.DocumentSymbol) protocol.DocumentSymbol {
	rng := protocol.Range{Start: protocol.Position{Line: start}, End: protocol.Position{Line: end}}
	return protocol.DocumentSymbol{Name: name, Kind: kind, Range: rng, SelectionRange: rng, Children: children}
}

func lineSpans(ranges []protocol.Range) [][2]uint32 {
	spans := make([][2]uint32, 0, len(ranges))
	for _, r := range ranges {
		start, end := RangeLines(r)
		spans = append(spans, [2]uint32{start, end})
	}
	return spans
}

var greeterLines = []string{
	"export class Greeter {",
	"  hello() {",
	"    return 1",
	"  }",
	"",
	"  bye() {",
	"    return 2",
	"  }",
	"}",
}

func TestDocumentSectionsNoFoldingRangesLogsOnce(t *testing.T) {
	cases := map[string]FoldingRangeProvider{
		"absent": FoldingRangeFunc(func(context.Context, protocol.DocumentURI) (FoldingRanges, error) {
			return Absent(), nil
		}),
		"empty": foldings(),
		"only kinds": foldings(
			protocol.FoldingRange{StartLine: 0, EndLine: 2, Kind: protocol.ImportsFoldingRange},
			protocol.FoldingRange{StartLine: 3, EndLine: 5, Kind: protocol.CommentFoldingRange},
		),
	}
	for name, provider := range cases {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			extractor := NewExtractor(provider, nil, WithLogger(log.New(&buf, "", 0)))
			ranges, err := extractor.DocumentSections(context.Background(), newDoc("typescript", greeterLines...))
			require.NoError(t, err)
			require.NotNil(t, ranges)
			assert.Empty(t, ranges)
			assert.Equal(t, 1, strings.Count(buf.String(), "no indentation-based folding ranges found"))
		})
	}
}

func TestDocumentSectionsDisjointRangesUnchanged(t *testing.T) {
	doc := newDoc("typescript",
		"function a() {",
		"  one()",
		"}",
		"function b() {",
		"  two()",
		"}",
	)
	ranges, err := DocumentSections(context.Background(), doc, foldings(fold(3, 4), fold(0, 1)), symbolsOf())
	require.NoError(t, err)
	assert.Equal(t, []protocol.Range{
		{Start: protocol.Position{Line: 0}, End: protocol.Position{Line: 1, Character: 7}},
		{Start: protocol.Position{Line: 3}, End: protocol.Position{Line: 4, Character: 7}},
	}, ranges)
}

func TestDocumentSectionsUnwrapsClass(t *testing.T) {
	doc := newDoc("typescript", greeterLines...)
	class := symbol("Greeter", protocol.SymbolKindClass, 0, 8,
		symbol("hello", protocol.SymbolKindMethod, 1, 3),
		symbol("bye", protocol.SymbolKindMethod, 5, 7),
	)
	ranges, err := DocumentSections(context.Background(), doc, foldings(fold(0, 7), fold(1, 2), fold(5, 6)), symbolsOf(class))
	require.NoError(t, err)
	assert.Equal(t, [][2]uint32{{1, 2}, {5, 6}}, lineSpans(ranges))
	assert.Equal(t, uint32(12), ranges[0].End.Character)
}

func TestDocumentSectionsKeepsOuterFunction(t *testing.T) {
	doc := newDoc("typescript",
		"function run() {",
		"  if (ok) {",
		"    go()",
		"  }",
		"  done()",
		"}",
	)
	fn := symbol("run", protocol.SymbolKindFunction, 0, 5)
	ranges, err := DocumentSections(context.Background(), doc, foldings(fold(1, 2), fold(0, 4)), symbolsOf(fn))
	require.NoError(t, err)
	assert.Equal(t, [][2]uint32{{0, 4}}, lineSpans(ranges))
}

func TestDocumentSectionsUnwrapsNestedContainers(t *testing.T) {
	doc := newDoc("typescript",
		"namespace App {",
		"  class A {",
		"    run() {",
		"      go()",
		"    }",
		"    stop() {",
		"      halt()",
		"    }",
		"  }",
		"}",
	)
	calls := 0
	symbols := SymbolFunc(func(context.Context, Document) ([]protocol.DocumentSymbol, error) {
		calls++
		return []protocol.DocumentSymbol{
			symbol("App", protocol.SymbolKindNamespace, 0, 9,
				symbol("A", protocol.SymbolKindClass, 1, 8,
					symbol("run", protocol.SymbolKindMethod, 2, 4),
					symbol("stop", protocol.SymbolKindMethod, 5, 7),
				),
			),
		}, nil
	})
	ranges, err := DocumentSections(context.Background(), doc, foldings(fold(0, 8), fold(1, 7), fold(2, 3), fold(5, 6)), symbols)
	require.NoError(t, err)
	assert.Equal(t, [][2]uint32{{2, 3}, {5, 6}}, lineSpans(ranges))
	assert.Equal(t, 1, calls)
}

func TestDocumentSectionsWrapperWithoutChildrenKept(t *testing.T) {
	doc := newDoc("go",
		"type Config struct {",
		"\tName string",
		"}",
	)
	st := symbol("Config", protocol.SymbolKindStruct, 0, 2, symbol("Name", protocol.SymbolKindField, 1, 1))
	ranges, err := DocumentSections(context.Background(), doc, foldings(fold(0, 1)), symbolsOf(st))
	require.NoError(t, err)
	assert.Equal(t, [][2]uint32{{0, 1}}, lineSpans(ranges))
}

func TestDocumentSectionsNestedPairKeepsOne(t *testing.T) {
	doc := newDoc("typescript", greeterLines...)
	ranges, err := DocumentSections(context.Background(), doc, foldings(fold(1, 6), fold(2, 3), fold(2, 3)), nil)
	require.NoError(t, err)
	assert.Equal(t, [][2]uint32{{1, 6}}, lineSpans(ranges))
}

func TestDocumentSectionsFoldingProviderFailure(t *testing.T) {
	boom := errors.New("provider crashed")
	provider := FoldingRangeFunc(func(context.Context, protocol.DocumentURI) (FoldingRanges, error) {
		return Absent(), boom
	})
	_, err := DocumentSections(context.Background(), newDoc("typescript", greeterLines...), provider, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCollaboratorUnavailable)
	assert.ErrorIs(t, err, boom)
	var collab *CollaboratorError
	require.ErrorAs(t, err, &collab)
	assert.Equal(t, CollaboratorFoldingRanges, collab.Collaborator)
	assert.Equal(t, testURI, collab.URI)
}

func TestDocumentSectionsSymbolProviderFailure(t *testing.T) {
	boom := errors.New("no outline")
	symbols := SymbolFunc(func(context.Context, Document) ([]protocol.DocumentSymbol, error) {
		return nil, boom
	})
	_, err := DocumentSections(context.Background(), newDoc("typescript", greeterLines...), foldings(fold(0, 7)), symbols)
	assert.ErrorIs(t, err, ErrCollaboratorUnavailable)
	var collab *CollaboratorError
	require.ErrorAs(t, err, &collab)
	assert.Equal(t, CollaboratorSymbols, collab.Collaborator)
}

func TestDocumentSectionsMalformedRange(t *testing.T) {
	_, err := DocumentSections(context.Background(), newDoc("typescript", greeterLines...), foldings(fold(5, 2)), nil)
	assert.ErrorIs(t, err, ErrCollaboratorUnavailable)
	assert.ErrorIs(t, err, ErrMalformedRange)
}

func TestDocumentSectionsIgnoresRangesPastDocumentEnd(t *testing.T) {
	doc := newDoc("typescript", "a {", "  b", "}")
	ranges, err := DocumentSections(context.Background(), doc, foldings(fold(0, 1), fold(5, 6), fold(8, 9)), nil)
	require.NoError(t, err)
	assert.Equal(t, []protocol.Range{{
		Start: protocol.Position{Line: 0},
		End:   protocol.Position{Line: 1, Character: 3},
	}}, ranges)

	ranges, err = DocumentSections(context.Background(), doc, foldings(fold(1, 7), fold(1, 9)), nil)
	require.NoError(t, err)
	assert.Equal(t, [][2]uint32{{1, 2}}, lineSpans(ranges))
}

func TestDocumentSectionsPlainTextSkipsSymbols(t *testing.T) {
	doc := newDoc(PlainTextLanguage,
		"class Foo:",
		"    def a(self):",
		"        pass",
		"    def b(self):",
		"        pass",
	)
	symbols := SymbolFunc(func(context.Context, Document) ([]protocol.DocumentSymbol, error) {
		t.Fatal("plaintext documents have no outline")
		return nil, nil
	})
	ranges, err := DocumentSections(context.Background(), doc, foldings(fold(0, 4), fold(1, 2), fold(3, 4)), symbols)
	require.NoError(t, err)
	assert.Equal(t, [][2]uint32{{1, 2}, {3, 4}}, lineSpans(ranges))
}

func TestDocumentSectionsPlainTextClosingLine(t *testing.T) {
	doc := newDoc(PlainTextLanguage,
		"intro",
		"if (a) {",
		"  x()",
		"} else {",
		"  y()",
		"}",
		"outro",
	)
	ranges, err := DocumentSections(context.Background(), doc, foldings(fold(1, 2), fold(3, 4)), nil)
	require.NoError(t, err)
	assert.Equal(t, [][2]uint32{{1, 4}}, lineSpans(ranges))

	// The same ranges are siblings when an outline is available.
	ranges, err = NewExtractor(foldings(fold(1, 2), fold(3, 4)), nil, WithMode(ModeSymbols)).DocumentSections(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, [][2]uint32{{1, 2}, {3, 4}}, lineSpans(ranges))
}

func TestModeFor(t *testing.T) {
	assert.Equal(t, ModePlainText, ModeFor(newDoc(PlainTextLanguage)))
	assert.Equal(t, ModeSymbols, ModeFor(newDoc("go")))
	assert.Equal(t, "plaintext", ModePlainText.String())
}
