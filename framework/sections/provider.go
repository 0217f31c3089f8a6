package sections

import (
	"context"

	"go.lsp.dev/protocol"
)

// FoldingRanges is the result of a folding range request. A provider that
// has no answer for a document returns Absent rather than an empty list.
type FoldingRanges struct {
	ranges  []protocol.FoldingRange
	present bool
}

// Present wraps a provider answer. An empty slice is still present.
func Present(ranges []protocol.FoldingRange) FoldingRanges {
	return FoldingRanges{ranges: ranges, present: true}
}

// Absent reports that the provider had nothing for the document.
func Absent() FoldingRanges {
	return FoldingRanges{}
}

// Get returns the ranges and whether the provider answered at all.
func (f FoldingRanges) Get() ([]protocol.FoldingRange, bool) {
	return f.ranges, f.present
}

// FoldingRangeProvider supplies the folding ranges of a document.
type FoldingRangeProvider interface {
	FoldingRanges(ctx context.Context, uri protocol.DocumentURI) (FoldingRanges, error)
}

// SymbolProvider supplies the hierarchical outline of a document.
type SymbolProvider interface {
	DocumentSymbols(ctx context.Context, doc Document) ([]protocol.DocumentSymbol, error)
}

// FoldingRangeFunc adapts a function to FoldingRangeProvider.
type FoldingRangeFunc func(ctx context.Context, uri protocol.DocumentURI) (FoldingRanges, error)

func (f FoldingRangeFunc) FoldingRanges(ctx context.Context, uri protocol.DocumentURI) (FoldingRanges, error) {
	return f(ctx, uri)
}

// SymbolFunc adapts a function to SymbolProvider.
type SymbolFunc func(ctx context.Context, doc Document) ([]protocol.DocumentSymbol, error)

func (f SymbolFunc) DocumentSymbols(ctx context.Context, doc Document) ([]protocol.DocumentSymbol, error) {
	return f(ctx, doc)
}
