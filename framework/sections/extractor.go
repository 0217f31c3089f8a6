// Package sections partitions a document into top-level logical sections
// (class or function bodies) using folding ranges and the document outline.
package sections

import (
	"context"
	"log"

	"go.lsp.dev/protocol"
)

// Extractor derives document sections from injected collaborators. It holds
// no per-document state and is safe for concurrent use when its providers are.
type Extractor struct {
	folding FoldingRangeProvider
	symbols SymbolProvider
	logger  *log.Logger
	mode    *Mode
}

// Option customises an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger receiving diagnostics.
func WithLogger(logger *log.Logger) Option {
	return func(e *Extractor) { e.logger = logger }
}

// WithMode forces a mode instead of deriving it from the document language.
func WithMode(mode Mode) Option {
	return func(e *Extractor) { e.mode = &mode }
}

// NewExtractor builds an extractor. The providers are usually supplied by the
// caller's composition root; symbols may be nil when no outline exists.
func NewExtractor(folding FoldingRangeProvider, symbols SymbolProvider, opts ...Option) *Extractor {
	e := &Extractor{folding: folding, symbols: symbols}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = log.Default()
	}
	return e
}

// DocumentSections is shorthand for NewExtractor(folding, symbols).DocumentSections.
func DocumentSections(ctx context.Context, doc Document, folding FoldingRangeProvider, symbols SymbolProvider) ([]protocol.Range, error) {
	return NewExtractor(folding, symbols).DocumentSections(ctx, doc)
}

// DocumentSections returns the document's top-level sections, ordered and
// non-overlapping. A document without usable folding ranges yields an empty
// result and a logged warning. Provider failures are returned as
// *CollaboratorError.
func (e *Extractor) DocumentSections(ctx context.Context, doc Document) ([]protocol.Range, error) {
	mode := ModeFor(doc)
	if e.mode != nil {
		mode = *e.mode
	}

	answer, err := e.folding.FoldingRanges(ctx, doc.URI())
	if err != nil {
		return nil, &CollaboratorError{Collaborator: CollaboratorFoldingRanges, URI: doc.URI(), Err: err}
	}
	raw, _ := answer.Get()
	foldingRanges, err := usableFoldingRanges(doc, raw)
	if err != nil {
		return nil, &CollaboratorError{Collaborator: CollaboratorFoldingRanges, URI: doc.URI(), Err: err}
	}
	if len(foldingRanges) == 0 {
		e.logger.Printf("[sections] no indentation-based folding ranges found uri=%s", doc.URI())
		return []protocol.Range{}, nil
	}

	strategy := newStrategy(mode, e.symbols)
	inner, err := removeOutermostFoldingRanges(ctx, doc, foldingRanges, strategy)
	if err != nil {
		return nil, err
	}
	flat := removeNestedFoldingRanges(doc, inner, strategy)

	result := make([]protocol.Range, 0, len(flat))
	for _, fr := range flat {
		result = append(result, FoldingRangeToRange(doc, fr))
	}
	return result, nil
}
