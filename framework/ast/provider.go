package ast

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/lexcodex/docsections/framework/sections"
)

// Provider answers folding range and document symbol requests from the
// parsers in this package. Documents registered with Open are served from
// memory; anything else is read from disk through its file URI.
type Provider struct {
	registry *ParserRegistry
	detector *LanguageDetector
	fallback Parser
	logger   *log.Logger

	mu        sync.RWMutex
	documents map[protocol.DocumentURI]openDocument
}

type openDocument struct {
	languageID string
	text       string
}

// NewProvider registers the Go and Markdown parsers and falls back to
// indentation folding for every other language.
func NewProvider(logger *log.Logger) *Provider {
	if logger == nil {
		logger = log.Default()
	}
	p := &Provider{
		registry:  NewParserRegistry(),
		detector:  NewLanguageDetector(),
		fallback:  NewIndentParser(),
		logger:    logger,
		documents: make(map[protocol.DocumentURI]openDocument),
	}
	p.Register(NewGoParser())
	p.Register(NewMarkdownParser())
	return p
}

// Register makes an additional parser available.
func (p *Provider) Register(parser Parser) {
	p.registry.Register(parser)
}

// Detector exposes the language detector used for on-disk documents.
func (p *Provider) Detector() *LanguageDetector {
	return p.detector
}

// Open serves doc from memory until Close is called.
func (p *Provider) Open(doc sections.Document) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.documents[doc.URI()] = openDocument{languageID: doc.LanguageID(), text: DocumentText(doc)}
}

// Close forgets an opened document.
func (p *Provider) Close(docURI protocol.DocumentURI) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.documents, docURI)
}

// FoldingRanges implements sections.FoldingRangeProvider. Empty documents
// have no answer.
func (p *Provider) FoldingRanges(ctx context.Context, docURI protocol.DocumentURI) (sections.FoldingRanges, error) {
	doc, err := p.load(docURI)
	if err != nil {
		return sections.Absent(), err
	}
	return p.foldText(doc.languageID, doc.text, docURI), nil
}

// DocumentFoldingRanges folds doc itself, ignoring any opened document or
// file that shares its URI.
func (p *Provider) DocumentFoldingRanges(ctx context.Context, doc sections.Document) (sections.FoldingRanges, error) {
	return p.foldText(doc.LanguageID(), DocumentText(doc), doc.URI()), nil
}

func (p *Provider) foldText(languageID, text string, docURI protocol.DocumentURI) sections.FoldingRanges {
	if strings.TrimSpace(text) == "" {
		return sections.Absent()
	}
	return sections.Present(p.parse(languageID, text, docURI).FoldingRanges)
}

// DocumentSymbols implements sections.SymbolProvider.
func (p *Provider) DocumentSymbols(ctx context.Context, doc sections.Document) ([]protocol.DocumentSymbol, error) {
	outline := p.parse(doc.LanguageID(), DocumentText(doc), doc.URI())
	return outline.Symbols, nil
}

// parse uses the language parser when there is one and indentation otherwise.
// Source that a language parser rejects is still folded by indentation.
func (p *Provider) parse(languageID, text string, docURI protocol.DocumentURI) *Outline {
	if parser, ok := p.registry.GetParser(languageID); ok {
		outline, err := parser.Parse(text)
		if err == nil {
			return outline
		}
		p.logger.Printf("[ast] %s parser failed uri=%s: %v; using indentation", languageID, docURI, err)
	}
	outline, _ := p.fallback.Parse(text)
	return outline
}

func (p *Provider) load(docURI protocol.DocumentURI) (openDocument, error) {
	p.mu.RLock()
	doc, ok := p.documents[docURI]
	p.mu.RUnlock()
	if ok {
		return doc, nil
	}
	path, err := FilePath(docURI)
	if err != nil {
		return openDocument{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return openDocument{}, fmt.Errorf("read %s: %w", path, err)
	}
	return openDocument{languageID: p.detector.Detect(path), text: string(data)}, nil
}

// FilePath resolves a file URI to a local path.
func FilePath(docURI protocol.DocumentURI) (string, error) {
	if !strings.HasPrefix(string(docURI), uri.FileScheme+"://") {
		return "", fmt.Errorf("unsupported document uri %s", docURI)
	}
	return uri.URI(docURI).Filename(), nil
}

// OpenFile reads path into a sections.TextDocument with a detected language.
func (p *Provider) OpenFile(path string) (*sections.TextDocument, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	return sections.NewTextDocument(protocol.DocumentURI(uri.File(abs)), p.detector.Detect(abs), string(data)), nil
}

// DocumentText rebuilds the text of any sections.Document.
func DocumentText(doc sections.Document) string {
	if td, ok := doc.(*sections.TextDocument); ok {
		return td.Text()
	}
	lines := make([]string, doc.LineCount())
	for i := range lines {
		lines[i] = doc.LineText(i)
	}
	return strings.Join(lines, "\n")
}
