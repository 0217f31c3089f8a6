package tools

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"go.lsp.dev/protocol"

	"github.com/lexcodex/docsections/framework/ast"
	"github.com/lexcodex/docsections/framework/sections"
)

const shutdownTimeout = 2 * time.Second

// LSPClient defines the requests the proxy needs from a language server.
type LSPClient interface {
	OpenDocument(ctx context.Context, uri protocol.DocumentURI, languageID, text string) error
	FoldingRanges(ctx context.Context, uri protocol.DocumentURI) (sections.FoldingRanges, error)
	DocumentSymbols(ctx context.Context, uri protocol.DocumentURI) ([]protocol.DocumentSymbol, error)
	Close() error
}

// ClientFactory starts a client on first use.
type ClientFactory func() (LSPClient, error)

// Proxy routes folding range and document symbol requests to the language
// server registered for a document's language and answers the rest from
// the native parsers. It implements sections.FoldingRangeProvider and
// sections.SymbolProvider.
type Proxy struct {
	mu        sync.RWMutex
	clients   map[string]LSPClient
	factories map[string]ClientFactory
	failed    map[string]error
	cache     map[cacheKey]cacheEntry
	ttl       time.Duration
	// exchange serialises open+request round trips so concurrent callers
	// of one URI never read each other's text.
	exchange  sync.Mutex
	native    *ast.Provider
	documents map[protocol.DocumentURI]sections.Document
	logger    *log.Logger
	now       func() time.Time
}

// cacheKey holds one entry per request kind and document. The content hash
// lives in the entry, so edits replace it instead of adding new ones.
type cacheKey struct {
	kind string
	uri  protocol.DocumentURI
}

type cacheEntry struct {
	hash       string
	value      interface{}
	expiration time.Time
}

// NewProxy creates a proxy instance. A nil native provider gets the default
// parser set.
func NewProxy(ttl time.Duration, native *ast.Provider, logger *log.Logger) *Proxy {
	if ttl == 0 {
		ttl = time.Minute
	}
	if logger == nil {
		logger = log.Default()
	}
	if native == nil {
		native = ast.NewProvider(logger)
	}
	return &Proxy{
		clients:   make(map[string]LSPClient),
		factories: make(map[string]ClientFactory),
		failed:    make(map[string]error),
		cache:     make(map[cacheKey]cacheEntry),
		ttl:       ttl,
		native:    native,
		documents: make(map[protocol.DocumentURI]sections.Document),
		logger:    logger,
		now:       time.Now,
	}
}

// Register registers a running client for a language id.
func (p *Proxy) Register(languageID string, client LSPClient) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clients[languageID] = client
}

// RegisterFactory registers a client that is started the first time a
// document of languageID is requested.
func (p *Proxy) RegisterFactory(languageID string, factory ClientFactory) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.factories[languageID] = factory
}

// Languages lists the language ids served by a language server.
func (p *Proxy) Languages() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	seen := make(map[string]bool)
	for lang := range p.clients {
		seen[lang] = true
	}
	for lang := range p.factories {
		seen[lang] = true
	}
	langs := make([]string, 0, len(seen))
	for lang := range seen {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// Open serves doc from memory until Close is called.
func (p *Proxy) Open(doc sections.Document) {
	p.mu.Lock()
	p.documents[doc.URI()] = doc
	p.mu.Unlock()
	p.native.Open(doc)
}

// Close forgets an opened document and its cached answers.
func (p *Proxy) Close(uri protocol.DocumentURI) {
	p.mu.Lock()
	delete(p.documents, uri)
	delete(p.cache, cacheKey{kindFolding, uri})
	delete(p.cache, cacheKey{kindSymbols, uri})
	p.mu.Unlock()
	p.native.Close(uri)
}

// OpenFile reads path into a document with the native language detection.
func (p *Proxy) OpenFile(path string) (*sections.TextDocument, error) {
	return p.native.OpenFile(path)
}

// Shutdown closes every started client.
func (p *Proxy) Shutdown() error {
	p.mu.Lock()
	clients := make(map[LSPClient]bool, len(p.clients))
	for _, client := range p.clients {
		clients[client] = true
	}
	p.clients = make(map[string]LSPClient)
	p.mu.Unlock()
	var errs []error
	for client := range clients {
		if err := client.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

const (
	kindFolding = "fold"
	kindSymbols = "symbols"
)

// FoldingRanges implements sections.FoldingRangeProvider for the opened
// document at uri, or the file it names.
func (p *Proxy) FoldingRanges(ctx context.Context, uri protocol.DocumentURI) (sections.FoldingRanges, error) {
	doc, err := p.document(uri)
	if err != nil {
		return sections.Absent(), err
	}
	return p.DocumentFoldingRanges(ctx, doc)
}

// DocumentFoldingRanges folds doc itself, whatever is opened under its URI.
func (p *Proxy) DocumentFoldingRanges(ctx context.Context, doc sections.Document) (sections.FoldingRanges, error) {
	client, err := p.clientFor(doc.LanguageID())
	if err != nil {
		return sections.Absent(), err
	}
	if client == nil {
		return p.native.DocumentFoldingRanges(ctx, doc)
	}
	uri := doc.URI()
	text := ast.DocumentText(doc)
	value, err := p.cached(cacheKey{kindFolding, uri}, ast.HashContent(text), func() (interface{}, error) {
		p.exchange.Lock()
		defer p.exchange.Unlock()
		if err := client.OpenDocument(ctx, uri, doc.LanguageID(), text); err != nil {
			return nil, err
		}
		return client.FoldingRanges(ctx, uri)
	})
	if err != nil {
		return sections.Absent(), err
	}
	return value.(sections.FoldingRanges), nil
}

// DocumentSymbols implements sections.SymbolProvider.
func (p *Proxy) DocumentSymbols(ctx context.Context, doc sections.Document) ([]protocol.DocumentSymbol, error) {
	client, err := p.clientFor(doc.LanguageID())
	if err != nil {
		return nil, err
	}
	if client == nil {
		return p.native.DocumentSymbols(ctx, doc)
	}
	text := ast.DocumentText(doc)
	value, err := p.cached(cacheKey{kindSymbols, doc.URI()}, ast.HashContent(text), func() (interface{}, error) {
		p.exchange.Lock()
		defer p.exchange.Unlock()
		if err := client.OpenDocument(ctx, doc.URI(), doc.LanguageID(), text); err != nil {
			return nil, err
		}
		return client.DocumentSymbols(ctx, doc.URI())
	})
	if err != nil {
		return nil, err
	}
	return value.([]protocol.DocumentSymbol), nil
}

func (p *Proxy) document(uri protocol.DocumentURI) (sections.Document, error) {
	p.mu.RLock()
	doc, ok := p.documents[uri]
	p.mu.RUnlock()
	if ok {
		return doc, nil
	}
	path, err := ast.FilePath(uri)
	if err != nil {
		return nil, err
	}
	return p.native.OpenFile(path)
}

// clientFor returns the client for languageID, starting it when only a
// factory is registered. A nil client means the native parsers answer.
func (p *Proxy) clientFor(languageID string) (LSPClient, error) {
	p.mu.RLock()
	client, ok := p.clients[languageID]
	factory, lazy := p.factories[languageID]
	failure := p.failed[languageID]
	p.mu.RUnlock()
	if ok {
		return client, nil
	}
	if failure != nil {
		return nil, failure
	}
	if !lazy {
		return nil, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if client, ok := p.clients[languageID]; ok {
		return client, nil
	}
	if failure := p.failed[languageID]; failure != nil {
		return nil, failure
	}
	client, err := factory()
	if err != nil {
		err = fmt.Errorf("start %s language server: %w", languageID, err)
		p.failed[languageID] = err
		p.logger.Printf("[lsp] %v", err)
		return nil, err
	}
	p.clients[languageID] = client
	return client, nil
}

// cached returns the live entry for key when it was computed from the same
// content, or stores the result of fetch. fetch runs without the lock held.
// Storing sweeps expired entries, so documents that are never closed still
// leave the cache.
func (p *Proxy) cached(key cacheKey, hash string, fetch func() (interface{}, error)) (interface{}, error) {
	p.mu.RLock()
	entry, ok := p.cache[key]
	p.mu.RUnlock()
	if ok && entry.hash == hash && p.now().Before(entry.expiration) {
		return entry.value, nil
	}
	val, err := fetch()
	if err != nil {
		return nil, err
	}
	now := p.now()
	p.mu.Lock()
	for k, e := range p.cache {
		if !now.Before(e.expiration) {
			delete(p.cache, k)
		}
	}
	p.cache[key] = cacheEntry{hash: hash, value: val, expiration: now.Add(p.ttl)}
	p.mu.Unlock()
	return val, nil
}
