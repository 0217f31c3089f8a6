package tools

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/lexcodex/docsections/framework/ast"
	"github.com/lexcodex/docsections/framework/sections"
)

type stubClient struct {
	mu           sync.Mutex
	folding      []protocol.FoldingRange
	symbols      []protocol.DocumentSymbol
	err          error
	opened       []string
	foldingCalls int
	symbolCalls  int
	closed       int
}

func (s *stubClient) OpenDocument(ctx context.Context, docURI protocol.DocumentURI, languageID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = append(s.opened, text)
	return nil
}

func (s *stubClient) FoldingRanges(ctx context.Context, docURI protocol.DocumentURI) (sections.FoldingRanges, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.foldingCalls++
	if s.err != nil {
		return sections.Absent(), s.err
	}
	return sections.Present(s.folding), nil
}

func (s *stubClient) DocumentSymbols(ctx context.Context, docURI protocol.DocumentURI) ([]protocol.DocumentSymbol, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.symbolCalls++
	return s.symbols, s.err
}

func (s *stubClient) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

var classSource = "class Greeter {\n  hello() {\n    return 1;\n  }\n  bye() {\n    return 2;\n  }\n}\n"

func classStub() *stubClient {
	return &stubClient{
		folding: []protocol.FoldingRange{
			{StartLine: 0, EndLine: 6},
			{StartLine: 1, EndLine: 2},
			{StartLine: 4, EndLine: 5},
		},
		symbols: []protocol.DocumentSymbol{{
			Name:  "Greeter",
			Kind:  protocol.SymbolKindClass,
			Range: protocol.Range{End: protocol.Position{Line: 7, Character: 1}},
			Children: []protocol.DocumentSymbol{
				{Name: "hello", Kind: protocol.SymbolKindMethod, Range: protocol.Range{Start: protocol.Position{Line: 1}}},
				{Name: "bye", Kind: protocol.SymbolKindMethod, Range: protocol.Range{Start: protocol.Position{Line: 4}}},
			},
		}},
	}
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func TestProxyRoutesByLanguage(t *testing.T) {
	proxy := NewProxy(time.Minute, nil, quietLogger())
	client := classStub()
	proxy.Register("typescript", client)
	doc := sections.NewTextDocument("file:///work/greeter.ts", "typescript", classSource)
	proxy.Open(doc)

	ranges, err := sections.NewExtractor(proxy, proxy, sections.WithLogger(quietLogger())).DocumentSections(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, ranges, 2)
	assert.Equal(t, uint32(1), ranges[0].Start.Line)
	assert.Equal(t, uint32(4), ranges[1].Start.Line)
	assert.Equal(t, 1, client.foldingCalls)
	assert.Equal(t, 1, client.symbolCalls)
	assert.Equal(t, []string{classSource, classSource}, client.opened)
}

func TestProxyCachesByContent(t *testing.T) {
	proxy := NewProxy(time.Minute, nil, quietLogger())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	proxy.now = func() time.Time { return now }
	client := classStub()
	proxy.Register("typescript", client)
	ctx := context.Background()

	doc := sections.NewTextDocument("file:///work/greeter.ts", "typescript", classSource)
	proxy.Open(doc)
	_, err := proxy.FoldingRanges(ctx, doc.URI())
	require.NoError(t, err)
	_, err = proxy.FoldingRanges(ctx, doc.URI())
	require.NoError(t, err)
	assert.Equal(t, 1, client.foldingCalls, "second call is served from cache")

	edited := sections.NewTextDocument(doc.URI(), "typescript", classSource+"// tail\n")
	proxy.Open(edited)
	_, err = proxy.FoldingRanges(ctx, doc.URI())
	require.NoError(t, err)
	assert.Equal(t, 2, client.foldingCalls, "edited text misses the cache")

	now = now.Add(2 * time.Minute)
	_, err = proxy.FoldingRanges(ctx, doc.URI())
	require.NoError(t, err)
	assert.Equal(t, 3, client.foldingCalls, "expired entries are refetched")
}

func cacheSize(p *Proxy) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.cache)
}

func TestProxyCacheStaysBoundedAcrossEdits(t *testing.T) {
	proxy := NewProxy(time.Minute, nil, quietLogger())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	proxy.now = func() time.Time { return now }
	client := classStub()
	proxy.Register("typescript", client)
	ctx := context.Background()

	docURI := protocol.DocumentURI("file:///work/greeter.ts")
	for i := 0; i < 50; i++ {
		doc := sections.NewTextDocument(docURI, "typescript", classSource+strings.Repeat("\n", i))
		proxy.Open(doc)
		_, err := proxy.FoldingRanges(ctx, docURI)
		require.NoError(t, err)
		_, err = proxy.DocumentSymbols(ctx, doc)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, cacheSize(proxy), "one entry per request kind and document")
	assert.Equal(t, 50, client.foldingCalls)

	other := sections.NewTextDocument("file:///work/other.ts", "typescript", classSource)
	proxy.Open(other)
	_, err := proxy.FoldingRanges(ctx, other.URI())
	require.NoError(t, err)
	assert.Equal(t, 3, cacheSize(proxy))

	now = now.Add(2 * time.Minute)
	_, err = proxy.FoldingRanges(ctx, other.URI())
	require.NoError(t, err)
	assert.Equal(t, 1, cacheSize(proxy), "expired entries are swept on store")

	proxy.Close(other.URI())
	assert.Equal(t, 0, cacheSize(proxy))
}

func TestProxyDocumentFoldingRangesIgnoresOpenedText(t *testing.T) {
	proxy := NewProxy(time.Minute, nil, quietLogger())
	docURI := protocol.DocumentURI("untitled:shared")
	proxy.Open(sections.NewTextDocument(docURI, sections.PlainTextLanguage, "other\n"))

	mine := sections.NewTextDocument(docURI, sections.PlainTextLanguage, "intro\n  detail\n")
	answer, err := proxy.DocumentFoldingRanges(context.Background(), mine)
	require.NoError(t, err)
	ranges, ok := answer.Get()
	require.True(t, ok)
	assert.Equal(t, []protocol.FoldingRange{{StartLine: 0, EndLine: 1}}, ranges)
}

func TestProxyFallsBackToNativeParsers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("intro\n  detail\n  more\nnext\n"), 0o644))

	proxy := NewProxy(0, nil, quietLogger())
	proxy.Register("go", classStub())
	answer, err := proxy.FoldingRanges(context.Background(), protocol.DocumentURI(uri.File(path)))
	require.NoError(t, err)
	ranges, ok := answer.Get()
	require.True(t, ok)
	assert.Equal(t, []protocol.FoldingRange{{StartLine: 0, EndLine: 2}}, ranges)
}

func TestProxyPropagatesClientErrors(t *testing.T) {
	proxy := NewProxy(time.Minute, nil, quietLogger())
	client := classStub()
	client.err = errors.New("server crashed")
	proxy.Register("typescript", client)
	doc := sections.NewTextDocument("file:///work/greeter.ts", "typescript", classSource)
	proxy.Open(doc)

	_, err := sections.DocumentSections(context.Background(), doc, proxy, proxy)
	require.Error(t, err)
	assert.ErrorIs(t, err, sections.ErrCollaboratorUnavailable)
	assert.Contains(t, err.Error(), "server crashed")

	client.err = nil
	_, err = sections.DocumentSections(context.Background(), doc, proxy, proxy)
	assert.NoError(t, err, "failures are not cached")
}

func TestProxyStartsFactoriesOnce(t *testing.T) {
	proxy := NewProxy(time.Minute, nil, quietLogger())
	client := classStub()
	starts := 0
	factory := shared(func() (LSPClient, error) {
		starts++
		return client, nil
	})
	proxy.RegisterFactory("typescript", factory)
	proxy.RegisterFactory("javascript", factory)
	assert.Equal(t, []string{"javascript", "typescript"}, proxy.Languages())

	ctx := context.Background()
	for _, doc := range []sections.Document{
		sections.NewTextDocument("file:///work/a.ts", "typescript", classSource),
		sections.NewTextDocument("file:///work/b.js", "javascript", classSource),
	} {
		proxy.Open(doc)
		_, err := proxy.FoldingRanges(ctx, doc.URI())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, starts)

	require.NoError(t, proxy.Shutdown())
	assert.Equal(t, 1, client.closed)
}

func TestProxyRemembersFailedFactories(t *testing.T) {
	proxy := NewProxy(time.Minute, nil, quietLogger())
	starts := 0
	proxy.RegisterFactory("rust", func() (LSPClient, error) {
		starts++
		return nil, errors.New("rust-analyzer not found")
	})
	doc := sections.NewTextDocument("file:///work/lib.rs", "rust", "fn main() {\n}\n")
	proxy.Open(doc)

	for i := 0; i < 2; i++ {
		_, err := proxy.DocumentSymbols(context.Background(), doc)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rust-analyzer not found")
	}
	assert.Equal(t, 1, starts)
}

func TestProxyClosedDocumentsReadFromDisk(t *testing.T) {
	native := ast.NewProvider(quietLogger())
	proxy := NewProxy(time.Minute, native, quietLogger())
	doc := sections.NewTextDocument("untitled:scratch", sections.PlainTextLanguage, "a\n  b\n")
	proxy.Open(doc)
	_, err := proxy.FoldingRanges(context.Background(), doc.URI())
	require.NoError(t, err)

	proxy.Close(doc.URI())
	_, err = proxy.FoldingRanges(context.Background(), doc.URI())
	assert.Error(t, err)
}

func TestLookupServer(t *testing.T) {
	spec, ok := LookupServer("gopls")
	require.True(t, ok)
	assert.Equal(t, []string{"serve"}, spec.Args)

	spec, ok = LookupServer("JavaScript")
	require.True(t, ok)
	assert.Equal(t, "typescript-language-server", spec.Name)

	_, ok = LookupServer("cobol")
	assert.False(t, ok)

	servers := KnownServers()
	for i := 1; i < len(servers); i++ {
		assert.Less(t, servers[i-1].Name, servers[i].Name)
	}
}

func TestRegisterServersSkipsIncompleteSpecs(t *testing.T) {
	proxy := NewProxy(time.Minute, nil, quietLogger())
	RegisterServers(proxy, []ServerSpec{
		{Name: "gopls", Command: "gopls", Languages: []string{"go"}},
		{Name: "broken", Languages: []string{"zig"}},
		{Name: "nolang", Command: "x"},
	}, t.TempDir(), quietLogger())
	assert.Equal(t, []string{"go"}, proxy.Languages())
}
