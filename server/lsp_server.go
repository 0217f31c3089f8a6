package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/sourcegraph/jsonrpc2"
	"go.lsp.dev/protocol"

	"github.com/lexcodex/docsections/framework/sections"
)

// MethodDocumentSections is the request an editor sends to get the sections
// of an open document.
const MethodDocumentSections = "sections/documentSections"

// LSPServer speaks a minimal LSP dialect: it tracks open documents through
// the text synchronisation notifications and answers
// sections/documentSections requests.
type LSPServer struct {
	Provider Provider
	mu       sync.RWMutex
	open     map[protocol.DocumentURI]*Document
	logger   *log.Logger
	shutdown bool
}

// Document tracks open files from the editor.
type Document struct {
	URI        protocol.DocumentURI
	LanguageID string
	Version    int32
	Text       string
}

// DocumentSectionsParams names the document to split.
type DocumentSectionsParams struct {
	TextDocument protocol.TextDocumentIdentifier `json:"textDocument"`
}

// NewLSPServer builds a server instance.
func NewLSPServer(provider Provider, logger *log.Logger) *LSPServer {
	if logger == nil {
		logger = log.Default()
	}
	return &LSPServer{
		Provider: provider,
		open:     make(map[protocol.DocumentURI]*Document),
		logger:   logger,
	}
}

// ServeStream answers requests on rwc until the peer disconnects or ctx ends.
func (s *LSPServer) ServeStream(ctx context.Context, rwc io.ReadWriteCloser) error {
	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})
	conn := jsonrpc2.NewConn(ctx, stream, jsonrpc2.HandlerWithError(s.handle))
	select {
	case <-ctx.Done():
		_ = conn.Close()
		return ctx.Err()
	case <-conn.DisconnectNotify():
		return nil
	}
}

func (s *LSPServer) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (interface{}, error) {
	switch req.Method {
	case "initialize":
		return s.Initialize(), nil
	case "initialized":
		return nil, nil
	case "shutdown":
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		return nil, nil
	case "exit":
		return nil, conn.Close()
	case "textDocument/didOpen":
		var params protocol.DidOpenTextDocumentParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		s.TextDocumentDidOpen(params.TextDocument.URI, string(params.TextDocument.LanguageID), params.TextDocument.Version, params.TextDocument.Text)
		return nil, nil
	case "textDocument/didChange":
		var params protocol.DidChangeTextDocumentParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		if len(params.ContentChanges) == 0 {
			return nil, nil
		}
		// Full synchronisation: the last change carries the whole text.
		text := params.ContentChanges[len(params.ContentChanges)-1].Text
		return nil, s.TextDocumentDidChange(params.TextDocument.URI, params.TextDocument.Version, text)
	case "textDocument/didClose":
		var params protocol.DidCloseTextDocumentParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		s.TextDocumentDidClose(params.TextDocument.URI)
		return nil, nil
	case MethodDocumentSections:
		var params DocumentSectionsParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		return s.DocumentSections(ctx, params.TextDocument.URI)
	}
	if req.Notif {
		return nil, nil
	}
	return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: fmt.Sprintf("method not supported: %s", req.Method)}
}

func unmarshalParams(req *jsonrpc2.Request, v interface{}) error {
	if req.Params == nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "params required"}
	}
	if err := json.Unmarshal(*req.Params, v); err != nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
	}
	return nil
}

// Initialize reports full text synchronisation.
func (s *LSPServer) Initialize() *protocol.InitializeResult {
	s.logger.Printf("[lsp-server] initialize")
	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: protocol.TextDocumentSyncKindFull,
			Experimental: map[string]interface{}{
				"documentSectionsProvider": true,
			},
		},
		ServerInfo: &protocol.ServerInfo{Name: "sections"},
	}
}

// TextDocumentDidOpen stores document state.
func (s *LSPServer) TextDocumentDidOpen(uri protocol.DocumentURI, languageID string, version int32, text string) {
	s.mu.Lock()
	doc := &Document{URI: uri, LanguageID: languageID, Version: version, Text: text}
	s.open[uri] = doc
	s.mu.Unlock()
	s.Provider.Open(sections.NewTextDocument(uri, languageID, text))
}

// TextDocumentDidChange updates document text.
func (s *LSPServer) TextDocumentDidChange(uri protocol.DocumentURI, version int32, text string) error {
	s.mu.Lock()
	doc, ok := s.open[uri]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("document %s not tracked", uri)
	}
	doc.Text = text
	doc.Version = version
	languageID := doc.LanguageID
	s.mu.Unlock()
	s.Provider.Open(sections.NewTextDocument(uri, languageID, text))
	return nil
}

// TextDocumentDidClose forgets a document.
func (s *LSPServer) TextDocumentDidClose(uri protocol.DocumentURI) {
	s.mu.Lock()
	delete(s.open, uri)
	s.mu.Unlock()
	s.Provider.Close(uri)
}

// DocumentSections splits an open document.
func (s *LSPServer) DocumentSections(ctx context.Context, uri protocol.DocumentURI) ([]protocol.Range, error) {
	s.mu.RLock()
	doc, ok := s.open[uri]
	var text, languageID string
	if ok {
		text, languageID = doc.Text, doc.LanguageID
	}
	shutdown := s.shutdown
	s.mu.RUnlock()
	if shutdown {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidRequest, Message: "server is shutting down"}
	}
	if !ok {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: fmt.Sprintf("document %s is not open", uri)}
	}
	ranges, err := sections.NewExtractor(s.Provider, s.Provider, sections.WithLogger(s.logger)).
		DocumentSections(ctx, sections.NewTextDocument(uri, languageID, text))
	if err != nil {
		s.logger.Printf("[lsp-server] sections uri=%s: %v", uri, err)
		return nil, err
	}
	return ranges, nil
}
