package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/sourcegraph/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/lexcodex/docsections/framework/sections"
)

// ProcessLSPConfig defines the configuration for spinning up a language server process.
type ProcessLSPConfig struct {
	Command    string
	Args       []string
	RootDir    string
	LanguageID string
	// Stderr receives the server's stderr; os.Stderr when nil.
	Stderr io.Writer
}

type processLSPClient struct {
	cfg       ProcessLSPConfig
	cmd       *exec.Cmd
	conn      *jsonrpc2.Conn
	cancel    context.CancelFunc
	logger    *log.Logger
	mu        sync.Mutex
	documents map[protocol.DocumentURI]*openedDocument
}

type openedDocument struct {
	version int32
	text    string
}

// NewProcessLSPClient launches the configured language server and performs the LSP handshake.
func NewProcessLSPClient(cfg ProcessLSPConfig, logger *log.Logger) (LSPClient, error) {
	if cfg.Command == "" {
		return nil, errors.New("command is required for LSP client")
	}
	if cfg.LanguageID == "" {
		return nil, errors.New("language id is required for LSP client")
	}
	root := cfg.RootDir
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	cmd.Dir = absRoot
	if cfg.Stderr != nil {
		cmd.Stderr = cfg.Stderr
	} else {
		cmd.Stderr = os.Stderr
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start %s: %w", cfg.Command, err)
	}

	client := newConnClient(ctx, &stdioReadWriteCloser{reader: stdout, writer: stdin}, cfg, logger)
	client.cmd = cmd
	client.cancel = cancel

	if err := client.initialize(ctx, absRoot); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("initialize %s: %w", cfg.Command, err)
	}
	return client, nil
}

// newConnClient speaks LSP over rwc without owning a process.
func newConnClient(ctx context.Context, rwc io.ReadWriteCloser, cfg ProcessLSPConfig, logger *log.Logger) *processLSPClient {
	if logger == nil {
		logger = log.Default()
	}
	client := &processLSPClient{
		cfg:       cfg,
		logger:    logger,
		documents: make(map[protocol.DocumentURI]*openedDocument),
	}
	handler := jsonrpc2.HandlerWithError(func(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (interface{}, error) {
		if !req.Notif {
			return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "method not handled"}
		}
		if req.Method == "window/logMessage" && req.Params != nil {
			var params protocol.LogMessageParams
			if err := json.Unmarshal(*req.Params, &params); err == nil {
				client.logger.Printf("[lsp %s] %s", cfg.LanguageID, params.Message)
			}
		}
		return nil, nil
	})
	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})
	client.conn = jsonrpc2.NewConn(ctx, stream, handler)
	return client
}

func (c *processLSPClient) initialize(ctx context.Context, root string) error {
	params := &protocol.InitializeParams{
		ProcessID: int32(os.Getpid()),
		RootURI:   protocol.DocumentURI(uri.File(root)),
		ClientInfo: &protocol.ClientInfo{
			Name:    "docsections",
			Version: "0.1",
		},
		Capabilities: protocol.ClientCapabilities{
			TextDocument: &protocol.TextDocumentClientCapabilities{
				DocumentSymbol: &protocol.DocumentSymbolClientCapabilities{
					HierarchicalDocumentSymbolSupport: true,
				},
				FoldingRange: &protocol.FoldingRangeClientCapabilities{
					LineFoldingOnly: true,
				},
			},
		},
	}
	var result protocol.InitializeResult
	if err := c.conn.Call(ctx, "initialize", params, &result); err != nil {
		return err
	}
	return c.conn.Notify(ctx, "initialized", &protocol.InitializedParams{})
}

// Close asks the server to shut down and terminates the process.
func (c *processLSPClient) Close() error {
	if c == nil {
		return nil
	}
	if c.conn != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := c.conn.Call(ctx, "shutdown", nil, nil); err == nil {
			_ = c.conn.Notify(ctx, "exit", nil)
		}
		cancel()
		_ = c.conn.Close()
	}
	if c.cancel != nil {
		c.cancel()
	}
	if c.cmd != nil && c.cmd.Process != nil {
		_ = c.cmd.Process.Kill()
		_, _ = c.cmd.Process.Wait()
	}
	return nil
}

// OpenDocument sends didOpen the first time and a full-text didChange when
// the text differs from what the server last saw.
func (c *processLSPClient) OpenDocument(ctx context.Context, docURI protocol.DocumentURI, languageID, text string) error {
	c.mu.Lock()
	doc, ok := c.documents[docURI]
	if ok && doc.text == text {
		c.mu.Unlock()
		return nil
	}
	if !ok {
		c.documents[docURI] = &openedDocument{version: 1, text: text}
		c.mu.Unlock()
		if languageID == "" {
			languageID = c.cfg.LanguageID
		}
		return c.conn.Notify(ctx, "textDocument/didOpen", protocol.DidOpenTextDocumentParams{
			TextDocument: protocol.TextDocumentItem{
				URI:        docURI,
				LanguageID: protocol.LanguageIdentifier(languageID),
				Version:    1,
				Text:       text,
			},
		})
	}
	doc.version++
	doc.text = text
	version := doc.version
	c.mu.Unlock()
	return c.conn.Notify(ctx, "textDocument/didChange", fullTextChangeParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: docURI},
			Version:                version,
		},
		ContentChanges: []fullTextChange{{Text: text}},
	})
}

// fullTextChangeParams is didChange without a range, which replaces the
// whole document. protocol.TextDocumentContentChangeEvent always encodes one.
type fullTextChangeParams struct {
	TextDocument   protocol.VersionedTextDocumentIdentifier `json:"textDocument"`
	ContentChanges []fullTextChange                         `json:"contentChanges"`
}

type fullTextChange struct {
	Text string `json:"text"`
}

// FoldingRanges requests textDocument/foldingRange. A null answer is Absent.
func (c *processLSPClient) FoldingRanges(ctx context.Context, docURI protocol.DocumentURI) (sections.FoldingRanges, error) {
	params := protocol.FoldingRangeParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: docURI},
		},
	}
	var raw json.RawMessage
	if err := c.conn.Call(ctx, "textDocument/foldingRange", params, &raw); err != nil {
		return sections.Absent(), err
	}
	if isNull(raw) {
		return sections.Absent(), nil
	}
	var ranges []protocol.FoldingRange
	if err := json.Unmarshal(raw, &ranges); err != nil {
		return sections.Absent(), fmt.Errorf("folding range response not understood: %w", err)
	}
	return sections.Present(ranges), nil
}

// DocumentSymbols requests textDocument/documentSymbol. Servers answering
// with flat SymbolInformation get childless symbols.
func (c *processLSPClient) DocumentSymbols(ctx context.Context, docURI protocol.DocumentURI) ([]protocol.DocumentSymbol, error) {
	params := protocol.DocumentSymbolParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: docURI},
	}
	var raw json.RawMessage
	if err := c.conn.Call(ctx, "textDocument/documentSymbol", params, &raw); err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, nil
	}
	var probe []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("document symbol response not understood: %w", err)
	}
	if len(probe) == 0 {
		return nil, nil
	}
	if _, flat := probe[0]["location"]; !flat {
		var symbols []protocol.DocumentSymbol
		if err := json.Unmarshal(raw, &symbols); err != nil {
			return nil, fmt.Errorf("document symbol response not understood: %w", err)
		}
		return symbols, nil
	}
	var infos []protocol.SymbolInformation
	if err := json.Unmarshal(raw, &infos); err != nil {
		return nil, fmt.Errorf("document symbol response not understood: %w", err)
	}
	symbols := make([]protocol.DocumentSymbol, 0, len(infos))
	for _, info := range infos {
		symbols = append(symbols, protocol.DocumentSymbol{
			Name:           info.Name,
			Kind:           info.Kind,
			Range:          info.Location.Range,
			SelectionRange: info.Location.Range,
		})
	}
	return symbols, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

type stdioReadWriteCloser struct {
	reader io.ReadCloser
	writer io.WriteCloser
}

func (s *stdioReadWriteCloser) Read(p []byte) (int, error)  { return s.reader.Read(p) }
func (s *stdioReadWriteCloser) Write(p []byte) (int, error) { return s.writer.Write(p) }
func (s *stdioReadWriteCloser) Close() error {
	_ = s.reader.Close()
	return s.writer.Close()
}
