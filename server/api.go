package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"go.lsp.dev/protocol"

	"github.com/lexcodex/docsections/framework/sections"
	"github.com/lexcodex/docsections/persistence"
)

// Provider answers folding range and document symbol requests for
// documents opened on it, or for a given document directly.
// *tools.Proxy and *ast.Provider qualify.
type Provider interface {
	sections.FoldingRangeProvider
	sections.SymbolProvider
	DocumentFoldingRanges(ctx context.Context, doc sections.Document) (sections.FoldingRanges, error)
	Open(doc sections.Document)
	Close(uri protocol.DocumentURI)
}

// documentFolding answers folding requests for one request's document, so
// concurrent requests naming the same URI never see each other's text.
func documentFolding(provider Provider, doc sections.Document) sections.FoldingRangeFunc {
	return func(ctx context.Context, uri protocol.DocumentURI) (sections.FoldingRanges, error) {
		if uri != doc.URI() {
			return provider.FoldingRanges(ctx, uri)
		}
		return provider.DocumentFoldingRanges(ctx, doc)
	}
}

// APIServer exposes section extraction over HTTP.
type APIServer struct {
	Provider Provider
	// Store is optional; /api/index answers 404 without it.
	Store  persistence.SectionStore
	Logger *log.Logger
}

// SectionsRequest describes a document to split.
type SectionsRequest struct {
	URI        protocol.DocumentURI `json:"uri"`
	LanguageID string               `json:"languageId"`
	Text       string               `json:"text"`
	Mode       string               `json:"mode,omitempty"`
}

// SectionsResponse describes the sections of a document.
type SectionsResponse struct {
	URI      protocol.DocumentURI `json:"uri"`
	Sections []protocol.Range     `json:"sections"`
	Error    string               `json:"error,omitempty"`
}

// LargestRequest carries the values to scan.
type LargestRequest struct {
	Values []float64 `json:"values"`
}

// LargestResponse reports the scan result; Found is false for empty input.
type LargestResponse struct {
	Value float64 `json:"value"`
	Found bool    `json:"found"`
}

// Serve starts listening on the provided address.
func (s *APIServer) Serve(addr string) error {
	return s.ServeContext(context.Background(), addr)
}

// ServeContext allows the caller to control shutdown via context cancellation.
func (s *APIServer) ServeContext(ctx context.Context, addr string) error {
	server := s.newHTTPServer(addr)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	s.logger().Printf("[api] listening on %s", addr)
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *APIServer) newHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Handler routes the API endpoints.
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sections", s.handleSections)
	mux.HandleFunc("/api/largest", s.handleLargest)
	mux.HandleFunc("/api/index", s.handleIndex)
	return mux
}

func (s *APIServer) logger() *log.Logger {
	if s.Logger == nil {
		return log.Default()
	}
	return s.Logger
}

func (s *APIServer) handleSections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req SectionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.URI == "" {
		req.URI = protocol.DocumentURI(fmt.Sprintf("untitled:request-%d", time.Now().UnixNano()))
	}
	if req.LanguageID == "" {
		req.LanguageID = sections.PlainTextLanguage
	}
	opts := []sections.Option{sections.WithLogger(s.logger())}
	if req.Mode != "" {
		mode, err := sections.ParseMode(req.Mode)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		opts = append(opts, sections.WithMode(mode))
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
	defer cancel()
	doc := sections.NewTextDocument(req.URI, req.LanguageID, req.Text)
	ranges, err := sections.NewExtractor(documentFolding(s.Provider, doc), s.Provider, opts...).DocumentSections(ctx, doc)
	resp := SectionsResponse{URI: doc.URI(), Sections: ranges}
	if err != nil {
		s.logger().Printf("[api] sections uri=%s: %v", doc.URI(), err)
		resp.Error = err.Error()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(resp)
		return
	}
	writeJSON(w, resp)
}

func (s *APIServer) handleLargest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req LargestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	value, found := sections.LargestInteriorValue(req.Values)
	writeJSON(w, LargestResponse{Value: value, Found: found})
}

func (s *APIServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		http.NotFound(w, r)
		return
	}
	records, err := s.Store.List(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []persistence.SectionRecord{}
	}
	writeJSON(w, records)
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
