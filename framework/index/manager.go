// Package index walks a workspace, extracts the sections of every text file
// and keeps the results in a persistence.SectionStore. Files whose content
// hash is already stored are skipped.
package index

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/lexcodex/docsections/framework/ast"
	"github.com/lexcodex/docsections/framework/sections"
	"github.com/lexcodex/docsections/persistence"
)

// Source supplies folding ranges and symbols for documents it has been
// told about. *tools.Proxy and *ast.Provider both qualify.
type Source interface {
	sections.FoldingRangeProvider
	sections.SymbolProvider
	Open(doc sections.Document)
	Close(uri protocol.DocumentURI)
}

// Config configures the Manager.
type Config struct {
	WorkspacePath   string
	ParallelWorkers int
	IgnorePatterns  []string
	// Force re-extracts files whose hash is already stored.
	Force bool
}

// Result describes one indexed file.
type Result struct {
	Path     string
	URI      protocol.DocumentURI
	Language string
	Sections []protocol.Range
	Skipped  bool
}

// Summary totals a workspace run.
type Summary struct {
	Indexed int
	Skipped int
	Failed  int
}

// ErrBinaryFile marks files that are not text.
var ErrBinaryFile = errors.New("binary file")

// Manager orchestrates extraction and persistence.
type Manager struct {
	store     persistence.SectionStore
	source    Source
	extractor *sections.Extractor
	detector  *ast.LanguageDetector
	config    Config
	logger    *log.Logger

	mu       sync.Mutex
	indexing map[string]bool
}

// NewManager builds a manager. A nil logger logs to log.Default.
func NewManager(store persistence.SectionStore, source Source, detector *ast.LanguageDetector, config Config, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	if detector == nil {
		detector = ast.NewLanguageDetector()
	}
	return &Manager{
		store:     store,
		source:    source,
		extractor: sections.NewExtractor(source, source, sections.WithLogger(logger)),
		detector:  detector,
		config:    config,
		logger:    logger,
		indexing:  make(map[string]bool),
	}
}

// IndexFile extracts and stores the sections of path.
func (m *Manager) IndexFile(ctx context.Context, path string) (*Result, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	if m.indexing[abs] {
		m.mu.Unlock()
		return nil, fmt.Errorf("index already running for %s", abs)
	}
	m.indexing[abs] = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		delete(m.indexing, abs)
		m.mu.Unlock()
	}()

	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, err
	}
	if isBinary(content) {
		return nil, fmt.Errorf("%s: %w", abs, ErrBinaryFile)
	}
	text := string(content)
	contentHash := ast.HashContent(text)
	result := &Result{
		Path:     abs,
		URI:      protocol.DocumentURI(uri.File(abs)),
		Language: m.detector.Detect(abs),
	}

	if !m.config.Force {
		existing, ok, err := m.store.Lookup(ctx, result.URI, contentHash)
		if err != nil {
			return nil, fmt.Errorf("lookup %s: %w", abs, err)
		}
		if ok {
			result.Sections = existing.Sections
			result.Skipped = true
			return result, nil
		}
	}

	doc := sections.NewTextDocument(result.URI, result.Language, text)
	m.source.Open(doc)
	defer m.source.Close(doc.URI())
	ranges, err := m.extractor.DocumentSections(ctx, doc)
	if err != nil {
		return nil, err
	}
	result.Sections = ranges
	if err := m.store.Save(ctx, &persistence.SectionRecord{
		URI:         result.URI,
		Language:    result.Language,
		ContentHash: contentHash,
		Sections:    ranges,
		IndexedAt:   time.Now().UTC(),
	}); err != nil {
		return nil, err
	}
	return result, nil
}

// IndexWorkspace walks the workspace and indexes files. Per-file failures
// are logged and counted; only walk errors abort the run.
func (m *Manager) IndexWorkspace(ctx context.Context) (Summary, error) {
	root := m.config.WorkspacePath
	if root == "" {
		root = "."
	}
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && m.shouldIgnore(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || m.shouldIgnore(path) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return Summary{}, err
	}

	workers := m.config.ParallelWorkers
	if workers <= 0 {
		workers = 1
	}
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		summary Summary
	)
	fileCh := make(chan string)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range fileCh {
				result, err := m.IndexFile(ctx, file)
				mu.Lock()
				switch {
				case errors.Is(err, ErrBinaryFile):
				case err != nil:
					summary.Failed++
					m.logger.Printf("[index] warning path=%s: %v", file, err)
				case result.Skipped:
					summary.Skipped++
				default:
					summary.Indexed++
				}
				mu.Unlock()
			}
		}()
	}
feed:
	for _, file := range files {
		select {
		case fileCh <- file:
		case <-ctx.Done():
			break feed
		}
	}
	close(fileCh)
	wg.Wait()
	return summary, ctx.Err()
}

func (m *Manager) shouldIgnore(path string) bool {
	for _, pattern := range m.config.IgnorePatterns {
		match, err := filepath.Match(pattern, filepath.Base(path))
		if err == nil && match {
			return true
		}
		if strings.Contains(filepath.ToSlash(path), "/"+strings.Trim(pattern, "/")+"/") {
			return true
		}
	}
	return false
}

// isBinary reports a NUL byte in the first 8000 bytes.
func isBinary(content []byte) bool {
	if len(content) > 8000 {
		content = content[:8000]
	}
	return bytes.IndexByte(content, 0) >= 0
}
