package sections

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.lsp.dev/protocol"
)

// Mode selects how wrappers are detected and how loosely nesting is judged.
type Mode int

const (
	// ModeSymbols confirms wrappers against the document outline.
	ModeSymbols Mode = iota
	// ModePlainText has no outline and falls back to text heuristics.
	ModePlainText
)

func (m Mode) String() string {
	switch m {
	case ModePlainText:
		return "plaintext"
	default:
		return "symbols"
	}
}

// ParseMode is the inverse of Mode.String.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "symbols":
		return ModeSymbols, nil
	case "plaintext":
		return ModePlainText, nil
	}
	return ModeSymbols, fmt.Errorf("unknown mode %q", s)
}

// ModeFor picks the mode from the document's declared language.
func ModeFor(doc Document) Mode {
	if doc.LanguageID() == PlainTextLanguage {
		return ModePlainText
	}
	return ModeSymbols
}

// wrapperStrategy decides which top-level folding ranges only wrap other
// sections, and whether a range belongs to an already kept one when nesting
// is flattened. absorb returns the kept range, possibly extended to cover
// next, and whether next was taken in.
type wrapperStrategy interface {
	wrappers(ctx context.Context, doc Document, candidates []protocol.FoldingRange) ([]bool, error)
	absorb(doc Document, kept, next protocol.FoldingRange) (protocol.FoldingRange, bool)
}

func newStrategy(mode Mode, symbols SymbolProvider) wrapperStrategy {
	if mode == ModePlainText {
		return plainTextStrategy{}
	}
	return &symbolStrategy{provider: symbols}
}

// symbolStrategy fetches the outline at most once per extraction.
type symbolStrategy struct {
	provider SymbolProvider
	fetched  bool
	byLine   map[uint32]protocol.DocumentSymbol
}

func (s *symbolStrategy) absorb(_ Document, kept, next protocol.FoldingRange) (protocol.FoldingRange, bool) {
	return kept, next.StartLine <= kept.EndLine
}

func (s *symbolStrategy) wrappers(ctx context.Context, doc Document, candidates []protocol.FoldingRange) ([]bool, error) {
	if err := s.load(ctx, doc); err != nil {
		return nil, err
	}
	result := make([]bool, len(candidates))
	for i, fr := range candidates {
		sym, ok := s.byLine[fr.StartLine]
		result[i] = ok && isContainerKind(sym.Kind) && len(sym.Children) > 0
	}
	return result, nil
}

func (s *symbolStrategy) load(ctx context.Context, doc Document) error {
	if s.fetched {
		return nil
	}
	s.fetched = true
	s.byLine = make(map[uint32]protocol.DocumentSymbol)
	if s.provider == nil {
		return nil
	}
	symbols, err := s.provider.DocumentSymbols(ctx, doc)
	if err != nil {
		return &CollaboratorError{Collaborator: CollaboratorSymbols, URI: doc.URI(), Err: err}
	}
	s.index(symbols)
	return nil
}

// index records symbols at every depth under the lines their declaration
// may start a folding range on. The first symbol seen for a line wins.
func (s *symbolStrategy) index(symbols []protocol.DocumentSymbol) {
	for _, sym := range symbols {
		for _, line := range []uint32{sym.Range.Start.Line, sym.SelectionRange.Start.Line} {
			if _, ok := s.byLine[line]; !ok {
				s.byLine[line] = sym
			}
		}
		s.index(sym.Children)
	}
}

func isContainerKind(kind protocol.SymbolKind) bool {
	switch kind {
	case protocol.SymbolKindFile,
		protocol.SymbolKindModule,
		protocol.SymbolKindNamespace,
		protocol.SymbolKindPackage,
		protocol.SymbolKindClass,
		protocol.SymbolKindInterface,
		protocol.SymbolKindStruct,
		protocol.SymbolKindObject:
		return true
	default:
		return false
	}
}

var wrapperLine = regexp.MustCompile(`^(?:(?:export|default|public|private|protected|internal|abstract|final|sealed|static|partial|data|pub(?:\([a-z]+\))?)\s+)*(?:class|interface|namespace|module|object|trait|impl|struct)\b`)

// plainTextStrategy treats a range as a wrapper when its first line declares
// a class-like construct or when it spans all non-blank lines of the document.
// Indentation-derived ranges stop before the closing line, so a range opening
// on that closing line ("} else {") extends the kept one.
type plainTextStrategy struct{}

func (plainTextStrategy) absorb(doc Document, kept, next protocol.FoldingRange) (protocol.FoldingRange, bool) {
	if next.StartLine <= kept.EndLine {
		return kept, true
	}
	if next.StartLine == kept.EndLine+1 && isClosingLine(doc.LineText(int(next.StartLine))) {
		kept.EndLine = max(kept.EndLine, next.EndLine)
		return kept, true
	}
	return kept, false
}

func isClosingLine(text string) bool {
	text = strings.TrimSpace(text)
	return strings.HasPrefix(text, "}") || strings.HasPrefix(text, ")") || strings.HasPrefix(text, "]") || text == "end" || strings.HasPrefix(text, "end ")
}

func (plainTextStrategy) wrappers(_ context.Context, doc Document, candidates []protocol.FoldingRange) ([]bool, error) {
	result := make([]bool, len(candidates))
	for i, fr := range candidates {
		head := strings.TrimSpace(doc.LineText(int(fr.StartLine)))
		result[i] = wrapperLine.MatchString(head) || spansDocument(doc, fr)
	}
	return result, nil
}

func spansDocument(doc Document, fr protocol.FoldingRange) bool {
	for line := 0; line < int(fr.StartLine); line++ {
		if strings.TrimSpace(doc.LineText(line)) != "" {
			return false
		}
	}
	for line := int(fr.EndLine) + 2; line < doc.LineCount(); line++ {
		if strings.TrimSpace(doc.LineText(line)) != "" {
			return false
		}
	}
	return true
}
