package ast

import (
	"unicode/utf16"

	"go.lsp.dev/protocol"
)

// Outline is the structure a parser derives from a document: the folding
// ranges an editor would offer and the document symbols of its outline.
type Outline struct {
	FoldingRanges []protocol.FoldingRange
	Symbols       []protocol.DocumentSymbol
}

// Parser converts file contents into an Outline.
type Parser interface {
	Parse(content string) (*Outline, error)
	Language() string
}

// ParserRegistry keeps parser implementations keyed by language.
type ParserRegistry struct {
	parsers map[string]Parser
}

// NewParserRegistry constructs a registry.
func NewParserRegistry() *ParserRegistry {
	return &ParserRegistry{parsers: make(map[string]Parser)}
}

// Register adds a parser keyed by its Language.
func (pr *ParserRegistry) Register(parser Parser) {
	if parser == nil {
		return
	}
	pr.parsers[parser.Language()] = parser
}

// GetParser retrieves a parser by language identifier.
func (pr *ParserRegistry) GetParser(language string) (Parser, bool) {
	parser, ok := pr.parsers[language]
	return parser, ok
}

// SupportedLanguages returns all registered languages.
func (pr *ParserRegistry) SupportedLanguages() []string {
	langs := make([]string, 0, len(pr.parsers))
	for lang := range pr.parsers {
		langs = append(langs, lang)
	}
	return langs
}

// lineRange builds a line-only folding range, or false when the block does
// not span more than one line. startLine and endLine are zero-based.
func lineRange(startLine, endLine int, kind protocol.FoldingRangeKind) (protocol.FoldingRange, bool) {
	if startLine < 0 || endLine <= startLine {
		return protocol.FoldingRange{}, false
	}
	return protocol.FoldingRange{StartLine: uint32(startLine), EndLine: uint32(endLine), Kind: kind}, true
}

// utf16Column converts a zero-based byte offset within line to UTF-16 units.
func utf16Column(line string, byteOffset int) uint32 {
	if byteOffset > len(line) {
		byteOffset = len(line)
	}
	if byteOffset < 0 {
		byteOffset = 0
	}
	return uint32(len(utf16.Encode([]rune(line[:byteOffset]))))
}
