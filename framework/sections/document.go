package sections

import (
	"strings"

	"go.lsp.dev/protocol"
)

// PlainTextLanguage is the language id of documents without symbol support.
const PlainTextLanguage = "plaintext"

// Document is the read-only view of an open text buffer the extractor needs.
type Document interface {
	URI() protocol.DocumentURI
	LanguageID() string
	LineCount() int
	// LineText returns the text of a zero-based line without its line
	// terminator, or "" when the line is out of range.
	LineText(line int) string
}

// TextDocument is an in-memory Document.
type TextDocument struct {
	uri        protocol.DocumentURI
	languageID string
	lines      []string
}

// NewTextDocument splits text into lines the way editors do: a trailing
// newline yields a final empty line.
func NewTextDocument(uri protocol.DocumentURI, languageID, text string) *TextDocument {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return &TextDocument{uri: uri, languageID: languageID, lines: lines}
}

func (d *TextDocument) URI() protocol.DocumentURI { return d.uri }
func (d *TextDocument) LanguageID() string        { return d.languageID }
func (d *TextDocument) LineCount() int            { return len(d.lines) }

func (d *TextDocument) LineText(line int) string {
	if line < 0 || line >= len(d.lines) {
		return ""
	}
	return d.lines[line]
}

// Text rebuilds the document contents with "\n" terminators.
func (d *TextDocument) Text() string {
	return strings.Join(d.lines, "\n")
}
