package ast

import "strings"

// IndentParser derives folding ranges from indentation alone. It is used for
// plain text and for any language without a dedicated parser; it reports no
// symbols.
type IndentParser struct {
	TabSize int
}

// NewIndentParser returns a parser that counts a tab as four columns.
func NewIndentParser() *IndentParser {
	return &IndentParser{TabSize: 4}
}

func (ip *IndentParser) Language() string { return "indentation" }

// Parse folds every non-blank line over the following lines that are indented
// deeper, skipping blank lines in between. The range stops at the last deeper
// line, so a closing brace at the opening indentation stays outside.
func (ip *IndentParser) Parse(content string) (*Outline, error) {
	lines := strings.Split(content, "\n")
	indents := make([]int, len(lines))
	for i, line := range lines {
		indents[i] = ip.indentOf(line)
	}
	outline := &Outline{}
	for i := range lines {
		if indents[i] < 0 {
			continue
		}
		last := i
		for j := i + 1; j < len(lines); j++ {
			if indents[j] < 0 {
				continue
			}
			if indents[j] <= indents[i] {
				break
			}
			last = j
		}
		if fr, ok := lineRange(i, last, ""); ok {
			outline.FoldingRanges = append(outline.FoldingRanges, fr)
		}
	}
	return outline, nil
}

// indentOf returns the visual indentation of line, or -1 for blank lines.
func (ip *IndentParser) indentOf(line string) int {
	tab := ip.TabSize
	if tab <= 0 {
		tab = 4
	}
	width := 0
	for _, r := range line {
		switch r {
		case ' ':
			width++
		case '\t':
			width += tab - width%tab
		case '\r':
		default:
			return width
		}
	}
	return -1
}
