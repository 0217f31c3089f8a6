package ast

import (
	goast "go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"strings"

	"go.lsp.dev/protocol"
)

// GoParser builds folding ranges and symbols using go/parser.
type GoParser struct {
	fset *token.FileSet
}

// NewGoParser returns a ready-to-use Go parser.
func NewGoParser() *GoParser {
	return &GoParser{fset: token.NewFileSet()}
}

func (gp *GoParser) Language() string { return "go" }

// Parse folds every multi-line brace or paren pair the way gopls does with
// line folding only: from the opening line to the line before the closing
// token. Import blocks and comment groups carry their folding kind.
func (gp *GoParser) Parse(content string) (*Outline, error) {
	file, err := parser.ParseFile(gp.fset, "", content, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		return nil, err
	}
	o := &goOutline{fset: gp.fset, lines: strings.Split(content, "\n")}
	o.collectFolding(file)
	for _, decl := range file.Decls {
		o.collectSymbols(decl)
	}
	return &Outline{FoldingRanges: o.folding, Symbols: o.symbols}, nil
}

type goOutline struct {
	fset    *token.FileSet
	lines   []string
	folding []protocol.FoldingRange
	symbols []protocol.DocumentSymbol
}

func (o *goOutline) line(pos token.Pos) int {
	return o.fset.Position(pos).Line - 1
}

func (o *goOutline) position(pos token.Pos) protocol.Position {
	p := o.fset.Position(pos)
	line := max(p.Line-1, 0)
	text := ""
	if line < len(o.lines) {
		text = o.lines[line]
	}
	return protocol.Position{Line: uint32(line), Character: utf16Column(text, p.Column-1)}
}

func (o *goOutline) rangeOf(from, to token.Pos) protocol.Range {
	return protocol.Range{Start: o.position(from), End: o.position(to)}
}

func (o *goOutline) addPair(open, close token.Pos, kind protocol.FoldingRangeKind) {
	if !open.IsValid() || !close.IsValid() {
		return
	}
	if fr, ok := lineRange(o.line(open), o.line(close)-1, kind); ok {
		o.folding = append(o.folding, fr)
	}
}

func (o *goOutline) collectFolding(file *goast.File) {
	for _, group := range file.Comments {
		if fr, ok := lineRange(o.line(group.Pos()), o.line(group.End()), protocol.CommentFoldingRange); ok {
			o.folding = append(o.folding, fr)
		}
	}
	goast.Inspect(file, func(n goast.Node) bool {
		switch node := n.(type) {
		case *goast.GenDecl:
			var kind protocol.FoldingRangeKind
			if node.Tok == token.IMPORT {
				kind = protocol.ImportsFoldingRange
			}
			o.addPair(node.Lparen, node.Rparen, kind)
		case *goast.BlockStmt:
			o.addPair(node.Lbrace, node.Rbrace, "")
		case *goast.CompositeLit:
			o.addPair(node.Lbrace, node.Rbrace, "")
		case *goast.FieldList:
			o.addPair(node.Opening, node.Closing, "")
		case *goast.CallExpr:
			o.addPair(node.Lparen, node.Rparen, "")
		case *goast.CaseClause:
			if fr, ok := lineRange(o.line(node.Colon), o.line(node.End()), ""); ok {
				o.folding = append(o.folding, fr)
			}
		case *goast.CommClause:
			if fr, ok := lineRange(o.line(node.Colon), o.line(node.End()), ""); ok {
				o.folding = append(o.folding, fr)
			}
		}
		return true
	})
}

func (o *goOutline) collectSymbols(decl goast.Decl) {
	switch d := decl.(type) {
	case *goast.FuncDecl:
		sym := protocol.DocumentSymbol{
			Name:           d.Name.Name,
			Kind:           protocol.SymbolKindFunction,
			Range:          o.rangeOf(d.Pos(), d.End()),
			SelectionRange: o.rangeOf(d.Name.Pos(), d.Name.End()),
		}
		if d.Recv != nil && len(d.Recv.List) > 0 {
			sym.Kind = protocol.SymbolKindMethod
			sym.Detail = types.ExprString(d.Recv.List[0].Type)
		}
		o.symbols = append(o.symbols, sym)
	case *goast.GenDecl:
		for _, spec := range d.Specs {
			from := spec.Pos()
			if !d.Lparen.IsValid() {
				from = d.Pos()
			}
			switch s := spec.(type) {
			case *goast.TypeSpec:
				o.symbols = append(o.symbols, o.typeSymbol(s, from))
			case *goast.ValueSpec:
				kind := protocol.SymbolKindVariable
				if d.Tok == token.CONST {
					kind = protocol.SymbolKindConstant
				}
				for _, name := range s.Names {
					o.symbols = append(o.symbols, protocol.DocumentSymbol{
						Name:           name.Name,
						Kind:           kind,
						Range:          o.rangeOf(from, s.End()),
						SelectionRange: o.rangeOf(name.Pos(), name.End()),
					})
				}
			}
		}
	}
}

func (o *goOutline) typeSymbol(s *goast.TypeSpec, from token.Pos) protocol.DocumentSymbol {
	sym := protocol.DocumentSymbol{
		Name:           s.Name.Name,
		Kind:           protocol.SymbolKindClass,
		Range:          o.rangeOf(from, s.End()),
		SelectionRange: o.rangeOf(s.Name.Pos(), s.Name.End()),
	}
	switch t := s.Type.(type) {
	case *goast.StructType:
		sym.Kind = protocol.SymbolKindStruct
		sym.Detail = "struct{...}"
		sym.Children = o.fieldSymbols(t.Fields, protocol.SymbolKindField)
	case *goast.InterfaceType:
		sym.Kind = protocol.SymbolKindInterface
		sym.Detail = "interface{...}"
		sym.Children = o.fieldSymbols(t.Methods, protocol.SymbolKindMethod)
	default:
		sym.Detail = types.ExprString(s.Type)
	}
	return sym
}

func (o *goOutline) fieldSymbols(list *goast.FieldList, kind protocol.SymbolKind) []protocol.DocumentSymbol {
	if list == nil {
		return nil
	}
	var children []protocol.DocumentSymbol
	for _, field := range list.List {
		detail := types.ExprString(field.Type)
		if len(field.Names) == 0 {
			// Embedded field or interface.
			children = append(children, protocol.DocumentSymbol{
				Name:           detail,
				Detail:         detail,
				Kind:           protocol.SymbolKindField,
				Range:          o.rangeOf(field.Pos(), field.End()),
				SelectionRange: o.rangeOf(field.Type.Pos(), field.Type.End()),
			})
			continue
		}
		for _, name := range field.Names {
			children = append(children, protocol.DocumentSymbol{
				Name:           name.Name,
				Detail:         detail,
				Kind:           kind,
				Range:          o.rangeOf(field.Pos(), field.End()),
				SelectionRange: o.rangeOf(name.Pos(), name.End()),
			})
		}
	}
	return children
}
