package ast

import (
	"path/filepath"
	"strings"

	"github.com/lexcodex/docsections/framework/sections"
)

// LanguageDetector maps filenames/extensions to LSP language identifiers.
type LanguageDetector struct {
	extensionMap map[string]string
	filenameMap  map[string]string
}

// NewLanguageDetector seeds defaults for popular formats.
func NewLanguageDetector() *LanguageDetector {
	ld := &LanguageDetector{
		extensionMap: make(map[string]string),
		filenameMap:  make(map[string]string),
	}
	ld.extensionMap[".go"] = "go"
	ld.extensionMap[".py"] = "python"
	ld.extensionMap[".js"] = "javascript"
	ld.extensionMap[".jsx"] = "javascriptreact"
	ld.extensionMap[".ts"] = "typescript"
	ld.extensionMap[".tsx"] = "typescriptreact"
	ld.extensionMap[".java"] = "java"
	ld.extensionMap[".kt"] = "kotlin"
	ld.extensionMap[".cs"] = "csharp"
	ld.extensionMap[".c"] = "c"
	ld.extensionMap[".h"] = "c"
	ld.extensionMap[".cpp"] = "cpp"
	ld.extensionMap[".rs"] = "rust"
	ld.extensionMap[".rb"] = "ruby"
	ld.extensionMap[".php"] = "php"
	ld.extensionMap[".lua"] = "lua"
	ld.extensionMap[".hs"] = "haskell"
	ld.extensionMap[".md"] = "markdown"
	ld.extensionMap[".txt"] = sections.PlainTextLanguage
	ld.extensionMap[".yaml"] = "yaml"
	ld.extensionMap[".yml"] = "yaml"
	ld.extensionMap[".json"] = "json"
	ld.extensionMap[".toml"] = "toml"
	ld.extensionMap[".sql"] = "sql"
	ld.extensionMap[".proto"] = "proto"
	ld.filenameMap["Dockerfile"] = "dockerfile"
	ld.filenameMap["Makefile"] = "makefile"
	return ld
}

// Register maps an extension (".ext") or exact filename to a language.
func (ld *LanguageDetector) Register(pattern, language string) {
	if strings.HasPrefix(pattern, ".") {
		ld.extensionMap[pattern] = language
		return
	}
	ld.filenameMap[pattern] = language
}

// Detect returns the best-effort language identifier. Unknown files are
// treated as plain text.
func (ld *LanguageDetector) Detect(path string) string {
	if path == "" {
		return sections.PlainTextLanguage
	}
	base := filepath.Base(path)
	if lang, ok := ld.filenameMap[base]; ok {
		return lang
	}
	if lang, ok := ld.extensionMap[strings.ToLower(filepath.Ext(base))]; ok {
		return lang
	}
	return sections.PlainTextLanguage
}
