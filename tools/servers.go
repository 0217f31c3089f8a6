package tools

import (
	"log"
	"sort"
	"strings"
	"sync"
)

// ServerSpec describes how to launch a language server and which
// languages it answers for.
type ServerSpec struct {
	Name      string   `yaml:"name" json:"name"`
	Command   string   `yaml:"command" json:"command"`
	Args      []string `yaml:"args,omitempty" json:"args,omitempty"`
	Languages []string `yaml:"languages" json:"languages"`
}

var knownServers = []ServerSpec{
	{Name: "gopls", Command: "gopls", Args: []string{"serve"}, Languages: []string{"go"}},
	{Name: "rust-analyzer", Command: "rust-analyzer", Languages: []string{"rust"}},
	{Name: "clangd", Command: "clangd", Languages: []string{"c", "cpp"}},
	{Name: "hls", Command: "haskell-language-server-wrapper", Args: []string{"--lsp"}, Languages: []string{"haskell"}},
	{Name: "typescript-language-server", Command: "typescript-language-server", Args: []string{"--stdio"}, Languages: []string{"typescript", "typescriptreact", "javascript", "javascriptreact"}},
	{Name: "lua-language-server", Command: "lua-language-server", Languages: []string{"lua"}},
	{Name: "pylsp", Command: "pylsp", Languages: []string{"python"}},
}

// KnownServers returns the built-in server table sorted by name.
func KnownServers() []ServerSpec {
	out := make([]ServerSpec, len(knownServers))
	copy(out, knownServers)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LookupServer finds a built-in server by name or by one of its languages.
func LookupServer(key string) (ServerSpec, bool) {
	key = strings.ToLower(key)
	for _, spec := range knownServers {
		if spec.Name == key {
			return spec, true
		}
	}
	for _, spec := range knownServers {
		for _, lang := range spec.Languages {
			if lang == key {
				return spec, true
			}
		}
	}
	return ServerSpec{}, false
}

// Factory returns a ClientFactory that launches the server rooted at root
// for languageID.
func (s ServerSpec) Factory(root, languageID string, logger *log.Logger) ClientFactory {
	return func() (LSPClient, error) {
		return NewProcessLSPClient(ProcessLSPConfig{
			Command:    s.Command,
			Args:       s.Args,
			RootDir:    root,
			LanguageID: languageID,
		}, logger)
	}
}

// RegisterServers registers a lazily started client for every language of
// every spec. One process is shared by all languages of a spec.
func RegisterServers(proxy *Proxy, specs []ServerSpec, root string, logger *log.Logger) {
	for _, spec := range specs {
		if spec.Command == "" || len(spec.Languages) == 0 {
			continue
		}
		factory := shared(spec.Factory(root, spec.Languages[0], logger))
		for _, lang := range spec.Languages {
			proxy.RegisterFactory(lang, factory)
		}
	}
}

// shared starts the underlying client at most once.
func shared(factory ClientFactory) ClientFactory {
	var (
		once   sync.Once
		client LSPClient
		err    error
	)
	return func() (LSPClient, error) {
		once.Do(func() { client, err = factory() })
		return client, err
	}
}
