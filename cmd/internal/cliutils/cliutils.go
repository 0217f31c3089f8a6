package cliutils

import (
	"log"
	"os/exec"
	"path/filepath"

	"github.com/lexcodex/docsections/cmd/internal/workspacecfg"
	"github.com/lexcodex/docsections/framework/ast"
	"github.com/lexcodex/docsections/tools"
)

// lookPath is swapped in tests.
var lookPath = exec.LookPath

// ServerStatus pairs a configured server with the binary it resolves to.
type ServerStatus struct {
	Spec      tools.ServerSpec
	Path      string
	Available bool
}

// ServerStatuses resolves every active server of cfg on PATH.
func ServerStatuses(cfg *workspacecfg.WorkspaceConfig) []ServerStatus {
	specs := cfg.ActiveServers()
	statuses := make([]ServerStatus, 0, len(specs))
	for _, spec := range specs {
		path, err := lookPath(spec.Command)
		statuses = append(statuses, ServerStatus{Spec: spec, Path: path, Available: err == nil})
	}
	return statuses
}

// NewNativeProvider builds the parser-backed provider with the workspace's
// extension overrides.
func NewNativeProvider(cfg *workspacecfg.WorkspaceConfig, logger *log.Logger) *ast.Provider {
	native := ast.NewProvider(logger)
	for pattern, language := range cfg.Extensions {
		native.Detector().Register(pattern, language)
	}
	return native
}

// NewProxy builds the provider used by every command: native parsers, plus
// the workspace's language servers when withServers is set. Servers whose
// binary is not installed are left out so their languages fall back to the
// native parsers. Cleanup shuts down started servers.
func NewProxy(cfg *workspacecfg.WorkspaceConfig, withServers bool, logger *log.Logger) (*tools.Proxy, func()) {
	native := NewNativeProvider(cfg, logger)
	proxy := tools.NewProxy(cfg.CacheTTL, native, logger)
	if withServers {
		var available []tools.ServerSpec
		for _, status := range ServerStatuses(cfg) {
			if status.Available {
				available = append(available, status.Spec)
			} else {
				logger.Printf("[lsp] %s not installed; %v use native parsers", status.Spec.Command, status.Spec.Languages)
			}
		}
		root, err := filepath.Abs(cfg.Workspace)
		if err != nil {
			root = cfg.Workspace
		}
		tools.RegisterServers(proxy, available, root, logger)
	}
	cleanup := func() {
		if err := proxy.Shutdown(); err != nil {
			logger.Printf("[lsp] shutdown: %v", err)
		}
	}
	return proxy, cleanup
}
