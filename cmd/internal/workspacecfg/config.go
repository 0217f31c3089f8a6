package workspacecfg

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lexcodex/docsections/tools"
)

// WorkspaceConfig models .sections/config.yaml.
type WorkspaceConfig struct {
	Workspace string `yaml:"-"`
	// Servers lists language servers; built-in defaults apply when empty
	// unless DisableServers is set.
	Servers         []tools.ServerSpec `yaml:"servers,omitempty"`
	DisableServers  bool               `yaml:"disable_servers,omitempty"`
	CacheTTL        time.Duration      `yaml:"cache_ttl,omitempty"`
	IndexPath       string             `yaml:"index_path,omitempty"`
	IgnorePatterns  []string           `yaml:"ignore,omitempty"`
	ParallelWorkers int                `yaml:"parallel_workers,omitempty"`
	Extensions      map[string]string  `yaml:"extensions,omitempty"`
}

// ConfigDir resolves the directory storing workspace settings.
func ConfigDir(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, ".sections")
}

// ConfigFile returns the workspace YAML path.
func ConfigFile(workspace string) string {
	return filepath.Join(ConfigDir(workspace), "config.yaml")
}

// Default returns the configuration used when no file exists.
func Default(workspace string) *WorkspaceConfig {
	cfg := &WorkspaceConfig{Workspace: workspace}
	cfg.applyDefaults()
	return cfg
}

// Load reads the workspace configuration, falling back to defaults when the
// file is missing.
func Load(workspace string) (*WorkspaceConfig, error) {
	path := ConfigFile(workspace)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(workspace), nil
	}
	if err != nil {
		return nil, err
	}
	var cfg WorkspaceConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Workspace = workspace
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Save writes the configuration back to disk.
func Save(cfg *WorkspaceConfig) error {
	if cfg == nil {
		return errors.New("workspace config missing")
	}
	if err := os.MkdirAll(ConfigDir(cfg.Workspace), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(ConfigFile(cfg.Workspace), data, 0o644)
}

// Validate rejects server entries that cannot be launched.
func (c *WorkspaceConfig) Validate() error {
	for i, server := range c.Servers {
		if strings.TrimSpace(server.Command) == "" {
			return fmt.Errorf("servers[%d] (%s): command required", i, server.Name)
		}
		if len(server.Languages) == 0 {
			return fmt.Errorf("servers[%d] (%s): at least one language required", i, server.Name)
		}
	}
	if c.CacheTTL < 0 {
		return errors.New("cache_ttl must not be negative")
	}
	return nil
}

// ActiveServers returns the configured servers, or the built-in table.
func (c *WorkspaceConfig) ActiveServers() []tools.ServerSpec {
	if c.DisableServers {
		return nil
	}
	if len(c.Servers) > 0 {
		return c.Servers
	}
	return tools.KnownServers()
}

// IndexFile resolves the index database path against the workspace.
func (c *WorkspaceConfig) IndexFile() string {
	if filepath.IsAbs(c.IndexPath) {
		return c.IndexPath
	}
	return filepath.Join(c.Workspace, c.IndexPath)
}

func (c *WorkspaceConfig) applyDefaults() {
	if c.Workspace == "" {
		c.Workspace = "."
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = time.Minute
	}
	if c.IndexPath == "" {
		c.IndexPath = filepath.Join(".sections", "index.db")
	}
	if len(c.IgnorePatterns) == 0 {
		c.IgnorePatterns = []string{".git", ".sections", "node_modules", "vendor"}
	}
	if c.ParallelWorkers <= 0 {
		c.ParallelWorkers = 4
	}
}
