package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/lexcodex/docsections/cmd/internal/workspacecfg"
)

var (
	flagWorkspace string
	flagNoLSP     bool
	flagQuiet     bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sections",
		Short:         "Split documents into class and function sized sections",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagWorkspace, "workspace", envOrDefault("SECTIONS_WORKSPACE", "."), "Workspace root (config, index and language server root)")
	root.PersistentFlags().BoolVar(&flagNoLSP, "no-lsp", false, "Use the built-in parsers only")
	root.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress diagnostics on stderr")

	root.AddCommand(newExtractCmd(), newIndexCmd(), newLargestCmd(), newServeCmd(), newServersCmd())
	return root
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadWorkspace reads the workspace config and builds the diagnostics logger.
func loadWorkspace(cmd *cobra.Command) (*workspacecfg.WorkspaceConfig, *log.Logger, error) {
	cfg, err := workspacecfg.Load(flagWorkspace)
	if err != nil {
		return nil, nil, err
	}
	var out io.Writer = cmd.ErrOrStderr()
	if flagQuiet {
		out = io.Discard
	}
	return cfg, log.New(out, "", 0), nil
}
