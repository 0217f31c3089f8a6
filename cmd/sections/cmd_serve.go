package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lexcodex/docsections/cmd/internal/cliutils"
	"github.com/lexcodex/docsections/persistence"
	"github.com/lexcodex/docsections/server"
)

func newServeCmd() *cobra.Command {
	var addr string
	var stdio bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve section extraction over HTTP or as a stdio language server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadWorkspace(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			proxy, cleanup := cliutils.NewProxy(cfg, !flagNoLSP, logger)
			defer cleanup()

			if stdio {
				lsp := server.NewLSPServer(proxy, logger)
				err := lsp.ServeStream(ctx, stdioStream{Reader: cmd.InOrStdin(), Writer: cmd.OutOrStdout()})
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}

			store, err := persistence.NewSQLiteSectionStore(cfg.IndexFile())
			if err != nil {
				return err
			}
			defer store.Close()
			api := &server.APIServer{Provider: proxy, Store: store, Logger: logger}
			err = api.ServeContext(ctx, addr)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", envOrDefault("SECTIONS_ADDR", ":8080"), "HTTP listen address")
	cmd.Flags().BoolVar(&stdio, "stdio", false, "Speak LSP on stdin/stdout instead of HTTP")
	return cmd
}

// stdioStream joins the command's stdin and stdout; closing it is a no-op.
type stdioStream struct {
	io.Reader
	io.Writer
}

func (stdioStream) Close() error { return nil }
