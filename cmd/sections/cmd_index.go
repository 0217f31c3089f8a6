package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexcodex/docsections/cmd/internal/cliutils"
	"github.com/lexcodex/docsections/framework/index"
	"github.com/lexcodex/docsections/persistence"
)

func newIndexCmd() *cobra.Command {
	var force bool
	var workers int
	indexCmd := &cobra.Command{
		Use:   "index [dir]",
		Short: "Extract and store the sections of every file under a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadWorkspace(cmd)
			if err != nil {
				return err
			}
			dir := cfg.Workspace
			if len(args) == 1 {
				dir = args[0]
			}
			if workers <= 0 {
				workers = cfg.ParallelWorkers
			}
			store, err := persistence.NewSQLiteSectionStore(cfg.IndexFile())
			if err != nil {
				return err
			}
			defer store.Close()
			proxy, cleanup := cliutils.NewProxy(cfg, !flagNoLSP, logger)
			defer cleanup()

			manager := index.NewManager(store, proxy, nil, index.Config{
				WorkspacePath:   dir,
				ParallelWorkers: workers,
				IgnorePatterns:  cfg.IgnorePatterns,
				Force:           force,
			}, logger)
			started := time.Now()
			summary, err := manager.IndexWorkspace(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s indexed=%d unchanged=%d failed=%d %s\n",
				headerStyle.Render(dir), summary.Indexed, summary.Skipped, summary.Failed,
				dimStyle.Render(time.Since(started).Round(time.Millisecond).String()))
			return nil
		},
	}
	indexCmd.Flags().BoolVar(&force, "force", false, "Re-extract files whose content is unchanged")
	indexCmd.Flags().IntVar(&workers, "workers", 0, "Parallel workers (default from config)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List indexed documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadWorkspace(cmd)
			if err != nil {
				return err
			}
			store, err := persistence.NewSQLiteSectionStore(cfg.IndexFile())
			if err != nil {
				return err
			}
			defer store.Close()
			records, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, record := range records {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d\t%s\n", record.URI, record.Language, len(record.Sections), record.IndexedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
	indexCmd.AddCommand(listCmd)
	return indexCmd
}
