package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lexcodex/docsections/cmd/internal/cliutils"
)

func newServersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "servers",
		Short: "List the language servers the workspace would use",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadWorkspace(cmd)
			if err != nil {
				return err
			}
			statuses := cliutils.ServerStatuses(cfg)
			if len(statuses) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("language servers disabled"))
				return nil
			}
			for _, status := range statuses {
				state := warningStyle.Render("missing")
				if status.Available {
					state = rangeStyle.Render(status.Path)
				}
				command := strings.TrimSpace(status.Spec.Command + " " + strings.Join(status.Spec.Args, " "))
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n",
					headerStyle.Render(status.Spec.Name),
					strings.Join(status.Spec.Languages, ","),
					command,
					state)
			}
			return nil
		},
	}
}
