package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.lsp.dev/protocol"

	"github.com/lexcodex/docsections/cmd/internal/cliutils"
	"github.com/lexcodex/docsections/framework/sections"
)

type extractOutput struct {
	URI      protocol.DocumentURI `json:"uri"`
	Language string               `json:"language"`
	Sections []protocol.Range     `json:"sections"`
}

func newExtractCmd() *cobra.Command {
	var asJSON bool
	var mode string
	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Print the sections of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadWorkspace(cmd)
			if err != nil {
				return err
			}
			var opts []sections.Option
			opts = append(opts, sections.WithLogger(logger))
			if mode != "" && mode != "auto" {
				m, err := sections.ParseMode(mode)
				if err != nil {
					return err
				}
				opts = append(opts, sections.WithMode(m))
			}

			proxy, cleanup := cliutils.NewProxy(cfg, !flagNoLSP, logger)
			defer cleanup()
			doc, err := proxy.OpenFile(args[0])
			if err != nil {
				return err
			}
			proxy.Open(doc)
			defer proxy.Close(doc.URI())

			ranges, err := sections.NewExtractor(proxy, proxy, opts...).DocumentSections(cmd.Context(), doc)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(extractOutput{URI: doc.URI(), Language: doc.LanguageID(), Sections: ranges})
			}
			renderSections(cmd.OutOrStdout(), doc, ranges)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print sections as JSON")
	cmd.Flags().StringVar(&mode, "mode", "auto", "Wrapper detection: auto, symbols or plaintext")
	return cmd
}

func renderSections(w io.Writer, doc sections.Document, ranges []protocol.Range) {
	fmt.Fprintf(w, "%s %s\n", headerStyle.Render(string(doc.URI())), dimStyle.Render("("+doc.LanguageID()+")"))
	if len(ranges) == 0 {
		fmt.Fprintln(w, warningStyle.Render("no sections"))
		return
	}
	for i, r := range ranges {
		start, end := sections.RangeLines(r)
		span := fmt.Sprintf("%d-%d", start+1, end+1)
		fmt.Fprintf(w, "%s %s %s\n",
			indexStyle.Render(fmt.Sprintf("%d", i+1)),
			rangeStyle.Render(span),
			dimStyle.Render(strings.TrimSpace(doc.LineText(int(start)))))
	}
}
