package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lexcodex/docsections/framework/sections"
)

func newLargestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "largest <n>...",
		Short: "Print the largest value among all but the last of the numbers",
		RunE: func(cmd *cobra.Command, args []string) error {
			values := make([]float64, 0, len(args))
			for _, arg := range args {
				v, err := strconv.ParseFloat(arg, 64)
				if err != nil {
					return fmt.Errorf("not a number: %q", arg)
				}
				values = append(values, v)
			}
			largest, ok := sections.LargestInteriorValue(values)
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "none")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatFloat(largest, 'g', -1, 64))
			return nil
		},
		// Negative numbers would otherwise parse as flags.
		DisableFlagParsing: true,
	}
}
