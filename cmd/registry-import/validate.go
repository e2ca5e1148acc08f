package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zatekoja/nearcare/internal/adapters/tabular"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Read the CSV and report how many rows would be imported",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := resolveCSVPath()
		_, stats, err := tabular.NewCSVSource(path).Read(cmd.Context())
		if err != nil {
			return err
		}
		logStats(path, stats)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "file:     %s\n", path)
		fmt.Fprintf(out, "encoding: %s\n", stats.Encoding)
		fmt.Fprintf(out, "rows:     %d\n", stats.Rows)
		fmt.Fprintf(out, "kept:     %d\n", stats.Kept)
		fmt.Fprintf(out, "dropped:  %d\n", stats.Dropped)
		if stats.Kept == 0 {
			return fmt.Errorf("%s: no importable rows", path)
		}
		return nil
	},
}
