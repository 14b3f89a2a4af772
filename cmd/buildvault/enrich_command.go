package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newEnrichCommand(ctx *commandContext) *cobra.Command {
	var (
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Describe stored links that have not been enriched yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := ctx.runner(cmd, nil)
			if err != nil {
				return err
			}
			res := runner.Enrich(cmd.Context(), limit)
			if jsonOutput {
				return writeJSON(cmd, res)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, stageLine(res, shouldColorize(out)))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum links to enrich (default from pipeline.enrich_limit)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the stage result as JSON")
	return cmd
}
