package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"buildvault/internal/pipeline"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		url          string
		episodeID    string
		full         bool
		skipExisting bool
		jsonOutput   bool
	)

	cmd := &cobra.Command{
		Use:   "run [url]",
		Short: "Run the full pipeline for an episode URL or stored episode",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 && strings.TrimSpace(url) == "" {
				url = args[0]
			}
			if strings.TrimSpace(url) == "" && strings.TrimSpace(episodeID) == "" {
				return errors.New("provide an episode URL (--url) or a stored episode id (--episode-id)")
			}

			runner, err := ctx.runner(cmd, func(opts *pipeline.Options) {
				if full {
					opts.DemoMode = false
				}
				if cmd.Flags().Changed("skip-existing") {
					opts.SkipExisting = skipExisting
				}
			})
			if err != nil {
				return err
			}

			report, runErr := runner.Run(cmd.Context(), pipeline.Request{URL: url, EpisodeID: episodeID})
			if jsonOutput {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				printReport(out, report, shouldColorize(out))
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Episode URL to acquire")
	cmd.Flags().StringVar(&episodeID, "episode-id", "", "Stored episode to reprocess")
	cmd.Flags().BoolVar(&full, "full", false, "Disable demo mode caps")
	cmd.Flags().BoolVar(&skipExisting, "skip-existing", true, "Reuse stored stage output instead of recomputing")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the run report as JSON")
	cmd.MarkFlagsMutuallyExclusive("url", "episode-id")
	return cmd
}
