package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"buildvault/internal/pipeline"
	"buildvault/internal/stage"
)

// stageCommands maps subcommand names to pipeline stages in run order.
var stageCommands = []struct {
	use   string
	name  string
	short string
}{
	{"transcribe", stage.Transcript, "Transcribe the episode audio into segments"},
	{"group", stage.Grouping, "Group consecutive segments"},
	{"summarize", stage.Summary, "Generate the episode summary"},
	{"insights", stage.Insights, "Extract categorized insights"},
	{"products", stage.Products, "Reconcile product mentions from stored insights"},
	{"links", stage.Links, "Extract links from the episode description"},
}

func newStageCommand(ctx *commandContext) *cobra.Command {
	var (
		episodeID    string
		skipExisting bool
		jsonOutput   bool
	)

	stageCmd := &cobra.Command{
		Use:   "stage",
		Short: "Run individual pipeline stages against a stored episode",
	}
	stageCmd.PersistentFlags().StringVar(&episodeID, "episode-id", "", "Stored episode id")
	stageCmd.PersistentFlags().BoolVar(&skipExisting, "skip-existing", true, "Reuse stored stage output instead of recomputing")
	stageCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print stage results as JSON")
	_ = stageCmd.MarkPersistentFlagRequired("episode-id")

	run := func(cmd *cobra.Command, names []string) error {
		runner, err := ctx.runner(cmd, func(opts *pipeline.Options) {
			if cmd.Flags().Changed("skip-existing") {
				opts.SkipExisting = skipExisting
			}
		})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		colorize := shouldColorize(out)
		results := make([]stage.Result, 0, len(names))
		for _, name := range names {
			res, err := runner.RunStage(cmd.Context(), episodeID, name)
			if err != nil {
				return err
			}
			results = append(results, res)
			if !jsonOutput {
				fmt.Fprintln(out, stageLine(res, colorize))
			}
		}
		if jsonOutput {
			return writeJSON(cmd, results)
		}
		return nil
	}

	all := make([]string, 0, len(stageCommands))
	for _, sc := range stageCommands {
		name := sc.name
		all = append(all, name)
		stageCmd.AddCommand(&cobra.Command{
			Use:   sc.use,
			Short: sc.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd, []string{name})
			},
		})
	}
	stageCmd.AddCommand(&cobra.Command{
		Use:   "all",
		Short: "Run every per-episode stage in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, all)
		},
	})
	return stageCmd
}
