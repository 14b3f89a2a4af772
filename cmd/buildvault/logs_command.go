package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"buildvault/internal/logging"
	"buildvault/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines  int
		follow bool
		raw    bool
		filter logs.Filter
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show records from the JSON run log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
			res, err := logs.Tail(path, lines, filter)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range res.Entries {
				printEntry(out, e, raw)
			}
			if !follow {
				return nil
			}
			err = logs.Follow(cmd.Context(), path, res.Offset, 250*time.Millisecond, filter, func(e logs.Entry) error {
				printEntry(out, e, raw)
				return nil
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of matching records to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new records")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the JSON records unchanged")
	cmd.Flags().StringVar(&filter.RunID, "run-id", "", "Only records from this run")
	cmd.Flags().StringVar(&filter.EpisodeID, "episode-id", "", "Only records for this episode")
	cmd.Flags().StringVar(&filter.Stage, "stage", "", "Only records from this stage")
	cmd.Flags().BoolVar(&filter.ProblemsOnly, "problems", false, "Only warnings and errors")
	return cmd
}

func printEntry(out io.Writer, e logs.Entry, raw bool) {
	if raw {
		fmt.Fprintln(out, e.Raw)
		return
	}
	ts := ""
	if !e.Time.IsZero() {
		ts = e.Time.Local().Format("2006-01-02 15:04:05") + " "
	}
	subject := e.Stage
	if subject == "" {
		subject = e.Component
	}
	if subject != "" {
		subject = "[" + subject + "] "
	}
	fmt.Fprintf(out, "%s%-5s %s%s\n", ts, e.Level, subject, e.Message)
}
