package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"buildvault/internal/preflight"
	"buildvault/internal/stage"
)

type doctorReport struct {
	Checks []preflight.Result `json:"checks"`
	Stages []stage.Health     `json:"stages,omitempty"`
	Passed bool               `json:"passed"`
}

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check binaries, directories, credentials, and the datastore",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			var report doctorReport
			st, storeErr := ctx.ensureStore(cmd.Context())
			if storeErr != nil {
				report.Checks = preflight.RunAll(cmd.Context(), cfg, nil)
				report.Checks = append(report.Checks, preflight.Result{Name: "Store open", Detail: storeErr.Error()})
			} else {
				report.Checks = preflight.RunAll(cmd.Context(), cfg, st)
				runner, err := ctx.runner(cmd, nil)
				if err != nil {
					return err
				}
				report.Stages = runner.Health(cmd.Context())
			}
			report.Passed = preflight.Passed(report.Checks)

			if jsonOutput {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				printDoctor(cmd, report)
			}
			if !report.Passed {
				return errors.New("doctor: one or more checks failed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print check results as JSON")
	return cmd
}

func printDoctor(cmd *cobra.Command, report doctorReport) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader("Environment", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, check := range report.Checks {
		kind := statusOK
		switch {
		case !check.Passed:
			kind = statusError
		case check.Warning:
			kind = statusWarn
		}
		fmt.Fprintln(out, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}

	if len(report.Stages) > 0 {
		fmt.Fprintln(out)
		for _, line := range renderSectionHeader("Stages", colorize) {
			fmt.Fprintln(out, line)
		}
		for _, h := range report.Stages {
			kind := statusOK
			if !h.Ready {
				kind = statusWarn
			}
			fmt.Fprintln(out, renderStatusLine(h.Name, kind, h.Detail, colorize))
		}
	}
}
