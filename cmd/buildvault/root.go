package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var envFlag string

	ctx := newCommandContext(&configFlag, &envFlag)

	rootCmd := &cobra.Command{
		Use:           "buildvault",
		Short:         "Turn podcast episodes into searchable builder insights",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&envFlag, "env-file", ".env", "Environment file loaded before configuration (ignored when missing)")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newStageCommand(ctx))
	rootCmd.AddCommand(newEnrichCommand(ctx))
	rootCmd.AddCommand(newDoctorCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newLogsCommand(ctx))

	return rootCmd
}
