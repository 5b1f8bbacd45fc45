package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/intake-api/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "intakectl",
		Short:         "Operator tooling for the Amani intake API",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			verbose, _ := cmd.Flags().GetBool("verbose")
			level := logger.WarnLevel
			if verbose {
				level = logger.DebugLevel
			}
			logger.Setup(&logger.Config{Level: level, Pretty: true, Output: cmd.ErrOrStderr()})
		},
	}
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log progress to stderr")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(resetCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(hashSecretCmd())
	return rootCmd
}
