package root

import (
	"github.com/spf13/cobra"
)

// rootCmd is the base command for the Nimbus operator CLI. Subcommands (provision, token) are attached here.
var rootCmd = &cobra.Command{
	Use:           "nimbusctl",
	Short:         "Nimbus operator CLI",
	Long:          "Operational utilities for Nimbus ERP (provisioning runs, retries, status, dev tokens).",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// Root returns the mutable root command for wiring from subpackages.
func Root() *cobra.Command {
	return rootCmd
}
