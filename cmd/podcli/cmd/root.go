// Package cmd is podcli's thin cobra surface for loading a pod from the
// command line, listing what it advertises, and invoking one of its vars.
// It exists to exercise the pod package interactively; the library itself
// has no dependency on anything in here.
package cmd

import "github.com/spf13/cobra"

var rootCmd = &cobra.Command{
	Use:   "podcli",
	Short: "Load and talk to a babashka-style pod from the command line",
	Long: `podcli launches a pod subprocess, performs the describe handshake,
and either prints what it advertises or invokes one of its vars.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
