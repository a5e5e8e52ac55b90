// Package app implements the main application commands.
package app

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "paneelbeheer",
	Short: "Paneelbeheer is a web-based administration tool for panel builders",
	Long: `Paneelbeheer is a web-based administration tool for panel builders
that provides role-based access to projects, verdelers, meldingen,
gebruikers, uploads and access codes from a single interface.`,
	Args: cobra.OnlyValidArgs,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
