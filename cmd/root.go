// Package cmd wires the CLI commands: serving the API, running migrations,
// and printing version information.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "vibey",
	Short: "Vibey streaming AI chat backend",
	Long: `Vibey is the backend for the Vibey conversational assistant.
It streams chat completions over SSE, executes web search and memory tools
on the model's behalf, and persists conversation history in PostgreSQL.

Run 'vibey serve' to start the HTTP API.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
