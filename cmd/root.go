// Package cmd wires the context-injection pipeline into a CLI.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "joeupup",
	Short: "Grounded context injection for company AI agents",
	Long: `joeupup builds grounded system prompts for company AI agents.

It expands the user's query, retrieves supporting context from five
knowledge tiers (company profile, agent documents, shared documents,
playbooks, keyword matches), reranks the candidates, and assembles a
cited system prompt ready for a language model.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
