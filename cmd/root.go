// Package cmd implements the hragd command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "hragd",
	Short: "Hybrid retrieval copilot backend for incident response",
	Long: `hragd answers operator questions about production incidents by fusing
a knowledge graph, a semantic document index and live telemetry. It
ingests runbooks and post-mortems, curates extracted knowledge through
a review queue and serves a streaming conversational API.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".hragd.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
