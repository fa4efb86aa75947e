package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hragd/hragd/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize hragd configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure hragd and writes a .hragd.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard()
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
