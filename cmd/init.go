package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/optiq-ai/optiq/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactively create a .optiq.yml configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(config.DefaultConfigFile); err == nil && !initForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", config.DefaultConfigFile)
		}
		_, err := config.RunWizard()
		return err
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config")
	rootCmd.AddCommand(initCmd)
}
