package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "optiq",
	Short: "Natural-language optimization solved through a staged reasoning pipeline",
	Long: `Optiq turns a natural-language optimization problem into a solved
mathematical program. A four-stage pipeline classifies the problem,
checks data readiness, builds a formal model and hands it to a solver,
validating every intermediate result before trusting it.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".optiq.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
