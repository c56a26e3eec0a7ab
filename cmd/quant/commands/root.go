package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quant",
	Short: "Frontier - portfolio pipeline runner",
	Long: `Frontier Unified CLI

Runs the period-scoped portfolio pipeline:
data -> expected_return -> risk_model -> optimization -> allocation -> performance.
Every stage result is cached per period, so reruns only compute what is missing.

Usage:
  go run ./cmd/quant [command]

Examples:
  go run ./cmd/quant sample-data
  go run ./cmd/quant run --years 2023,2024
  go run ./cmd/quant export 2024
  go run ./cmd/quant api`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// ENV is read by config.Load; the flag wins over .env
		if cmd.Flags().Changed("env") {
			os.Setenv("ENV", env)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "pipeline YAML (default is PIPELINE_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "development", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
