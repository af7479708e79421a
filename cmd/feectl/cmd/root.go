// Package cmd provides the feectl commands.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mmynk/feeallocator/internal/config"
	"github.com/mmynk/feeallocator/pkg/logging"
)

var (
	envFile string
	debug   bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "feectl",
	Short: "Operate the school fee allocation service",
	Long: `feectl is the operator tool for the fee allocation service.

It reads the same configuration as the server (.env and FEES_* variables) and supports:
- Seeding the student ledger from a YAML file
- Minting operator tokens for the RPC API
- Hashing the M-Pesa callback secret
- Previewing how a payment would be allocated

Example:
  feectl seed --file students.yaml
  feectl preview --amount 20000 --reference "041|1043"`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := "warn"
		if debug {
			level = "debug"
		}
		logging.Setup(level, "text")
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "config file (default is .env)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(hashSecretCmd)
	rootCmd.AddCommand(previewCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.Debug("Configuration loaded", "store", cfg.Store.Backend)
	return cfg, nil
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
