package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"farm-console/internal/config"
	"farm-console/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "farm-console",
	Short: "Real-time agent for the farm management backend",
	Long: `farm-console holds the push connection to the farm backend, keeps the
real-time view of alerts, ready batches, production reports, low inventory
and tasks, and serves it to local dashboards over HTTP and WebSocket.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(newRunCmd(), newTokenCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the configuration and opens the logger shared by every
// subcommand.
func setup() (config.Config, *logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("failed to init logger: %w", err)
	}
	return cfg, logger, nil
}
