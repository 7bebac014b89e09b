// Package main is the backtest CLI.
//
// Usage:
//
//	backtest run --config config.yaml
//	backtest windows [--run-id ID]
//	backtest runs
//	backtest import --csv data/combined_universe.csv
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ipo-window-lab/internal/config"
	"ipo-window-lab/internal/observability"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "backtest",
	Short:         "Search IPO-day intraday trading windows and backtest the best one",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(runCmd, windowsCmd, runsCmd, importCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Errorf("Error: %v", err)
		stop()
		os.Exit(1)
	}
}

// loadConfig reads and validates the configuration and sets up logging.
func loadConfig(apply func(*config.Config)) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if apply != nil {
		apply(cfg)
	}
	observability.ConfigureLogging(cfg.Log.Level, cfg.Log.Format, verbose, nil)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}
	return cfg, nil
}
