// Package cli implements the ngo-inquiry-tracker command line.
package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ngo-inquiry-tracker/internal/config"
	"ngo-inquiry-tracker/internal/logging"
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:   "ngo-inquiry-tracker",
		Short: "Track parliamentary inquiries about NGOs",
		Long: `Tracks Kleine and Große Anfragen in the German Bundestag that concern
non-governmental organisations, using the DIP API. Configuration is read from
the environment and an optional .env file.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(&logLevel),
		newFetchCmd(&logLevel),
		newCacheCmd(&logLevel),
		newHashPasswordCmd(),
	)
	return root
}

// loadConfig reads the configuration and builds the logger every command
// starts from.
func loadConfig(logLevel string) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, logging.New(cfg.Log.Level, cfg.Log.Format), nil
}
