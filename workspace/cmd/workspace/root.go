package main

import (
	"github.com/spf13/cobra"

	"github.com/teamspace-hq/teamspace/common/logging"
	"github.com/teamspace-hq/teamspace/workspace/internal/config"
)

const version = "0.1.0"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "workspace",
	Short: "Teamspace workspace service",
	Long: `workspace serves the company workspace API: the application
marketplace, channels, threaded messages and message search, with
realtime updates over websockets.`,
	Version:      version,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to YAML config file (default: ./config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(seedCmd)
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

func newLogger(cfg *config.Config) *logging.Logger {
	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("workspace"))
	logging.SetDefault(logger)
	return logger
}
