package main

import (
	"github.com/fatih/color"
	"github.com/petems/rate-tray/internal/config"
	"github.com/petems/rate-tray/internal/hardware"
	"github.com/petems/rate-tray/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	logLevel   string

	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
)

var rootCmd = &cobra.Command{
	Use:   "rate-tray",
	Short: "Match the audio output sample rate to the playing track",
	Long: `rate-tray watches the system log for the sample rate of the track
being played and switches the default output device to it.

Run without a subcommand to start the menu bar app.

Configuration is stored in the OS config directory:
  macOS:   ~/Library/Application Support/rate-tray/config.yaml
  Linux:   ~/.config/rate-tray/config.yaml

Examples:
  rate-tray                  # start the menu bar app
  rate-tray detect           # print rates as they are detected
  rate-tray detect "ALAC 24/96"
  rate-tray devices
  rate-tray set 96k`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTray(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is the OS config directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
}

// loadConfig loads the config and a logger at the configured level. Only the
// long-running tray writes to the log file.
func loadConfig(toFile bool) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.LoadFrom(configFile)
	if err != nil {
		return nil, logging.New(logging.Options{Level: logLevel, File: toFile}), err
	}
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	return cfg, logging.New(logging.Options{Level: level, File: toFile}), nil
}

func newController(log zerolog.Logger) (*hardware.Controller, func() error, error) {
	ep, err := hardware.NewSystem()
	if err != nil {
		return nil, nil, err
	}
	return hardware.NewController(ep, log.With().Str("component", "hardware").Logger()), ep.Close, nil
}
