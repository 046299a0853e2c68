package main

import (
	"codeberg.org/mutker/fansim/internal/config"
	"codeberg.org/mutker/fansim/internal/errors"
	"codeberg.org/mutker/fansim/internal/logger"
	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fansim",
		Short: "Simulated fan control for robotic subsystems.",
		Long: `fansim drives simulated subsystem temperatures with a fan curve ` +
			`derived from the hottest subsystem and keeps a rolling log that ` +
			`is exported on exit.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newRunCmd(), newCurveCmd(), newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version.",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println("fansim " + version)
		},
	}
}

// loadConfig loads the configuration and initializes the global logger.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		logError(err, "Failed to load configuration")
		return nil, err
	}

	level, err := logger.ParseLevel(cfg.LogLevel.String())
	if err != nil {
		logError(err, "Failed to parse log level")
		return nil, err
	}

	logger.Init(level, logger.IsService())
	logger.Debug().Msg("Config loaded")

	return cfg, nil
}

// errorLogger reports command failures. Cobra's own error output is
// silenced, so this is the only place they show up.
var errorLogger = logger.Default()

func logError(err error, msg string) {
	var appErr errors.Error
	if errors.As(err, &appErr) {
		errorLogger.ErrorWithCode(appErr).Msg(msg)
		return
	}
	errorLogger.Error().Err(err).Msg(msg)
}
