package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/fansim/internal/config"
	"codeberg.org/mutker/fansim/internal/control"
	"codeberg.org/mutker/fansim/internal/errors"
	"codeberg.org/mutker/fansim/internal/export"
	"codeberg.org/mutker/fansim/internal/logger"
	"codeberg.org/mutker/fansim/internal/pid"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

const statusInterval = time.Second

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run a tracking session until interrupted.",
		Long: `Run configures the fans and subsystems, tracks them until ` +
			`SIGINT/SIGTERM or --duration, and exports the log on exit. ` +
			`SIGUSR1 exports the log without stopping.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			return run(cmd.Context(), cfg)
		},
	}
}

func run(parent context.Context, cfg *config.Config) error {
	if err := pid.Write(); err != nil {
		logError(err, "Failed to acquire PID file")
		return err
	}
	atexit.Register(func() {
		if err := pid.Remove(); err != nil {
			logError(err, "Failed to remove PID file")
		}
	})

	loop, err := control.New(
		control.WithLogger(logger.Default()),
		control.WithDecimation(cfg.Decimation),
		control.WithWindow(cfg.Window),
		control.WithThermalConfig(cfg.Simulation.Config),
		control.WithSeed(cfg.Simulation.Seed),
	)
	if err != nil {
		logError(err, "Failed to create control loop")
		return err
	}

	if err := loop.Configure(cfg.FanCount, cfg.SubsystemCount, cfg.MaxRPMs); err != nil {
		logError(err, "Failed to configure control loop")
		return err
	}

	startedAt := time.Now()
	atexit.Register(func() {
		exportLog(loop, cfg.ExportPath, startedAt)
		loop.Reset()
		logger.Info().Msg("Exiting...")
	})

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	if cfg.Duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}

	go handleSignals(ctx, cancel, func() { exportLog(loop, cfg.ExportPath, startedAt) })
	go reportStatus(ctx, loop)

	if err := loop.Run(ctx, cfg.Interval); err != nil {
		logError(errors.New().Wrap(errors.ErrMainLoop, err), "Error in main loop")
		return err
	}

	return nil
}

func handleSignals(ctx context.Context, cancel context.CancelFunc, exportNow func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)
	defer signal.Stop(sigs)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigs:
			if sig == syscall.SIGUSR1 {
				exportNow()
				continue
			}
			logger.Info().Msg("Received termination signal.")
			cancel()
			return
		}
	}
}

// reportStatus logs the latest control data once per statusInterval.
func reportStatus(ctx context.Context, loop *control.Loop) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			temperatures, speeds := loop.CurrentData()
			if temperatures == nil {
				continue
			}
			logger.Info().
				Str("elapsed", loop.ElapsedTime()).
				Floats64("temperatures", temperatures).
				Floats64("fan_speeds", speeds).
				Uint64("cycles", loop.Cycles()).
				Send()
		}
	}
}

func exportLog(loop *control.Loop, path string, startedAt time.Time) {
	table, _ := loop.ExportRows()

	err := export.ToFile(path, table, export.Meta{
		SessionID: loop.SessionID(),
		MaxRPMs:   loop.MaxRPMs(),
		CreatedAt: startedAt,
		Logger:    logger.Default(),
	})
	if errors.HasCode(err, errors.ErrExportUnavailable) {
		logger.Info().Msg("No data to write.")
		return
	}
	if err != nil {
		logError(err, "Failed to export log")
	}
}
