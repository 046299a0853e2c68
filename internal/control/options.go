package control

import (
	"time"

	"codeberg.org/mutker/fansim/internal/errors"
	"codeberg.org/mutker/fansim/internal/logger"
	"codeberg.org/mutker/fansim/internal/thermal"
)

// DefaultDecimation is the number of simulation ticks per control cycle.
const DefaultDecimation = 10

// Option configures a Loop.
type Option func(*Loop) error

// WithLogger sets the logger used for tick and lifecycle events.
func WithLogger(log logger.Logger) Option {
	return func(l *Loop) error {
		l.logger = log
		return nil
	}
}

// WithClock replaces time.Now as the source of elapsed time.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) error {
		l.now = now
		return nil
	}
}

// WithDecimation runs the control cycle on every n-th tick.
func WithDecimation(n int) Option {
	return func(l *Loop) error {
		if n < 1 {
			return errors.New().WithData(errors.ErrInvalidConfig, struct {
				Field string
				Value int
			}{
				Field: "decimation",
				Value: n,
			})
		}
		l.decimation = n
		return nil
	}
}

// WithWindow sets the rolling log retention in seconds.
func WithWindow(seconds float64) Option {
	return func(l *Loop) error {
		if !(seconds > 0) {
			return errors.New().WithData(errors.ErrInvalidConfig, struct {
				Field string
				Value float64
			}{
				Field: "window",
				Value: seconds,
			})
		}
		l.window = seconds
		return nil
	}
}

// WithThermalConfig sets the model used by the default subsystem factory.
func WithThermalConfig(cfg thermal.Config) Option {
	return func(l *Loop) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		l.thermalCfg = cfg
		return nil
	}
}

// WithSeed seeds simulator i with seed+i. Zero seeds from the clock at
// configuration time.
func WithSeed(seed int64) Option {
	return func(l *Loop) error {
		l.seed = seed
		return nil
	}
}

// WithSubsystemFactory replaces the thermal simulators.
func WithSubsystemFactory(factory SubsystemFactory) Option {
	return func(l *Loop) error {
		l.factory = factory
		return nil
	}
}
