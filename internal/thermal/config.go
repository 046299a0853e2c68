package thermal

import (
	"math"

	"codeberg.org/mutker/fansim/internal/errors"
)

// Defaults for the subsystem model. K = 2000 pairs with fan speeds expressed
// in RPM (hundreds to thousands); a scale of 100 is meant for percentages.
const (
	DefaultInitialMin       = 25.0
	DefaultInitialMax       = 45.0
	DefaultCoolingScale     = 2000.0
	DefaultStepDuration     = 0.5
	DefaultSpikeProbability = 0.2
	DefaultSpikeMin         = 1.0
	DefaultSpikeMax         = 3.0
	DefaultFloor            = 20.0
)

// Config holds the constants of the synthetic thermal model.
type Config struct {
	InitialMin       float64 `mapstructure:"initial_min"`
	InitialMax       float64 `mapstructure:"initial_max"`
	CoolingScale     float64 `mapstructure:"cooling_scale"`
	StepDuration     float64 `mapstructure:"step_duration"`
	SpikeProbability float64 `mapstructure:"spike_probability"`
	SpikeMin         float64 `mapstructure:"spike_min"`
	SpikeMax         float64 `mapstructure:"spike_max"`
	Floor            float64 `mapstructure:"floor"`
}

func DefaultConfig() Config {
	return Config{
		InitialMin:       DefaultInitialMin,
		InitialMax:       DefaultInitialMax,
		CoolingScale:     DefaultCoolingScale,
		StepDuration:     DefaultStepDuration,
		SpikeProbability: DefaultSpikeProbability,
		SpikeMin:         DefaultSpikeMin,
		SpikeMax:         DefaultSpikeMax,
		Floor:            DefaultFloor,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	for _, v := range []float64{
		c.InitialMin, c.InitialMax, c.CoolingScale, c.StepDuration,
		c.SpikeProbability, c.SpikeMin, c.SpikeMax, c.Floor,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errFactory.WithMessage(ErrInvalidModel, "simulation values must be finite")
		}
	}

	switch {
	case c.InitialMin > c.InitialMax:
		return errFactory.WithData(ErrInvalidModel, "initial_min is greater than initial_max")
	case c.InitialMin < c.Floor:
		return errFactory.WithData(ErrInvalidModel, "initial_min is below the floor")
	case c.CoolingScale <= 0:
		return errFactory.WithData(ErrInvalidModel, "cooling_scale must be positive")
	case c.StepDuration <= 0:
		return errFactory.WithData(ErrInvalidModel, "step_duration must be positive")
	case c.SpikeProbability < 0 || c.SpikeProbability > 1:
		return errFactory.WithData(ErrInvalidModel, "spike_probability must be within [0, 1]")
	case c.SpikeMin > c.SpikeMax:
		return errFactory.WithData(ErrInvalidModel, "spike_min is greater than spike_max")
	}

	return nil
}
