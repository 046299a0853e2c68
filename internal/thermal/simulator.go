// Package thermal simulates the temperature of a cooled subsystem.
package thermal

import (
	"math"
	"math/rand"

	"codeberg.org/mutker/fansim/internal/errors"
)

// Simulator is the synthetic temperature source of one subsystem.
// It is not safe for concurrent use; the control loop owns it.
type Simulator struct {
	index       int
	cfg         Config
	rng         *rand.Rand
	temperature float64
	fanSpeeds   []float64
}

// New returns a simulator whose starting temperature is drawn uniformly from
// [cfg.InitialMin, cfg.InitialMax] using rng.
func New(index int, cfg Config, rng *rand.Rand) *Simulator {
	s := &Simulator{
		index: index,
		cfg:   cfg,
		rng:   rng,
	}
	s.temperature = max(s.uniform(cfg.InitialMin, cfg.InitialMax), cfg.Floor)

	return s
}

// NewSeeded is New with a dedicated source seeded with seed.
func NewSeeded(index int, cfg Config, seed int64) *Simulator {
	return New(index, cfg, rand.New(rand.NewSource(seed)))
}

func (s *Simulator) Index() int {
	return s.index
}

// Temperature returns the current temperature without advancing the model.
func (s *Simulator) Temperature() float64 {
	return s.temperature
}

// FanSpeeds returns a copy of the last vector passed to SetFanSpeeds, or nil.
func (s *Simulator) FanSpeeds() []float64 {
	if s.fanSpeeds == nil {
		return nil
	}

	speeds := make([]float64, len(s.fanSpeeds))
	copy(speeds, s.fanSpeeds)

	return speeds
}

// SetFanSpeeds replaces the commanded fan speeds used by the next Step. A nil
// vector returns the simulator to idle.
func (s *Simulator) SetFanSpeeds(speeds []float64) error {
	if speeds == nil {
		s.fanSpeeds = nil
		return nil
	}

	for i, v := range speeds {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New().WithData(ErrInvalidFanSpeeds, struct {
				Subsystem int
				Fan       int
				Speed     float64
			}{
				Subsystem: s.index,
				Fan:       i,
				Speed:     v,
			})
		}
	}

	s.fanSpeeds = make([]float64, len(speeds))
	copy(s.fanSpeeds, speeds)

	return nil
}

// Step advances the model by one tick and returns the new temperature.
// Before any fan speeds are set the temperature does not change.
func (s *Simulator) Step() float64 {
	if s.fanSpeeds == nil {
		return s.temperature
	}

	cooling := mean(s.fanSpeeds) / s.cfg.CoolingScale
	s.temperature -= cooling * s.cfg.StepDuration

	if s.rng.Float64() < s.cfg.SpikeProbability {
		s.temperature += s.uniform(s.cfg.SpikeMin, s.cfg.SpikeMax)
	}

	s.temperature = max(s.temperature, s.cfg.Floor)

	return s.temperature
}

func (s *Simulator) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}
