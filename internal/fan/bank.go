// Package fan holds the fan bank: per-fan maximum RPM and commanded speeds.
package fan

import (
	"math"
	"sync"

	"codeberg.org/mutker/fansim/internal/errors"
)

// Bank is a fixed set of fans. Maximum RPMs never change after NewBank;
// commanded speeds are replaced wholesale by Set.
type Bank struct {
	maxRPMs    []float64
	speeds     []float64
	lastSpeeds []float64
	mu         sync.RWMutex
}

var _ Controller = (*Bank)(nil)

// NewBank validates maxRPMs and returns a bank with all fans stopped.
func NewBank(maxRPMs []float64) (*Bank, error) {
	errFactory := errors.New()

	if len(maxRPMs) < MinFans || len(maxRPMs) > MaxFans {
		return nil, errFactory.WithData(ErrInvalidFanCount, struct {
			Field string
			Value int
			Min   int
			Max   int
		}{
			Field: "fan_count",
			Value: len(maxRPMs),
			Min:   MinFans,
			Max:   MaxFans,
		})
	}

	for i, rpm := range maxRPMs {
		if math.IsNaN(rpm) || rpm < MinRPM || rpm > MaxRPM {
			return nil, errFactory.WithData(ErrInvalidMaxRPM, struct {
				Field string
				Fan   int
				Value float64
			}{
				Field: "max_rpms",
				Fan:   i,
				Value: rpm,
			})
		}
	}

	b := &Bank{
		maxRPMs:    make([]float64, len(maxRPMs)),
		speeds:     make([]float64, len(maxRPMs)),
		lastSpeeds: make([]float64, len(maxRPMs)),
	}
	copy(b.maxRPMs, maxRPMs)

	return b, nil
}

func (b *Bank) Count() int {
	return len(b.maxRPMs)
}

func (b *Bank) MaxRPMs() []float64 {
	return clone(b.maxRPMs)
}

func (b *Bank) Speeds() []float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return clone(b.speeds)
}

// LastSpeeds returns the speeds that were commanded before the latest Set.
func (b *Bank) LastSpeeds() []float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return clone(b.lastSpeeds)
}

// Set replaces the commanded speeds. Every speed must lie in [0, max RPM].
func (b *Bank) Set(speeds []float64) error {
	if err := b.Validate(speeds); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	copy(b.lastSpeeds, b.speeds)
	copy(b.speeds, speeds)

	return nil
}

// Validate checks speeds against the bank without changing it.
func (b *Bank) Validate(speeds []float64) error {
	errFactory := errors.New()

	if len(speeds) != len(b.maxRPMs) {
		return errFactory.WithData(ErrSpeedCount, struct {
			Expected int
			Actual   int
		}{
			Expected: len(b.maxRPMs),
			Actual:   len(speeds),
		})
	}

	for i, speed := range speeds {
		if math.IsNaN(speed) || speed < 0 || speed > b.maxRPMs[i] {
			return errFactory.WithData(ErrSpeedOutOfRange, struct {
				Fan   int
				Speed float64
				Max   float64
			}{
				Fan:   i,
				Speed: speed,
				Max:   b.maxRPMs[i],
			})
		}
	}

	return nil
}

func clone(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)

	return out
}
