// Package policy maps the worst-case subsystem temperature to fan speeds.
package policy

import (
	"math"

	"codeberg.org/mutker/fansim/internal/errors"
)

const (
	// MinTemperature is the temperature (°C) at or below which fans run at MinPercentage.
	MinTemperature = 25.0
	// MaxTemperature is the temperature (°C) at or above which fans run at MaxPercentage.
	MaxTemperature = 75.0

	MinPercentage = 0.20
	MaxPercentage = 1.00
)

// Policy computes fan speeds for a fan bank of fixed size.
type Policy struct {
	fanCount int
}

// New returns a Policy for fanCount fans.
func New(fanCount int) Policy {
	return Policy{fanCount: fanCount}
}

// FanCount returns the number of fans the policy was built for.
func (p Policy) FanCount() int {
	return p.fanCount
}

// ComputeSpeeds returns maxRPMs[i] scaled by the percentage for the hottest
// temperature. The inputs are not modified.
func (p Policy) ComputeSpeeds(temperatures, maxRPMs []float64) ([]float64, error) {
	errFactory := errors.New()

	if len(temperatures) == 0 {
		return nil, errFactory.WithMessage(errors.ErrInvalidInput, "temperature vector is empty")
	}

	if len(maxRPMs) != p.fanCount {
		return nil, errFactory.WithData(errors.ErrInvalidInput, struct {
			Field    string
			Expected int
			Actual   int
		}{
			Field:    "max_rpms",
			Expected: p.fanCount,
			Actual:   len(maxRPMs),
		})
	}

	hottest, err := maxTemperature(temperatures)
	if err != nil {
		return nil, err
	}

	pct := Percentage(hottest)
	speeds := make([]float64, len(maxRPMs))
	for i, maxRPM := range maxRPMs {
		speeds[i] = maxRPM * pct
	}

	return speeds, nil
}

// Percentage returns the fraction of maximum RPM to command at temperature t.
// Linear between (MinTemperature, MinPercentage) and (MaxTemperature, MaxPercentage).
func Percentage(t float64) float64 {
	if t <= MinTemperature {
		return MinPercentage
	}

	if t >= MaxTemperature {
		return MaxPercentage
	}

	const span = MaxTemperature - MinTemperature

	return (MinPercentage*span + (t-MinTemperature)*(MaxPercentage-MinPercentage)) / span
}

func maxTemperature(temperatures []float64) (float64, error) {
	hottest := math.Inf(-1)
	for i, t := range temperatures {
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, errors.New().WithData(errors.ErrInvalidInput, struct {
				Field string
				Index int
				Value float64
			}{
				Field: "temperatures",
				Index: i,
				Value: t,
			})
		}
		hottest = max(hottest, t)
	}

	return hottest, nil
}
