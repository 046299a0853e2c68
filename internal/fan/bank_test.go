package fan_test

import (
	"math"
	"testing"

	"codeberg.org/mutker/fansim/internal/errors"
	"codeberg.org/mutker/fansim/internal/fan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBank(t *testing.T) {
	maxRPMs := []float64{3000, 2500, 3500}
	b, err := fan.NewBank(maxRPMs)
	require.NoError(t, err)

	maxRPMs[0] = 1
	assert.Equal(t, 3, b.Count())
	assert.Equal(t, []float64{3000, 2500, 3500}, b.MaxRPMs())
	assert.Equal(t, []float64{0, 0, 0}, b.Speeds())
	assert.Equal(t, []float64{0, 0, 0}, b.LastSpeeds())
}

func TestNewBankRejectsInvalidConfig(t *testing.T) {
	tooMany := make([]float64, fan.MaxFans+1)
	for i := range tooMany {
		tooMany[i] = 1000
	}

	tests := []struct {
		name    string
		maxRPMs []float64
	}{
		{name: "no fans", maxRPMs: nil},
		{name: "too many fans", maxRPMs: tooMany},
		{name: "rpm below minimum", maxRPMs: []float64{1000, 0}},
		{name: "rpm above maximum", maxRPMs: []float64{10001}},
		{name: "nan rpm", maxRPMs: []float64{math.NaN()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := fan.NewBank(tt.maxRPMs)
			require.Error(t, err)
			assert.Nil(t, b)
			assert.True(t, errors.HasCode(err, errors.ErrInvalidConfig))
		})
	}
}

func TestSetKeepsLastSpeeds(t *testing.T) {
	b, err := fan.NewBank([]float64{1000, 2000})
	require.NoError(t, err)

	require.NoError(t, b.Set([]float64{200, 400}))
	require.NoError(t, b.Set([]float64{500, 1000}))

	assert.Equal(t, []float64{500, 1000}, b.Speeds())
	assert.Equal(t, []float64{200, 400}, b.LastSpeeds())

	speeds := b.Speeds()
	speeds[0] = 0
	assert.Equal(t, []float64{500, 1000}, b.Speeds(), "Speeds must return a copy")
}

func TestSetRejectsInvalidSpeeds(t *testing.T) {
	b, err := fan.NewBank([]float64{1000, 2000})
	require.NoError(t, err)
	require.NoError(t, b.Set([]float64{100, 100}))

	for _, speeds := range [][]float64{
		{100},
		{100, 100, 100},
		{-1, 100},
		{100, 2000.5},
		{math.NaN(), 100},
	} {
		err := b.Set(speeds)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrInvalidInput))
	}

	assert.Equal(t, []float64{100, 100}, b.Speeds())
}
