package control_test

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/fansim/internal/control"
	"codeberg.org/mutker/fansim/internal/errors"
	"codeberg.org/mutker/fansim/internal/logger"
	"codeberg.org/mutker/fansim/internal/thermal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newLoop(t *testing.T, opts ...control.Option) (*control.Loop, *fakeClock, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer
	clock := newFakeClock()
	opts = append([]control.Option{
		control.WithLogger(logger.New(&buf)),
		control.WithClock(clock.Now),
		control.WithSeed(1),
	}, opts...)

	l, err := control.New(opts...)
	require.NoError(t, err)

	return l, clock, &buf
}

func mockFactory(subsystems ...control.Subsystem) control.Option {
	return control.WithSubsystemFactory(func(index int) control.Subsystem {
		return subsystems[index]
	})
}

func TestTickWhileIdle(t *testing.T) {
	l, _, buf := newLoop(t)

	err := l.Tick()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrNotTracking))

	assert.Equal(t, control.StateIdle, l.State())
	assert.Empty(t, l.SessionID())
	assert.Zero(t, l.Cycles())
	assert.Nil(t, l.Entries())
	temps, speeds := l.CurrentData()
	assert.Nil(t, temps)
	assert.Nil(t, speeds)
	_, ok := l.ExportRows()
	assert.False(t, ok)

	assert.Contains(t, buf.String(), `"error_code":"not_tracking"`)
}

func TestConfigureValidation(t *testing.T) {
	tests := []struct {
		name       string
		fans       int
		subsystems int
		maxRPMs    []float64
		code       errors.ErrorCode
	}{
		{name: "rpm list shorter than fan count", fans: 3, subsystems: 2, maxRPMs: []float64{1000, 2000}, code: errors.ErrConfigMismatch},
		{name: "rpm list longer than fan count", fans: 1, subsystems: 2, maxRPMs: []float64{1000, 2000}, code: errors.ErrConfigMismatch},
		{name: "no fans", fans: 0, subsystems: 2, maxRPMs: nil, code: errors.ErrInvalidConfig},
		{name: "too many fans", fans: 21, subsystems: 2, maxRPMs: make([]float64, 21), code: errors.ErrInvalidConfig},
		{name: "no subsystems", fans: 1, subsystems: 0, maxRPMs: []float64{1000}, code: errors.ErrInvalidConfig},
		{name: "too many subsystems", fans: 1, subsystems: 21, maxRPMs: []float64{1000}, code: errors.ErrInvalidConfig},
		{name: "rpm out of range", fans: 2, subsystems: 1, maxRPMs: []float64{1000, 10001}, code: errors.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, _, _ := newLoop(t)

			err := l.Configure(tt.fans, tt.subsystems, tt.maxRPMs)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
			assert.Equal(t, control.StateIdle, l.State())
			assert.Empty(t, l.SessionID())
		})
	}
}

func TestConfigureTwice(t *testing.T) {
	l, _, _ := newLoop(t)

	require.NoError(t, l.Configure(2, 2, []float64{1000, 2000}))
	id := l.SessionID()
	require.NotEmpty(t, id)

	err := l.Configure(1, 1, []float64{500})
	assert.True(t, errors.HasCode(err, errors.ErrAlreadyTracking))
	assert.Equal(t, id, l.SessionID())
	assert.Equal(t, []float64{1000, 2000}, l.MaxRPMs())
}

func TestDecimation(t *testing.T) {
	ctrl := gomock.NewController(t)
	first := NewMockSubsystem(ctrl)
	second := NewMockSubsystem(ctrl)

	l, clock, _ := newLoop(t, control.WithDecimation(3), mockFactory(first, second))
	require.NoError(t, l.Configure(2, 2, []float64{1000, 2000}))

	first.EXPECT().Step().Return(30.0, nil).Times(3)
	second.EXPECT().Step().Return(50.0, nil).Times(3)
	first.EXPECT().SetFanSpeeds([]float64{600, 1200}).Return(nil).Times(1)
	second.EXPECT().SetFanSpeeds([]float64{600, 1200}).Return(nil).Times(1)

	for i := 0; i < 2; i++ {
		clock.Advance(10 * time.Millisecond)
		require.NoError(t, l.Tick())
		assert.Empty(t, l.Entries(), "no control cycle before the third tick")
	}

	clock.Advance(10 * time.Millisecond)
	require.NoError(t, l.Tick())

	entries := l.Entries()
	require.Len(t, entries, 1)
	assert.InDelta(t, 0.03, entries[0].Elapsed, 1e-9)
	assert.Equal(t, []float64{30, 50}, entries[0].Temperatures)
	assert.Equal(t, []float64{600, 1200}, entries[0].Speeds)
	assert.Equal(t, uint64(1), l.Cycles())

	temps, speeds := l.CurrentData()
	assert.Equal(t, []float64{30, 50}, temps)
	assert.Equal(t, []float64{600, 1200}, speeds)
}

func TestCurrentDataBeforeFirstCycle(t *testing.T) {
	l, _, _ := newLoop(t)
	require.NoError(t, l.Configure(2, 3, []float64{1000, 2000}))

	temps, speeds := l.CurrentData()
	assert.Equal(t, []float64{0, 0, 0}, temps)
	assert.Equal(t, []float64{0, 0}, speeds)
}

func TestFailedCycleLeavesStateUntouched(t *testing.T) {
	ctrl := gomock.NewController(t)
	sub := NewMockSubsystem(ctrl)

	l, clock, buf := newLoop(t, control.WithDecimation(1), mockFactory(sub))
	require.NoError(t, l.Configure(1, 1, []float64{1000}))

	gomock.InOrder(
		sub.EXPECT().Step().Return(75.0, nil),
		sub.EXPECT().SetFanSpeeds([]float64{1000}).Return(nil),
		sub.EXPECT().Step().Return(math.NaN(), nil),
		sub.EXPECT().Step().Return(25.0, nil),
		sub.EXPECT().SetFanSpeeds([]float64{200}).Return(nil),
	)

	clock.Advance(100 * time.Millisecond)
	require.NoError(t, l.Tick())

	clock.Advance(100 * time.Millisecond)
	err := l.Tick()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrTickFailed))
	assert.True(t, errors.HasCode(err, errors.ErrInvalidInput))
	assert.Contains(t, buf.String(), `"error_code":"tick_failed"`)

	assert.Len(t, l.Entries(), 1)
	temps, speeds := l.CurrentData()
	assert.Equal(t, []float64{75}, temps)
	assert.Equal(t, []float64{1000}, speeds)
	assert.Equal(t, control.StateTracking, l.State())

	clock.Advance(100 * time.Millisecond)
	require.NoError(t, l.Tick(), "tracking continues after a failed cycle")
	assert.Len(t, l.Entries(), 2)
	assert.Equal(t, uint64(2), l.Cycles())
}

func TestOutOfOrderClockSkipsCycle(t *testing.T) {
	ctrl := gomock.NewController(t)
	sub := NewMockSubsystem(ctrl)
	sub.EXPECT().Step().Return(40.0, nil).Times(2)
	sub.EXPECT().SetFanSpeeds(gomock.Any()).Return(nil).Times(1)

	l, _, _ := newLoop(t, control.WithDecimation(1), mockFactory(sub))
	require.NoError(t, l.Configure(1, 1, []float64{1000}))

	require.NoError(t, l.Tick())
	// clock did not move: same elapsed time as the previous cycle
	err := l.Tick()
	assert.True(t, errors.HasCode(err, errors.ErrOutOfOrderTime))
	assert.Len(t, l.Entries(), 1)
}

func TestSubsystemRejectingSpeedsFailsCycle(t *testing.T) {
	ctrl := gomock.NewController(t)
	first := NewMockSubsystem(ctrl)
	second := NewMockSubsystem(ctrl)
	rejected := errors.New().New(errors.ErrInvalidInput)

	gomock.InOrder(
		// first cycle: second subsystem rejects, first is returned to idle
		first.EXPECT().Step().Return(25.0, nil),
		second.EXPECT().Step().Return(25.0, nil),
		first.EXPECT().SetFanSpeeds([]float64{200}).Return(nil),
		second.EXPECT().SetFanSpeeds([]float64{200}).Return(rejected),
		first.EXPECT().SetFanSpeeds(gomock.Nil()).Return(nil),

		// second cycle succeeds
		first.EXPECT().Step().Return(75.0, nil),
		second.EXPECT().Step().Return(75.0, nil),
		first.EXPECT().SetFanSpeeds([]float64{1000}).Return(nil),
		second.EXPECT().SetFanSpeeds([]float64{1000}).Return(nil),

		// third cycle: rejection restores the previous speeds
		first.EXPECT().Step().Return(25.0, nil),
		second.EXPECT().Step().Return(25.0, nil),
		first.EXPECT().SetFanSpeeds([]float64{200}).Return(nil),
		second.EXPECT().SetFanSpeeds([]float64{200}).Return(rejected),
		first.EXPECT().SetFanSpeeds([]float64{1000}).Return(nil),
	)

	l, clock, _ := newLoop(t, control.WithDecimation(1), mockFactory(first, second))
	require.NoError(t, l.Configure(1, 2, []float64{1000}))

	clock.Advance(time.Second)
	err := l.Tick()
	assert.True(t, errors.HasCode(err, errors.ErrTickFailed))
	assert.Empty(t, l.Entries())
	assert.Zero(t, l.Cycles())
	temps, speeds := l.CurrentData()
	assert.Equal(t, []float64{0, 0}, temps)
	assert.Equal(t, []float64{0}, speeds)

	clock.Advance(time.Second)
	require.NoError(t, l.Tick())

	clock.Advance(time.Second)
	err = l.Tick()
	assert.True(t, errors.HasCode(err, errors.ErrTickFailed))

	entries := l.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, uint64(1), l.Cycles())
	temps, speeds = l.CurrentData()
	assert.Equal(t, []float64{75, 75}, temps)
	assert.Equal(t, []float64{1000}, speeds)
	assert.Equal(t, entries[0].Temperatures, temps)
	assert.Equal(t, entries[0].Speeds, speeds)
}

func TestSubsystemStepErrorSkipsTick(t *testing.T) {
	ctrl := gomock.NewController(t)
	sub := NewMockSubsystem(ctrl)

	gomock.InOrder(
		sub.EXPECT().Step().Return(0.0, fmt.Errorf("sensor fault")),
		sub.EXPECT().Step().Return(30.0, nil),
		sub.EXPECT().Step().Return(30.0, nil),
		sub.EXPECT().SetFanSpeeds(gomock.Any()).Return(nil),
	)

	l, clock, buf := newLoop(t, control.WithDecimation(2), mockFactory(sub))
	require.NoError(t, l.Configure(1, 1, []float64{1000}))

	clock.Advance(time.Second)
	err := l.Tick()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrTickFailed))
	assert.True(t, errors.HasCode(err, errors.ErrOperationFailed))
	assert.Contains(t, err.Error(), "sensor fault")
	assert.Contains(t, buf.String(), "Tick skipped")
	assert.Equal(t, control.StateTracking, l.State())

	// the skipped tick does not count towards the decimation
	clock.Advance(time.Second)
	require.NoError(t, l.Tick())
	assert.Zero(t, l.Cycles())
	clock.Advance(time.Second)
	require.NoError(t, l.Tick())
	assert.Equal(t, uint64(1), l.Cycles())
}

type panickingSubsystem struct{}

func (panickingSubsystem) Step() (float64, error) { panic("sensor fault") }

func (panickingSubsystem) SetFanSpeeds([]float64) error { return nil }

func TestSubsystemPanicSkipsTick(t *testing.T) {
	l, _, _ := newLoop(t, control.WithDecimation(1), mockFactory(panickingSubsystem{}))
	require.NoError(t, l.Configure(1, 1, []float64{1000}))

	for i := 0; i < 3; i++ {
		var err error
		require.NotPanics(t, func() { err = l.Tick() })
		assert.True(t, errors.HasCode(err, errors.ErrTickFailed))
		assert.Contains(t, err.Error(), "sensor fault")
	}

	assert.Equal(t, control.StateTracking, l.State())
	assert.Empty(t, l.Entries())
}

func TestResetReturnsToIdle(t *testing.T) {
	l, clock, _ := newLoop(t, control.WithDecimation(1))
	require.NoError(t, l.Configure(2, 2, []float64{1000, 2000}))
	first := l.SessionID()

	for i := 0; i < 5; i++ {
		clock.Advance(100 * time.Millisecond)
		require.NoError(t, l.Tick())
	}
	require.Len(t, l.Entries(), 5)

	l.Reset()
	assert.Equal(t, control.StateIdle, l.State())
	assert.Nil(t, l.Entries())
	assert.Nil(t, l.MaxRPMs())
	assert.Equal(t, "00:00:00", l.ElapsedTime())
	assert.Zero(t, l.Cycles())
	_, ok := l.ExportRows()
	assert.False(t, ok)

	// idle reset is a no-op
	l.Reset()

	require.NoError(t, l.Configure(1, 1, []float64{500}))
	assert.NotEqual(t, first, l.SessionID())
	assert.Empty(t, l.Entries())
}

func TestElapsedTime(t *testing.T) {
	l, clock, _ := newLoop(t)
	assert.Equal(t, "00:00:00", l.ElapsedTime())

	require.NoError(t, l.Configure(1, 1, []float64{1000}))
	clock.Advance(3725*time.Second + 900*time.Millisecond)
	assert.Equal(t, "01:02:05", l.ElapsedTime())
}

func TestSimulatedSession(t *testing.T) {
	l, clock, _ := newLoop(t)
	maxRPMs := []float64{3000, 2500, 3500}
	require.NoError(t, l.Configure(3, 5, maxRPMs))

	for i := 0; i < 3000; i++ {
		clock.Advance(10 * time.Millisecond)
		require.NoError(t, l.Tick())
	}

	entries := l.Entries()
	require.Len(t, entries, 300)
	for i, e := range entries {
		require.Len(t, e.Temperatures, 5)
		require.Len(t, e.Speeds, 3)
		if i > 0 {
			require.Greater(t, e.Elapsed, entries[i-1].Elapsed)
		}
		for _, temp := range e.Temperatures {
			require.GreaterOrEqual(t, temp, thermal.DefaultFloor)
		}
		for j, speed := range e.Speeds {
			require.LessOrEqual(t, speed, maxRPMs[j])
			require.GreaterOrEqual(t, speed, 0.2*maxRPMs[j]-1e-9)
		}
	}
	assert.InDelta(t, 30.0, entries[len(entries)-1].Elapsed, 1e-6)

	table, ok := l.ExportRows()
	require.True(t, ok)
	assert.Len(t, table.Header, 1+5+3)
	assert.Len(t, table.Rows, 300)
	assert.Equal(t, "00:00:30.000", table.Rows[len(table.Rows)-1].Time)
}

func TestWindowAppliesToSession(t *testing.T) {
	l, clock, _ := newLoop(t, control.WithDecimation(1), control.WithWindow(1))
	require.NoError(t, l.Configure(1, 1, []float64{1000}))

	for i := 0; i < 50; i++ {
		clock.Advance(100 * time.Millisecond)
		require.NoError(t, l.Tick())
	}

	entries := l.Entries()
	latest := entries[len(entries)-1].Elapsed
	for _, e := range entries {
		assert.Greater(t, e.Elapsed, latest-1)
	}
	assert.LessOrEqual(t, len(entries), 10)
}

func TestSameSeedSameSession(t *testing.T) {
	run := func() [][]float64 {
		l, clock, _ := newLoop(t, control.WithSeed(42))
		require.NoError(t, l.Configure(2, 4, []float64{2000, 4000}))
		for i := 0; i < 500; i++ {
			clock.Advance(10 * time.Millisecond)
			require.NoError(t, l.Tick())
		}

		var temps [][]float64
		for _, e := range l.Entries() {
			temps = append(temps, e.Temperatures)
		}
		return temps
	}

	assert.Equal(t, run(), run())
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	_, err := control.New(control.WithDecimation(0))
	assert.True(t, errors.HasCode(err, errors.ErrInvalidConfig))

	_, err = control.New(control.WithWindow(0))
	assert.True(t, errors.HasCode(err, errors.ErrInvalidConfig))

	bad := thermal.DefaultConfig()
	bad.CoolingScale = 0
	_, err = control.New(control.WithThermalConfig(bad))
	assert.True(t, errors.HasCode(err, errors.ErrInvalidConfig))
}

func TestRun(t *testing.T) {
	var buf bytes.Buffer
	l, err := control.New(
		control.WithLogger(logger.New(&buf)),
		control.WithDecimation(1),
		control.WithSeed(3),
	)
	require.NoError(t, err)
	require.NoError(t, l.Configure(2, 2, []float64{1000, 2000}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- l.Run(ctx, time.Millisecond)
	}()

	require.Eventually(t, func() bool { return l.Cycles() >= 3 }, 2*time.Second, time.Millisecond)

	// readers may run concurrently with ticks
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				l.CurrentData()
				l.Entries()
				l.ElapsedTime()
			}
		}()
	}
	wg.Wait()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunRejectsInvalidInterval(t *testing.T) {
	l, _, _ := newLoop(t)
	err := l.Run(context.Background(), 0)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidInterval))
}
