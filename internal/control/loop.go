// Package control runs the fan-control loop: it steps the subsystem
// simulators, derives fan speeds from the hottest subsystem and records both
// in the rolling log.
package control

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"codeberg.org/mutker/fansim/internal/errors"
	"codeberg.org/mutker/fansim/internal/fan"
	"codeberg.org/mutker/fansim/internal/history"
	"codeberg.org/mutker/fansim/internal/logger"
	"codeberg.org/mutker/fansim/internal/policy"
	"codeberg.org/mutker/fansim/internal/thermal"
	"github.com/google/uuid"
)

const (
	MinSubsystems = 1
	MaxSubsystems = 20
)

// Loop owns every piece of session state. All methods are safe for
// concurrent use; ticks are serialized.
type Loop struct {
	mu sync.Mutex

	logger     logger.Logger
	now        func() time.Time
	decimation int
	window     float64
	thermalCfg thermal.Config
	seed       int64
	factory    SubsystemFactory

	state        State
	sessionID    string
	origin       time.Time
	bank         *fan.Bank
	policy       policy.Policy
	subsystems   []Subsystem
	history      *history.Log
	temperatures []float64
	ticks        int
	cycles       uint64
}

// New returns an idle loop.
func New(opts ...Option) (*Loop, error) {
	l := &Loop{
		logger:     logger.Default(),
		now:        time.Now,
		decimation: DefaultDecimation,
		window:     history.DefaultWindow,
		thermalCfg: thermal.DefaultConfig(),
	}

	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}

	return l, nil
}

// Configure starts a tracking session. On error the loop stays idle.
func (l *Loop) Configure(fanCount, subsystemCount int, maxRPMs []float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	errFactory := errors.New()

	if l.state == StateTracking {
		return errFactory.WithData(errors.ErrAlreadyTracking, l.sessionID)
	}

	if fanCount < fan.MinFans || fanCount > fan.MaxFans {
		return errFactory.WithData(errors.ErrInvalidConfig, struct {
			Field string
			Value int
		}{
			Field: "fan_count",
			Value: fanCount,
		})
	}

	if subsystemCount < MinSubsystems || subsystemCount > MaxSubsystems {
		return errFactory.WithData(errors.ErrInvalidConfig, struct {
			Field string
			Value int
		}{
			Field: "subsystem_count",
			Value: subsystemCount,
		})
	}

	if len(maxRPMs) != fanCount {
		return errFactory.WithData(errors.ErrConfigMismatch, struct {
			FanCount int
			MaxRPMs  int
		}{
			FanCount: fanCount,
			MaxRPMs:  len(maxRPMs),
		})
	}

	bank, err := fan.NewBank(maxRPMs)
	if err != nil {
		return err
	}

	log, err := history.New(subsystemCount, fanCount, l.window)
	if err != nil {
		return err
	}

	factory := l.factory
	if factory == nil {
		factory = l.thermalFactory()
	}

	subsystems := make([]Subsystem, subsystemCount)
	for i := range subsystems {
		subsystems[i] = factory(i)
	}

	l.bank = bank
	l.policy = policy.New(fanCount)
	l.subsystems = subsystems
	l.history = log
	l.temperatures = make([]float64, subsystemCount)
	l.ticks = 0
	l.cycles = 0
	l.sessionID = uuid.NewString()
	l.origin = l.now()
	l.state = StateTracking

	l.logger.Info().
		Str("session_id", l.sessionID).
		Int("fans", fanCount).
		Int("subsystems", subsystemCount).
		Floats64("max_rpms", bank.MaxRPMs()).
		Int("decimation", l.decimation).
		Msg("Tracking started")

	return nil
}

func (l *Loop) thermalFactory() SubsystemFactory {
	cfg := l.thermalCfg
	seed := l.seed
	if seed == 0 {
		seed = l.now().UnixNano()
	}

	return func(index int) Subsystem {
		return simulated{thermal.NewSeeded(index, cfg, seed+int64(index))}
	}
}

// simulated adapts a thermal simulator, which cannot fail, to Subsystem.
type simulated struct {
	*thermal.Simulator
}

func (s simulated) Step() (float64, error) {
	return s.Simulator.Step(), nil
}

// Tick steps every subsystem and, on every decimation-th call, runs a control
// cycle. Calling Tick while idle changes nothing and returns ErrNotTracking.
// A failing subsystem skips the tick. A failed control cycle leaves bank, log
// and commanded speeds as they were. Both are logged and returned as
// ErrTickFailed; tracking continues.
func (l *Loop) Tick() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	errFactory := errors.New()

	if l.state != StateTracking {
		err := errFactory.New(errors.ErrNotTracking)
		l.logger.WarnWithCode(err).Msg("Tick ignored")
		return err
	}

	temperatures := make([]float64, len(l.subsystems))
	for i, s := range l.subsystems {
		t, err := step(i, s)
		if err != nil {
			tickErr := errFactory.Wrap(errors.ErrTickFailed, err)
			l.logger.ErrorWithCode(tickErr).
				Str("session_id", l.sessionID).
				Int("subsystem", i).
				Msg("Tick skipped")
			return tickErr
		}
		temperatures[i] = t
	}

	l.ticks++
	if l.ticks < l.decimation {
		return nil
	}
	l.ticks = 0

	if err := l.controlCycle(temperatures); err != nil {
		tickErr := errFactory.Wrap(errors.ErrTickFailed, err)
		l.logger.ErrorWithCode(tickErr).
			Str("session_id", l.sessionID).
			Uint64("cycle", l.cycles).
			Msg("Control cycle skipped")
		return tickErr
	}

	return nil
}

// step calls s.Step and turns a panic into an error.
func step(index int, s Subsystem) (t float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New().WithData(errors.ErrOperationFailed, struct {
				Subsystem int
				Panic     string
			}{
				Subsystem: index,
				Panic:     fmt.Sprint(r),
			})
		}
	}()

	t, err = s.Step()
	if err != nil {
		return 0, errors.New().Wrap(errors.ErrOperationFailed, err).WithData(struct {
			Subsystem int
			Error     string
		}{
			Subsystem: index,
			Error:     err.Error(),
		})
	}

	return t, nil
}

func (l *Loop) controlCycle(temperatures []float64) error {
	elapsed := l.now().Sub(l.origin).Seconds()

	speeds, err := l.policy.ComputeSpeeds(temperatures, l.bank.MaxRPMs())
	if err != nil {
		return err
	}

	if err := l.bank.Validate(speeds); err != nil {
		return err
	}

	if err := l.history.Check(elapsed, temperatures, speeds); err != nil {
		return err
	}

	if err := l.pushSpeeds(speeds); err != nil {
		return err
	}

	// Check and Validate passed, so neither can fail now.
	if err := l.history.Append(elapsed, temperatures, speeds); err != nil {
		return err
	}
	if err := l.bank.Set(speeds); err != nil {
		return err
	}

	l.temperatures = temperatures
	l.cycles++

	l.logger.Debug().
		Uint64("cycle", l.cycles).
		Float64("elapsed", elapsed).
		Float64("max_temperature", slices.Max(temperatures)).
		Floats64("temperatures", temperatures).
		Floats64("fan_speeds", speeds).
		Floats64("previous_fan_speeds", l.bank.LastSpeeds()).
		Msg("")

	return nil
}

// pushSpeeds hands speeds to every subsystem. If one rejects them, the
// subsystems already updated get the previous speeds back (nil before the
// first cycle).
func (l *Loop) pushSpeeds(speeds []float64) error {
	var previous []float64
	if l.cycles > 0 {
		previous = l.bank.Speeds()
	}

	for i, s := range l.subsystems {
		err := s.SetFanSpeeds(speeds)
		if err == nil {
			continue
		}

		for j := 0; j < i; j++ {
			if rerr := l.subsystems[j].SetFanSpeeds(previous); rerr != nil {
				l.logger.Warn().
					Err(rerr).
					Int("subsystem", j).
					Msg("Failed to restore fan speeds")
			}
		}

		return errors.New().Wrap(errors.ErrOperationFailed, err).WithData(struct {
			Subsystem int
			Error     string
		}{
			Subsystem: i,
			Error:     err.Error(),
		})
	}

	return nil
}

// Reset ends the session and drops all session state.
func (l *Loop) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateIdle {
		l.logger.Debug().Msg("Reset ignored: control loop is idle")
		return
	}

	l.logger.Info().
		Str("session_id", l.sessionID).
		Uint64("cycles", l.cycles).
		Msg("Tracking stopped")

	l.state = StateIdle
	l.sessionID = ""
	l.origin = time.Time{}
	l.bank = nil
	l.policy = policy.Policy{}
	l.subsystems = nil
	l.history = nil
	l.temperatures = nil
	l.ticks = 0
	l.cycles = 0
}

// Run calls Tick every interval until ctx is done. Tick errors are logged by
// Tick and do not stop the loop.
func (l *Loop) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.New().WithData(errors.ErrInvalidInterval, interval.String())
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_ = l.Tick()
		}
	}
}

// State returns the current session state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.state
}

// SessionID returns the ID assigned by Configure, or "" while idle.
func (l *Loop) SessionID() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.sessionID
}

// Cycles returns the number of completed control cycles in this session.
func (l *Loop) Cycles() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.cycles
}

// CurrentData returns copies of the temperatures and fan speeds of the latest
// control cycle. Both are nil while idle; before the first cycle they are zero.
func (l *Loop) CurrentData() (temperatures, speeds []float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateTracking {
		return nil, nil
	}

	return slices.Clone(l.temperatures), l.bank.Speeds()
}

// MaxRPMs returns the configured per-fan maximum, or nil while idle.
func (l *Loop) MaxRPMs() []float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.bank == nil {
		return nil
	}

	return l.bank.MaxRPMs()
}

// Entries returns a snapshot of the rolling log.
func (l *Loop) Entries() []history.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.history == nil {
		return nil
	}

	return l.history.Entries()
}

// ExportRows returns the log as a table; ok is false when there is no data.
func (l *Loop) ExportRows() (history.Table, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.history == nil {
		return history.Table{}, false
	}

	return l.history.ExportRows()
}

// ElapsedTime returns the session clock as HH:MM:SS.
func (l *Loop) ElapsedTime() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateTracking {
		return history.FormatClock(0)
	}

	return history.FormatClock(int64(math.Floor(l.now().Sub(l.origin).Seconds())))
}
