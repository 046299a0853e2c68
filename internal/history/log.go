// Package history keeps the rolling log of paired temperature and fan-speed
// snapshots.
package history

import (
	"math"
	"slices"
	"sort"

	"codeberg.org/mutker/fansim/internal/errors"
)

// DefaultWindow is the retention window in seconds.
const DefaultWindow = 300.0

// Entry is one control cycle: both vectors share the elapsed timestamp.
type Entry struct {
	Elapsed      float64
	Temperatures []float64
	Speeds       []float64
}

func (e Entry) clone() Entry {
	return Entry{
		Elapsed:      e.Elapsed,
		Temperatures: slices.Clone(e.Temperatures),
		Speeds:       slices.Clone(e.Speeds),
	}
}

// Log is an append-only, time-windowed store of entries. It is not safe for
// concurrent use; the control loop serializes access.
type Log struct {
	subsystems int
	fans       int
	window     float64
	entries    []Entry
}

// New returns an empty log for vectors of the given lengths.
func New(subsystems, fans int, window float64) (*Log, error) {
	errFactory := errors.New()

	if subsystems < 1 || fans < 1 {
		return nil, errFactory.WithData(ErrVectorLength, struct {
			Subsystems int
			Fans       int
		}{
			Subsystems: subsystems,
			Fans:       fans,
		})
	}

	if !(window > 0) || math.IsInf(window, 0) {
		return nil, errFactory.WithData(ErrInvalidWindow, struct {
			Field string
			Value float64
		}{
			Field: "window",
			Value: window,
		})
	}

	return &Log{
		subsystems: subsystems,
		fans:       fans,
		window:     window,
	}, nil
}

func (l *Log) Subsystems() int { return l.subsystems }
func (l *Log) Fans() int       { return l.fans }
func (l *Log) Window() float64 { return l.window }
func (l *Log) Len() int        { return len(l.entries) }

// Check reports the error Append would return for these arguments without
// modifying the log.
func (l *Log) Check(elapsed float64, temperatures, speeds []float64) error {
	errFactory := errors.New()

	if len(temperatures) != l.subsystems || len(speeds) != l.fans {
		return errFactory.WithData(ErrVectorLength, struct {
			Temperatures int
			Speeds       int
			Subsystems   int
			Fans         int
		}{
			Temperatures: len(temperatures),
			Speeds:       len(speeds),
			Subsystems:   l.subsystems,
			Fans:         l.fans,
		})
	}

	if math.IsNaN(elapsed) || math.IsInf(elapsed, 0) {
		return errFactory.WithData(ErrInvalidElapsed, struct {
			Field string
			Value float64
		}{
			Field: "elapsed",
			Value: elapsed,
		})
	}

	if n := len(l.entries); n > 0 && elapsed <= l.entries[n-1].Elapsed {
		return errFactory.WithData(ErrOutOfOrderTime, struct {
			Previous float64
			Elapsed  float64
		}{
			Previous: l.entries[n-1].Elapsed,
			Elapsed:  elapsed,
		})
	}

	return nil
}

// Append stores copies of both vectors under elapsed and evicts every entry
// with elapsed time <= elapsed - window. Elapsed times must strictly increase.
func (l *Log) Append(elapsed float64, temperatures, speeds []float64) error {
	if err := l.Check(elapsed, temperatures, speeds); err != nil {
		return err
	}

	l.entries = append(l.entries, Entry{
		Elapsed:      elapsed,
		Temperatures: slices.Clone(temperatures),
		Speeds:       slices.Clone(speeds),
	})
	l.evict(elapsed - l.window)

	return nil
}

func (l *Log) evict(cutoff float64) {
	i := sort.Search(len(l.entries), func(i int) bool {
		return l.entries[i].Elapsed > cutoff
	})
	if i > 0 {
		l.entries = slices.Delete(l.entries, 0, i)
	}
}

// Entries returns a copy of the log, oldest first.
func (l *Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.clone()
	}

	return out
}

// Latest returns a copy of the newest entry.
func (l *Log) Latest() (Entry, bool) {
	if len(l.entries) == 0 {
		return Entry{}, false
	}

	return l.entries[len(l.entries)-1].clone(), true
}
