package control

// Subsystem is a temperature source that reacts to commanded fan speeds.
// The production implementation wraps *thermal.Simulator.
type Subsystem interface {
	// Step advances the subsystem by one tick and returns its temperature.
	Step() (float64, error)
	// SetFanSpeeds replaces the fan speeds used by subsequent steps. nil
	// clears them.
	SetFanSpeeds(speeds []float64) error
}

// SubsystemFactory builds the subsystem with the given index when a session
// is configured.
type SubsystemFactory func(index int) Subsystem

// State is the control loop's session state.
type State int

const (
	// StateIdle means no session: no simulators, bank or log.
	StateIdle State = iota
	// StateTracking means a session is live and ticks advance it.
	StateTracking
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTracking:
		return "tracking"
	default:
		return "unknown"
	}
}
