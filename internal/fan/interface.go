package fan

// Limits for a configurable fan bank.
const (
	MinFans = 1
	MaxFans = 20
	MinRPM  = 1.0
	MaxRPM  = 10000.0
)

// Controller manages the commanded speeds of a fixed set of fans.
type Controller interface {
	Count() int
	MaxRPMs() []float64
	Speeds() []float64
	LastSpeeds() []float64
	Set(speeds []float64) error
	Validate(speeds []float64) error
}
