package fan

import "codeberg.org/mutker/fansim/internal/errors"

const (
	ErrInvalidFanCount = errors.ErrInvalidConfig
	ErrInvalidMaxRPM   = errors.ErrInvalidConfig
	ErrSpeedOutOfRange = errors.ErrInvalidInput
	ErrSpeedCount      = errors.ErrInvalidInput
)
