package history

import "codeberg.org/mutker/fansim/internal/errors"

const (
	ErrOutOfOrderTime = errors.ErrOutOfOrderTime
	ErrVectorLength   = errors.ErrInvalidInput
	ErrInvalidWindow  = errors.ErrInvalidConfig
	ErrInvalidElapsed = errors.ErrInvalidInput
)
