package thermal

import "codeberg.org/mutker/fansim/internal/errors"

const (
	ErrInvalidModel     = errors.ErrInvalidConfig
	ErrInvalidFanSpeeds = errors.ErrInvalidInput
)
