package errors_test

import (
	"fmt"
	"testing"

	"codeberg.org/mutker/fansim/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	errFactory := errors.New()

	err := errFactory.New(errors.ErrOutOfOrderTime)
	assert.Equal(t, "Elapsed time must be strictly increasing", err.Error())

	err = errFactory.WithMessage(errors.ErrInvalidInput, "empty temperature vector")
	assert.Equal(t, "empty temperature vector", err.Error())

	err = errFactory.WithData(errors.ErrConfigMismatch, "fan_count=3 max_rpms=2")
	assert.Equal(t, "Fan count does not match the number of max RPM values: fan_count=3 max_rpms=2", err.Error())

	err = errFactory.New(errors.ErrorCode("custom_code"))
	assert.Equal(t, "custom_code", err.Error())
}

func TestWrapKeepsCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := errors.New().Wrap(errors.ErrExportFailed, cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, "Failed to export log: disk full", err.Error())
	assert.Equal(t, errors.ErrExportFailed, err.Code())
}

func TestHasCode(t *testing.T) {
	errFactory := errors.New()
	inner := errFactory.New(errors.ErrOutOfOrderTime)
	outer := errFactory.Wrap(errors.ErrTickFailed, inner)

	assert.True(t, errors.HasCode(outer, errors.ErrTickFailed))
	assert.True(t, errors.HasCode(outer, errors.ErrOutOfOrderTime))
	assert.False(t, errors.HasCode(outer, errors.ErrInvalidInput))
	assert.False(t, errors.HasCode(fmt.Errorf("plain"), errors.ErrInternal))
	assert.False(t, errors.HasCode(nil, errors.ErrInternal))

	wrapped := fmt.Errorf("context: %w", outer)
	assert.True(t, errors.HasCode(wrapped, errors.ErrOutOfOrderTime))

	code, ok := errors.CodeOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, errors.ErrTickFailed, code)
}

func TestEveryCodeHasMessage(t *testing.T) {
	codes := []errors.ErrorCode{
		errors.ErrInternal, errors.ErrInvalidArgument,
		errors.ErrInvalidConfig, errors.ErrBindFlags, errors.ErrReadConfig,
		errors.ErrInvalidInterval, errors.ErrConfigMismatch, errors.ErrInvalidLogLevel,
		errors.ErrAlreadyRunning,
		errors.ErrInvalidInput, errors.ErrOutOfOrderTime, errors.ErrNotTracking,
		errors.ErrAlreadyTracking, errors.ErrTickFailed, errors.ErrMainLoop,
		errors.ErrExportUnavailable, errors.ErrExportFailed, errors.ErrOperationFailed,
	}

	for _, code := range codes {
		assert.NotEqual(t, string(code), errors.GetErrorMessage(code), code)
	}
}
