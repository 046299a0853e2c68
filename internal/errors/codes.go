package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrBindFlags       ErrorCode = "bind_flags_failed"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrInvalidInterval ErrorCode = "invalid_interval"
	ErrConfigMismatch  ErrorCode = "config_mismatch"

	// Logging errors
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Initialization errors
	ErrAlreadyRunning ErrorCode = "already_running"

	// Control loop errors
	ErrInvalidInput    ErrorCode = "invalid_input"
	ErrOutOfOrderTime  ErrorCode = "out_of_order_time"
	ErrNotTracking     ErrorCode = "not_tracking"
	ErrAlreadyTracking ErrorCode = "already_tracking"
	ErrTickFailed      ErrorCode = "tick_failed"
	ErrMainLoop        ErrorCode = "main_loop_failed"

	// Export errors
	ErrExportUnavailable ErrorCode = "export_unavailable"
	ErrExportFailed      ErrorCode = "export_failed"

	// Operation errors
	ErrOperationFailed ErrorCode = "operation_failed"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:          "Internal error occurred",
	ErrInvalidArgument:   "Invalid argument provided",
	ErrInvalidConfig:     "Invalid configuration",
	ErrBindFlags:         "Failed to bind flags",
	ErrReadConfig:        "Failed to read configuration",
	ErrInvalidInterval:   "Invalid interval value",
	ErrConfigMismatch:    "Fan count does not match the number of max RPM values",
	ErrInvalidLogLevel:   "Invalid log level",
	ErrAlreadyRunning:    "Another instance is already running",
	ErrInvalidInput:      "Invalid input",
	ErrOutOfOrderTime:    "Elapsed time must be strictly increasing",
	ErrNotTracking:       "Control loop is not tracking",
	ErrAlreadyTracking:   "Control loop is already tracking",
	ErrTickFailed:        "Control cycle failed",
	ErrMainLoop:          "Error in main loop",
	ErrExportUnavailable: "No data to write",
	ErrExportFailed:      "Failed to export log",
	ErrOperationFailed:   "Operation failed",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
