package errors

// ErrorCode represents a unique identifier for each error type
type ErrorCode string

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrUnavailable     ErrorCode = "service_unavailable"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrMissingConfig   ErrorCode = "missing_configuration"
	ErrBindFlags       ErrorCode = "bind_flags_failed"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrInvalidInterval ErrorCode = "invalid_interval"
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Initialization errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"

	// Device errors. A device that fails login or has no registered
	// collection handler is excluded from scheduling for the process
	// lifetime; these never escape past the per-device task.
	ErrDeviceLogin    ErrorCode = "device_login_failed"
	ErrDeviceExec     ErrorCode = "device_exec_failed"
	ErrUnknownDriver  ErrorCode = "device_unknown_driver"
	ErrDeviceShutdown ErrorCode = "device_shutdown_failed"

	// Collection errors
	ErrNoHandler     ErrorCode = "collector_no_handler"
	ErrCollectFailed ErrorCode = "collector_cycle_failed"
	ErrCollectPanic  ErrorCode = "collector_cycle_panic"

	// Export errors
	ErrExportTransient ErrorCode = "export_transient_failed"
	ErrExportRejected  ErrorCode = "export_rejected"
	ErrExportDropped   ErrorCode = "export_batch_dropped"
	ErrExportInit      ErrorCode = "export_init_failed"
	ErrExportClose     ErrorCode = "export_close_failed"

	// Inventory errors
	ErrInventoryLoad ErrorCode = "inventory_load_failed"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:        "Internal error occurred",
	ErrInvalidArgument: "Invalid argument provided",
	ErrUnavailable:     "Service unavailable",
	ErrInvalidConfig:   "Invalid configuration",
	ErrMissingConfig:   "Missing configuration",
	ErrBindFlags:       "Failed to bind flags",
	ErrReadConfig:      "Failed to read configuration",
	ErrInvalidInterval: "Invalid interval value",
	ErrInvalidLogLevel: "Invalid log level",
	ErrInitFailed:      "Initialization failed",
	ErrShutdownFailed:  "Shutdown failed",
	ErrDeviceLogin:     "Failed to authenticate to device",
	ErrDeviceExec:      "Failed to execute device commands",
	ErrUnknownDriver:   "No device driver registered for OS name",
	ErrDeviceShutdown:  "Failed to close device session",
	ErrNoHandler:       "No collection handler registered for device variant",
	ErrCollectFailed:   "Collection cycle failed",
	ErrCollectPanic:    "Collection cycle panicked",
	ErrExportTransient: "Failed to ship metrics to backend",
	ErrExportRejected:  "Backend rejected metrics batch",
	ErrExportDropped:   "Metrics batch dropped",
	ErrExportInit:      "Failed to initialize exporter",
	ErrExportClose:     "Failed to close exporter",
	ErrInventoryLoad:   "Failed to load inventory",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
