package errors

// Common error codes
const (
	// System errors
	ErrInternal    ErrorCode = "internal_error"
	ErrUnavailable     ErrorCode = "service_unavailable"

	// Configuration errors
	ErrInvalidConfig       ErrorCode = "invalid_configuration"
	ErrBindFlags           ErrorCode = "bind_flags_failed"
	ErrReadConfig          ErrorCode = "read_config_failed"
	ErrParseFlags          ErrorCode = "parse_flags_failed"
	ErrInvalidInterval     ErrorCode = "invalid_interval"
	ErrInvalidCapacity     ErrorCode = "invalid_capacity"
	ErrInvalidPolicy       ErrorCode = "invalid_policy"
	ErrInvalidDetectorMode ErrorCode = "invalid_detector_mode"
	ErrInvalidClassifier   ErrorCode = "invalid_classifier"
	ErrInvalidReportMode   ErrorCode = "invalid_report_mode"

	// Logging errors
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Initialization errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"

	// Resource errors
	ErrResourceBusy      ErrorCode = "resource_busy"
	ErrResourceNotFound  ErrorCode = "resource_not_found"
	ErrResourceExhausted ErrorCode = "resource_exhausted"

	// Application errors
	ErrInitApp      ErrorCode = "init_app_failed"
	ErrMainLoop     ErrorCode = "main_loop_failed"
	ErrPipelineTask ErrorCode = "pipeline_task_failed"

	// Operation errors
	ErrOperationFailed ErrorCode = "operation_failed"
	ErrTimeout         ErrorCode = "operation_timeout"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:            "Internal error occurred",
	ErrInvalidArgument:     "Invalid argument provided",
	ErrNotImplemented:      "Operation not implemented",
	ErrUnavailable:         "Service unavailable",
	ErrInvalidConfig:       "Invalid configuration",
	ErrMissingConfig:       "Missing configuration",
	ErrBindFlags:           "Failed to bind flags",
	ErrReadConfig:          "Failed to read configuration",
	ErrParseFlags:          "Failed to parse flags",
	ErrInvalidInterval:     "Invalid interval value",
	ErrInvalidCapacity:     "Invalid queue capacity",
	ErrInvalidPolicy:       "Invalid overflow policy",
	ErrInvalidDetectorMode: "Invalid detector mode",
	ErrInvalidClassifier:   "Unknown classifier",
	ErrInvalidReportMode:   "Invalid generator report mode",
	ErrInvalidLogLevel:     "Invalid log level",
	ErrInitFailed:          "Initialization failed",
	ErrShutdownFailed:      "Shutdown failed",
	ErrResourceBusy:        "Resource is busy",
	ErrResourceNotFound:    "Resource not found",
	ErrResourceExhausted:   "Resource exhausted",
	ErrInitApp:             "Failed to initialize application",
	ErrMainLoop:            "Error in main loop",
	ErrPipelineTask:        "Pipeline task failed",
	ErrOperationFailed:     "Operation failed",
	ErrTimeout:             "Operation timed out",
	ErrInvalidOperation:    "Invalid operation",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
