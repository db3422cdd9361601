package anomaly

import "codeberg.org/mutker/sensormon/internal/errors"

const (
	ErrInvalidMode       = errors.ErrInvalidDetectorMode
	ErrMissingClassifier = errors.ErrorCode("anomaly_missing_classifier")
	ErrInsufficientData  = errors.ErrorCode("anomaly_insufficient_data")
	ErrDelivery          = errors.ErrorCode("anomaly_delivery_failed")
	ErrNotify            = errors.ErrorCode("anomaly_notify_failed")
	ErrAlertLost         = errors.ErrResourceExhausted
)
