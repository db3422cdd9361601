package registry

import "codeberg.org/mutker/sensormon/internal/errors"

const (
	ErrUnknownKind   = errors.ErrorCode("registry_unknown_kind")
	ErrInvalidHandle = errors.ErrorCode("registry_invalid_handle")
	ErrInvalidSpec   = errors.ErrorCode("registry_invalid_spec")
	ErrUnknownSensor = errors.ErrorCode("registry_unknown_sensor")
)
