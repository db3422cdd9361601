package machineapi

import (
	"codeberg.org/mutker/sensormon/internal/errors"
	"codeberg.org/mutker/sensormon/internal/registry"
)

const (
	ErrSensorNotFound = errors.ErrorCode("machine_sensor_not_found")
	ErrInvalidHandle  = registry.ErrInvalidHandle
	ErrUnknownKind    = registry.ErrUnknownKind
)
