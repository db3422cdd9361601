package queue

import "codeberg.org/mutker/sensormon/internal/errors"

const (
	ErrClosed        = errors.ErrorCode("queue_closed")
	ErrDropped       = errors.ErrorCode("queue_dropped")
	ErrTimeout       = errors.ErrorCode("queue_timeout")
	ErrInvalidPolicy = errors.ErrInvalidPolicy
)
