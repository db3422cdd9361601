package pipeline

import "codeberg.org/mutker/sensormon/internal/errors"

const (
	ErrInvalidReportMode = errors.ErrInvalidReportMode
	ErrTask              = errors.ErrPipelineTask
	ErrCollect           = errors.ErrorCode("pipeline_collect_failed")
)
