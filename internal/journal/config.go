package journal

import (
	"strings"
	"time"

	"codeberg.org/mutker/sensormon/internal/errors"
)

const (
	defaultDSN           = ":memory:"
	defaultBatchSize     = 16
	defaultFlushInterval = time.Second
)

type Config struct {
	DSN           string
	BatchSize     int
	FlushInterval time.Duration
	Enabled       bool
}

func DefaultConfig() Config {
	return Config{
		DSN:           defaultDSN,
		BatchSize:     defaultBatchSize,
		FlushInterval: defaultFlushInterval,
		Enabled:       true,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate storage settings if the journal is enabled
	if !c.Enabled {
		return nil
	}

	// The journal never touches disk
	if !strings.Contains(c.DSN, ":memory:") && !strings.Contains(c.DSN, "mode=memory") {
		return errFactory.WithData(ErrInvalidDSN, c.DSN)
	}
	if c.BatchSize <= 0 {
		return errFactory.WithData(ErrInvalidConfig, "batch size must be positive")
	}
	if c.FlushInterval <= 0 {
		return errFactory.WithData(ErrInvalidConfig, "flush interval must be positive")
	}
	return nil
}
