package pipeline

import (
	"context"
	"time"

	"codeberg.org/mutker/sensormon/internal/logger"
	"codeberg.org/mutker/sensormon/internal/logsink"
	"codeberg.org/mutker/sensormon/internal/metrics"
	"codeberg.org/mutker/sensormon/internal/registry"
)

// DefaultInterval is the period of the generator and collector loops.
const DefaultInterval = 2 * time.Second

// stage holds what the periodic producers share.
type stage struct {
	reg      *registry.Registry
	catalog  *registry.Catalog
	sink     *logsink.Sink
	interval time.Duration
	log      logger.Logger
	metrics  *metrics.Metrics
}

type StageOption func(*stage)

func WithInterval(d time.Duration) StageOption {
	return func(s *stage) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithCatalog resolves ranges from c instead of the registry's catalog.
func WithCatalog(c *registry.Catalog) StageOption {
	return func(s *stage) {
		if c != nil {
			s.catalog = c
		}
	}
}

func WithLogger(l logger.Logger) StageOption {
	return func(s *stage) {
		if l != nil {
			s.log = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) StageOption {
	return func(s *stage) {
		s.metrics = m
	}
}

func newStage(reg *registry.Registry, sink *logsink.Sink, opts []StageOption) stage {
	s := stage{
		reg:      reg,
		catalog:  reg.Catalog(),
		sink:     sink,
		interval: DefaultInterval,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// every runs fn immediately and then once per interval until ctx ends.
func (s *stage) every(ctx context.Context, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := fn(ctx); err != nil {
				return err
			}
		}
	}
}
