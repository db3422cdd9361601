// Package journal keeps an in-memory sqlite record of handled anomalies.
package journal

import (
	"context"

	"codeberg.org/mutker/sensormon/internal/anomaly"
	"codeberg.org/mutker/sensormon/internal/errors"
	"codeberg.org/mutker/sensormon/internal/logger"
)

type service struct {
	repo Repository
	cfg  Config
}

// No-op implementation
type noopJournal struct{}

func New(cfg Config, log logger.Logger) (Journal, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	// If the journal is disabled, return a no-op journal
	if !cfg.Enabled {
		log.Debug().Msg("Anomaly journal disabled, using no-op journal")
		return &noopJournal{}, nil
	}

	repo, err := NewRepository(cfg, log)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to create journal repository")
		return nil, err
	}

	return &service{
		repo: repo,
		cfg:  cfg,
	}, nil
}

// Notify records ev. It satisfies anomaly.Notifier.
func (s *service) Notify(ctx context.Context, ev anomaly.Event) error {
	errFactory := errors.New()

	if ev.Machine == "" || ev.Sensor == "" {
		return errFactory.New(ErrInvalidEntry)
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
		if err := s.repo.Record(entryFromEvent(ev)); err != nil {
			return errFactory.Wrap(ErrRecord, err)
		}
	}

	return nil
}

func (s *service) Recent(ctx context.Context, n int) ([]Entry, error) {
	return s.repo.Recent(ctx, n)
}

func (s *service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

func (s *service) Close() error {
	errFactory := errors.New()

	if err := s.repo.Close(); err != nil {
		return errFactory.Wrap(ErrServiceShutdown, err)
	}
	return nil
}

func (*service) Enabled() bool {
	return true
}

// No-op implementation
func (*noopJournal) Notify(_ context.Context, _ anomaly.Event) error {
	return nil
}

func (*noopJournal) Recent(_ context.Context, _ int) ([]Entry, error) {
	return nil, nil
}

func (*noopJournal) Count(_ context.Context) (int, error) {
	return 0, nil
}

func (*noopJournal) Close() error {
	return nil
}

func (*noopJournal) Enabled() bool {
	return false
}
