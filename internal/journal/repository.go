package journal

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"codeberg.org/mutker/sensormon/internal/errors"
	"codeberg.org/mutker/sensormon/internal/logger"
	_ "github.com/mattn/go-sqlite3"
)

type repository struct {
	db            *sql.DB
	logger        logger.Logger
	cfg           Config
	mu            sync.Mutex
	buffer        []*Entry
	closed        bool
	flushTicker   *time.Ticker
	shutdownChan  chan struct{}
	flushDoneChan chan struct{}
}

func NewRepository(cfg Config, log logger.Logger) (Repository, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}

	// Every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := EnsureSchema(db, log); err != nil {
		db.Close()
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "schema_version",
			Error: err.Error(),
		})
	}

	log.Info().
		Str("dsn", cfg.DSN).
		Int("schema_version", SchemaVersion).
		Int("batch_size", cfg.BatchSize).
		Dur("flush_interval", cfg.FlushInterval).
		Msg("Anomaly journal initialized")

	repo := &repository{
		db:            db,
		logger:        log,
		cfg:           cfg,
		buffer:        make([]*Entry, 0, cfg.BatchSize),
		flushTicker:   time.NewTicker(cfg.FlushInterval),
		shutdownChan:  make(chan struct{}),
		flushDoneChan: make(chan struct{}),
	}

	go repo.flusher()

	return repo, nil
}

func (r *repository) Record(entry *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errors.New().New(ErrClosed)
	}

	r.buffer = append(r.buffer, entry)

	if len(r.buffer) >= r.cfg.BatchSize {
		return r.flush()
	}

	return nil
}

// Recent returns up to n entries, newest first. Buffered entries are
// flushed before reading.
func (r *repository) Recent(ctx context.Context, n int) ([]Entry, error) {
	errFactory := errors.New()

	if err := r.sync(); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, recentAnomaliesSQL, n)
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			detected int64
		)
		if err := rows.Scan(
			&e.ID, &e.SampleID, &detected,
			&e.Machine, &e.Kind, &e.Sensor,
			&e.Value, &e.RangeMin, &e.RangeMax, &e.Score,
		); err != nil {
			return nil, errFactory.Wrap(ErrStorageAccess, err)
		}
		e.Detected = time.Unix(0, detected)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errFactory.Wrap(ErrStorageAccess, err)
	}

	return entries, nil
}

func (r *repository) Count(ctx context.Context) (int, error) {
	if err := r.sync(); err != nil {
		return 0, err
	}

	var n int
	if err := r.db.QueryRowContext(ctx, countAnomaliesSQL).Scan(&n); err != nil {
		return 0, errors.New().Wrap(ErrStorageAccess, err)
	}
	return n, nil
}

func (r *repository) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	// Signal the flusher goroutine to stop
	close(r.shutdownChan)

	// Stop the ticker
	r.flushTicker.Stop()

	// Wait for the flusher to finish its final flush
	<-r.flushDoneChan

	if err := r.db.Close(); err != nil {
		return errors.New().WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "close_database",
			Error: err.Error(),
		})
	}

	r.logger.Debug().Msg("Anomaly journal closed")

	return nil
}

func (r *repository) sync() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return errors.New().New(ErrClosed)
	}
	return r.flush()
}

func (r *repository) flusher() {
	defer close(r.flushDoneChan)

	for {
		select {
		case <-r.flushTicker.C:
			r.mu.Lock()
			r.flush()
			r.mu.Unlock()
		case <-r.shutdownChan:
			r.mu.Lock()
			r.flush()
			r.mu.Unlock()
			return
		}
	}
}

// flush must be called with mu held.
func (r *repository) flush() error {
	if len(r.buffer) == 0 {
		return nil
	}

	errFactory := errors.New()

	tx, err := r.db.Begin()
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to begin transaction")
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	stmt, err := tx.Prepare(insertAnomalySQL)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to prepare statement")
		if err := tx.Rollback(); err != nil {
			r.logger.Error().Err(err).Msg("Failed to roll back transaction")
		}
		return errFactory.Wrap(ErrTransactionFailed, err)
	}
	defer stmt.Close()

	for _, e := range r.buffer {
		values := []any{
			e.ID,
			e.SampleID,
			e.Detected.UnixNano(),
			e.Machine,
			e.Kind,
			e.Sensor,
			e.Value,
			e.RangeMin,
			e.RangeMax,
			e.Score,
		}

		if _, err := stmt.Exec(values...); err != nil {
			r.logger.Error().Err(err).Str("id", e.ID).Msg("Failed to execute insert")
			if err := tx.Rollback(); err != nil {
				r.logger.Error().Err(err).Msg("Failed to roll back transaction")
			}
			// A rejected row would fail every later flush
			r.buffer = r.buffer[:0]
			return errFactory.Wrap(ErrTransactionFailed, err)
		}
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error().Err(err).Msg("Failed to commit transaction")
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	r.logger.Debug().Int("records", len(r.buffer)).Msg("Flushed anomalies to journal")
	r.buffer = r.buffer[:0]

	return nil
}
