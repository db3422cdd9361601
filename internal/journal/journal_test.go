package journal_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/mutker/sensormon/internal/anomaly"
	"codeberg.org/mutker/sensormon/internal/errors"
	"codeberg.org/mutker/sensormon/internal/journal"
	"codeberg.org/mutker/sensormon/internal/logger"
	"codeberg.org/mutker/sensormon/internal/machine"
	"codeberg.org/mutker/sensormon/internal/registry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(sensor string, value float64, at time.Time) anomaly.Event {
	return anomaly.Event{
		ID:       uuid.New(),
		SampleID: uuid.New(),
		Machine:  "Steam_Boiler_1",
		Kind:     machine.SteamBoiler,
		Sensor:   sensor,
		Value:    value,
		Range:    registry.SensorRange{Name: sensor, Min: 150, Max: 250},
		Detected: at,
	}
}

func newJournal(t *testing.T, cfg journal.Config) journal.Journal {
	t.Helper()
	j, err := journal.New(cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, journal.DefaultConfig().Validate())

	cfg := journal.DefaultConfig()
	cfg.DSN = "/var/lib/sensormon/journal.db"
	assert.True(t, errors.HasCode(cfg.Validate(), journal.ErrInvalidDSN))

	cfg = journal.DefaultConfig()
	cfg.BatchSize = 0
	assert.True(t, errors.HasCode(cfg.Validate(), journal.ErrInvalidConfig))

	cfg.Enabled = false
	assert.NoError(t, cfg.Validate())
}

func TestRecordAndRecent(t *testing.T) {
	cfg := journal.DefaultConfig()
	cfg.BatchSize = 100
	cfg.FlushInterval = time.Hour
	j := newJournal(t, cfg)
	ctx := context.Background()

	assert.True(t, j.Enabled())

	base := time.Now()
	require.NoError(t, j.Notify(ctx, event("Temperature", 300, base)))
	require.NoError(t, j.Notify(ctx, event("Pressure", 400, base.Add(time.Second))))
	require.NoError(t, j.Notify(ctx, event("Temperature", 100, base.Add(2*time.Second))))

	n, err := j.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	recent, err := j.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.InDelta(t, 100, recent[0].Value, 0)
	assert.Equal(t, "Pressure", recent[1].Sensor)
	assert.Equal(t, "Steam Boiler", recent[0].Kind)
	assert.InDelta(t, 150, recent[0].RangeMin, 0)
	assert.InDelta(t, 250, recent[0].RangeMax, 0)
	assert.Equal(t, base.Add(2*time.Second).UnixNano(), recent[0].Detected.UnixNano())
}

func TestBatchFlushAtSize(t *testing.T) {
	cfg := journal.DefaultConfig()
	cfg.BatchSize = 2
	cfg.FlushInterval = time.Hour
	j := newJournal(t, cfg)
	ctx := context.Background()

	for i := range 5 {
		require.NoError(t, j.Notify(ctx, event("Temperature", float64(300+i), time.Now())))
	}

	n, err := j.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestNotifyRejectsIncompleteEvent(t *testing.T) {
	j := newJournal(t, journal.DefaultConfig())

	err := j.Notify(context.Background(), anomaly.Event{})
	assert.True(t, errors.HasCode(err, journal.ErrInvalidEntry))
}

func TestNotifyHonorsContext(t *testing.T) {
	j := newJournal(t, journal.DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := j.Notify(ctx, event("Temperature", 300, time.Now()))
	assert.True(t, errors.HasCode(err, journal.ErrOperationTimeout))
}

func TestCloseRejectsFurtherUse(t *testing.T) {
	j, err := journal.New(journal.DefaultConfig(), logger.Nop())
	require.NoError(t, err)

	require.NoError(t, j.Notify(context.Background(), event("Temperature", 300, time.Now())))
	require.NoError(t, j.Close())
	require.NoError(t, j.Close())

	err = j.Notify(context.Background(), event("Temperature", 300, time.Now()))
	assert.True(t, errors.HasCode(err, journal.ErrClosed))

	_, err = j.Count(context.Background())
	assert.True(t, errors.HasCode(err, journal.ErrClosed))
}

func TestDisabledJournal(t *testing.T) {
	cfg := journal.DefaultConfig()
	cfg.Enabled = false
	j := newJournal(t, cfg)

	assert.False(t, j.Enabled())
	require.NoError(t, j.Notify(context.Background(), event("Temperature", 300, time.Now())))

	n, err := j.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestJournalAsNotifier(t *testing.T) {
	j := newJournal(t, journal.DefaultConfig())
	var _ anomaly.Notifier = j
}
