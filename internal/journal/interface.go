package journal

import (
	"context"
	"time"

	"codeberg.org/mutker/sensormon/internal/anomaly"
)

// Journal records handled anomalies for later inspection
type Journal interface {
	Notify(ctx context.Context, ev anomaly.Event) error
	Recent(ctx context.Context, n int) ([]Entry, error)
	Count(ctx context.Context) (int, error)
	Close() error
	Enabled() bool
}

// Repository defines the interface for journal storage
type Repository interface {
	Record(entry *Entry) error
	Recent(ctx context.Context, n int) ([]Entry, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// Entry is the stored form of an anomaly event
type Entry struct {
	ID       string
	SampleID string
	Detected time.Time
	Machine  string
	Kind     string
	Sensor   string
	Value    float64
	RangeMin float64
	RangeMax float64
	Score    float64
}

func entryFromEvent(ev anomaly.Event) *Entry {
	return &Entry{
		ID:       ev.ID.String(),
		SampleID: ev.SampleID.String(),
		Detected: ev.Detected,
		Machine:  ev.Machine,
		Kind:     ev.Kind.String(),
		Sensor:   ev.Sensor,
		Value:    ev.Value,
		RangeMin: ev.Range.Min,
		RangeMax: ev.Range.Max,
		Score:    ev.Score,
	}
}
