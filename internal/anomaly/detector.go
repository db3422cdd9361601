// Package anomaly turns samples into anomaly events and responds to them.
package anomaly

import (
	"context"
	"time"

	"codeberg.org/mutker/sensormon/internal/errors"
	"codeberg.org/mutker/sensormon/internal/logger"
	"codeberg.org/mutker/sensormon/internal/logsink"
	"codeberg.org/mutker/sensormon/internal/metrics"
	"codeberg.org/mutker/sensormon/internal/queue"
	"codeberg.org/mutker/sensormon/internal/registry"
	"codeberg.org/mutker/sensormon/internal/sample"
	"github.com/google/uuid"
)

// Mode selects which rule decides that a reading is anomalous.
type Mode int

const (
	// ModeRange flags readings strictly outside the configured range.
	ModeRange Mode = iota
	// ModeClassifier defers to the classifier.
	ModeClassifier
	// ModeBoth flags a reading when either rule does.
	ModeBoth
)

func (m Mode) String() string {
	switch m {
	case ModeRange:
		return "range"
	case ModeClassifier:
		return "classifier"
	case ModeBoth:
		return "both"
	default:
		return "unknown"
	}
}

func ParseMode(name string) (Mode, error) {
	for _, m := range []Mode{ModeRange, ModeClassifier, ModeBoth} {
		if m.String() == name {
			return m, nil
		}
	}
	return 0, errors.New().WithData(ErrInvalidMode, name)
}

type DetectorOption func(*Detector)

// WithClassifier consults c according to mode.
func WithClassifier(c Classifier, mode Mode) DetectorOption {
	return func(d *Detector) {
		d.classifier = c
		d.mode = mode
	}
}

func WithDetectorLogger(l logger.Logger) DetectorOption {
	return func(d *Detector) {
		if l != nil {
			d.log = l
		}
	}
}

func WithDetectorMetrics(m *metrics.Metrics) DetectorOption {
	return func(d *Detector) {
		d.metrics = m
	}
}

type Detector struct {
	catalog    *registry.Catalog
	sink       *logsink.Sink
	mode       Mode
	classifier Classifier
	log        logger.Logger
	metrics    *metrics.Metrics
}

func NewDetector(catalog *registry.Catalog, sink *logsink.Sink, opts ...DetectorOption) (*Detector, error) {
	d := &Detector{
		catalog: catalog,
		sink:    sink,
		mode:    ModeRange,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.mode != ModeRange && d.classifier == nil {
		return nil, errors.New().WithData(ErrMissingClassifier, d.mode.String())
	}

	return d, nil
}

// Inspect evaluates every reading of s against the range configured for its
// machine kind and returns one event per anomalous reading. Readings without
// a configured range are reported and skipped.
func (d *Detector) Inspect(ctx context.Context, s sample.Sample) []Event {
	var events []Event

	for _, r := range s.Readings {
		rng, err := d.catalog.Range(s.Kind, r.Sensor)
		if err != nil {
			d.sink.Logf(logsink.SourceDetector, "No range for %s on %s", r.Sensor, s.Machine)
			continue
		}

		anomalous, score := d.decide(ctx, Input{
			Machine: s.Machine,
			Kind:    s.Kind,
			Sensor:  r.Sensor,
			Value:   r.Value,
			Range:   rng,
		})
		if !anomalous {
			continue
		}

		events = append(events, Event{
			ID:       uuid.New(),
			SampleID: s.ID,
			Handle:   s.Handle,
			Machine:  s.Machine,
			Kind:     s.Kind,
			Sensor:   r.Sensor,
			Value:    r.Value,
			Range:    rng,
			Score:    score,
			Detected: time.Now(),
		})
		d.metrics.AnomalyDetected(s.Machine, r.Sensor)
	}

	return events
}

func (d *Detector) decide(ctx context.Context, in Input) (bool, float64) {
	outside := !in.Range.Contains(in.Value)
	if d.mode == ModeRange {
		return outside, 0
	}

	v, err := d.classifier.Classify(ctx, in)
	if err != nil {
		d.log.Debug().
			Err(err).
			Str("machine", in.Machine).
			Str("sensor", in.Sensor).
			Msg("Classifier unavailable, using range rule")
		return outside, 0
	}

	if d.mode == ModeBoth {
		return outside || v.Anomalous, v.Score
	}
	return v.Anomalous, v.Score
}

// Run inspects samples from in until it is closed and drained, forwarding
// events to out. out is closed on return. An event that cannot be delivered
// within the out queue's timeout ends Run with ErrDelivery.
func (d *Detector) Run(ctx context.Context, in *queue.Queue[sample.Sample], out *queue.Queue[Event]) error {
	defer out.Close()

	d.log.Debug().Str("mode", d.mode.String()).Msg("Detector started")

	for {
		s, err := in.Take(ctx)
		if err != nil {
			if errors.HasCode(err, queue.ErrClosed) {
				d.log.Debug().Msg("Detector drained")
				return nil
			}
			return err
		}

		events := d.Inspect(ctx, s)
		d.sink.Logf(logsink.SourceDetector, "%s: %d readings, %d anomalies", s.Machine, len(s.Readings), len(events))

		for _, ev := range events {
			if err := out.Put(ctx, ev); err != nil {
				if errors.HasCode(err, queue.ErrTimeout) || errors.HasCode(err, queue.ErrClosed) {
					return errors.New().WithData(ErrDelivery, struct {
						Event string
						Error string
					}{
						Event: ev.String(),
						Error: err.Error(),
					})
				}
				return err
			}
		}
	}
}
