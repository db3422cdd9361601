package pipeline

import (
	"context"

	"codeberg.org/mutker/sensormon/internal/errors"
	"codeberg.org/mutker/sensormon/internal/logsink"
	"codeberg.org/mutker/sensormon/internal/queue"
	"codeberg.org/mutker/sensormon/internal/registry"
	"codeberg.org/mutker/sensormon/internal/sample"
)

// Collector snapshots machine state into samples and hands them to the
// detector. It never writes machine state.
type Collector struct {
	stage
	out *queue.Queue[sample.Sample]
}

func NewCollector(reg *registry.Registry, sink *logsink.Sink, out *queue.Queue[sample.Sample], opts ...StageOption) *Collector {
	return &Collector{
		stage: newStage(reg, sink, opts),
		out:   out,
	}
}

// Collect takes one sample per live machine. Sensors the machine lacks are
// reported by the machine and left out of the sample.
func (c *Collector) Collect() []sample.Sample {
	handles := c.reg.Handles()
	samples := make([]sample.Sample, 0, len(handles))

	for _, h := range handles {
		m, err := c.reg.Machine(h)
		if err != nil {
			continue
		}

		spec, err := c.catalog.Spec(m.Kind())
		if err != nil {
			c.sink.Logf(logsink.SourceCollector, "Invalid machine type for %s", m.Name())
			continue
		}

		readings, _ := m.Snapshot(spec.SensorNames())
		samples = append(samples, sample.New(h, m.Name(), m.Kind(), readings))
	}

	return samples
}

// Cycle collects and forwards samples, waiting for queue space.
func (c *Collector) Cycle(ctx context.Context) error {
	for _, s := range c.Collect() {
		if err := c.out.Put(ctx, s); err != nil {
			return err
		}
		c.metrics.SampleCollected()
		c.report(s)
	}
	return nil
}

// report writes one console line per reading so each line names the
// machine and the sensor within the message length limit.
func (c *Collector) report(s sample.Sample) {
	if len(s.Readings) == 0 {
		c.sink.Logf(logsink.SourceCollector, "Collected %s", s)
		return
	}
	for _, r := range s.Readings {
		c.sink.Logf(logsink.SourceCollector, "Collected %s %s = %.2f", s.Machine, r.Sensor, r.Value)
	}
}

// Run collects once per interval until ctx ends. The output queue is left
// open; closing it is up to the caller.
func (c *Collector) Run(ctx context.Context) error {
	c.log.Debug().Dur("interval", c.interval).Msg("Collector started")

	return c.every(ctx, func(ctx context.Context) error {
		err := c.Cycle(ctx)
		if err == nil || ctx.Err() != nil {
			return nil
		}
		return errors.New().Wrap(ErrCollect, err)
	})
}
