// Package pipeline runs the monitoring tasks: generator, collector,
// anomaly detector, anomaly handler and log sink.
//
// Shutdown is staged so in-flight data is not lost: cancelling the run
// context stops the producers, the collector closes the sample queue, the
// detector drains it and closes the event queue, the handler drains that,
// and finally the log sink writes its backlog.
package pipeline

import (
	"context"
	"slices"
	"time"

	"codeberg.org/mutker/sensormon/internal/anomaly"
	"codeberg.org/mutker/sensormon/internal/errors"
	"codeberg.org/mutker/sensormon/internal/logger"
	"codeberg.org/mutker/sensormon/internal/logsink"
	"codeberg.org/mutker/sensormon/internal/metrics"
	"codeberg.org/mutker/sensormon/internal/queue"
	"codeberg.org/mutker/sensormon/internal/registry"
	"codeberg.org/mutker/sensormon/internal/sample"
	"golang.org/x/sync/errgroup"
)

// Task priorities, ascending in role order. Go has no thread priorities;
// they decide start order, highest first, so consumers are ready before
// producers emit.
const (
	PriorityGenerator = iota + 1
	PriorityCollector
	PriorityDetector
	PriorityHandler
	PrioritySink
)

type stopMode int

const (
	// stopOnCancel tasks end when the run context is cancelled.
	stopOnCancel stopMode = iota
	// stopOnDrain tasks end when their input queue is closed and empty.
	stopOnDrain
	// stopOnClose tasks outlive the group and end when Run closes them.
	stopOnClose
)

// Task is a named, prioritized unit of the pipeline.
type Task struct {
	Name     string
	Source   logsink.Source
	Priority int
	Run      func(ctx context.Context) error

	stop stopMode
}

type Config struct {
	GeneratorInterval time.Duration
	CollectorInterval time.Duration
	Report            ReportMode
	Seed              uint64
	SampleCapacity    int
	AnomalyCapacity   int
	AnomalyTimeout    time.Duration
}

func DefaultConfig() Config {
	return Config{
		GeneratorInterval: DefaultInterval,
		CollectorInterval: DefaultInterval,
		Report:            ReportSensor,
		SampleCapacity:    8,
		AnomalyCapacity:   32,
		AnomalyTimeout:    5 * time.Second,
	}
}

type Option func(*Pipeline)

func WithPipelineLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

func WithPipelineMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithCatalogOverride resolves generator and collector ranges from c.
func WithCatalogOverride(c *registry.Catalog) Option {
	return func(p *Pipeline) {
		p.catalog = c
	}
}

type Pipeline struct {
	sink     *logsink.Sink
	samples  *queue.Queue[sample.Sample]
	events   *queue.Queue[anomaly.Event]
	detector *anomaly.Detector
	handler  *anomaly.Handler

	generator *Generator
	collector *Collector

	catalog *registry.Catalog
	log     logger.Logger
	metrics *metrics.Metrics
}

// New wires the tasks around reg. The sink, detector and handler are owned
// by the pipeline from here on: Run closes the sink.
func New(
	cfg Config,
	reg *registry.Registry,
	sink *logsink.Sink,
	detector *anomaly.Detector,
	handler *anomaly.Handler,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		sink:     sink,
		detector: detector,
		handler:  handler,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.samples = queue.New[sample.Sample](cfg.SampleCapacity,
		queue.WithPolicy[sample.Sample](queue.Block),
	)
	p.events = queue.New[anomaly.Event](cfg.AnomalyCapacity,
		queue.WithPolicy[anomaly.Event](queue.Block),
		queue.WithTimeout[anomaly.Event](cfg.AnomalyTimeout),
	)

	stageOpts := []StageOption{
		WithCatalog(p.catalog),
		WithLogger(p.log),
		WithMetrics(p.metrics),
	}
	p.generator = NewGenerator(reg, sink, cfg.Report, cfg.Seed,
		append(stageOpts, WithInterval(cfg.GeneratorInterval))...)
	p.collector = NewCollector(reg, sink, p.samples,
		append(stageOpts, WithInterval(cfg.CollectorInterval))...)

	for name, depth := range map[string]func() int{
		"log":       sink.Len,
		"samples":   p.samples.Len,
		"anomalies": p.events.Len,
	} {
		if err := p.metrics.RegisterQueue(name, depth); err != nil {
			p.log.Debug().Err(err).Str("queue", name).Msg("Queue depth not exported")
		}
	}

	return p
}

// Tasks returns the pipeline tasks, highest priority first.
func (p *Pipeline) Tasks() []Task {
	tasks := []Task{
		{
			Name:     "generator",
			Source:   logsink.SourceGenerator,
			Priority: PriorityGenerator,
			Run:      p.generator.Run,
			stop:     stopOnCancel,
		},
		{
			Name:     "collector",
			Source:   logsink.SourceCollector,
			Priority: PriorityCollector,
			Run: func(ctx context.Context) error {
				defer p.samples.Close()
				return p.collector.Run(ctx)
			},
			stop: stopOnCancel,
		},
		{
			Name:     "detector",
			Source:   logsink.SourceDetector,
			Priority: PriorityDetector,
			Run: func(ctx context.Context) error {
				return p.detector.Run(ctx, p.samples, p.events)
			},
			stop: stopOnDrain,
		},
		{
			Name:     "handler",
			Source:   logsink.SourceHandler,
			Priority: PriorityHandler,
			Run: func(ctx context.Context) error {
				return p.handler.Run(ctx, p.events)
			},
			stop: stopOnDrain,
		},
		{
			Name:     "log-sink",
			Source:   logsink.SourceLogger,
			Priority: PrioritySink,
			Run:      p.sink.Run,
			stop:     stopOnClose,
		},
	}

	slices.SortStableFunc(tasks, func(a, b Task) int {
		return b.Priority - a.Priority
	})
	return tasks
}

// Run starts every task and blocks until the staged shutdown completes.
// Cancelling ctx begins the shutdown. A failing task cancels the others and
// its error is returned.
func (p *Pipeline) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(context.Background())

	producerCtx, stopProducers := context.WithCancel(gctx)
	defer stopProducers()
	unregister := context.AfterFunc(ctx, stopProducers)
	defer unregister()

	sinkDone := make(chan error, 1)

	for _, t := range p.Tasks() {
		p.log.Debug().
			Str("task", t.Name).
			Int("priority", t.Priority).
			Int("source", int(t.Source)).
			Msg("Starting task")

		if t.stop == stopOnClose {
			go func() {
				sinkDone <- t.Run(context.Background())
			}()
			continue
		}

		taskCtx := gctx
		if t.stop == stopOnCancel {
			taskCtx = producerCtx
		}

		g.Go(func() error {
			if err := t.Run(taskCtx); err != nil {
				return errors.New().Wrap(ErrTask, err).WithMessage("task " + t.Name + " failed")
			}
			p.log.Debug().Str("task", t.Name).Msg("Task stopped")
			return nil
		})
	}

	err := g.Wait()

	p.sink.Close()
	if sinkErr := <-sinkDone; sinkErr != nil {
		p.log.Warn().Err(sinkErr).Msg("Log sink stopped with error")
	}

	p.logSummary()

	return err
}

func (p *Pipeline) logSummary() {
	sum, err := p.metrics.Summarize()
	if err != nil {
		p.log.Warn().Err(err).Msg("Failed to gather metrics")
		return
	}

	p.log.Info().
		Uint64("samples", sum.Samples).
		Uint64("anomalies", sum.Anomalies).
		Uint64("log_accepted", sum.LogAccepted).
		Uint64("log_dropped", sum.LogDropped).
		Uint64("generator_cycles", sum.GeneratorCycles).
		Msg("Pipeline stopped")
}
