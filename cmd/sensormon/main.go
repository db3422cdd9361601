package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/sensormon/internal/anomaly"
	"codeberg.org/mutker/sensormon/internal/config"
	"codeberg.org/mutker/sensormon/internal/errors"
	"codeberg.org/mutker/sensormon/internal/journal"
	"codeberg.org/mutker/sensormon/internal/logger"
	"codeberg.org/mutker/sensormon/internal/logsink"
	"codeberg.org/mutker/sensormon/internal/machineapi"
	"codeberg.org/mutker/sensormon/internal/metrics"
	"codeberg.org/mutker/sensormon/internal/pipeline"
	"codeberg.org/mutker/sensormon/internal/queue"
	"codeberg.org/mutker/sensormon/internal/registry"
)

const recentOnExit = 5

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, logger.IsService())
	logger.Debug().Msg("Config loaded")

	ctx, cancel := context.WithCancel(context.Background())
	go handleSignals(cancel)

	err = run(ctx, cfg, os.Stdout)
	cancel()

	if err != nil {
		if e, ok := err.(errors.Error); ok {
			logger.ErrorWithCode(e).Msg("Monitoring stopped on fatal error")
		} else {
			logger.Error().Err(err).Msg("Monitoring stopped on fatal error")
		}
		os.Exit(1)
	}
	logger.Info().Msg("Exiting...")
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

// run builds the fleet and the pipeline, then blocks until ctx is cancelled
// and the pipeline has drained.
func run(ctx context.Context, cfg *config.Config, out io.Writer) error {
	errFactory := errors.New()
	log := logger.Default()
	m := metrics.New()

	policy, err := queue.ParsePolicy(cfg.LogQueuePolicy)
	if err != nil {
		return err
	}
	sink := logsink.New(out, cfg.LogQueueCapacity,
		logsink.WithPolicy(policy),
		logsink.WithLogger(log.With("logsink")),
		logsink.WithMetrics(m),
	)

	reg := registry.New(registry.DefaultCatalog(),
		registry.WithReporter(sink.Reporter(logsink.SourceRegistry)),
		registry.WithLogger(log.With("registry")),
	)
	defer reg.Close()

	handles, err := reg.InstantiateAll()
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}

	api := machineapi.New(reg, sink)
	for _, h := range handles {
		if err := api.DescribeMachine(h); err != nil {
			log.Warn().Err(err).Stringer("handle", h).Msg("Failed to describe machine")
		}
	}

	j, err := newJournal(cfg, log)
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}
	defer closeJournal(j, log)

	detector, err := newDetector(cfg, reg.Catalog(), sink, log, m)
	if err != nil {
		return errFactory.Wrap(errors.ErrInitApp, err)
	}

	handler := anomaly.NewHandler(sink,
		anomaly.WithNotifier(j),
		anomaly.WithRateLimit(cfg.NotifyRate, cfg.NotifyBurst),
		anomaly.WithHandlerLogger(log.With("handler")),
	)

	report, err := pipeline.ParseReportMode(cfg.GeneratorReport)
	if err != nil {
		return err
	}

	p := pipeline.New(pipeline.Config{
		GeneratorInterval: cfg.GeneratorInterval,
		CollectorInterval: cfg.CollectorInterval,
		Report:            report,
		Seed:              cfg.Seed,
		SampleCapacity:    cfg.SampleQueueCapacity,
		AnomalyCapacity:   cfg.AnomalyQueueCapacity,
		AnomalyTimeout:    cfg.AnomalyTimeout,
	}, reg, sink, detector, handler,
		pipeline.WithPipelineLogger(log.With("pipeline")),
		pipeline.WithPipelineMetrics(m),
	)

	logger.Info().
		Int("machines", len(handles)).
		Dur("generator_interval", cfg.GeneratorInterval).
		Dur("collector_interval", cfg.CollectorInterval).
		Str("detector_mode", cfg.DetectorMode).
		Bool("journal", j.Enabled()).
		Msg("Monitoring started")

	if err := p.Run(ctx); err != nil {
		return errFactory.Wrap(errors.ErrMainLoop, err)
	}
	return nil
}

func newJournal(cfg *config.Config, log logger.Logger) (journal.Journal, error) {
	jcfg := journal.DefaultConfig()
	jcfg.Enabled = cfg.Journal
	jcfg.BatchSize = cfg.JournalBatchSize
	jcfg.FlushInterval = cfg.JournalFlushInterval

	return journal.New(jcfg, log.With("journal"))
}

func closeJournal(j journal.Journal, log logger.Logger) {
	if j.Enabled() {
		ctx := context.Background()
		if n, err := j.Count(ctx); err == nil {
			log.Info().Int("anomalies", n).Msg("Anomaly journal summary")
		}
		if recent, err := j.Recent(ctx, recentOnExit); err == nil {
			for _, e := range recent {
				log.Debug().
					Str("machine", e.Machine).
					Str("sensor", e.Sensor).
					Float64("value", e.Value).
					Time("detected", e.Detected).
					Msg("Recent anomaly")
			}
		}
	}

	if err := j.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close anomaly journal")
	}
}

func newDetector(
	cfg *config.Config,
	catalog *registry.Catalog,
	sink *logsink.Sink,
	log logger.Logger,
	m *metrics.Metrics,
) (*anomaly.Detector, error) {
	mode, err := anomaly.ParseMode(cfg.DetectorMode)
	if err != nil {
		return nil, err
	}

	opts := []anomaly.DetectorOption{
		anomaly.WithDetectorLogger(log.With("detector")),
		anomaly.WithDetectorMetrics(m),
	}
	if cfg.Classifier == config.ClassifierZScore {
		opts = append(opts, anomaly.WithClassifier(anomaly.NewZScore(cfg.ZScoreThreshold, cfg.ZScoreWindow), mode))
	} else if mode != anomaly.ModeRange {
		opts = append(opts, anomaly.WithClassifier(nil, mode))
	}

	return anomaly.NewDetector(catalog, sink, opts...)
}
