// Package metrics exposes pipeline counters on a private prometheus
// registry. A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sensormon"

// Log message results.
const (
	ResultAccepted = "accepted"
	ResultDropped  = "dropped"
)

type Metrics struct {
	registry *prometheus.Registry

	samples         prometheus.Counter
	anomalies       *prometheus.CounterVec
	logMessages     *prometheus.CounterVec
	generatorCycles prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_total",
			Help:      "Total number of samples collected",
		}),

		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_total",
			Help:      "Total number of anomalies detected",
		}, []string{"machine", "sensor"}),

		logMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_messages_total",
			Help:      "Console log messages by enqueue result",
		}, []string{"result"}), // result: accepted, dropped

		generatorCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generator_cycles_total",
			Help:      "Total number of completed generator cycles",
		}),
	}

	m.registry.MustRegister(m.samples, m.anomalies, m.logMessages, m.generatorCycles)

	return m
}

// Gatherer returns the registry for inspection.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.NewRegistry()
	}
	return m.registry
}

// RegisterQueue exports the depth of a named queue as a gauge sampled at
// gather time.
func (m *Metrics) RegisterQueue(name string, depth func() int) error {
	if m == nil {
		return nil
	}

	return m.registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "queue_depth",
		Help:        "Current number of buffered items",
		ConstLabels: prometheus.Labels{"queue": name},
	}, func() float64 {
		return float64(depth())
	}))
}

func (m *Metrics) SampleCollected() {
	if m == nil {
		return
	}
	m.samples.Inc()
}

func (m *Metrics) AnomalyDetected(machine, sensor string) {
	if m == nil {
		return
	}
	m.anomalies.WithLabelValues(machine, sensor).Inc()
}

// LogMessage records the enqueue result of a console message.
func (m *Metrics) LogMessage(accepted bool) {
	if m == nil {
		return
	}
	if accepted {
		m.logMessages.WithLabelValues(ResultAccepted).Inc()
		return
	}
	m.logMessages.WithLabelValues(ResultDropped).Inc()
}

func (m *Metrics) GeneratorCycle() {
	if m == nil {
		return
	}
	m.generatorCycles.Inc()
}

// Summary is a point-in-time reading of the pipeline counters.
type Summary struct {
	Samples         uint64
	Anomalies       uint64
	LogAccepted     uint64
	LogDropped      uint64
	GeneratorCycles uint64
	QueueDepth      map[string]int
}

// Summarize gathers the registry and totals every counter across its
// labels. A nil *Metrics yields an empty summary.
func (m *Metrics) Summarize() (Summary, error) {
	sum := Summary{QueueDepth: map[string]int{}}

	families, err := m.Gatherer().Gather()
	if err != nil {
		return sum, err
	}

	for _, f := range families {
		for _, metric := range f.GetMetric() {
			value := uint64(metric.GetCounter().GetValue())

			switch f.GetName() {
			case namespace + "_samples_total":
				sum.Samples += value
			case namespace + "_anomalies_total":
				sum.Anomalies += value
			case namespace + "_generator_cycles_total":
				sum.GeneratorCycles += value
			case namespace + "_log_messages_total":
				for _, l := range metric.GetLabel() {
					if l.GetName() != "result" {
						continue
					}
					if l.GetValue() == ResultDropped {
						sum.LogDropped += value
					} else {
						sum.LogAccepted += value
					}
				}
			case namespace + "_queue_depth":
				for _, l := range metric.GetLabel() {
					if l.GetName() == "queue" {
						sum.QueueDepth[l.GetValue()] = int(metric.GetGauge().GetValue())
					}
				}
			}
		}
	}

	return sum, nil
}

// Samples returns the collected sample count.
func (m *Metrics) Samples() prometheus.Counter {
	return m.samples
}

// Anomalies returns the anomaly counter vector.
func (m *Metrics) Anomalies() *prometheus.CounterVec {
	return m.anomalies
}

// LogMessages returns the log message counter vector.
func (m *Metrics) LogMessages() *prometheus.CounterVec {
	return m.logMessages
}

func (m *Metrics) GeneratorCycles() prometheus.Counter {
	return m.generatorCycles
}
