package pipeline

import (
	"context"
	"math/rand/v2"
	"time"

	"codeberg.org/mutker/sensormon/internal/errors"
	"codeberg.org/mutker/sensormon/internal/logsink"
	"codeberg.org/mutker/sensormon/internal/machine"
	"codeberg.org/mutker/sensormon/internal/registry"
	"gonum.org/v1/gonum/stat/distuv"
)

// ReportMode selects the generator's console diagnostics.
type ReportMode int

const (
	// ReportSensor writes one line per sensor write.
	ReportSensor ReportMode = iota
	// ReportSummary writes one line per machine.
	ReportSummary
)

func (m ReportMode) String() string {
	switch m {
	case ReportSensor:
		return "sensor"
	case ReportSummary:
		return "summary"
	default:
		return "unknown"
	}
}

func ParseReportMode(name string) (ReportMode, error) {
	for _, m := range []ReportMode{ReportSensor, ReportSummary} {
		if m.String() == name {
			return m, nil
		}
	}
	return 0, errors.New().WithData(ErrInvalidReportMode, name)
}

// Generator writes simulated in-range values into every sensor of every
// live machine. It is the only writer of machine state.
type Generator struct {
	stage
	report ReportMode
	src    rand.Source
}

// NewGenerator seeds the value source with seed; zero selects a time based
// seed.
func NewGenerator(reg *registry.Registry, sink *logsink.Sink, report ReportMode, seed uint64, opts ...StageOption) *Generator {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Generator{
		stage:  newStage(reg, sink, opts),
		report: report,
		src:    rand.NewPCG(seed, seed^0x9e3779b97f4a7c15),
	}
}

// Cycle performs one generation pass and returns the number of machines
// written. Machines whose kind has no spec are reported and skipped.
func (g *Generator) Cycle() int {
	written := 0

	for _, h := range g.reg.Handles() {
		m, err := g.reg.Machine(h)
		if err != nil {
			continue
		}

		spec, err := g.catalog.Spec(m.Kind())
		if err != nil {
			g.sink.Logf(logsink.SourceGenerator, "Invalid machine type for %s", m.Name())
			g.log.Warn().Err(err).Str("machine", m.Name()).Msg("Skipping machine without spec")
			continue
		}

		readings := make([]machine.Reading, 0, len(spec.Ranges))
		for _, r := range spec.Ranges {
			readings = append(readings, machine.Reading{Sensor: r.Name, Value: g.draw(r)})
		}
		m.Apply(readings)
		written++

		g.reportWrites(m.Name(), spec, readings)
	}

	g.metrics.GeneratorCycle()
	return written
}

func (g *Generator) draw(r registry.SensorRange) float64 {
	u := distuv.Uniform{Min: r.Min, Max: r.Max, Src: g.src}
	return u.Rand()
}

func (g *Generator) reportWrites(name string, spec registry.MachineSpec, readings []machine.Reading) {
	if g.report == ReportSummary {
		g.sink.Logf(logsink.SourceGenerator, "%s: %d sensors updated", name, len(readings))
		return
	}

	for i, r := range readings {
		rng := spec.Ranges[i]
		g.sink.Logf(logsink.SourceGenerator, "%s %s = %.2f  [range %.1f-%.1f]",
			name, r.Sensor, r.Value, rng.Min, rng.Max)
	}
}

// Run generates once per interval until ctx ends.
func (g *Generator) Run(ctx context.Context) error {
	g.log.Debug().
		Dur("interval", g.interval).
		Str("report", g.report.String()).
		Msg("Generator started")

	return g.every(ctx, func(context.Context) error {
		g.Cycle()
		return nil
	})
}
