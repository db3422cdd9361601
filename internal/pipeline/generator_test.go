package pipeline_test

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"testing"

	"codeberg.org/mutker/sensormon/internal/anomaly"
	"codeberg.org/mutker/sensormon/internal/errors"
	"codeberg.org/mutker/sensormon/internal/logsink"
	"codeberg.org/mutker/sensormon/internal/machine"
	"codeberg.org/mutker/sensormon/internal/metrics"
	"codeberg.org/mutker/sensormon/internal/pipeline"
	"codeberg.org/mutker/sensormon/internal/registry"
	"codeberg.org/mutker/sensormon/internal/sample"
	"codeberg.org/mutker/sensormon/internal/sensor"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFleet(t *testing.T, opts ...registry.Option) *registry.Registry {
	t.Helper()
	reg := registry.New(registry.DefaultCatalog(), opts...)
	_, err := reg.InstantiateAll()
	require.NoError(t, err)
	return reg
}

// drain closes sink and returns everything it wrote.
func drain(t *testing.T, sink *logsink.Sink, out *bytes.Buffer) string {
	t.Helper()
	sink.Close()
	require.NoError(t, sink.Run(context.Background()))
	return out.String()
}

func TestGeneratorValuesWithinRange(t *testing.T) {
	reg := newFleet(t)
	m := metrics.New()
	g := pipeline.NewGenerator(reg, logsink.New(&bytes.Buffer{}, 16), pipeline.ReportSensor, 42,
		pipeline.WithMetrics(m))

	for range 200 {
		require.Equal(t, 3, g.Cycle())

		for _, h := range reg.Handles() {
			mach, err := reg.Machine(h)
			require.NoError(t, err)
			spec, err := reg.SpecOf(mach.Kind())
			require.NoError(t, err)

			for _, r := range spec.Ranges {
				v, ok := mach.Get(r.Name)
				require.True(t, ok)
				assert.GreaterOrEqual(t, v, r.Min)
				assert.LessOrEqual(t, v, r.Max)
			}
		}
	}

	assert.InDelta(t, 200, testutil.ToFloat64(m.GeneratorCycles()), 0)
}

func TestAirCompressorScenario(t *testing.T) {
	reg := registry.New(registry.DefaultCatalog())
	h, err := reg.Create("Air_Compressor_1", machine.AirCompressor)
	require.NoError(t, err)

	mach, err := reg.Machine(h)
	require.NoError(t, err)
	assert.Equal(t, []sensor.Kind{sensor.Temperature, sensor.Pressure, sensor.Vibration}, mach.SensorKinds())

	sink := logsink.New(&bytes.Buffer{}, 64)
	pipeline.NewGenerator(reg, sink, pipeline.ReportSensor, 7).Cycle()

	spec, err := reg.SpecOf(machine.AirCompressor)
	require.NoError(t, err)
	for _, r := range spec.Ranges {
		v, ok := mach.Get(r.Name)
		require.True(t, ok)
		assert.True(t, r.Contains(v), "%s=%v outside %s", r.Name, v, r)
	}

	d, err := anomaly.NewDetector(reg.Catalog(), sink)
	require.NoError(t, err)

	events := d.Inspect(context.Background(), sample.New(h, mach.Name(), mach.Kind(), []machine.Reading{
		{Sensor: "Temperature", Value: 150},
	}))
	require.Len(t, events, 1)
	assert.Equal(t, "Temperature", events[0].Sensor)
	assert.Equal(t, registry.SensorRange{Name: "Temperature", Min: 60, Max: 100}, events[0].Range)
}

func TestGeneratorSensorReport(t *testing.T) {
	reg := registry.New(registry.DefaultCatalog())
	_, err := reg.Create("Electric_Motor_1", machine.ElectricMotor)
	require.NoError(t, err)

	var out bytes.Buffer
	sink := logsink.New(&out, 16)
	pipeline.NewGenerator(reg, sink, pipeline.ReportSensor, 1).Cycle()

	line := regexp.MustCompile(`^1: Electric_Motor_1 Temperature = \d+\.\d{2}  \[range 60\.0-105\.0\]\n$`)
	assert.Regexp(t, line, drain(t, sink, &out))
}

func TestGeneratorSummaryReport(t *testing.T) {
	reg := newFleet(t)

	var out bytes.Buffer
	sink := logsink.New(&out, 16)
	pipeline.NewGenerator(reg, sink, pipeline.ReportSummary, 1).Cycle()

	assert.Equal(t,
		"1: Air_Compressor_1: 3 sensors updated\n"+
			"1: Steam_Boiler_1: 2 sensors updated\n"+
			"1: Electric_Motor_1: 1 sensors updated\n",
		drain(t, sink, &out))
}

func TestGeneratorSkipsMachineWithoutSpec(t *testing.T) {
	reg := newFleet(t)
	partial, err := registry.NewCatalog(registry.LoadSpecs()[:2])
	require.NoError(t, err)

	var out bytes.Buffer
	sink := logsink.New(&out, 16)
	g := pipeline.NewGenerator(reg, sink, pipeline.ReportSummary, 1, pipeline.WithCatalog(partial))

	assert.Equal(t, 2, g.Cycle())
	assert.Contains(t, drain(t, sink, &out), "1: Invalid machine type for Electric_Motor_1\n")
}

func TestGeneratorSeedIsDeterministic(t *testing.T) {
	values := func() []float64 {
		reg := newFleet(t)
		pipeline.NewGenerator(reg, logsink.New(&bytes.Buffer{}, 16), pipeline.ReportSummary, 99).Cycle()

		var vs []float64
		for _, h := range reg.Handles() {
			mach, err := reg.Machine(h)
			require.NoError(t, err)
			v, _ := mach.Get("Temperature")
			vs = append(vs, v)
		}
		return vs
	}

	assert.Equal(t, values(), values())
}

func TestParseReportMode(t *testing.T) {
	m, err := pipeline.ParseReportMode("summary")
	require.NoError(t, err)
	assert.Equal(t, pipeline.ReportSummary, m)

	_, err = pipeline.ParseReportMode("verbose")
	assert.True(t, errors.HasCode(err, pipeline.ErrInvalidReportMode))
}

func TestGeneratorRunStopsOnCancel(t *testing.T) {
	reg := newFleet(t)
	m := metrics.New()
	g := pipeline.NewGenerator(reg, logsink.New(&bytes.Buffer{}, 16), pipeline.ReportSummary, 1,
		pipeline.WithMetrics(m))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, g.Run(ctx))
	assert.InDelta(t, 1, testutil.ToFloat64(m.GeneratorCycles()), 0)
}

func TestReportModeString(t *testing.T) {
	assert.Equal(t, "sensor", pipeline.ReportSensor.String())
	assert.True(t, strings.HasPrefix(pipeline.ReportMode(7).String(), "unknown"))
}
