package machine_test

import (
	"sync"
	"testing"

	"codeberg.org/mutker/sensormon/internal/machine"
	"codeberg.org/mutker/sensormon/internal/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *recorder) report(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, text)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lines)
}

func TestNewKeepsOrderAndSkipsUnknown(t *testing.T) {
	m := machine.New("Air_Compressor_1", machine.AirCompressor,
		[]string{"Vibration", "Humidity", "Temperature", "", "Pressure"})

	assert.Equal(t, []sensor.Kind{sensor.Vibration, sensor.Temperature, sensor.Pressure}, m.SensorKinds())
	assert.Equal(t, "Air_Compressor_1", m.Name())
	assert.Equal(t, machine.AirCompressor, m.Kind())
}

func TestElectricMotorSkipsHumidity(t *testing.T) {
	m := machine.New("Electric_Motor_1", machine.ElectricMotor, []string{"Temperature", "Humidity"})

	assert.Equal(t, []sensor.Kind{sensor.Temperature}, m.SensorKinds())
}

func TestSetGetRoundTrip(t *testing.T) {
	m := machine.New("Steam_Boiler_1", machine.SteamBoiler, []string{"Temperature", "Pressure"})

	for _, v := range []float64{150, 249.999, -12.25} {
		require.True(t, m.Set("Temperature", v))
		got, ok := m.Get("Temperature")
		require.True(t, ok)
		assert.Equal(t, v, got)
	}
}

func TestLookupMiss(t *testing.T) {
	rec := &recorder{}
	m := machine.New("Electric_Motor_1", machine.ElectricMotor, []string{"Temperature"},
		machine.WithReporter(rec.report))
	require.True(t, m.Set("Temperature", 80))

	v, ok := m.Get("Pressure")
	assert.False(t, ok)
	assert.Equal(t, machine.Sentinel, v)
	require.Equal(t, 1, rec.count())
	assert.Equal(t, "Sensor type Pressure not found in machine Electric_Motor_1", rec.lines[0])

	assert.False(t, m.Set("Pressure", 100))
	assert.Equal(t, 2, rec.count())

	got, ok := m.Get("Temperature")
	require.True(t, ok)
	assert.Equal(t, 80.0, got, "a miss must not touch other sensors")
}

func TestApplyAndSnapshot(t *testing.T) {
	rec := &recorder{}
	m := machine.New("Air_Compressor_1", machine.AirCompressor,
		[]string{"Temperature", "Pressure", "Vibration"}, machine.WithReporter(rec.report))

	missing := m.Apply([]machine.Reading{
		{Sensor: "Temperature", Value: 61},
		{Sensor: "Humidity", Value: 40},
		{Sensor: "Vibration", Value: 1.5},
	})
	assert.Equal(t, []string{"Humidity"}, missing)

	readings, missing := m.Snapshot([]string{"Vibration", "Temperature", "Flow"})
	assert.Equal(t, []string{"Flow"}, missing)
	assert.Equal(t, []machine.Reading{
		{Sensor: "Vibration", Value: 1.5},
		{Sensor: "Temperature", Value: 61},
	}, readings)
	assert.Equal(t, 2, rec.count())
}

func TestSnapshotNeverTorn(t *testing.T) {
	m := machine.New("Steam_Boiler_1", machine.SteamBoiler, []string{"Temperature", "Pressure"})
	names := []string{"Temperature", "Pressure"}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			v := float64(i)
			m.Apply([]machine.Reading{{Sensor: "Temperature", Value: v}, {Sensor: "Pressure", Value: v}})
		}
	}()

	for i := 0; i < 2000; i++ {
		readings, _ := m.Snapshot(names)
		require.Len(t, readings, 2)
		require.Equal(t, readings[0].Value, readings[1].Value)
	}
	wg.Wait()
}

func TestDisplay(t *testing.T) {
	m := machine.New("Steam_Boiler_1", machine.SteamBoiler, []string{"Temperature", "Pressure"})

	assert.Equal(t, "Machine: Steam_Boiler_1\n  - Sensor Type: Temperature\n  - Sensor Type: Pressure", m.Display())
}

func TestKind(t *testing.T) {
	assert.Equal(t, "Air Compressor", machine.AirCompressor.String())
	assert.Equal(t, "Electric_Motor", machine.ElectricMotor.Slug())
	assert.Equal(t, "Unknown Type", machine.Kind(7).String())
	assert.False(t, machine.Kind(-1).Valid())
	assert.Len(t, machine.Kinds(), 3)
}
