// Package machine models a monitored unit and the sensors it owns.
//
// A Machine serializes access to its sensors with a read/write lock so a
// batch of writes (Apply) and a batch of reads (Snapshot) never interleave.
package machine

import (
	"fmt"
	"strings"
	"sync"

	"codeberg.org/mutker/sensormon/internal/sensor"
)

// Sentinel is the value reported for a sensor the machine does not have.
const Sentinel = -1.0

// Reading pairs a sensor type name with a value.
type Reading struct {
	Sensor string
	Value  float64
}

// Reporter receives diagnostic text, such as lookup misses.
type Reporter func(text string)

type Option func(*Machine)

// WithReporter routes diagnostics to r instead of discarding them.
func WithReporter(r Reporter) Option {
	return func(m *Machine) {
		if r != nil {
			m.report = r
		}
	}
}

type Machine struct {
	name    string
	kind    Kind
	mu      sync.RWMutex
	sensors []*sensor.Sensor
	report  Reporter
}

// New builds a machine with one sensor per recognized name, in the given
// order. Unrecognized names are skipped.
func New(name string, kind Kind, sensorNames []string, opts ...Option) *Machine {
	m := &Machine{
		name:    name,
		kind:    kind,
		sensors: make([]*sensor.Sensor, 0, len(sensorNames)),
		report:  func(string) {},
	}
	for _, opt := range opts {
		opt(m)
	}

	for _, n := range sensorNames {
		if s, ok := sensor.New(n); ok {
			m.sensors = append(m.sensors, s)
		}
	}

	return m
}

func (m *Machine) Name() string {
	return m.name
}

func (m *Machine) Kind() Kind {
	return m.kind
}

// SensorKinds lists the kinds of the attached sensors in order.
func (m *Machine) SensorKinds() []sensor.Kind {
	m.mu.RLock()
	defer m.mu.RUnlock()

	kinds := make([]sensor.Kind, len(m.sensors))
	for i, s := range m.sensors {
		kinds[i] = s.Kind()
	}
	return kinds
}

// Set stores value in the first sensor whose type name matches. It reports
// false and emits a diagnostic when no such sensor exists.
func (m *Machine) Set(name string, value float64) bool {
	m.mu.Lock()
	s := m.find(name)
	if s != nil {
		s.Set(value)
	}
	m.mu.Unlock()

	if s == nil {
		m.notFound(name)
		return false
	}
	return true
}

// Get returns the current value of the named sensor. A miss emits a
// diagnostic and returns Sentinel with ok set to false.
func (m *Machine) Get(name string) (float64, bool) {
	m.mu.RLock()
	s := m.find(name)
	var v float64
	if s != nil {
		v = s.Read()
	}
	m.mu.RUnlock()

	if s == nil {
		m.notFound(name)
		return Sentinel, false
	}
	return v, true
}

// Apply writes all readings under a single write lock and returns the
// names that did not resolve to a sensor.
func (m *Machine) Apply(readings []Reading) []string {
	var missing []string

	m.mu.Lock()
	for _, r := range readings {
		if s := m.find(r.Sensor); s != nil {
			s.Set(r.Value)
			continue
		}
		missing = append(missing, r.Sensor)
	}
	m.mu.Unlock()

	for _, name := range missing {
		m.notFound(name)
	}
	return missing
}

// Snapshot reads the named sensors under a single read lock. Readings keep
// the order of names; misses are returned separately.
func (m *Machine) Snapshot(names []string) ([]Reading, []string) {
	readings := make([]Reading, 0, len(names))
	var missing []string

	m.mu.RLock()
	for _, name := range names {
		if s := m.find(name); s != nil {
			readings = append(readings, Reading{Sensor: name, Value: s.Read()})
			continue
		}
		missing = append(missing, name)
	}
	m.mu.RUnlock()

	for _, name := range missing {
		m.notFound(name)
	}
	return readings, missing
}

// Display lists the machine name and its sensor types.
func (m *Machine) Display() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Machine: %s", m.name)
	for _, k := range m.SensorKinds() {
		fmt.Fprintf(&b, "\n  - Sensor Type: %s", k)
	}
	return b.String()
}

// find must be called with mu held.
func (m *Machine) find(name string) *sensor.Sensor {
	for _, s := range m.sensors {
		if s.Kind().String() == name {
			return s
		}
	}
	return nil
}

func (m *Machine) notFound(name string) {
	m.report(fmt.Sprintf("Sensor type %s not found in machine %s", name, m.name))
}
