// Package machineapi is the handle-based machine interface offered to
// external callers. Every handle is checked against the registry, so stale
// or forged handles yield ErrInvalidHandle rather than touching memory.
package machineapi

import (
	"strings"

	"codeberg.org/mutker/sensormon/internal/errors"
	"codeberg.org/mutker/sensormon/internal/logsink"
	"codeberg.org/mutker/sensormon/internal/machine"
	"codeberg.org/mutker/sensormon/internal/registry"
)

type API struct {
	reg  *registry.Registry
	sink *logsink.Sink
}

func New(reg *registry.Registry, sink *logsink.Sink) *API {
	return &API{reg: reg, sink: sink}
}

func (a *API) CreateMachine(name string, kind machine.Kind) (registry.Handle, error) {
	return a.reg.Create(name, kind)
}

func (a *API) DestroyMachine(h registry.Handle) error {
	return a.reg.Destroy(h)
}

// DescribeMachine writes the machine's name and sensor types to the log
// sink, one message per line.
func (a *API) DescribeMachine(h registry.Handle) error {
	m, err := a.reg.Machine(h)
	if err != nil {
		return err
	}

	for _, line := range strings.Split(m.Display(), "\n") {
		a.sink.Enqueue(logsink.NewMessage(logsink.SourceRegistry, line))
	}
	return nil
}

func (a *API) SetSensorValue(h registry.Handle, sensor string, value float64) error {
	m, err := a.reg.Machine(h)
	if err != nil {
		return err
	}

	if !m.Set(sensor, value) {
		return errors.New().WithData(ErrSensorNotFound, sensor)
	}
	return nil
}

// GetSensorValue returns machine.Sentinel together with ErrSensorNotFound
// when the machine has no such sensor.
func (a *API) GetSensorValue(h registry.Handle, sensor string) (float64, error) {
	m, err := a.reg.Machine(h)
	if err != nil {
		return machine.Sentinel, err
	}

	v, ok := m.Get(sensor)
	if !ok {
		return machine.Sentinel, errors.New().WithData(ErrSensorNotFound, sensor)
	}
	return v, nil
}

func (a *API) GetMachineType(h registry.Handle) (machine.Kind, error) {
	return a.reg.KindOf(h)
}

// GetMachineTypeString returns the display name of kind, or "Unknown Type".
func (*API) GetMachineTypeString(kind machine.Kind) string {
	return kind.String()
}
