// Package sample defines the immutable reading snapshot passed between
// pipeline stages.
package sample

import (
	"fmt"
	"time"

	"codeberg.org/mutker/sensormon/internal/machine"
	"codeberg.org/mutker/sensormon/internal/registry"
	"github.com/google/uuid"
)

// Sample holds the readings of one machine taken under a single lock.
// Values are copied on construction and must not be modified afterwards.
type Sample struct {
	ID       uuid.UUID
	Handle   registry.Handle
	Machine  string
	Kind     machine.Kind
	Taken    time.Time
	Readings []machine.Reading
}

func New(h registry.Handle, name string, kind machine.Kind, readings []machine.Reading) Sample {
	return Sample{
		ID:       uuid.New(),
		Handle:   h,
		Machine:  name,
		Kind:     kind,
		Taken:    time.Now(),
		Readings: append([]machine.Reading(nil), readings...),
	}
}

// Value returns the reading for sensor, if present.
func (s Sample) Value(sensor string) (float64, bool) {
	for _, r := range s.Readings {
		if r.Sensor == sensor {
			return r.Value, true
		}
	}
	return 0, false
}

func (s Sample) String() string {
	return fmt.Sprintf("%s (%d readings)", s.Machine, len(s.Readings))
}
