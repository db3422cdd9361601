package anomaly

import (
	"fmt"
	"time"

	"codeberg.org/mutker/sensormon/internal/machine"
	"codeberg.org/mutker/sensormon/internal/registry"
	"github.com/google/uuid"
)

// Event is a reading found outside its accepted range.
type Event struct {
	ID       uuid.UUID
	SampleID uuid.UUID
	Handle   registry.Handle
	Machine  string
	Kind     machine.Kind
	Sensor   string
	Value    float64
	Range    registry.SensorRange
	Score    float64
	Detected time.Time
}

func (e Event) String() string {
	return fmt.Sprintf("ALERT %s %s=%.2f outside %s", e.Machine, e.Sensor, e.Value, e.Range)
}
