// Package sensor holds the typed measurement slots a machine is built from.
package sensor

// Kind identifies what a sensor measures. It never changes after creation.
type Kind int

const (
	Temperature Kind = iota
	Pressure
	Vibration
)

var kindNames = [...]string{
	Temperature: "Temperature",
	Pressure:    "Pressure",
	Vibration:   "Vibration",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Unknown"
	}
	return kindNames[k]
}

// Kinds returns every known kind in declaration order.
func Kinds() []Kind {
	return []Kind{Temperature, Pressure, Vibration}
}

// ParseKind resolves a sensor type name such as "Pressure".
func ParseKind(name string) (Kind, bool) {
	for i, n := range kindNames {
		if n == name {
			return Kind(i), true
		}
	}
	return 0, false
}

// Sensor stores the latest reading of one measurement. It performs no range
// validation and is not safe for concurrent use; the owning machine
// serializes access.
type Sensor struct {
	kind  Kind
	value float64
}

// New creates a sensor for the given type name. Unknown names yield false.
func New(name string) (*Sensor, bool) {
	kind, ok := ParseKind(name)
	if !ok {
		return nil, false
	}
	return &Sensor{kind: kind}, true
}

func (s *Sensor) Set(value float64) {
	s.value = value
}

func (s *Sensor) Read() float64 {
	return s.value
}

func (s *Sensor) Kind() Kind {
	return s.kind
}
