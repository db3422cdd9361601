package registry

import (
	"fmt"

	"codeberg.org/mutker/sensormon/internal/errors"
	"codeberg.org/mutker/sensormon/internal/machine"
)

// MaxRanges is the number of sensor ranges a machine kind may configure.
const MaxRanges = 3

// SensorRange is the accepted operating range of one sensor.
type SensorRange struct {
	Name string
	Min  float64
	Max  float64
}

// Contains reports whether v lies within [Min, Max]; the bounds are inclusive.
func (r SensorRange) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

func (r SensorRange) String() string {
	return fmt.Sprintf("[%.1f-%.1f]", r.Min, r.Max)
}

// MachineSpec is the static configuration of one machine kind.
type MachineSpec struct {
	DisplayName string
	Kind        machine.Kind
	Ranges      []SensorRange
}

// SensorNames returns the configured sensor names in order.
func (s MachineSpec) SensorNames() []string {
	names := make([]string, len(s.Ranges))
	for i, r := range s.Ranges {
		names[i] = r.Name
	}
	return names
}

// Range returns the range configured for the named sensor.
func (s MachineSpec) Range(name string) (SensorRange, bool) {
	for _, r := range s.Ranges {
		if r.Name == name {
			return r, true
		}
	}
	return SensorRange{}, false
}

// LoadSpecs returns the built-in machine table, one row per kind.
func LoadSpecs() []MachineSpec {
	return []MachineSpec{
		{
			DisplayName: "Air Compressor",
			Kind:        machine.AirCompressor,
			Ranges: []SensorRange{
				{Name: "Temperature", Min: 60, Max: 100}, // °C
				{Name: "Pressure", Min: 72, Max: 145},    // psi
				{Name: "Vibration", Min: 0.5, Max: 2.0},  // mm/s
			},
		},
		{
			DisplayName: "Steam Boiler",
			Kind:        machine.SteamBoiler,
			Ranges: []SensorRange{
				{Name: "Temperature", Min: 150, Max: 250},
				{Name: "Pressure", Min: 87, Max: 360},
			},
		},
		{
			DisplayName: "Electric Motor",
			Kind:        machine.ElectricMotor,
			Ranges: []SensorRange{
				{Name: "Temperature", Min: 60, Max: 105},
			},
		},
	}
}

// Catalog indexes machine specs by kind. It is immutable once built.
type Catalog struct {
	specs map[machine.Kind]MachineSpec
	order []machine.Kind
}

// NewCatalog validates specs and indexes them by kind. Ranges with an empty
// name are dropped; a kind may appear only once.
func NewCatalog(specs []MachineSpec) (*Catalog, error) {
	errFactory := errors.New()
	c := &Catalog{specs: make(map[machine.Kind]MachineSpec, len(specs))}

	for _, spec := range specs {
		if _, dup := c.specs[spec.Kind]; dup {
			return nil, errFactory.WithData(ErrInvalidSpec, fmt.Sprintf("duplicate spec for %s", spec.Kind))
		}

		ranges := make([]SensorRange, 0, len(spec.Ranges))
		for _, r := range spec.Ranges {
			if r.Name == "" {
				continue
			}
			if r.Min > r.Max {
				return nil, errFactory.WithData(ErrInvalidSpec,
					fmt.Sprintf("%s %s: min %.2f above max %.2f", spec.DisplayName, r.Name, r.Min, r.Max))
			}
			ranges = append(ranges, r)
		}
		if len(ranges) > MaxRanges {
			return nil, errFactory.WithData(ErrInvalidSpec,
				fmt.Sprintf("%s: %d ranges, at most %d allowed", spec.DisplayName, len(ranges), MaxRanges))
		}

		spec.Ranges = ranges
		c.specs[spec.Kind] = spec
		c.order = append(c.order, spec.Kind)
	}

	return c, nil
}

// DefaultCatalog builds the catalog from LoadSpecs.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(LoadSpecs())
	if err != nil {
		panic(err)
	}
	return c
}

// Spec returns the spec of kind.
func (c *Catalog) Spec(kind machine.Kind) (MachineSpec, error) {
	spec, ok := c.specs[kind]
	if !ok {
		return MachineSpec{}, errors.New().WithData(ErrUnknownKind, int(kind))
	}
	return spec, nil
}

// Range resolves the configured range of sensor under kind.
func (c *Catalog) Range(kind machine.Kind, sensor string) (SensorRange, error) {
	spec, err := c.Spec(kind)
	if err != nil {
		return SensorRange{}, err
	}

	r, ok := spec.Range(sensor)
	if !ok {
		return SensorRange{}, errors.New().WithData(ErrUnknownSensor,
			fmt.Sprintf("%s has no %s range", spec.DisplayName, sensor))
	}
	return r, nil
}

// Specs returns all specs in table order.
func (c *Catalog) Specs() []MachineSpec {
	specs := make([]MachineSpec, len(c.order))
	for i, k := range c.order {
		specs[i] = c.specs[k]
	}
	return specs
}
