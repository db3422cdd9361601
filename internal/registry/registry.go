// Package registry owns the live machines and hands out checked handles to
// them. A handle carries a slot index and a generation, so a handle to a
// destroyed machine is rejected instead of resolving to whatever now
// occupies its slot.
package registry

import (
	"fmt"
	"sync"

	"codeberg.org/mutker/sensormon/internal/errors"
	"codeberg.org/mutker/sensormon/internal/logger"
	"codeberg.org/mutker/sensormon/internal/machine"
)

// Handle is an opaque reference to a registry-owned machine. The zero value
// is never valid.
type Handle uint64

func newHandle(index, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(index+1))
}

func (h Handle) index() (uint32, bool) {
	low := uint32(h)
	if low == 0 {
		return 0, false
	}
	return low - 1, true
}

func (h Handle) generation() uint32 {
	return uint32(h >> 32)
}

func (h Handle) String() string {
	idx, ok := h.index()
	if !ok {
		return "machine#invalid"
	}
	return fmt.Sprintf("machine#%d.%d", idx, h.generation())
}

type slot struct {
	machine *machine.Machine
	gen     uint32
}

type Option func(*Registry)

// WithReporter sets the diagnostic sink handed to every created machine.
func WithReporter(r machine.Reporter) Option {
	return func(reg *Registry) {
		reg.report = r
	}
}

// WithLogger sets the operational logger.
func WithLogger(l logger.Logger) Option {
	return func(reg *Registry) {
		if l != nil {
			reg.log = l
		}
	}
}

type Registry struct {
	catalog *Catalog
	mu      sync.RWMutex
	slots   []slot
	free    []uint32
	report  machine.Reporter
	log     logger.Logger
}

func New(catalog *Catalog, opts ...Option) *Registry {
	r := &Registry{
		catalog: catalog,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// InstantiateAll creates one machine per catalog spec, in spec order, named
// "<Kind>_1".
func (r *Registry) InstantiateAll() ([]Handle, error) {
	specs := r.catalog.Specs()
	handles := make([]Handle, 0, len(specs))

	for _, spec := range specs {
		h, err := r.Create(spec.Kind.Slug()+"_1", spec.Kind)
		if err != nil {
			return handles, err
		}
		handles = append(handles, h)
	}

	return handles, nil
}

// Create builds a machine of kind from its spec and registers it.
func (r *Registry) Create(name string, kind machine.Kind) (Handle, error) {
	spec, err := r.catalog.Spec(kind)
	if err != nil {
		return 0, err
	}

	m := machine.New(name, kind, spec.SensorNames(), machine.WithReporter(r.report))

	r.mu.Lock()
	defer r.mu.Unlock()

	var idx uint32
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		r.slots = append(r.slots, slot{})
		idx = uint32(len(r.slots) - 1)
	}

	r.slots[idx].machine = m
	h := newHandle(idx, r.slots[idx].gen)

	r.log.Debug().
		Str("machine", name).
		Str("kind", kind.String()).
		Int("sensors", len(m.SensorKinds())).
		Stringer("handle", h).
		Msg("Machine created")

	return h, nil
}

// Destroy releases the machine behind h. Its handle, and any copy of it,
// becomes invalid.
func (r *Registry) Destroy(h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx, err := r.resolve(h)
	if err != nil {
		return err
	}

	name := r.slots[idx].machine.Name()
	r.slots[idx].machine = nil
	r.slots[idx].gen++
	r.free = append(r.free, idx)

	r.log.Debug().Str("machine", name).Stringer("handle", h).Msg("Machine destroyed")

	return nil
}

// Machine resolves h.
func (r *Registry) Machine(h Handle) (*machine.Machine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx, err := r.resolve(h)
	if err != nil {
		return nil, err
	}
	return r.slots[idx].machine, nil
}

// KindOf returns the kind of the machine behind h.
func (r *Registry) KindOf(h Handle) (machine.Kind, error) {
	m, err := r.Machine(h)
	if err != nil {
		return 0, err
	}
	return m.Kind(), nil
}

// SpecOf returns the static spec of kind.
func (r *Registry) SpecOf(kind machine.Kind) (MachineSpec, error) {
	return r.catalog.Spec(kind)
}

// DisplayName returns the spec display name of kind, falling back to the
// kind's own name when the catalog has no entry.
func (r *Registry) DisplayName(kind machine.Kind) string {
	if spec, err := r.catalog.Spec(kind); err == nil {
		return spec.DisplayName
	}
	return kind.String()
}

func (r *Registry) Catalog() *Catalog {
	return r.catalog
}

// Handles returns the live handles in slot order.
func (r *Registry) Handles() []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handles := make([]Handle, 0, len(r.slots))
	for i, s := range r.slots {
		if s.machine != nil {
			handles = append(handles, newHandle(uint32(i), s.gen))
		}
	}
	return handles
}

// Len returns the number of live machines.
func (r *Registry) Len() int {
	return len(r.Handles())
}

// Close destroys every live machine.
func (r *Registry) Close() {
	for _, h := range r.Handles() {
		_ = r.Destroy(h)
	}
	r.log.Debug().Msg("Registry torn down")
}

// resolve must be called with mu held.
func (r *Registry) resolve(h Handle) (uint32, error) {
	idx, ok := h.index()
	if !ok || int(idx) >= len(r.slots) {
		return 0, errors.New().WithData(ErrInvalidHandle, h.String())
	}

	s := r.slots[idx]
	if s.machine == nil || s.gen != h.generation() {
		return 0, errors.New().WithData(ErrInvalidHandle, h.String())
	}
	return idx, nil
}
