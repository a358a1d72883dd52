package unit

import (
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"netgraph/internal/fault"
)

var (
	ErrUnitExists   = errors.New("unit already registered")
	ErrUnitNotFound = errors.New("unit not found")
)

// Registry owns a model's units by id and remembers insertion order, which
// is the order they serialize in.
type Registry struct {
	order []string
	byID  map[string]Unit
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Unit)}
}

// Put inserts u or replaces the unit with the same id in place.
func (r *Registry) Put(u Unit) {
	if r.byID == nil {
		r.byID = make(map[string]Unit)
	}
	if _, ok := r.byID[u.ID]; !ok {
		r.order = append(r.order, u.ID)
	}
	r.byID[u.ID] = u
}

// Add inserts u and fails when the id is taken.
func (r *Registry) Add(u Unit) error {
	if u.ID == "" {
		return fault.New(fault.UnitValidation, "unit id is required")
	}
	if _, ok := r.byID[u.ID]; ok {
		return fmt.Errorf("%w: %s", ErrUnitExists, u.ID)
	}
	r.Put(u)
	return nil
}

func (r *Registry) Get(id string) (Unit, bool) {
	u, ok := r.byID[id]
	return u, ok
}

func (r *Registry) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// Remove drops the given ids and reports how many were present.
func (r *Registry) Remove(ids ...string) int {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := r.byID[id]; ok {
			drop[id] = true
			delete(r.byID, id)
		}
	}
	if len(drop) == 0 {
		return 0
	}
	kept := r.order[:0]
	for _, id := range r.order {
		if !drop[id] {
			kept = append(kept, id)
		}
	}
	r.order = kept
	return len(drop)
}

func (r *Registry) Len() int {
	return len(r.order)
}

// List returns the units in insertion order.
func (r *Registry) List() []Unit {
	out := make([]Unit, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

func (r *Registry) Clone() *Registry {
	out := NewRegistry()
	for _, u := range r.List() {
		out.Put(u.Clone())
	}
	return out
}

// Validate checks every unit and returns the first failure.
func (r *Registry) Validate() error {
	for _, u := range r.List() {
		if err := u.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// load replaces the registry content and fails fast on duplicate ids.
func (r *Registry) load(units []Unit) error {
	r.order = nil
	r.byID = make(map[string]Unit, len(units))
	for _, u := range units {
		if err := r.Add(u); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.List())
}

func (r *Registry) UnmarshalJSON(data []byte) error {
	var units []Unit
	if err := json.Unmarshal(data, &units); err != nil {
		return err
	}
	return r.load(units)
}

func (r *Registry) MarshalYAML() (any, error) {
	return r.List(), nil
}

func (r *Registry) UnmarshalYAML(value *yaml.Node) error {
	var units []Unit
	if err := value.Decode(&units); err != nil {
		return err
	}
	return r.load(units)
}
