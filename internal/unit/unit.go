// Package unit defines the layer kinds a structure node can carry and the
// registry a model keeps them in.
package unit

import (
	"netgraph/internal/activation"
	"netgraph/internal/check"
	"netgraph/internal/engine"
	"netgraph/internal/fault"
	"netgraph/internal/ident"
)

type Kind string

const (
	Input      Kind = "_input"
	Sequential Kind = "_sequential"
	Recurrent  Kind = "_recurrent"
	Transform  Kind = "_transform"
	Output     Kind = "_output"
)

var Kinds = []Kind{Input, Sequential, Recurrent, Transform, Output}

// Unit is a flat tagged record; Type decides which fields apply.
// Shape entries are nil for an unconstrained dimension.
type Unit struct {
	ID              string                 `json:"id" yaml:"id"`
	Type            Kind                   `json:"type" yaml:"type"`
	Shape           []*int                 `json:"shape,omitempty" yaml:"shape,omitempty"`
	Units           int                    `json:"units,omitempty" yaml:"units,omitempty"`
	Activation      *activation.Activation `json:"activation,omitempty" yaml:"activation,omitempty"`
	UseBias         bool                   `json:"use_bias,omitempty" yaml:"use_bias,omitempty"`
	ReturnSequences bool                   `json:"return_sequences,omitempty" yaml:"return_sequences,omitempty"`
}

type Option func(*Unit)

func WithID(id string) Option {
	return func(u *Unit) { u.ID = id }
}

// WithShape sets the shape from concrete dimensions. Use WithShapeDims for
// unconstrained entries.
func WithShape(dims ...int) Option {
	return func(u *Unit) { u.Shape = engine.Dims(dims...) }
}

func WithShapeDims(shape []*int) Option {
	return func(u *Unit) { u.Shape = engine.CloneShape(shape) }
}

func WithUnits(n int) Option {
	return func(u *Unit) { u.Units = n }
}

func WithActivation(a activation.Activation) Option {
	return func(u *Unit) {
		c := a.Clone()
		u.Activation = &c
	}
}

func WithBias(useBias bool) Option {
	return func(u *Unit) { u.UseBias = useBias }
}

func WithReturnSequences(v bool) Option {
	return func(u *Unit) { u.ReturnSequences = v }
}

// New builds a unit of the given kind with defaults, applies opts and
// validates the result.
func New(kind Kind, opts ...Option) (Unit, error) {
	u := Unit{ID: ident.NewID(), Type: kind}
	switch kind {
	case Input:
		u.Shape = engine.Dims(1, 1)
	case Sequential, Recurrent, Output:
		u.Units = 1
		u.UseBias = true
	case Transform:
	default:
		return Unit{}, fault.Newf(fault.UnitCreate, "unknown unit type %q", kind)
	}
	for _, opt := range opts {
		opt(&u)
	}
	if err := u.Validate(); err != nil {
		return Unit{}, fault.Wrapf(fault.UnitCreate, err, "create %s unit", kind)
	}
	return u, nil
}

func (u Unit) Validate() error {
	if u.ID == "" {
		return fault.New(fault.UnitValidation, "unit id is required")
	}
	for i, dim := range u.Shape {
		if dim != nil && !check.Positive(*dim) {
			return fault.Newf(fault.UnitValidation, "unit %s: shape[%d] must be positive or null, got %d", u.ID, i, *dim)
		}
	}

	switch u.Type {
	case Input:
		if len(u.Shape) == 0 {
			return fault.Newf(fault.UnitValidation, "unit %s: input shape is required", u.ID)
		}
		if u.Units != 0 || u.Activation != nil || u.UseBias {
			return fault.Newf(fault.UnitValidation, "unit %s: input accepts only a shape", u.ID)
		}
	case Sequential, Output, Recurrent:
		if !check.Positive(u.Units) {
			return fault.Newf(fault.UnitValidation, "unit %s: units must be positive, got %d", u.ID, u.Units)
		}
	case Transform:
		if len(u.Shape) == 0 {
			return fault.Newf(fault.UnitValidation, "unit %s: transform target shape is required", u.ID)
		}
		if u.Units != 0 || u.UseBias {
			return fault.Newf(fault.UnitValidation, "unit %s: transform does not accept units or bias", u.ID)
		}
	case "":
		return fault.Newf(fault.UnitValidation, "unit %s: type is required", u.ID)
	default:
		return fault.Newf(fault.UnitValidation, "unit %s: unknown type %q", u.ID, u.Type)
	}

	if u.ReturnSequences && u.Type != Recurrent {
		return fault.Newf(fault.UnitValidation, "unit %s: return_sequences applies to recurrent units only", u.ID)
	}
	if u.Activation != nil {
		if err := u.Activation.Validate(); err != nil {
			return fault.Wrapf(fault.UnitValidation, err, "unit %s", u.ID)
		}
	}
	return nil
}

func (u Unit) Clone() Unit {
	out := u
	out.Shape = engine.CloneShape(u.Shape)
	if u.Activation != nil {
		a := u.Activation.Clone()
		out.Activation = &a
	}
	return out
}
