// Package activation describes the activation functions a unit may apply
// after its primary transform.
package activation

import (
	"fmt"

	"netgraph/internal/check"
	"netgraph/internal/engine"
	"netgraph/internal/fault"
)

type Kind string

const (
	ELU         Kind = "elu"
	SELU        Kind = "selu"
	ReLU        Kind = "relu"
	ReLU6       Kind = "relu6"
	Linear      Kind = "linear"
	Sigmoid     Kind = "sigmoid"
	HardSigmoid Kind = "hardSigmoid"
	Softplus    Kind = "softplus"
	Softsign    Kind = "softsign"
	Tanh        Kind = "tanh"
	Softmax     Kind = "softmax"
)

// Kinds lists every supported activation in declaration order.
var Kinds = []Kind{ELU, SELU, ReLU, ReLU6, Linear, Sigmoid, HardSigmoid, Softplus, Softsign, Tanh, Softmax}

// Activation is a flat tagged value: Type selects which of the optional
// parameters are meaningful.
type Activation struct {
	Type     Kind     `json:"type" yaml:"type"`
	Alpha    *float64 `json:"alpha,omitempty" yaml:"alpha,omitempty"`
	MaxValue *float64 `json:"max_value,omitempty" yaml:"max_value,omitempty"`
	Axis     *int     `json:"axis,omitempty" yaml:"axis,omitempty"`
}

func New(kind Kind) Activation {
	return Activation{Type: kind}
}

func NewELU(alpha float64) Activation {
	return Activation{Type: ELU, Alpha: check.Ptr(alpha)}
}

func NewReLU(maxValue float64) Activation {
	return Activation{Type: ReLU, MaxValue: check.Ptr(maxValue)}
}

func NewSoftmax(axis int) Activation {
	return Activation{Type: Softmax, Axis: check.Ptr(axis)}
}

// Clone returns a copy that shares no parameter pointers with a.
func (a Activation) Clone() Activation {
	out := Activation{Type: a.Type}
	if a.Alpha != nil {
		out.Alpha = check.Ptr(*a.Alpha)
	}
	if a.MaxValue != nil {
		out.MaxValue = check.Ptr(*a.MaxValue)
	}
	if a.Axis != nil {
		out.Axis = check.Ptr(*a.Axis)
	}
	return out
}

// Validate reports the first violated parameter constraint.
func (a Activation) Validate() error {
	switch a.Type {
	case ELU:
		if err := a.only("alpha"); err != nil {
			return err
		}
		if a.Alpha != nil && *a.Alpha < 0 {
			return fault.Newf(fault.ActivationVerify, "elu alpha must be >= 0, got %g", *a.Alpha)
		}
	case ReLU:
		if err := a.only("max_value"); err != nil {
			return err
		}
		if !check.OptionalPositive(a.MaxValue) {
			return fault.Newf(fault.ActivationVerify, "relu max_value must be > 0, got %g", *a.MaxValue)
		}
	case Softmax:
		if err := a.only("axis"); err != nil {
			return err
		}
		if a.Axis != nil && !check.InRange(*a.Axis, -1, 1) {
			return fault.Newf(fault.ActivationVerify, "softmax axis must be in [-1, 1], got %d", *a.Axis)
		}
	case SELU, ReLU6, Linear, Sigmoid, HardSigmoid, Softplus, Softsign, Tanh:
		return a.only("")
	case "":
		return fault.New(fault.ActivationVerify, "activation type is required")
	default:
		return fault.Newf(fault.ActivationVerify, "unknown activation type %q", a.Type)
	}
	return nil
}

// only rejects parameters that do not belong to the activation type.
func (a Activation) only(allowed string) error {
	present := map[string]bool{
		"alpha":     a.Alpha != nil,
		"max_value": a.MaxValue != nil,
		"axis":      a.Axis != nil,
	}
	for _, name := range []string{"alpha", "max_value", "axis"} {
		if present[name] && name != allowed {
			return fault.Newf(fault.ActivationVerify, "%s does not accept parameter %s", a.Type, name)
		}
	}
	return nil
}

func (a Activation) String() string {
	switch {
	case a.Alpha != nil:
		return fmt.Sprintf("%s(alpha=%g)", a.Type, *a.Alpha)
	case a.MaxValue != nil:
		return fmt.Sprintf("%s(max_value=%g)", a.Type, *a.MaxValue)
	case a.Axis != nil:
		return fmt.Sprintf("%s(axis=%d)", a.Type, *a.Axis)
	default:
		return string(a.Type)
	}
}

// Compile validates a and applies it to in through the engine.
func Compile(eng engine.Engine, a Activation, in engine.Tensor) (engine.Tensor, error) {
	if err := a.Validate(); err != nil {
		return nil, fault.Wrap(fault.ActivationCompile, err, "invalid activation")
	}
	out, err := eng.Activate(string(a.Type), engine.ActivationParams{
		Alpha:    a.Alpha,
		MaxValue: a.MaxValue,
		Axis:     a.Axis,
	}, in)
	if err != nil {
		return nil, fault.Wrapf(fault.ActivationCompile, err, "apply %s", a.Type)
	}
	return out, nil
}
