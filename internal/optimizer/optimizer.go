// Package optimizer describes the numeric optimizer handed to the engine at
// compile time.
package optimizer

import (
	"strings"

	"netgraph/internal/check"
	"netgraph/internal/engine"
	"netgraph/internal/fault"
)

type Kind string

const (
	SGD      Kind = "_sgd"
	Momentum Kind = "_momentum"
	Adagrad  Kind = "_adagrad"
	Adadelta Kind = "_adadelta"
	Adam     Kind = "_adam"
	Adamax   Kind = "_adamax"
	RMSProp  Kind = "_rmsprop"
)

var Kinds = []Kind{SGD, Momentum, Adagrad, Adadelta, Adam, Adamax, RMSProp}

const (
	DefaultLearningRate = 0.01
	DefaultMomentum     = 0.1
)

type Optimizer struct {
	Type                    Kind     `json:"type" yaml:"type"`
	LearningRate            *float64 `json:"learning_rate,omitempty" yaml:"learning_rate,omitempty"`
	Momentum                *float64 `json:"momentum,omitempty" yaml:"momentum,omitempty"`
	UseNesterov             bool     `json:"use_nesterov,omitempty" yaml:"use_nesterov,omitempty"`
	InitialAccumulatorValue *float64 `json:"initial_accumulator_value,omitempty" yaml:"initial_accumulator_value,omitempty"`
	Rho                     *float64 `json:"rho,omitempty" yaml:"rho,omitempty"`
	Epsilon                 *float64 `json:"epsilon,omitempty" yaml:"epsilon,omitempty"`
	Beta1                   *float64 `json:"beta1,omitempty" yaml:"beta1,omitempty"`
	Beta2                   *float64 `json:"beta2,omitempty" yaml:"beta2,omitempty"`
	Decay                   *float64 `json:"decay,omitempty" yaml:"decay,omitempty"`
	Centered                bool     `json:"centered,omitempty" yaml:"centered,omitempty"`
}

// ParseKind accepts a kind with or without its leading underscore.
func ParseKind(name string) (Kind, error) {
	name = strings.TrimSpace(name)
	if name != "" && !strings.HasPrefix(name, "_") {
		name = "_" + name
	}
	kind := Kind(strings.ToLower(name))
	for _, k := range Kinds {
		if k == kind {
			return k, nil
		}
	}
	return "", fault.Newf(fault.OptimizerVerify, "unknown optimizer type %q", name)
}

// New returns kind with its default learning rate and, for momentum, its
// default momentum.
func New(kind Kind) Optimizer {
	o := Optimizer{Type: kind, LearningRate: check.Ptr(DefaultLearningRate)}
	if kind == Momentum {
		o.Momentum = check.Ptr(DefaultMomentum)
	}
	return o
}

type field struct {
	name     string
	value    *float64
	required bool
}

func (o Optimizer) fields() ([]field, error) {
	switch o.Type {
	case SGD:
		return []field{{"learning_rate", o.LearningRate, true}}, nil
	case Momentum:
		return []field{
			{"learning_rate", o.LearningRate, true},
			{"momentum", o.Momentum, true},
		}, nil
	case Adagrad:
		return []field{
			{"learning_rate", o.LearningRate, true},
			{"initial_accumulator_value", o.InitialAccumulatorValue, false},
		}, nil
	case Adadelta:
		return []field{
			{"learning_rate", o.LearningRate, false},
			{"rho", o.Rho, false},
			{"epsilon", o.Epsilon, false},
		}, nil
	case Adam:
		return []field{
			{"learning_rate", o.LearningRate, false},
			{"beta1", o.Beta1, false},
			{"beta2", o.Beta2, false},
			{"epsilon", o.Epsilon, false},
		}, nil
	case Adamax:
		return []field{
			{"learning_rate", o.LearningRate, false},
			{"beta1", o.Beta1, false},
			{"beta2", o.Beta2, false},
			{"epsilon", o.Epsilon, false},
			{"decay", o.Decay, false},
		}, nil
	case RMSProp:
		return []field{
			{"learning_rate", o.LearningRate, true},
			{"decay", o.Decay, false},
			{"momentum", o.Momentum, false},
			{"epsilon", o.Epsilon, false},
		}, nil
	case "":
		return nil, fault.New(fault.OptimizerVerify, "optimizer type is required")
	default:
		return nil, fault.Newf(fault.OptimizerVerify, "unknown optimizer type %q", o.Type)
	}
}

// Validate checks that required fields are present and every present value
// is strictly positive. Fields foreign to the type are rejected.
func (o Optimizer) Validate() error {
	fields, err := o.fields()
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(fields))
	for _, f := range fields {
		known[f.name] = true
		if f.required && f.value == nil {
			return fault.Newf(fault.OptimizerVerify, "%s requires %s", o.Type, f.name)
		}
		if !check.OptionalPositive(f.value) {
			return fault.Newf(fault.OptimizerVerify, "%s %s must be null or positive, got %g", o.Type, f.name, *f.value)
		}
	}
	for _, f := range o.all() {
		if f.value != nil && !known[f.name] {
			return fault.Newf(fault.OptimizerVerify, "%s does not accept %s", o.Type, f.name)
		}
	}
	if o.UseNesterov && o.Type != Momentum {
		return fault.Newf(fault.OptimizerVerify, "%s does not accept use_nesterov", o.Type)
	}
	if o.Centered && o.Type != RMSProp {
		return fault.Newf(fault.OptimizerVerify, "%s does not accept centered", o.Type)
	}
	return nil
}

func (o Optimizer) all() []field {
	return []field{
		{name: "learning_rate", value: o.LearningRate},
		{name: "momentum", value: o.Momentum},
		{name: "initial_accumulator_value", value: o.InitialAccumulatorValue},
		{name: "rho", value: o.Rho},
		{name: "epsilon", value: o.Epsilon},
		{name: "beta1", value: o.Beta1},
		{name: "beta2", value: o.Beta2},
		{name: "decay", value: o.Decay},
	}
}

func (o Optimizer) Clone() Optimizer {
	out := o
	for _, p := range []**float64{
		&out.LearningRate, &out.Momentum, &out.InitialAccumulatorValue, &out.Rho,
		&out.Epsilon, &out.Beta1, &out.Beta2, &out.Decay,
	} {
		if *p != nil {
			*p = check.Ptr(**p)
		}
	}
	return out
}

// Compile validates o and builds the engine-side optimizer.
func Compile(eng engine.Engine, o Optimizer) (engine.Optimizer, error) {
	if err := o.Validate(); err != nil {
		return nil, fault.Wrap(fault.OptimizerCompile, err, "invalid optimizer")
	}
	opt, err := eng.Optimizer(strings.TrimPrefix(string(o.Type), "_"), engine.OptimizerParams{
		LearningRate:            o.LearningRate,
		Momentum:                o.Momentum,
		Rho:                     o.Rho,
		Epsilon:                 o.Epsilon,
		Beta1:                   o.Beta1,
		Beta2:                   o.Beta2,
		Decay:                   o.Decay,
		InitialAccumulatorValue: o.InitialAccumulatorValue,
		UseNesterov:             o.UseNesterov,
		Centered:                o.Centered,
	})
	if err != nil {
		return nil, fault.Wrapf(fault.OptimizerCompile, err, "build %s", o.Type)
	}
	return opt, nil
}
