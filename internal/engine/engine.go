// Package engine declares the tensor engine contract the graph compiler builds
// against. Implementations own tensors, graphs and executables; the compiler
// only threads the opaque values between calls.
package engine

import (
	"context"
	"strconv"
	"strings"
)

// Tensor is a symbolic value produced by an engine primitive.
type Tensor interface {
	// Shape includes the leading batch dimension. Nil entries are unconstrained.
	Shape() []*int
}

// Graph is an assembled set of inputs and outputs ready for compilation.
type Graph interface {
	Inputs() []Tensor
	Outputs() []Tensor
}

// Optimizer is an engine-side optimizer instance.
type Optimizer interface {
	Kind() string
}

// Executable is a compiled graph.
type Executable interface {
	InputShapes() [][]*int
	OutputShapes() [][]*int
	Loss() string
	Metrics() []string
	// Predict runs a forward pass. inputs[i] is a batch of flattened samples
	// for graph input i; the result is indexed the same way by graph output.
	Predict(ctx context.Context, inputs [][][]float64) ([][][]float64, error)
}

type DenseConfig struct {
	Units             int
	UseBias           bool
	KernelInitializer string
}

type RecurrentConfig struct {
	Units             int
	UseBias           bool
	ReturnSequences   bool
	KernelInitializer string
}

type ActivationParams struct {
	Alpha    *float64
	MaxValue *float64
	Axis     *int
}

type OptimizerParams struct {
	LearningRate            *float64
	Momentum                *float64
	Rho                     *float64
	Epsilon                 *float64
	Beta1                   *float64
	Beta2                   *float64
	Decay                   *float64
	InitialAccumulatorValue *float64
	UseNesterov             bool
	Centered                bool
}

type Engine interface {
	Input(shape []*int) (Tensor, error)
	Dense(in Tensor, cfg DenseConfig) (Tensor, error)
	Recurrent(in Tensor, cfg RecurrentConfig) (Tensor, error)
	Reshape(in Tensor, shape []*int) (Tensor, error)
	Concat(inputs []Tensor) (Tensor, error)
	Activate(kind string, params ActivationParams, in Tensor) (Tensor, error)
	Optimizer(kind string, params OptimizerParams) (Optimizer, error)
	Assemble(inputs, outputs []Tensor) (Graph, error)
	Compile(ctx context.Context, graph Graph, optimizer Optimizer, loss string, metrics []string) (Executable, error)
}

// FormatShape renders a shape as "[null, 4]".
func FormatShape(shape []*int) string {
	parts := make([]string, len(shape))
	for i, dim := range shape {
		if dim == nil {
			parts[i] = "null"
			continue
		}
		parts[i] = strconv.Itoa(*dim)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Dims builds a fully specified shape.
func Dims(values ...int) []*int {
	out := make([]*int, len(values))
	for i := range values {
		v := values[i]
		out[i] = &v
	}
	return out
}

// CloneShape copies a shape including its dimension pointers.
func CloneShape(shape []*int) []*int {
	if shape == nil {
		return nil
	}
	out := make([]*int, len(shape))
	for i, dim := range shape {
		if dim != nil {
			v := *dim
			out[i] = &v
		}
	}
	return out
}
