package dense

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netgraph/internal/activation"
	"netgraph/internal/engine"
)

func compileGraph(t *testing.T, e *Engine, inputs, outputs []engine.Tensor) *Executable {
	t.Helper()
	g, err := e.Assemble(inputs, outputs)
	require.NoError(t, err)
	opt, err := e.Optimizer("sgd", engine.OptimizerParams{})
	require.NoError(t, err)
	x, err := e.Compile(context.Background(), g, opt, "meanSquaredError", []string{"mse"})
	require.NoError(t, err)
	return x.(*Executable)
}

func TestBuiltInActivationsCoverEveryKind(t *testing.T) {
	names := ListActivations()
	for _, kind := range activation.Kinds {
		assert.Contains(t, names, string(kind))
	}
}

func TestActivationValues(t *testing.T) {
	apply := func(name string, p engine.ActivationParams, v ...float64) []float64 {
		fn, err := GetActivation(name)
		require.NoError(t, err)
		fn(p, v)
		return v
	}
	six := 6.0
	half := 0.5

	assert.Equal(t, []float64{0, 2, 6}, apply("relu", engine.ActivationParams{MaxValue: &six}, -1, 2, 9))
	assert.Equal(t, []float64{0, 6}, apply("relu6", engine.ActivationParams{}, -3, 7))
	assert.Equal(t, []float64{0, 1}, apply("hardSigmoid", engine.ActivationParams{}, -5, 5))
	assert.InDelta(t, 0.5*(math.Exp(-1)-1), apply("elu", engine.ActivationParams{Alpha: &half}, -1)[0], 1e-12)
	assert.InDelta(t, 0.5, apply("sigmoid", engine.ActivationParams{}, 0)[0], 1e-12)
	assert.InDelta(t, 0.5, apply("softsign", engine.ActivationParams{}, 1)[0], 1e-12)
	assert.InDelta(t, 40.0, apply("softplus", engine.ActivationParams{}, 40)[0], 1e-12)

	soft := apply("softmax", engine.ActivationParams{}, 1, 2, 3)
	assert.InDelta(t, 1.0, soft[0]+soft[1]+soft[2], 1e-12)
	assert.Less(t, soft[0], soft[2])
}

func TestActivationRegistry(t *testing.T) {
	t.Cleanup(resetActivationRegistryForTests)

	err := RegisterActivation("relu", func(engine.ActivationParams, []float64) {})
	assert.True(t, errors.Is(err, ErrActivationExists))
	require.NoError(t, RegisterActivation("double", func(_ engine.ActivationParams, v []float64) {
		for i := range v {
			v[i] *= 2
		}
	}))
	fn, err := GetActivation("double")
	require.NoError(t, err)
	v := []float64{1.5}
	fn(engine.ActivationParams{}, v)
	assert.Equal(t, 3.0, v[0])

	_, err = GetActivation("missing")
	assert.ErrorIs(t, err, ErrActivationNotFound)
}

func TestDenseForwardWithZeroKernelIsBias(t *testing.T) {
	e := New()
	in, err := e.Input(engine.Dims(3))
	require.NoError(t, err)
	out, err := e.Dense(in, engine.DenseConfig{Units: 2, UseBias: true, KernelInitializer: "zeros"})
	require.NoError(t, err)
	assert.Equal(t, "[null, 2]", engine.FormatShape(out.Shape()))

	x := compileGraph(t, e, []engine.Tensor{in}, []engine.Tensor{out})
	assert.Equal(t, 3*2+2, x.ParamCount())
	got, err := x.Predict(context.Background(), [][][]float64{{{1, 2, 3}, {4, 5, 6}}})
	require.NoError(t, err)
	assert.Equal(t, [][][]float64{{{0, 0}, {0, 0}}}, got)
}

func TestSeededEnginesAgree(t *testing.T) {
	run := func(seed uint64) [][][]float64 {
		e := New(WithSeed(seed))
		in, err := e.Input(engine.Dims(4))
		require.NoError(t, err)
		h, err := e.Dense(in, engine.DenseConfig{Units: 5, UseBias: true})
		require.NoError(t, err)
		h, err = e.Activate("tanh", engine.ActivationParams{}, h)
		require.NoError(t, err)
		out, err := e.Dense(h, engine.DenseConfig{Units: 1})
		require.NoError(t, err)
		x := compileGraph(t, e, []engine.Tensor{in}, []engine.Tensor{out})
		got, err := x.Predict(context.Background(), [][][]float64{{{1, -1, 0.5, 2}}})
		require.NoError(t, err)
		return got
	}
	a, b, c := run(7), run(7), run(8)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestConcatJoinsLastAxis(t *testing.T) {
	e := New()
	a, err := e.Input(engine.Dims(2))
	require.NoError(t, err)
	b, err := e.Input(engine.Dims(3))
	require.NoError(t, err)
	joined, err := e.Concat([]engine.Tensor{a, b})
	require.NoError(t, err)
	assert.Equal(t, "[null, 5]", engine.FormatShape(joined.Shape()))

	x := compileGraph(t, e, []engine.Tensor{a, b}, []engine.Tensor{joined})
	got, err := x.Predict(context.Background(), [][][]float64{
		{{1, 2}, {3, 4}},
		{{5, 6, 7}, {8, 9, 10}},
	})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 2, 5, 6, 7}, {3, 4, 8, 9, 10}}, got[0])
}

func TestConcatRejectsMismatchedSteps(t *testing.T) {
	e := New()
	a, err := e.Input(engine.Dims(2, 3))
	require.NoError(t, err)
	b, err := e.Input(engine.Dims(4, 3))
	require.NoError(t, err)
	_, err = e.Concat([]engine.Tensor{a, b})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestReshapeAndRecurrent(t *testing.T) {
	e := New()
	in, err := e.Input(engine.Dims(6))
	require.NoError(t, err)
	seq, err := e.Reshape(in, engine.Dims(3, 2))
	require.NoError(t, err)
	assert.Equal(t, "[null, 3, 2]", engine.FormatShape(seq.Shape()))

	_, err = e.Reshape(in, engine.Dims(4))
	assert.ErrorIs(t, err, ErrShapeMismatch)

	full, err := e.Recurrent(seq, engine.RecurrentConfig{Units: 4, ReturnSequences: true, KernelInitializer: "zeros"})
	require.NoError(t, err)
	assert.Equal(t, "[null, 3, 4]", engine.FormatShape(full.Shape()))
	last, err := e.Recurrent(seq, engine.RecurrentConfig{Units: 4, UseBias: true})
	require.NoError(t, err)
	assert.Equal(t, "[null, 4]", engine.FormatShape(last.Shape()))

	_, err = e.Recurrent(in, engine.RecurrentConfig{Units: 4})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	x := compileGraph(t, e, []engine.Tensor{in}, []engine.Tensor{full, last})
	got, err := x.Predict(context.Background(), [][][]float64{{{1, 2, 3, 4, 5, 6}}})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, make([]float64, 12), got[0][0])
	require.Len(t, got[1][0], 4)
	for _, v := range got[1][0] {
		assert.Less(t, math.Abs(v), 1.0)
	}
}

func TestSoftmaxAxisRange(t *testing.T) {
	e := New()
	in, err := e.Input(engine.Dims(2, 3))
	require.NoError(t, err)
	for _, axis := range []int{-1, 0, 1, 2} {
		_, err = e.Activate("softmax", engine.ActivationParams{Axis: &axis}, in)
		assert.NoError(t, err, "axis %d", axis)
	}
	for _, axis := range []int{-2, 3} {
		_, err = e.Activate("softmax", engine.ActivationParams{Axis: &axis}, in)
		assert.ErrorIs(t, err, ErrUnsupported, "axis %d", axis)
	}
}

func TestSoftmaxOverBatchAxis(t *testing.T) {
	e := New()
	in, err := e.Input(engine.Dims(2))
	require.NoError(t, err)
	zero := 0
	out, err := e.Activate("softmax", engine.ActivationParams{Axis: &zero}, in)
	require.NoError(t, err)
	x := compileGraph(t, e, []engine.Tensor{in}, []engine.Tensor{out})

	got, err := x.Predict(context.Background(), [][][]float64{{{1, 5}, {1, 0}, {1, -5}}})
	require.NoError(t, err)
	rows := got[0]
	for col := 0; col < 2; col++ {
		assert.InDelta(t, 1.0, rows[0][col]+rows[1][col]+rows[2][col], 1e-12, "column %d", col)
	}
	assert.InDelta(t, 1.0/3, rows[0][0], 1e-12)
	assert.Greater(t, rows[0][1], rows[1][1])
	assert.Greater(t, rows[1][1], rows[2][1])
}

func TestSoftmaxOverMiddleAxis(t *testing.T) {
	e := New()
	in, err := e.Input(engine.Dims(2, 3))
	require.NoError(t, err)
	one := 1
	out, err := e.Activate("softmax", engine.ActivationParams{Axis: &one}, in)
	require.NoError(t, err)
	x := compileGraph(t, e, []engine.Tensor{in}, []engine.Tensor{out})

	// one sample laid out as [[0 1 2] [0 3 2]]; axis 1 pairs values three apart
	got, err := x.Predict(context.Background(), [][][]float64{{{0, 1, 2, 0, 3, 2}}})
	require.NoError(t, err)
	row := got[0][0]
	assert.InDelta(t, 0.5, row[0], 1e-12)
	assert.InDelta(t, 0.5, row[3], 1e-12)
	assert.InDelta(t, 1.0, row[1]+row[4], 1e-12)
	assert.Less(t, row[1], row[4])
	assert.InDelta(t, 0.5, row[2], 1e-12)
}

func TestInputRequiresKnownDims(t *testing.T) {
	e := New()
	_, err := e.Input([]*int{nil, engine.Dims(3)[0]})
	assert.ErrorIs(t, err, ErrUnknownDimension)
	_, err = e.Input(nil)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestForeignTensorsAreRejected(t *testing.T) {
	a, b := New(), New()
	in, err := a.Input(engine.Dims(2))
	require.NoError(t, err)
	_, err = b.Dense(in, engine.DenseConfig{Units: 1})
	assert.ErrorIs(t, err, ErrForeignTensor)
}

func TestAssembleRejectsDetachedInput(t *testing.T) {
	e := New()
	a, err := e.Input(engine.Dims(2))
	require.NoError(t, err)
	b, err := e.Input(engine.Dims(2))
	require.NoError(t, err)
	joined, err := e.Concat([]engine.Tensor{a, b})
	require.NoError(t, err)

	_, err = e.Assemble([]engine.Tensor{a}, []engine.Tensor{joined})
	assert.ErrorIs(t, err, ErrDetachedInput)
	_, err = e.Assemble([]engine.Tensor{joined}, []engine.Tensor{joined})
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestCompileChecksLossMetricsAndOptimizer(t *testing.T) {
	e := New()
	in, err := e.Input(engine.Dims(2))
	require.NoError(t, err)
	g, err := e.Assemble([]engine.Tensor{in}, []engine.Tensor{in})
	require.NoError(t, err)
	opt, err := e.Optimizer("adam", engine.OptimizerParams{})
	require.NoError(t, err)
	assert.Equal(t, "adam", opt.Kind())

	_, err = e.Optimizer("lbfgs", engine.OptimizerParams{})
	assert.ErrorIs(t, err, ErrUnknownOptimizer)
	_, err = e.Compile(context.Background(), g, opt, "hinge", nil)
	assert.ErrorIs(t, err, ErrUnknownLoss)
	_, err = e.Compile(context.Background(), g, opt, "meanSquaredError", []string{"accuracy"})
	assert.ErrorIs(t, err, ErrUnknownMetric)
	_, err = e.Compile(context.Background(), g, nil, "meanSquaredError", nil)
	assert.ErrorIs(t, err, ErrUnknownOptimizer)
}

func TestPredictValidatesInputs(t *testing.T) {
	e := New()
	in, err := e.Input(engine.Dims(2))
	require.NoError(t, err)
	x := compileGraph(t, e, []engine.Tensor{in}, []engine.Tensor{in})

	_, err = x.Predict(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInputMismatch)
	_, err = x.Predict(context.Background(), [][][]float64{{}})
	assert.ErrorIs(t, err, ErrInputMismatch)
	_, err = x.Predict(context.Background(), [][][]float64{{{1, 2, 3}}})
	assert.ErrorIs(t, err, ErrInputMismatch)

	got, err := x.Predict(context.Background(), [][][]float64{{{1, 2}}})
	require.NoError(t, err)
	assert.Equal(t, [][][]float64{{{1, 2}}}, got)
}
