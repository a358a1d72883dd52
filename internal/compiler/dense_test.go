package compiler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netgraph/internal/activation"
	"netgraph/internal/engine"
	"netgraph/internal/engine/dense"
	"netgraph/internal/model"
	"netgraph/internal/node"
	"netgraph/internal/optimizer"
	"netgraph/internal/unit"
)

func TestCompileExampleOnDenseEngine(t *testing.T) {
	m, err := model.NewExample()
	require.NoError(t, err)

	res, err := Compile(context.Background(), m, optimizer.New(optimizer.RMSProp), dense.New(dense.WithSeed(3)))
	require.NoError(t, err)

	exec := res.Executable.(*dense.Executable)
	assert.Equal(t, "rmsprop", exec.Optimizer().Kind())
	// input 4 -> left 8, right 8 -> merge 4 (+8 joined) -> output 1
	assert.Equal(t, (4*8+8)*2+(8*4+4)+(12*1+1), exec.ParamCount())
	assert.Equal(t, "[null, 4]", engine.FormatShape(exec.InputShapes()[0]))
	assert.Equal(t, "[null, 1]", engine.FormatShape(exec.OutputShapes()[0]))

	out, err := exec.Predict(context.Background(), [][][]float64{{
		{0, 0, 0, 0},
		{1, -1, 2, -2},
		{0.5, 0.25, 0.125, 1},
	}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Len(t, out[0], 3)
	for _, row := range out[0] {
		require.Len(t, row, 1)
		assert.Greater(t, row[0], 0.0)
		assert.Less(t, row[0], 1.0)
	}
	// zero input with zero biases reaches the sigmoid as 0
	assert.InDelta(t, 0.5, out[0][0][0], 1e-12)
}

func TestCompileBatchAxisSoftmaxOnDenseEngine(t *testing.T) {
	m, err := model.New(model.WithName("batch-softmax"))
	require.NoError(t, err)
	parent := m.Root().ID
	for _, step := range []struct {
		id   string
		kind unit.Kind
		opts []unit.Option
	}{
		{"in", unit.Input, []unit.Option{unit.WithShape(2)}},
		{"hidden", unit.Sequential, []unit.Option{unit.WithUnits(5)}},
		{"out", unit.Output, []unit.Option{unit.WithUnits(3), unit.WithActivation(activation.NewSoftmax(0))}},
	} {
		_, err := m.CreateNode(node.Struct, parent, node.WithID(step.id), node.WithName(step.id))
		require.NoError(t, err)
		u, err := unit.New(step.kind, step.opts...)
		require.NoError(t, err)
		require.NoError(t, m.AttachUnit(step.id, u))
		parent = step.id
	}
	require.NoError(t, m.Validate())

	res, err := Compile(context.Background(), m, optimizer.New(optimizer.SGD), dense.New(dense.WithSeed(5)))
	require.NoError(t, err)
	assert.Equal(t, "[null, 3]", engine.FormatShape(res.Executable.OutputShapes()[0]))

	out, err := res.Executable.Predict(context.Background(), [][][]float64{{{1, 2}, {-1, 0.5}, {0, 3}, {2, -2}}})
	require.NoError(t, err)
	rows := out[0]
	require.Len(t, rows, 4)
	for col := 0; col < 3; col++ {
		sum := 0.0
		for _, row := range rows {
			sum += row[col]
		}
		assert.InDelta(t, 1.0, sum, 1e-12, "column %d", col)
	}
}
