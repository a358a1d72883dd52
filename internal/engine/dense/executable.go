package dense

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"netgraph/internal/engine"
)

var (
	ErrUnknownOptimizer = errors.New("unknown optimizer")
	ErrUnknownLoss      = errors.New("unknown loss")
	ErrUnknownMetric    = errors.New("unknown metric")
	ErrDetachedInput    = errors.New("output depends on an input outside the graph")
	ErrInputMismatch    = errors.New("prediction input mismatch")
)

var optimizerKinds = []string{"sgd", "momentum", "adagrad", "adadelta", "adam", "adamax", "rmsprop"}

var (
	supportedLosses  = []string{"meanSquaredError"}
	supportedMetrics = []string{"mse"}
)

// Optimizer records the optimizer configuration an executable was compiled
// with. The reference engine does not train.
type Optimizer struct {
	kind   string
	Params engine.OptimizerParams
}

func (o *Optimizer) Kind() string { return o.kind }

func (e *Engine) Optimizer(kind string, params engine.OptimizerParams) (engine.Optimizer, error) {
	if !slices.Contains(optimizerKinds, kind) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOptimizer, kind)
	}
	return &Optimizer{kind: kind, Params: params}, nil
}

type graph struct {
	eng     *Engine
	inputs  []*tensor
	outputs []*tensor
}

func (g *graph) Inputs() []engine.Tensor  { return asTensors(g.inputs) }
func (g *graph) Outputs() []engine.Tensor { return asTensors(g.outputs) }

func asTensors(ts []*tensor) []engine.Tensor {
	out := make([]engine.Tensor, len(ts))
	for i, t := range ts {
		out[i] = t
	}
	return out
}

// Assemble checks that every output is computed only from the listed inputs.
func (e *Engine) Assemble(inputs, outputs []engine.Tensor) (engine.Graph, error) {
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("%w: graph needs inputs and outputs", ErrShapeMismatch)
	}
	g := &graph{eng: e}
	listed := make(map[*tensor]bool, len(inputs))
	for _, in := range inputs {
		t, err := e.own(in)
		if err != nil {
			return nil, err
		}
		if t.op != "input" {
			return nil, fmt.Errorf("%w: %s is not an input", ErrShapeMismatch, t)
		}
		if listed[t] {
			return nil, fmt.Errorf("%w: input %s listed twice", ErrShapeMismatch, t)
		}
		listed[t] = true
		g.inputs = append(g.inputs, t)
	}
	for _, out := range outputs {
		t, err := e.own(out)
		if err != nil {
			return nil, err
		}
		g.outputs = append(g.outputs, t)
	}
	for _, t := range topoOrder(g.outputs) {
		if t.op == "input" && !listed[t] {
			return nil, fmt.Errorf("%w: %s", ErrDetachedInput, t)
		}
	}
	return g, nil
}

// topoOrder lists every tensor reachable from outputs, dependencies first.
func topoOrder(outputs []*tensor) []*tensor {
	seen := make(map[*tensor]bool)
	var order []*tensor
	var visit func(t *tensor)
	visit = func(t *tensor) {
		if seen[t] {
			return
		}
		seen[t] = true
		for _, in := range t.inputs {
			visit(in)
		}
		order = append(order, t)
	}
	for _, t := range outputs {
		visit(t)
	}
	return order
}

func (e *Engine) Compile(ctx context.Context, g engine.Graph, opt engine.Optimizer, loss string, metrics []string) (engine.Executable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	gr, ok := g.(*graph)
	if !ok || gr == nil || gr.eng != e {
		return nil, fmt.Errorf("%w: graph", ErrForeignTensor)
	}
	o, ok := opt.(*Optimizer)
	if !ok || o == nil {
		return nil, fmt.Errorf("%w: optimizer was not built by this engine", ErrUnknownOptimizer)
	}
	if !slices.Contains(supportedLosses, loss) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLoss, loss)
	}
	for _, m := range metrics {
		if !slices.Contains(supportedMetrics, m) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, m)
		}
	}

	x := &Executable{
		graph:     gr,
		order:     topoOrder(gr.outputs),
		optimizer: o,
		loss:      loss,
		metrics:   slices.Clone(metrics),
	}
	e.log.Debug("graph compiled",
		zap.Int("tensors", len(x.order)),
		zap.Int("params", x.ParamCount()),
		zap.String("optimizer", o.kind),
	)
	return x, nil
}

// Executable evaluates a compiled graph. Predict is safe for concurrent use.
type Executable struct {
	graph     *graph
	order     []*tensor
	optimizer *Optimizer
	loss      string
	metrics   []string
}

var _ engine.Executable = (*Executable)(nil)

func (x *Executable) InputShapes() [][]*int  { return shapesOf(x.graph.inputs) }
func (x *Executable) OutputShapes() [][]*int { return shapesOf(x.graph.outputs) }
func (x *Executable) Loss() string           { return x.loss }
func (x *Executable) Metrics() []string      { return slices.Clone(x.metrics) }
func (x *Executable) Optimizer() *Optimizer  { return x.optimizer }

func shapesOf(ts []*tensor) [][]*int {
	out := make([][]*int, len(ts))
	for i, t := range ts {
		out[i] = engine.CloneShape(t.shape)
	}
	return out
}

// ParamCount sums the trainable weights of every tensor in the graph.
func (x *Executable) ParamCount() int {
	n := 0
	for _, t := range x.order {
		n += t.params
	}
	return n
}

func (x *Executable) Predict(ctx context.Context, inputs [][][]float64) ([][][]float64, error) {
	if len(inputs) != len(x.graph.inputs) {
		return nil, fmt.Errorf("%w: got %d inputs, want %d", ErrInputMismatch, len(inputs), len(x.graph.inputs))
	}
	batch := len(inputs[0])
	if batch == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrInputMismatch)
	}

	values := make(map[*tensor]*mat.Dense, len(x.order))
	for i, t := range x.graph.inputs {
		rows := inputs[i]
		if len(rows) != batch {
			return nil, fmt.Errorf("%w: input %d has batch %d, want %d", ErrInputMismatch, i, len(rows), batch)
		}
		width := rowLen(t.shape)
		data := make([]float64, 0, batch*width)
		for r, row := range rows {
			if len(row) != width {
				return nil, fmt.Errorf("%w: input %d row %d has %d values, want %d", ErrInputMismatch, i, r, len(row), width)
			}
			data = append(data, row...)
		}
		values[t] = mat.NewDense(batch, width, data)
	}

	for _, t := range x.order {
		if t.op == "input" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		args := make([]*mat.Dense, len(t.inputs))
		for i, in := range t.inputs {
			args[i] = values[in]
		}
		v, err := t.forward(batch, args)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t, err)
		}
		values[t] = v
	}

	out := make([][][]float64, len(x.graph.outputs))
	for i, t := range x.graph.outputs {
		m := values[t]
		rows := make([][]float64, batch)
		for r := range rows {
			rows[r] = mat.Row(nil, r, m)
		}
		out[i] = rows
	}
	return out, nil
}
