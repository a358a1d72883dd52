// Package dense is a CPU reference implementation of the tensor engine built
// on gonum matrices. Every sample is stored as one flattened matrix row; ops
// that act on the last axis view the batch as (batch*M)xF.
package dense

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"netgraph/internal/engine"
)

var (
	ErrForeignTensor    = errors.New("tensor does not belong to this engine")
	ErrUnknownDimension = errors.New("dimension must be known")
	ErrShapeMismatch    = errors.New("shape mismatch")
	ErrUnsupported      = errors.New("unsupported")
)

const DefaultSeed uint64 = 1

type Option func(*Engine)

func WithSeed(seed uint64) Option {
	return func(e *Engine) { e.rng = rand.New(rand.NewPCG(seed, seed)) }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// Engine builds symbolic tensors. Building is safe for concurrent use;
// weights are drawn from a single seeded source.
type Engine struct {
	mu  sync.Mutex
	seq int
	rng *rand.Rand
	log *zap.Logger
}

var _ engine.Engine = (*Engine)(nil)

func New(opts ...Option) *Engine {
	e := &Engine{
		rng: rand.New(rand.NewPCG(DefaultSeed, DefaultSeed)),
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type forwardFunc func(batch int, in []*mat.Dense) (*mat.Dense, error)

type tensor struct {
	id      int
	eng     *Engine
	op      string
	shape   []*int
	inputs  []*tensor
	params  int
	forward forwardFunc
}

func (t *tensor) Shape() []*int { return engine.CloneShape(t.shape) }

func (t *tensor) String() string {
	return fmt.Sprintf("%s#%d%s", t.op, t.id, engine.FormatShape(t.shape))
}

func (e *Engine) newTensor(op string, shape []*int, inputs []*tensor, params int, fwd forwardFunc) *tensor {
	e.mu.Lock()
	e.seq++
	id := e.seq
	e.mu.Unlock()

	t := &tensor{id: id, eng: e, op: op, shape: shape, inputs: inputs, params: params, forward: fwd}
	e.log.Debug("tensor built", zap.Stringer("tensor", t), zap.Int("params", params))
	return t
}

func (e *Engine) own(in engine.Tensor) (*tensor, error) {
	t, ok := in.(*tensor)
	if !ok || t == nil || t.eng != e {
		return nil, ErrForeignTensor
	}
	return t, nil
}

// rowLen is the flattened size of one sample.
func rowLen(shape []*int) int {
	n := 1
	for _, d := range shape[1:] {
		n *= *d
	}
	return n
}

func lastDim(shape []*int) int {
	return *shape[len(shape)-1]
}

func withLast(shape []*int, last int) []*int {
	out := engine.CloneShape(shape)
	out[len(out)-1] = &last
	return out
}

func knownDims(shape []*int) error {
	for i, d := range shape {
		if d == nil {
			return fmt.Errorf("%w: axis %d of %s", ErrUnknownDimension, i, engine.FormatShape(shape))
		}
		if *d <= 0 {
			return fmt.Errorf("%w: axis %d of %s must be positive", ErrShapeMismatch, i, engine.FormatShape(shape))
		}
	}
	return nil
}

// reinterpret views m's data as r x c, copying only when m is not contiguous.
func reinterpret(m *mat.Dense, r, c int) *mat.Dense {
	raw := m.RawMatrix()
	if raw.Stride == raw.Cols {
		return mat.NewDense(r, c, raw.Data[:r*c])
	}
	data := make([]float64, 0, r*c)
	for i := 0; i < raw.Rows; i++ {
		data = append(data, raw.Data[i*raw.Stride:i*raw.Stride+raw.Cols]...)
	}
	return mat.NewDense(r, c, data)
}

func (e *Engine) initWeights(name string, fanIn, fanOut int) (*mat.Dense, error) {
	w := mat.NewDense(fanIn, fanOut, nil)
	switch name {
	case "", "glorotUniform":
		limit := math.Sqrt(6 / float64(fanIn+fanOut))
		raw := w.RawMatrix().Data
		e.mu.Lock()
		for i := range raw {
			raw[i] = (e.rng.Float64()*2 - 1) * limit
		}
		e.mu.Unlock()
	case "zeros":
	default:
		return nil, fmt.Errorf("%w kernel initializer %q", ErrUnsupported, name)
	}
	return w, nil
}

func addBias(y *mat.Dense, bias []float64) {
	if bias == nil {
		return
	}
	rows, _ := y.Dims()
	for i := 0; i < rows; i++ {
		floats.Add(y.RawRowView(i), bias)
	}
}

// Input declares a graph input. shape excludes the batch axis and must be
// fully known.
func (e *Engine) Input(shape []*int) (engine.Tensor, error) {
	if len(shape) == 0 {
		return nil, fmt.Errorf("%w: input shape is empty", ErrShapeMismatch)
	}
	if err := knownDims(shape); err != nil {
		return nil, err
	}
	full := append([]*int{nil}, engine.CloneShape(shape)...)
	return e.newTensor("input", full, nil, 0, nil), nil
}

func (e *Engine) Dense(in engine.Tensor, cfg engine.DenseConfig) (engine.Tensor, error) {
	t, err := e.own(in)
	if err != nil {
		return nil, err
	}
	if cfg.Units <= 0 {
		return nil, fmt.Errorf("%w: dense units must be positive, got %d", ErrShapeMismatch, cfg.Units)
	}
	features := lastDim(t.shape)
	steps := rowLen(t.shape) / features
	units := cfg.Units

	w, err := e.initWeights(cfg.KernelInitializer, features, units)
	if err != nil {
		return nil, err
	}
	params := features * units
	var bias []float64
	if cfg.UseBias {
		bias = make([]float64, units)
		params += units
	}

	fwd := func(batch int, in []*mat.Dense) (*mat.Dense, error) {
		x := reinterpret(in[0], batch*steps, features)
		var y mat.Dense
		y.Mul(x, w)
		addBias(&y, bias)
		return reinterpret(&y, batch, steps*units), nil
	}
	return e.newTensor("dense", withLast(t.shape, units), []*tensor{t}, params, fwd), nil
}

// Recurrent is an Elman layer over [batch, steps, features] with a tanh
// state update.
func (e *Engine) Recurrent(in engine.Tensor, cfg engine.RecurrentConfig) (engine.Tensor, error) {
	t, err := e.own(in)
	if err != nil {
		return nil, err
	}
	if len(t.shape) != 3 {
		return nil, fmt.Errorf("%w: recurrent input must be [batch, steps, features], got %s", ErrShapeMismatch, engine.FormatShape(t.shape))
	}
	if cfg.Units <= 0 {
		return nil, fmt.Errorf("%w: recurrent units must be positive, got %d", ErrShapeMismatch, cfg.Units)
	}
	steps, features, units := *t.shape[1], *t.shape[2], cfg.Units

	wx, err := e.initWeights(cfg.KernelInitializer, features, units)
	if err != nil {
		return nil, err
	}
	wh, err := e.initWeights(cfg.KernelInitializer, units, units)
	if err != nil {
		return nil, err
	}
	params := features*units + units*units
	var bias []float64
	if cfg.UseBias {
		bias = make([]float64, units)
		params += units
	}

	returnSequences := cfg.ReturnSequences
	fwd := func(batch int, in []*mat.Dense) (*mat.Dense, error) {
		x := in[0]
		h := mat.NewDense(batch, units, nil)
		var seq *mat.Dense
		if returnSequences {
			seq = mat.NewDense(batch, steps*units, nil)
		}
		for s := 0; s < steps; s++ {
			var next, carry mat.Dense
			next.Mul(x.Slice(0, batch, s*features, (s+1)*features), wx)
			carry.Mul(h, wh)
			next.Add(&next, &carry)
			addBias(&next, bias)
			next.Apply(func(_, _ int, v float64) float64 { return math.Tanh(v) }, &next)
			h = &next
			if seq != nil {
				seq.Slice(0, batch, s*units, (s+1)*units).(*mat.Dense).Copy(h)
			}
		}
		if seq != nil {
			return seq, nil
		}
		return h, nil
	}

	shape := []*int{nil, &units}
	if returnSequences {
		shape = []*int{nil, &steps, &units}
	}
	return e.newTensor("recurrent", engine.CloneShape(shape), []*tensor{t}, params, fwd), nil
}

// Reshape keeps the sample data and reinterprets its shape.
func (e *Engine) Reshape(in engine.Tensor, shape []*int) (engine.Tensor, error) {
	t, err := e.own(in)
	if err != nil {
		return nil, err
	}
	if len(shape) == 0 {
		return nil, fmt.Errorf("%w: reshape target is empty", ErrShapeMismatch)
	}
	if err := knownDims(shape); err != nil {
		return nil, err
	}
	full := append([]*int{nil}, engine.CloneShape(shape)...)
	if rowLen(full) != rowLen(t.shape) {
		return nil, fmt.Errorf("%w: cannot reshape %s to %s", ErrShapeMismatch, engine.FormatShape(t.shape), engine.FormatShape(full))
	}
	fwd := func(_ int, in []*mat.Dense) (*mat.Dense, error) {
		return in[0], nil
	}
	return e.newTensor("reshape", full, []*tensor{t}, 0, fwd), nil
}

// Concat joins tensors on the last axis. All other non-batch axes must match.
func (e *Engine) Concat(inputs []engine.Tensor) (engine.Tensor, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: concat needs at least one input", ErrShapeMismatch)
	}
	parts := make([]*tensor, len(inputs))
	for i, in := range inputs {
		t, err := e.own(in)
		if err != nil {
			return nil, err
		}
		parts[i] = t
	}

	first := parts[0].shape
	widths := make([]int, len(parts))
	total := 0
	for i, p := range parts {
		if len(p.shape) != len(first) {
			return nil, fmt.Errorf("%w: concat rank %s vs %s", ErrShapeMismatch, engine.FormatShape(first), engine.FormatShape(p.shape))
		}
		for axis := 1; axis < len(first)-1; axis++ {
			if *p.shape[axis] != *first[axis] {
				return nil, fmt.Errorf("%w: concat axis %d %s vs %s", ErrShapeMismatch, axis, engine.FormatShape(first), engine.FormatShape(p.shape))
			}
		}
		widths[i] = lastDim(p.shape)
		total += widths[i]
	}
	steps := rowLen(first) / widths[0]

	fwd := func(batch int, in []*mat.Dense) (*mat.Dense, error) {
		out := mat.NewDense(batch, steps*total, nil)
		for r := 0; r < batch; r++ {
			dst := out.RawRowView(r)
			for s := 0; s < steps; s++ {
				offset := s * total
				for k, m := range in {
					w := widths[k]
					copy(dst[offset:offset+w], m.RawRowView(r)[s*w:(s+1)*w])
					offset += w
				}
			}
		}
		return out, nil
	}
	return e.newTensor("concat", withLast(first, total), parts, 0, fwd), nil
}

// Activate applies a registered activation along one axis. Without an axis,
// or for -1, that is every last-axis vector. Axis 0 is the batch axis: each
// flattened feature column is transformed across the samples of the batch.
func (e *Engine) Activate(kind string, params engine.ActivationParams, in engine.Tensor) (engine.Tensor, error) {
	t, err := e.own(in)
	if err != nil {
		return nil, err
	}
	fn, err := GetActivation(kind)
	if err != nil {
		return nil, err
	}
	rank := len(t.shape)
	axis := rank - 1
	if params.Axis != nil {
		axis = *params.Axis
		if axis == -1 {
			axis = rank - 1
		}
		if axis < 0 || axis >= rank {
			return nil, fmt.Errorf("%w: %s over axis %d of %s", ErrUnsupported, kind, *params.Axis, engine.FormatShape(t.shape))
		}
	}

	var fwd forwardFunc
	if axis == 0 {
		cols := rowLen(t.shape)
		fwd = func(batch int, in []*mat.Dense) (*mat.Dense, error) {
			out := mat.DenseCopyOf(in[0])
			column := make([]float64, batch)
			for c := 0; c < cols; c++ {
				mat.Col(column, c, out)
				fn(params, column)
				out.SetCol(c, column)
			}
			return out, nil
		}
	} else {
		// Within a sample, axis splits the flattened row into outer blocks of
		// size*inner values; the vector for (outer, inner) is strided by inner.
		size := *t.shape[axis]
		inner := 1
		for _, d := range t.shape[axis+1:] {
			inner *= *d
		}
		outer := rowLen(t.shape) / (size * inner)
		fwd = func(batch int, in []*mat.Dense) (*mat.Dense, error) {
			out := mat.DenseCopyOf(in[0])
			vec := make([]float64, size)
			for r := 0; r < batch; r++ {
				row := out.RawRowView(r)
				for o := 0; o < outer; o++ {
					base := o * size * inner
					if inner == 1 {
						fn(params, row[base:base+size])
						continue
					}
					for i := 0; i < inner; i++ {
						for j := range vec {
							vec[j] = row[base+j*inner+i]
						}
						fn(params, vec)
						for j, v := range vec {
							row[base+j*inner+i] = v
						}
					}
				}
			}
			return out, nil
		}
	}
	return e.newTensor(kind, engine.CloneShape(t.shape), []*tensor{t}, 0, fwd), nil
}
