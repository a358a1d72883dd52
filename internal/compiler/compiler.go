// Package compiler turns a validated model into an engine executable. It
// resolves structure nodes in repeated passes until every node whose
// predecessors are ready has been built.
package compiler

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"netgraph/internal/activation"
	"netgraph/internal/engine"
	"netgraph/internal/fault"
	"netgraph/internal/model"
	"netgraph/internal/node"
	"netgraph/internal/optimizer"
	"netgraph/internal/unit"
)

const (
	Loss = "meanSquaredError"

	DefaultKernelInitializer = "glorotUniform"
)

var Metrics = []string{"mse"}

var (
	ErrCannotResolveGraph = errors.New("cannot resolve graph")
	ErrNoInputs           = errors.New("graph has no input units")
	ErrNoOutputs          = errors.New("graph has no output units")
)

type Options struct {
	Logger            *zap.Logger
	KernelInitializer string
}

type Option func(*Options)

func WithLogger(l *zap.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

func WithKernelInitializer(name string) Option {
	return func(o *Options) { o.KernelInitializer = name }
}

type Result struct {
	Executable engine.Executable
	Optimizer  engine.Optimizer
	// Inputs and Outputs hold node ids in the order the executable expects.
	Inputs  []string
	Outputs []string
	Passes  int
}

// record is the compile state of one structure node.
type record struct {
	node      *node.Node
	unit      unit.Unit
	dependsOn string
	joins     []string
	output    engine.Tensor
	compiled  bool
}

// Compile validates m and opt, resolves every structure node against eng and
// compiles the assembled graph. No partial graph is returned on failure.
func Compile(ctx context.Context, m *model.Model, opt optimizer.Optimizer, eng engine.Engine, opts ...Option) (*Result, error) {
	cfg := Options{Logger: zap.NewNop(), KernelInitializer: DefaultKernelInitializer}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	log := cfg.Logger.With(zap.String("model_id", modelID(m)))

	if eng == nil {
		return nil, fault.New(fault.Compile, "engine is required")
	}
	if m == nil {
		return nil, fault.New(fault.Compile, "model is required")
	}
	if err := m.Validate(); err != nil {
		return nil, fault.Wrap(fault.Compile, err, "invalid model")
	}
	if err := opt.Validate(); err != nil {
		return nil, fault.Wrap(fault.Compile, err, "invalid optimizer")
	}

	records, order, err := buildRecords(m)
	if err != nil {
		return nil, err
	}

	passes, err := resolve(ctx, eng, cfg, log, records, order)
	if err != nil {
		return nil, err
	}

	res := &Result{Passes: passes}
	var inputs, outputs []engine.Tensor
	for _, id := range order {
		r := records[id]
		switch r.unit.Type {
		case unit.Input:
			inputs = append(inputs, r.output)
			res.Inputs = append(res.Inputs, id)
		case unit.Output:
			outputs = append(outputs, r.output)
			res.Outputs = append(res.Outputs, id)
		}
	}
	if len(inputs) == 0 {
		return nil, fault.Wrap(fault.Compile, ErrNoInputs, "assemble")
	}
	if len(outputs) == 0 {
		return nil, fault.Wrap(fault.Compile, ErrNoOutputs, "assemble")
	}

	graph, err := eng.Assemble(inputs, outputs)
	if err != nil {
		return nil, fault.Wrap(fault.Compile, err, "assemble")
	}
	engineOpt, err := optimizer.Compile(eng, opt)
	if err != nil {
		return nil, fault.Wrap(fault.Compile, err, "optimizer")
	}
	exec, err := eng.Compile(ctx, graph, engineOpt, Loss, append([]string(nil), Metrics...))
	if err != nil {
		return nil, fault.Wrap(fault.Compile, err, "engine compile")
	}
	res.Executable = exec
	res.Optimizer = engineOpt

	log.Info("model compiled",
		zap.Int("passes", passes),
		zap.Int("nodes", len(order)),
		zap.Strings("inputs", res.Inputs),
		zap.Strings("outputs", res.Outputs),
	)
	return res, nil
}

func modelID(m *model.Model) string {
	if m == nil {
		return ""
	}
	return m.ID
}

// buildRecords creates one record per structure node in traversal order and
// registers each reference as a join on its target.
func buildRecords(m *model.Model) (map[string]*record, []string, error) {
	tree := m.Tree()
	records := make(map[string]*record)
	var order []string
	for _, n := range m.Flatten() {
		if n.Type != node.Struct {
			continue
		}
		u, ok := m.UnitOf(n)
		if !ok {
			return nil, nil, fault.Wrapf(fault.Compile, node.ErrUnitRequired, "node %s", n.ID)
		}
		r := &record{node: n, unit: u}
		if u.Type != unit.Input {
			parent, ok := tree.Parent(n.ID)
			if !ok {
				return nil, nil, fault.Wrapf(fault.Compile, node.ErrParentRequired, "node %s", n.ID)
			}
			r.dependsOn = parent.ID
		}
		records[n.ID] = r
		order = append(order, n.ID)
	}
	for _, n := range m.Flatten() {
		if n.Type != node.Reference {
			continue
		}
		parent, ok := tree.Parent(n.ID)
		if !ok {
			return nil, nil, fault.Wrapf(fault.Compile, node.ErrParentRequired, "node %s", n.ID)
		}
		target, ok := records[n.TargetID]
		if !ok {
			return nil, nil, fault.Wrapf(fault.Compile, node.ErrReferenceNodeRequired, "node %s", n.ID)
		}
		target.joins = append(target.joins, parent.ID)
	}
	return records, order, nil
}

// resolve compiles ready records pass after pass. A pass that compiles
// nothing while records remain means the dependencies cannot be satisfied.
func resolve(ctx context.Context, eng engine.Engine, cfg Options, log *zap.Logger, records map[string]*record, order []string) (int, error) {
	passes := 0
	remaining := len(order)
	for remaining > 0 {
		if err := ctx.Err(); err != nil {
			return passes, fault.Wrap(fault.Compile, err, "cancelled")
		}
		passes++
		progressed := 0
		for _, id := range order {
			r := records[id]
			if r.compiled || !ready(r, records) {
				continue
			}
			if err := compileRecord(eng, cfg, r, records); err != nil {
				return passes, err
			}
			progressed++
			remaining--
		}
		log.Debug("shake pass",
			zap.Int("pass", passes),
			zap.Int("compiled", progressed),
			zap.Int("remaining", remaining),
		)
		if progressed == 0 {
			return passes, fault.Wrapf(fault.Compile, ErrCannotResolveGraph, "%d nodes unresolved after %d passes", remaining, passes)
		}
	}
	return passes, nil
}

func ready(r *record, records map[string]*record) bool {
	if r.dependsOn != "" && !isCompiled(records, r.dependsOn) {
		return false
	}
	for _, j := range r.joins {
		if !isCompiled(records, j) {
			return false
		}
	}
	return true
}

func isCompiled(records map[string]*record, id string) bool {
	r, ok := records[id]
	return ok && r.compiled
}

func compileRecord(eng engine.Engine, cfg Options, r *record, records map[string]*record) error {
	var in engine.Tensor
	if r.dependsOn != "" {
		in = records[r.dependsOn].output
	}
	out, err := compileUnit(eng, cfg, r.unit, in)
	if err != nil {
		return fault.Wrapf(fault.Compile, err, "node %s (%s)", r.node.ID, r.unit.Type)
	}
	if len(r.joins) > 0 {
		parts := make([]engine.Tensor, 0, len(r.joins)+1)
		parts = append(parts, out)
		for _, j := range r.joins {
			parts = append(parts, records[j].output)
		}
		out, err = eng.Concat(parts)
		if err != nil {
			return fault.Wrapf(fault.Compile, err, "join into node %s", r.node.ID)
		}
	}
	r.output = out
	r.compiled = true
	return nil
}

func compileUnit(eng engine.Engine, cfg Options, u unit.Unit, in engine.Tensor) (engine.Tensor, error) {
	var (
		out engine.Tensor
		err error
	)
	switch u.Type {
	case unit.Input:
		out, err = eng.Input(engine.CloneShape(u.Shape))
	case unit.Sequential, unit.Output:
		out, err = eng.Dense(in, engine.DenseConfig{
			Units:             u.Units,
			UseBias:           u.UseBias,
			KernelInitializer: cfg.KernelInitializer,
		})
	case unit.Recurrent:
		out, err = eng.Recurrent(in, engine.RecurrentConfig{
			Units:             u.Units,
			UseBias:           u.UseBias,
			ReturnSequences:   u.ReturnSequences,
			KernelInitializer: cfg.KernelInitializer,
		})
	case unit.Transform:
		out, err = eng.Reshape(in, engine.CloneShape(u.Shape))
	default:
		return nil, fault.Newf(fault.Compile, "unknown unit type %q", u.Type)
	}
	if err != nil {
		return nil, err
	}
	if u.Activation != nil {
		return activation.Compile(eng, *u.Activation, out)
	}
	return out, nil
}
