package model

import (
	"netgraph/internal/activation"
	"netgraph/internal/node"
	"netgraph/internal/unit"
)

// NewExample builds a small branching model:
//
//	input [4]
//	├── left  dense 8 relu
//	│   └── merge dense 4 tanh (joins right)
//	│       └── output dense 1 sigmoid
//	└── right dense 8 elu
//	    └── ref -> merge
func NewExample(opts ...Option) (*Model, error) {
	m, err := New(append([]Option{WithName("example")}, opts...)...)
	if err != nil {
		return nil, err
	}

	type step struct {
		id     string
		parent string
		kind   unit.Kind
		opts   []unit.Option
	}
	steps := []step{
		{"input", m.Root().ID, unit.Input, []unit.Option{unit.WithShape(4)}},
		{"left", "input", unit.Sequential, []unit.Option{unit.WithUnits(8), unit.WithActivation(activation.NewReLU(6))}},
		{"merge", "left", unit.Sequential, []unit.Option{unit.WithUnits(4), unit.WithActivation(activation.New(activation.Tanh))}},
		{"output", "merge", unit.Output, []unit.Option{unit.WithUnits(1), unit.WithActivation(activation.New(activation.Sigmoid))}},
		{"right", "input", unit.Sequential, []unit.Option{unit.WithUnits(8), unit.WithActivation(activation.NewELU(1))}},
	}
	for _, s := range steps {
		if _, err := m.CreateNode(node.Struct, s.parent, node.WithID(s.id), node.WithName(s.id)); err != nil {
			return nil, err
		}
		u, err := unit.New(s.kind, append([]unit.Option{unit.WithID("unit-" + s.id)}, s.opts...)...)
		if err != nil {
			return nil, err
		}
		if err := m.AttachUnit(s.id, u); err != nil {
			return nil, err
		}
	}
	if _, err := m.CreateNode(node.Reference, "right", node.WithID("ref"), node.WithName("ref")); err != nil {
		return nil, err
	}
	if err := m.ApplyNodeToNode("ref", "merge"); err != nil {
		return nil, err
	}
	return m, nil
}
