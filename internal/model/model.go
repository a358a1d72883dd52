// Package model is the aggregate a user edits: a node tree, the units its
// structure nodes use, and bookkeeping metadata.
package model

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"netgraph/internal/fault"
	"netgraph/internal/ident"
	"netgraph/internal/node"
	"netgraph/internal/unit"
)

var validate = validator.New()

type Model struct {
	ID           string
	Name         string
	CreatedAt    int64
	UpdatedAt    int64
	TrainResults *TrainResults

	tree  *node.Tree
	units *unit.Registry
	now   func() time.Time
}

type Option func(*Model)

func WithID(id string) Option {
	return func(m *Model) { m.ID = id }
}

func WithName(name string) Option {
	return func(m *Model) { m.Name = name }
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

// New creates an empty model: a root with no children and no units.
func New(opts ...Option) (*Model, error) {
	m := &Model{
		ID:    ident.NewID(),
		Name:  ident.NewName(),
		units: unit.NewRegistry(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	tree, err := node.NewTree(m.units)
	if err != nil {
		return nil, fault.Wrap(fault.ModelCreate, err, "see inner error")
	}
	m.tree = tree
	ts := m.now().Unix()
	m.CreatedAt, m.UpdatedAt = ts, ts
	return m, nil
}

func (m *Model) Tree() *node.Tree {
	return m.tree
}

func (m *Model) Root() *node.Node {
	if m.tree == nil {
		return nil
	}
	return m.tree.Root()
}

func (m *Model) Units() *unit.Registry {
	return m.units
}

func (m *Model) Unit(id string) (unit.Unit, bool) {
	return m.units.Get(id)
}

// UnitOf resolves the unit of a structure node.
func (m *Model) UnitOf(n *node.Node) (unit.Unit, bool) {
	if n == nil || n.Type != node.Struct {
		return unit.Unit{}, false
	}
	return m.units.Get(n.UnitID)
}

func (m *Model) Flatten() []*node.Node {
	return m.tree.Flatten()
}

func (m *Model) touch() {
	m.UpdatedAt = m.now().Unix()
}

// CreateNode adds a structure or reference node under parentID.
func (m *Model) CreateNode(kind node.Kind, parentID string, opts ...node.Option) (*node.Node, error) {
	n, err := m.tree.CreateNode(kind, parentID, opts...)
	if err != nil {
		return nil, err
	}
	m.touch()
	return n, nil
}

// RemoveNode detaches a subtree and drops the units it used unless a
// remaining structure node still points at them.
func (m *Model) RemoveNode(id string) (*node.Node, error) {
	removed, unitIDs, err := m.tree.Remove(id)
	if err != nil {
		return nil, err
	}
	inUse := make(map[string]bool)
	for _, n := range m.tree.Flatten() {
		if n.Type == node.Struct && n.UnitID != "" {
			inUse[n.UnitID] = true
		}
	}
	var drop []string
	for _, uid := range unitIDs {
		if !inUse[uid] {
			drop = append(drop, uid)
		}
	}
	m.units.Remove(drop...)
	m.touch()
	return removed, nil
}

// AddUnit registers u, replacing a unit with the same id.
func (m *Model) AddUnit(u unit.Unit) error {
	if err := u.Validate(); err != nil {
		return err
	}
	m.units.Put(u)
	m.touch()
	return nil
}

// ApplyUnitToNode points a structure node at a registered unit.
func (m *Model) ApplyUnitToNode(nodeID, unitID string) error {
	if err := m.tree.ApplyUnit(nodeID, unitID); err != nil {
		return err
	}
	m.touch()
	return nil
}

// AttachUnit registers u and applies it to nodeID.
func (m *Model) AttachUnit(nodeID string, u unit.Unit) error {
	if err := m.AddUnit(u); err != nil {
		return err
	}
	return m.ApplyUnitToNode(nodeID, u.ID)
}

// ApplyNodeToNode points the reference refID at targetID.
func (m *Model) ApplyNodeToNode(refID, targetID string) error {
	if err := m.tree.ApplyTarget(refID, targetID); err != nil {
		return err
	}
	m.touch()
	return nil
}

// Validate checks identity, the tree, the units, acyclicity and train
// results, returning the first failure.
func (m *Model) Validate() error {
	if m == nil {
		return fault.New(fault.ModelValidation, "model is nil")
	}
	if strings.TrimSpace(m.ID) == "" {
		return fault.New(fault.ModelValidation, "id is required")
	}
	if strings.TrimSpace(m.Name) == "" {
		return fault.New(fault.ModelValidation, "name is required")
	}
	if m.tree == nil || m.tree.Root() == nil {
		return fault.New(fault.ModelValidation, "root node is required")
	}
	if m.units == nil {
		return fault.New(fault.ModelValidation, "units are required")
	}
	if err := m.tree.Validate(); err != nil {
		return fault.Wrapf(fault.ModelValidation, err, "model %s", m.ID)
	}
	structures := 0
	for _, n := range m.tree.Flatten() {
		if n.Type == node.Struct {
			structures++
		}
	}
	if structures == 0 {
		return fault.New(fault.ModelValidation, "at least one structure node is required")
	}
	if err := m.units.Validate(); err != nil {
		return fault.Wrapf(fault.ModelValidation, err, "model %s", m.ID)
	}
	if err := m.tree.CheckAcyclic(); err != nil {
		return fault.Wrapf(fault.ModelValidation, err, "model %s", m.ID)
	}
	if m.TrainResults != nil {
		if err := validate.Struct(m.TrainResults); err != nil {
			return fault.Wrap(fault.ModelValidation, err, "train results")
		}
	}
	return nil
}

// Clone deep-copies the model. The copy shares no nodes or units with m.
func (m *Model) Clone() (*Model, error) {
	units := m.units.Clone()
	tree, err := m.tree.Clone(units)
	if err != nil {
		return nil, fault.Wrap(fault.ModelClone, err, "see inner error")
	}
	return &Model{
		ID:           m.ID,
		Name:         m.Name,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
		TrainResults: m.TrainResults.clone(),
		tree:         tree,
		units:        units,
		now:          m.now,
	}, nil
}

// SplitToLayers groups nodes by depth below the root.
func (m *Model) SplitToLayers() ([][]*node.Node, error) {
	if m == nil {
		return nil, fault.New(fault.ModelSplitLayers, "model is nil")
	}
	if m.tree == nil || m.tree.Root() == nil {
		return nil, fault.New(fault.ModelSplitLayers, "root is nil")
	}
	return m.tree.Layers(), nil
}

func (m *Model) Summary() Summary {
	s := Summary{
		ID:        m.ID,
		Name:      m.Name,
		Units:     m.units.Len(),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
		Trained:   m.TrainResults != nil,
	}
	for _, n := range m.tree.Flatten() {
		s.Nodes++
		switch n.Type {
		case node.Struct:
			s.Structures++
		case node.Reference:
			s.References++
		}
	}
	s.Layers = len(m.tree.Layers())
	return s
}
