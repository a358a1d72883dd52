package node

import (
	"strings"

	"netgraph/internal/fault"
)

// Validate checks the tree recursively and returns the first failure,
// wrapped once per ancestor so the chain reads from the root down.
func (t *Tree) Validate() error {
	if t.root == nil {
		return fault.Wrap(fault.NodeValidation, ErrNodeNotFound, "root")
	}
	if t.root.Type != Root {
		return fault.Newf(fault.NodeValidation, "top level node %s has type %q, want %q", t.root.ID, t.root.Type, Root)
	}
	return t.validateNode(t.root)
}

func (t *Tree) validateNode(n *Node) error {
	if n == nil {
		return fault.Wrap(fault.NodeValidation, ErrNodeNotFound, "nil child")
	}
	if strings.TrimSpace(n.ID) == "" {
		return fault.Wrapf(fault.NodeValidation, ErrIDRequired, "node %q", n.Name)
	}
	if strings.TrimSpace(n.Name) == "" {
		return fault.Wrapf(fault.NodeValidation, ErrNameRequired, "node %s", n.ID)
	}
	if linked, ok := t.index[n.ID]; !ok || linked != n {
		return fault.Newf(fault.NodeValidation, "node %s is not linked into the tree", n.ID)
	}

	switch n.Type {
	case Root:
		if n != t.root {
			return fault.Wrapf(fault.NodeValidation, ErrNestedRoot, "node %s", n.ID)
		}
		if len(n.Children) == 0 {
			return fault.Wrapf(fault.NodeValidation, ErrChildrenRequired, "node %s", n.ID)
		}
		return t.validateChildren(n)
	case Struct:
		if n.UnitID == "" {
			return fault.Wrapf(fault.NodeValidation, ErrUnitRequired, "node %s", n.ID)
		}
		if t.units == nil || !t.units.Has(n.UnitID) {
			return fault.Wrapf(fault.NodeValidation, ErrUnitRequired, "node %s: unit %s is not registered", n.ID, n.UnitID)
		}
		if _, ok := t.Parent(n.ID); !ok {
			return fault.Wrapf(fault.NodeValidation, ErrParentRequired, "node %s", n.ID)
		}
		return t.validateChildren(n)
	case Reference:
		if n.TargetID == "" {
			return fault.Wrapf(fault.NodeValidation, ErrReferenceNodeRequired, "node %s has no target", n.ID)
		}
		target, ok := t.index[n.TargetID]
		if !ok {
			return fault.Wrapf(fault.NodeValidation, ErrReferenceNodeRequired, "node %s: target %s is not in the tree", n.ID, n.TargetID)
		}
		if target.Type == Reference {
			return fault.Wrapf(fault.NodeValidation, ErrReferenceToReference, "node %s", n.ID)
		}
		if target.Type == Root {
			return fault.Wrapf(fault.NodeValidation, ErrReferenceToRoot, "node %s", n.ID)
		}
		if len(n.Children) > 0 {
			return fault.Wrapf(fault.NodeValidation, ErrReferenceChildren, "node %s", n.ID)
		}
		parent, ok := t.Parent(n.ID)
		if !ok {
			return fault.Wrapf(fault.NodeValidation, ErrParentRequired, "node %s", n.ID)
		}
		// the joining side is the reference's parent, and the root produces no output
		if parent.Type == Root {
			return fault.Wrapf(fault.NodeValidation, ErrReferenceUnderRoot, "node %s", n.ID)
		}
		return nil
	default:
		return fault.Wrapf(fault.NodeValidation, ErrUnknownKind, "node %s: %q", n.ID, n.Type)
	}
}

func (t *Tree) validateChildren(n *Node) error {
	for _, child := range n.Children {
		if err := t.validateNode(child); err != nil {
			return fault.Wrapf(fault.NodeValidation, err, "in %s", n.ID)
		}
	}
	return nil
}

// Dependencies maps each structure node to the structure nodes it waits on:
// its structure parent and the parent of every reference that targets it.
func (t *Tree) Dependencies() map[string][]string {
	deps := make(map[string][]string)
	for _, n := range t.Flatten() {
		switch n.Type {
		case Struct:
			if _, ok := deps[n.ID]; !ok {
				deps[n.ID] = nil
			}
			if p, ok := t.Parent(n.ID); ok && p.Type == Struct {
				deps[n.ID] = append(deps[n.ID], p.ID)
			}
		case Reference:
			target, ok := t.Target(n)
			if !ok || target.Type != Struct {
				continue
			}
			if p, ok := t.Parent(n.ID); ok && p.Type == Struct {
				deps[target.ID] = append(deps[target.ID], p.ID)
			}
		}
	}
	return deps
}

// CheckAcyclic reports ErrCycle when parent and join edges form a loop.
func (t *Tree) CheckAcyclic() error {
	deps := t.Dependencies()
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(deps))
	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case visiting:
			return fault.Wrapf(fault.NodeValidation, ErrCycle, "through %s", id)
		case done:
			return nil
		}
		state[id] = visiting
		for _, dep := range deps[id] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[id] = done
		return nil
	}
	for _, n := range t.Flatten() {
		if n.Type != Struct {
			continue
		}
		if err := visit(n.ID); err != nil {
			return err
		}
	}
	return nil
}
