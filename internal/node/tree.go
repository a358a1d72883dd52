package node

import (
	"fmt"

	"netgraph/internal/fault"
)

// UnitSet resolves unit ids for structure nodes.
type UnitSet interface {
	Has(id string) bool
}

// Tree owns a root node and the lookup tables that stand in for back
// references: id to node and child id to parent id. Every mutation goes
// through Tree so the tables stay in step with Children.
type Tree struct {
	root   *Node
	index  map[string]*Node
	parent map[string]string
	units  UnitSet
}

// NewTree creates a tree with a fresh root.
func NewTree(units UnitSet, opts ...Option) (*Tree, error) {
	root, err := New(Root, opts...)
	if err != nil {
		return nil, fault.Wrap(fault.NodeCreate, err, "create root")
	}
	if root.ID == "" {
		return nil, fault.Wrap(fault.NodeCreate, ErrIDRequired, "create root")
	}
	return &Tree{
		root:   root,
		index:  map[string]*Node{root.ID: root},
		parent: make(map[string]string),
		units:  units,
	}, nil
}

// FromRoot adopts a decoded root and relinks it against units.
func FromRoot(root *Node, units UnitSet) (*Tree, error) {
	t := &Tree{root: root, units: units}
	if err := t.Relink(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) Root() *Node {
	return t.root
}

// Bind switches the unit set used to resolve unit ids.
func (t *Tree) Bind(units UnitSet) {
	t.units = units
}

func (t *Tree) Len() int {
	return len(t.index)
}

func (t *Tree) Lookup(id string) (*Node, bool) {
	n, ok := t.index[id]
	return n, ok
}

// Parent resolves the parent of id. The root has none.
func (t *Tree) Parent(id string) (*Node, bool) {
	pid, ok := t.parent[id]
	if !ok {
		return nil, false
	}
	p, ok := t.index[pid]
	return p, ok
}

// Target resolves the node a reference points at.
func (t *Tree) Target(ref *Node) (*Node, bool) {
	if ref == nil || ref.Type != Reference || ref.TargetID == "" {
		return nil, false
	}
	n, ok := t.index[ref.TargetID]
	return n, ok
}

func (t *Tree) Flatten() []*Node {
	return Flatten(t.root)
}

// Relink rebuilds the lookup tables from Children. It fails fast on a
// missing or duplicate id, a unit id the unit set does not know, and a
// reference target that is not in the tree. Empty unit and target ids are
// left for Validate.
func (t *Tree) Relink() error {
	if t.root == nil {
		return fault.Wrap(fault.NodeValidation, ErrNodeNotFound, "root")
	}
	if t.root.Type != Root {
		return fault.Newf(fault.NodeValidation, "top level node %s has type %q, want %q", t.root.ID, t.root.Type, Root)
	}

	index := make(map[string]*Node)
	parent := make(map[string]string)
	var walk func(n *Node, parentID string) error
	walk = func(n *Node, parentID string) error {
		if n == nil {
			return fault.Wrapf(fault.NodeValidation, ErrNodeNotFound, "nil child of %s", parentID)
		}
		if n.ID == "" {
			return fault.Wrapf(fault.NodeValidation, ErrIDRequired, "node %q under %s", n.Name, parentID)
		}
		if _, dup := index[n.ID]; dup {
			return fault.Wrapf(fault.NodeValidation, ErrDuplicateID, "node %s", n.ID)
		}
		index[n.ID] = n
		if parentID != "" {
			parent[n.ID] = parentID
		}
		if n.Type == Reference {
			return nil
		}
		for _, child := range n.Children {
			if err := walk(child, n.ID); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(t.root, ""); err != nil {
		return err
	}

	for _, n := range Flatten(t.root) {
		switch n.Type {
		case Struct:
			if n.UnitID != "" && t.units != nil && !t.units.Has(n.UnitID) {
				return fault.Newf(fault.NodeValidation, "node %s: unit %s is not registered", n.ID, n.UnitID)
			}
		case Reference:
			if n.TargetID != "" {
				if _, ok := index[n.TargetID]; !ok {
					return fault.Wrapf(fault.NodeValidation, ErrNodeNotFound, "node %s: target %s", n.ID, n.TargetID)
				}
			}
		}
	}

	t.index = index
	t.parent = parent
	return nil
}

// CreateNode builds a structure or reference node and appends it to the
// children of parentID.
func (t *Tree) CreateNode(kind Kind, parentID string, opts ...Option) (*Node, error) {
	if kind == Root {
		return nil, fault.New(fault.NodeCreate, "a tree has exactly one root")
	}
	n, err := New(kind, opts...)
	if err != nil {
		return nil, fault.Wrapf(fault.NodeCreate, err, "%q", kind)
	}
	if err := t.attach(parentID, n, fault.NodeCreate); err != nil {
		return nil, err
	}
	return n, nil
}

// Attach grafts a detached subtree under parentID.
func (t *Tree) Attach(parentID string, n *Node) error {
	return t.attach(parentID, n, fault.NodeAddRemove)
}

func (t *Tree) attach(parentID string, n *Node, kind fault.Kind) error {
	if n == nil {
		return fault.Wrap(kind, ErrNodeNotFound, "attach nil node")
	}
	parent, ok := t.index[parentID]
	if !ok {
		return fault.Wrapf(kind, ErrParentRequired, "parent %q", parentID)
	}
	if parent.Type == Reference {
		return fault.Wrapf(kind, ErrReferenceChildren, "parent %s", parentID)
	}

	sub := Flatten(n)
	seen := make(map[string]bool, len(sub))
	for _, m := range sub {
		if m.Type == Root {
			return fault.Wrapf(kind, ErrNestedRoot, "node %s", m.ID)
		}
		if m.ID == "" {
			return fault.Wrap(kind, ErrIDRequired, "attach")
		}
		if _, taken := t.index[m.ID]; taken || seen[m.ID] {
			return fault.Wrapf(kind, ErrDuplicateID, "node %s", m.ID)
		}
		seen[m.ID] = true
	}

	parent.Children = append(parent.Children, n)
	t.parent[n.ID] = parent.ID
	for _, m := range sub {
		t.index[m.ID] = m
		if m.Type == Reference {
			continue
		}
		for _, child := range m.Children {
			if child != nil {
				t.parent[child.ID] = m.ID
			}
		}
	}
	return nil
}

// Remove detaches the subtree rooted at id and returns it together with the
// unit ids its structure nodes use, in pre-order without duplicates. Removal
// is refused when a reference outside the subtree targets a node inside it.
func (t *Tree) Remove(id string) (*Node, []string, error) {
	n, ok := t.index[id]
	if !ok {
		return nil, nil, fault.Wrapf(fault.NodeAddRemove, ErrNodeNotFound, "node %q", id)
	}
	if n.Type == Root {
		return nil, nil, fault.Wrap(fault.NodeAddRemove, ErrRootRemoval, id)
	}
	parent, ok := t.Parent(id)
	if !ok {
		return nil, nil, fault.Wrapf(fault.NodeAddRemove, ErrParentRequired, "node %s", id)
	}

	sub := Flatten(n)
	inside := make(map[string]bool, len(sub))
	for _, m := range sub {
		inside[m.ID] = true
	}
	for _, m := range t.Flatten() {
		if m.Type == Reference && !inside[m.ID] && inside[m.TargetID] {
			return nil, nil, fault.Wrapf(fault.NodeAddRemove, ErrDanglingReference, "node %s is targeted by %s", m.TargetID, m.ID)
		}
	}

	kept := parent.Children[:0]
	for _, child := range parent.Children {
		if child != n {
			kept = append(kept, child)
		}
	}
	for i := len(kept); i < len(parent.Children); i++ {
		parent.Children[i] = nil
	}
	parent.Children = kept

	var unitIDs []string
	seenUnit := make(map[string]bool)
	for _, m := range sub {
		delete(t.index, m.ID)
		delete(t.parent, m.ID)
		if m.Type == Struct && m.UnitID != "" && !seenUnit[m.UnitID] {
			seenUnit[m.UnitID] = true
			unitIDs = append(unitIDs, m.UnitID)
		}
	}
	return n, unitIDs, nil
}

// ApplyUnit points a structure node at a unit id.
func (t *Tree) ApplyUnit(nodeID, unitID string) error {
	n, ok := t.index[nodeID]
	if !ok {
		return fault.Wrapf(fault.NodeAddRemove, ErrNodeNotFound, "node %q", nodeID)
	}
	if n.Type != Struct {
		return fault.Wrapf(fault.NodeAddRemove, ErrWrongKind, "apply unit to %s node %s", n.Type, nodeID)
	}
	if unitID == "" {
		return fault.Wrapf(fault.NodeAddRemove, ErrUnitRequired, "node %s", nodeID)
	}
	if t.units != nil && !t.units.Has(unitID) {
		return fault.Newf(fault.NodeAddRemove, "node %s: unit %s is not registered", nodeID, unitID)
	}
	n.UnitID = unitID
	return nil
}

// ApplyTarget points a reference at targetID. The target must be a structure
// node of this tree and the resulting join must keep the dependency graph
// acyclic.
func (t *Tree) ApplyTarget(refID, targetID string) error {
	ref, ok := t.index[refID]
	if !ok {
		return fault.Wrapf(fault.NodeAddRemove, ErrNodeNotFound, "reference %q", refID)
	}
	if ref.Type != Reference {
		return fault.Wrapf(fault.NodeAddRemove, ErrWrongKind, "apply target to %s node %s", ref.Type, refID)
	}
	target, ok := t.index[targetID]
	if !ok {
		return fault.Wrapf(fault.NodeAddRemove, ErrReferenceNodeRequired, "target %q", targetID)
	}
	if target.Type == Reference {
		return fault.Wrapf(fault.NodeAddRemove, ErrReferenceToReference, "target %s", targetID)
	}
	if target.Type == Root {
		return fault.Wrapf(fault.NodeAddRemove, ErrReferenceToRoot, "target %s", targetID)
	}

	previous := ref.TargetID
	ref.TargetID = targetID
	if err := t.CheckAcyclic(); err != nil {
		ref.TargetID = previous
		return fault.Wrapf(fault.NodeAddRemove, err, "reference %s -> %s", refID, targetID)
	}
	return nil
}

// Clone deep-copies the tree and binds the copy to units.
func (t *Tree) Clone(units UnitSet) (*Tree, error) {
	out, err := FromRoot(t.root.Clone(), units)
	if err != nil {
		return nil, fault.Wrap(fault.NodeClone, err, "clone tree")
	}
	return out, nil
}

// Layers groups non-root nodes by depth; layer 0 holds the root's children.
// Nodes keep traversal order within a layer.
func (t *Tree) Layers() [][]*Node {
	var layers [][]*Node
	var walk func(n *Node, depth int)
	walk = func(n *Node, depth int) {
		if depth >= 0 {
			for len(layers) <= depth {
				layers = append(layers, nil)
			}
			layers[depth] = append(layers[depth], n)
		}
		if n.Type == Reference {
			return
		}
		for _, child := range n.Children {
			if child != nil {
				walk(child, depth+1)
			}
		}
	}
	if t.root != nil {
		walk(t.root, -1)
	}
	return layers
}

func (t *Tree) String() string {
	if t.root == nil {
		return "tree(<nil>)"
	}
	return fmt.Sprintf("tree(%s, %d nodes)", t.root.ID, len(t.index))
}
