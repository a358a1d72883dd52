// Package node implements the model topology: a tree of root, structure and
// reference nodes held in an id-indexed arena.
package node

import (
	"errors"

	"netgraph/internal/ident"
)

type Kind string

const (
	Root      Kind = "_root"
	Struct    Kind = "_struct"
	Reference Kind = "_reference"
)

var (
	ErrIDRequired            = errors.New("id is required")
	ErrNameRequired          = errors.New("name is required")
	ErrChildrenRequired      = errors.New("root node requires at least one child")
	ErrNestedRoot            = errors.New("root node cannot have a parent")
	ErrUnitRequired          = errors.New("unit is required")
	ErrParentRequired        = errors.New("parent node is required")
	ErrReferenceNodeRequired = errors.New("reference node is required")
	ErrReferenceToReference  = errors.New("reference node cannot target a reference node")
	ErrReferenceChildren     = errors.New("reference node cannot have children")
	ErrReferenceToRoot       = errors.New("reference node cannot target the root")
	ErrReferenceUnderRoot    = errors.New("reference node cannot be a direct child of the root")
	ErrNodeNotFound          = errors.New("node not found")
	ErrDuplicateID           = errors.New("duplicate node id")
	ErrRootRemoval           = errors.New("root node cannot be removed")
	ErrDanglingReference     = errors.New("node is targeted by a reference outside the removed subtree")
	ErrCycle                 = errors.New("reference introduces a dependency cycle")
	ErrUnknownKind           = errors.New("unknown node type")
	ErrWrongKind             = errors.New("operation does not apply to this node type")
)

// Node is a flat tagged record. Children is owned; UnitID and TargetID are
// resolved through the owning Tree and never hold pointers.
type Node struct {
	ID       string  `json:"id" yaml:"id"`
	Name     string  `json:"name" yaml:"name"`
	Type     Kind    `json:"type" yaml:"type"`
	UnitID   string  `json:"unit_id,omitempty" yaml:"unit_id,omitempty"`
	TargetID string  `json:"target_node_id,omitempty" yaml:"target_node_id,omitempty"`
	Children []*Node `json:"children,omitempty" yaml:"children,omitempty"`
}

type Option func(*Node)

func WithID(id string) Option {
	return func(n *Node) { n.ID = id }
}

func WithName(name string) Option {
	return func(n *Node) { n.Name = name }
}

// New returns a detached node with a generated id and name.
func New(kind Kind, opts ...Option) (*Node, error) {
	switch kind {
	case Root, Struct, Reference:
	default:
		return nil, ErrUnknownKind
	}
	n := &Node{ID: ident.NewID(), Name: ident.NewName(), Type: kind}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Clone copies n and its whole subtree.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{
		ID:       n.ID,
		Name:     n.Name,
		Type:     n.Type,
		UnitID:   n.UnitID,
		TargetID: n.TargetID,
	}
	if len(n.Children) > 0 {
		out.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			out.Children[i] = child.Clone()
		}
	}
	return out
}

// Flatten lists n and its descendants in pre-order. A reference contributes
// only itself.
func Flatten(n *Node) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	var walk func(*Node)
	walk = func(cur *Node) {
		out = append(out, cur)
		if cur.Type == Reference {
			return
		}
		for _, child := range cur.Children {
			if child != nil {
				walk(child)
			}
		}
	}
	walk(n)
	return out
}
