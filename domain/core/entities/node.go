package entities

import (
	"fmt"

	"blueprint-editor/domain/core/valueobjects"
	pkgerrors "blueprint-editor/pkg/errors"
)

// Node is one placed element on a diagram canvas. Its JSON form is the
// persisted node-list contract, so fields are exported and tagged.
type Node struct {
	ID       string                `json:"id" dynamodbav:"id"`
	Type     valueobjects.NodeType `json:"type" dynamodbav:"type"`
	Position valueobjects.Position `json:"position" dynamodbav:"position"`
	Data     NodeData              `json:"data" dynamodbav:"data"`
	Selected bool                  `json:"selected,omitempty" dynamodbav:"selected,omitempty"`
}

// NodeData is the node payload. Symbol nodes carry a copy of the symbol
// definition; built-in nodes carry a label.
type NodeData struct {
	ID          string `json:"id,omitempty" dynamodbav:"id,omitempty"`
	Name        string `json:"name,omitempty" dynamodbav:"name,omitempty"`
	SVG         string `json:"svg,omitempty" dynamodbav:"svg,omitempty"`
	Description string `json:"description,omitempty" dynamodbav:"description,omitempty"`
	Label       string `json:"label,omitempty" dynamodbav:"label,omitempty"`
}

// NewSymbolNode creates a symbol-placement node holding a copy of symbol
func NewSymbolNode(id valueobjects.NodeID, symbol valueobjects.Symbol, position valueobjects.Position) Node {
	return Node{
		ID:       id.String(),
		Type:     valueobjects.NodeTypeSymbol,
		Position: position,
		Data:     SymbolData(symbol),
	}
}

// NewBuiltinNode creates a plain labelled canvas node
func NewBuiltinNode(id string, nodeType valueobjects.NodeType, label string, position valueobjects.Position) (Node, error) {
	if !nodeType.IsBuiltin() {
		return Node{}, pkgerrors.NewValidationError(fmt.Sprintf("%q is not a built-in node type", nodeType))
	}
	if _, err := valueobjects.NewNodeIDFromString(id); err != nil {
		return Node{}, pkgerrors.NewValidationError(err.Error())
	}
	return Node{
		ID:       id,
		Type:     nodeType.Normalize(),
		Position: position,
		Data:     NodeData{Label: label},
	}, nil
}

// SymbolData copies a symbol definition into a node payload
func SymbolData(s valueobjects.Symbol) NodeData {
	return NodeData{
		ID:          s.ID,
		Name:        s.Name,
		SVG:         s.SVG,
		Description: s.Description,
	}
}

// Symbol returns the symbol definition carried by a symbol node
func (d NodeData) Symbol() valueobjects.Symbol {
	return valueobjects.Symbol{
		ID:          d.ID,
		Name:        d.Name,
		SVG:         d.SVG,
		Description: d.Description,
	}
}

// IsSymbol reports whether the node is a symbol placement
func (n Node) IsSymbol() bool {
	return n.Type.Normalize() == valueobjects.NodeTypeSymbol
}

// NodeID returns the node's id as a value object
func (n Node) NodeID() valueobjects.NodeID {
	id, _ := valueobjects.NewNodeIDFromString(n.ID)
	return id
}

// Validate checks the node satisfies the persisted contract
func (n Node) Validate() error {
	if n.ID == "" {
		return pkgerrors.NewValidationError("node id cannot be empty")
	}
	if !n.Type.IsKnown() {
		return pkgerrors.NewValidationError(fmt.Sprintf("node %s has unknown type %q", n.ID, n.Type))
	}
	if _, err := valueobjects.NewPosition(n.Position.X, n.Position.Y); err != nil {
		return pkgerrors.NewValidationError(fmt.Sprintf("node %s: %v", n.ID, err))
	}
	if n.IsSymbol() {
		if err := n.Data.Symbol().Validate(); err != nil {
			return pkgerrors.NewValidationError(fmt.Sprintf("node %s: %v", n.ID, err))
		}
	}
	return nil
}

// Normalized returns a copy with legacy type tags upgraded
func (n Node) Normalized() Node {
	n.Type = n.Type.Normalize()
	return n
}

// CloneNodes returns a shallow copy of a node list. Nodes hold only value
// fields so the copy shares nothing with the original.
func CloneNodes(nodes []Node) []Node {
	out := make([]Node, len(nodes))
	copy(out, nodes)
	return out
}

// NodeIDs returns the ids of nodes in order
func NodeIDs(nodes []Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}
