package valueobjects

// NodeType tags the kind of a canvas node
type NodeType string

const (
	NodeTypeDefault NodeType = "default"
	NodeTypeInput   NodeType = "input"
	NodeTypeOutput  NodeType = "output"
	NodeTypeGroup   NodeType = "group"
	NodeTypeSymbol  NodeType = "symbol-placement"
)

// legacySymbolType is the tag older stored diagrams use for symbol nodes
const legacySymbolType NodeType = "electrical-symbol"

// KnownNodeTypes lists every supported node type
func KnownNodeTypes() []NodeType {
	return []NodeType{NodeTypeDefault, NodeTypeInput, NodeTypeOutput, NodeTypeGroup, NodeTypeSymbol}
}

// Normalize maps legacy tags onto their current names
func (t NodeType) Normalize() NodeType {
	if t == legacySymbolType {
		return NodeTypeSymbol
	}
	return t
}

// IsKnown reports whether t, after normalization, is a supported type
func (t NodeType) IsKnown() bool {
	n := t.Normalize()
	for _, k := range KnownNodeTypes() {
		if n == k {
			return true
		}
	}
	return false
}

// IsBuiltin reports whether t is a plain canvas element rather than a symbol
func (t NodeType) IsBuiltin() bool {
	return t.IsKnown() && t.Normalize() != NodeTypeSymbol
}
