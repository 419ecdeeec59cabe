package valueobjects

import "fmt"

// Tool is the active editor tool
type Tool string

const (
	ToolMove            Tool = "move"
	ToolLine            Tool = "line"
	ToolSymbolPlacement Tool = "symbol-placement"
)

// DefaultTool is the tool selected when nothing else is
const DefaultTool = ToolMove

// ParseTool converts a string to a Tool, accepting "symbol" as shorthand
// for symbol placement
func ParseTool(s string) (Tool, error) {
	switch Tool(s) {
	case ToolMove, ToolLine, ToolSymbolPlacement:
		return Tool(s), nil
	case "symbol":
		return ToolSymbolPlacement, nil
	}
	return "", fmt.Errorf("unknown tool %q", s)
}

// IsValid reports whether t is one of the known tools
func (t Tool) IsValid() bool {
	switch t {
	case ToolMove, ToolLine, ToolSymbolPlacement:
		return true
	}
	return false
}

// String returns the tool name
func (t Tool) String() string { return string(t) }
