package editor

import (
	"blueprint-editor/domain/core/entities"
	"blueprint-editor/domain/core/valueobjects"
)

// PlacementState is the state of the canvas placement machine
type PlacementState string

const (
	StateIdle              PlacementState = "idle"
	StateAwaitingPlacement PlacementState = "awaiting_placement"
)

// Bounds is the on-screen origin of the canvas element
type Bounds struct {
	Left float64 `json:"left"`
	Top  float64 `json:"top"`
}

// ClickEvent is a pointer click in client coordinates
type ClickEvent struct {
	ClientX float64 `json:"clientX"`
	ClientY float64 `json:"clientY"`
	Bounds  Bounds  `json:"bounds"`
}

// Position returns the click relative to the canvas origin
func (e ClickEvent) Position() valueobjects.Position {
	return valueobjects.Position{X: e.ClientX, Y: e.ClientY}.
		Sub(valueobjects.Position{X: e.Bounds.Left, Y: e.Bounds.Top})
}

// ChangeType names a node change
type ChangeType string

const (
	ChangePosition ChangeType = "position"
	ChangeSelect   ChangeType = "select"
)

// NodeChange is an edit made with the move tool
type NodeChange struct {
	Type     ChangeType             `json:"type"`
	ID       string                 `json:"id"`
	Position *valueobjects.Position `json:"position,omitempty"`
	Selected *bool                  `json:"selected,omitempty"`
}

// Canvas owns the node list of an open diagram and turns clicks into
// placements using the session's ToolStore.
type Canvas struct {
	store    *ToolStore
	nodes    []entities.Node
	index    map[string]int
	sequence int64
}

// NewCanvas creates a canvas seeded with stored nodes. sequence is the
// diagram's persisted node counter.
func NewCanvas(store *ToolStore, nodes []entities.Node, sequence int64) *Canvas {
	c := &Canvas{
		store:    store,
		nodes:    entities.CloneNodes(nodes),
		index:    make(map[string]int, len(nodes)),
		sequence: sequence,
	}
	for i, n := range c.nodes {
		c.index[n.ID] = i
	}
	return c
}

// Store returns the tool store the canvas reads from
func (c *Canvas) Store() *ToolStore { return c.store }

// State reports the current placement state
func (c *Canvas) State() PlacementState {
	if _, ok := c.store.PendingSymbol(); ok && c.store.SelectedTool() == valueobjects.ToolSymbolPlacement {
		return StateAwaitingPlacement
	}
	return StateIdle
}

// Click handles a pointer click anywhere on the canvas. With a pending
// symbol it appends a node at the click position and clears the pending
// symbol. Every click returns the tool to move.
func (c *Canvas) Click(ev ClickEvent) (entities.Node, bool) {
	defer c.store.ResetSelectedTool()

	symbol, ok := c.store.PendingSymbol()
	if !ok {
		return entities.Node{}, false
	}

	node := entities.NewSymbolNode(c.nextID(symbol.ID), symbol, ev.Position())
	c.index[node.ID] = len(c.nodes)
	c.nodes = append(c.nodes, node)
	c.store.ResetPendingSymbol()
	return node, true
}

// nextID issues "<prefix>-<ordinal>" with ordinal one past the larger of
// the sequence and the node count, skipping ids already in use
func (c *Canvas) nextID(prefix string) valueobjects.NodeID {
	ordinal := c.sequence
	if n := int64(len(c.nodes)); n > ordinal {
		ordinal = n
	}
	for {
		ordinal++
		id := valueobjects.NewNodeID(prefix, ordinal)
		if _, taken := c.index[id.String()]; !taken {
			c.sequence = ordinal
			return id
		}
	}
}

// SelectNode makes id the only selected node. It returns false when id is
// unknown, leaving the selection unchanged.
func (c *Canvas) SelectNode(id string) bool {
	if _, ok := c.index[id]; !ok {
		return false
	}
	for i := range c.nodes {
		c.nodes[i].Selected = c.nodes[i].ID == id
	}
	return true
}

// ClearSelection deselects every node
func (c *Canvas) ClearSelection() {
	for i := range c.nodes {
		c.nodes[i].Selected = false
	}
}

// ApplyNodeChanges applies position and selection edits in order and
// returns how many were applied. Changes naming unknown ids are skipped.
func (c *Canvas) ApplyNodeChanges(changes []NodeChange) int {
	applied := 0
	for _, ch := range changes {
		i, ok := c.index[ch.ID]
		if !ok {
			continue
		}
		switch ch.Type {
		case ChangePosition:
			if ch.Position == nil {
				continue
			}
			p, err := valueobjects.NewPosition(ch.Position.X, ch.Position.Y)
			if err != nil {
				continue
			}
			c.nodes[i].Position = p
		case ChangeSelect:
			if ch.Selected == nil {
				continue
			}
			if *ch.Selected {
				c.SelectNode(ch.ID)
			} else {
				c.nodes[i].Selected = false
			}
		default:
			continue
		}
		applied++
	}
	return applied
}

// Nodes returns a copy of the node list in insertion order
func (c *Canvas) Nodes() []entities.Node {
	return entities.CloneNodes(c.nodes)
}

// Selected returns the selected node, if any
func (c *Canvas) Selected() (entities.Node, bool) {
	for _, n := range c.nodes {
		if n.Selected {
			return n, true
		}
	}
	return entities.Node{}, false
}

// Sequence returns the highest ordinal issued so far
func (c *Canvas) Sequence() int64 { return c.sequence }

// Len returns the number of nodes
func (c *Canvas) Len() int { return len(c.nodes) }
