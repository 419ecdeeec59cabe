package editor

import (
	"testing"

	"blueprint-editor/domain/core/entities"
	"blueprint-editor/domain/core/valueobjects"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	symA = valueobjects.Symbol{ID: "resistor", Name: "Resistor", SVG: "<svg/>", Description: "r"}
	symB = valueobjects.Symbol{ID: "capacitor", Name: "Capacitor", SVG: "<svg/>", Description: "c"}
)

func click(x, y, left, top float64) ClickEvent {
	return ClickEvent{ClientX: x, ClientY: y, Bounds: Bounds{Left: left, Top: top}}
}

func TestNewToolStore(t *testing.T) {
	s := NewToolStore()
	assert.Equal(t, valueobjects.ToolMove, s.SelectedTool())
	_, ok := s.PendingSymbol()
	assert.False(t, ok)
}

func TestToolStore_PendingSymbolTracksLastSet(t *testing.T) {
	s := NewToolStore()

	s.SetPendingSymbol(symA)
	s.SetPendingSymbol(symB)
	got, ok := s.PendingSymbol()
	require.True(t, ok)
	assert.Equal(t, symB, got)

	s.ResetPendingSymbol()
	s.ResetPendingSymbol()
	_, ok = s.PendingSymbol()
	assert.False(t, ok)

	// set does not touch the selected tool
	s.SetPendingSymbol(symA)
	assert.Equal(t, valueobjects.ToolMove, s.SelectedTool())
}

func TestToolStore_ResetSelectedToolAlwaysMove(t *testing.T) {
	for _, tool := range []valueobjects.Tool{valueobjects.ToolMove, valueobjects.ToolLine, valueobjects.ToolSymbolPlacement} {
		s := NewToolStore()
		s.SetSelectedTool(tool)
		assert.Equal(t, tool, s.SelectedTool())
		s.ResetSelectedTool()
		assert.Equal(t, valueobjects.ToolMove, s.SelectedTool())
		s.ResetSelectedTool()
		assert.Equal(t, valueobjects.ToolMove, s.SelectedTool())
	}
}

func TestToolStore_IgnoresUnknownTool(t *testing.T) {
	s := NewToolStore()
	s.SetSelectedTool(valueobjects.ToolLine)
	s.SetSelectedTool(valueobjects.Tool("lasso"))
	assert.Equal(t, valueobjects.ToolLine, s.SelectedTool())
}

func TestToolStore_SnapshotIsCopy(t *testing.T) {
	s := NewToolStore()
	s.ChooseSymbol(symA)

	snap := s.Snapshot()
	require.NotNil(t, snap.PendingSymbol)
	assert.Equal(t, valueobjects.ToolSymbolPlacement, snap.SelectedTool)

	snap.PendingSymbol.ID = "mutated"
	got, _ := s.PendingSymbol()
	assert.Equal(t, "resistor", got.ID)
}

func TestCanvas_ClickWithoutPendingSymbol(t *testing.T) {
	s := NewToolStore()
	s.SetSelectedTool(valueobjects.ToolLine)
	c := NewCanvas(s, nil, 0)

	_, placed := c.Click(click(100, 100, 10, 10))

	assert.False(t, placed)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, valueobjects.ToolMove, s.SelectedTool())
	assert.Equal(t, StateIdle, c.State())
}

func TestCanvas_ClickPlacesPendingSymbol(t *testing.T) {
	s := NewToolStore()
	c := NewCanvas(s, nil, 0)
	s.ChooseSymbol(symA)
	assert.Equal(t, StateAwaitingPlacement, c.State())

	node, placed := c.Click(click(250, 130, 50, 30))

	require.True(t, placed)
	assert.Equal(t, "resistor-1", node.ID)
	assert.Equal(t, valueobjects.NodeTypeSymbol, node.Type)
	assert.Equal(t, valueobjects.Position{X: 200, Y: 100}, node.Position)
	assert.Equal(t, symA, node.Data.Symbol())

	_, pending := s.PendingSymbol()
	assert.False(t, pending)
	assert.Equal(t, valueobjects.ToolMove, s.SelectedTool())
	assert.Equal(t, StateIdle, c.State())
	assert.Len(t, c.Nodes(), 1)
}

func TestCanvas_PendingSymbolGovernsPlacement(t *testing.T) {
	s := NewToolStore()
	c := NewCanvas(s, nil, 0)
	s.SetPendingSymbol(symB)

	node, placed := c.Click(click(5, 5, 0, 0))

	require.True(t, placed)
	assert.Equal(t, "capacitor-1", node.ID)
}

func TestCanvas_OrdinalsFollowInsertionOrder(t *testing.T) {
	s := NewToolStore()
	c := NewCanvas(s, nil, 0)

	var ids []string
	for _, sym := range []valueobjects.Symbol{symA, symB, symA} {
		s.ChooseSymbol(sym)
		n, placed := c.Click(click(1, 1, 0, 0))
		require.True(t, placed)
		ids = append(ids, n.ID)
	}

	assert.Equal(t, []string{"resistor-1", "capacitor-2", "resistor-3"}, ids)
	assert.Equal(t, ids, entities.NodeIDs(c.Nodes()))
	assert.Equal(t, int64(3), c.Sequence())
}

func TestCanvas_SequenceSurvivesShrunkNodeList(t *testing.T) {
	s := NewToolStore()
	stored := []entities.Node{
		entities.NewSymbolNode(valueobjects.NewNodeID("resistor", 4), symA, valueobjects.Position{}),
	}
	c := NewCanvas(s, stored, 4)

	s.ChooseSymbol(symA)
	n, _ := c.Click(click(0, 0, 0, 0))
	assert.Equal(t, "resistor-5", n.ID)
}

func TestCanvas_SkipsCollidingIDs(t *testing.T) {
	s := NewToolStore()
	stored := []entities.Node{
		entities.NewSymbolNode(valueobjects.NewNodeID("resistor", 2), symA, valueobjects.Position{}),
	}
	// a sequence that lags the stored ids still yields a fresh id
	c := NewCanvas(s, stored, 0)

	s.ChooseSymbol(symA)
	n, _ := c.Click(click(0, 0, 0, 0))
	assert.Equal(t, "resistor-3", n.ID)
}

func TestCanvas_ClickOnExistingNodeStillAppends(t *testing.T) {
	s := NewToolStore()
	c := NewCanvas(s, nil, 0)

	s.ChooseSymbol(symA)
	first, _ := c.Click(click(20, 20, 0, 0))
	s.ChooseSymbol(symA)
	second, _ := c.Click(click(20, 20, 0, 0))

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, c.Len())
}

func TestCanvas_SelectAndMove(t *testing.T) {
	s := NewToolStore()
	c := NewCanvas(s, nil, 0)
	for _, sym := range []valueobjects.Symbol{symA, symB} {
		s.ChooseSymbol(sym)
		c.Click(click(0, 0, 0, 0))
	}

	require.True(t, c.SelectNode("resistor-1"))
	require.True(t, c.SelectNode("capacitor-2"))
	sel, ok := c.Selected()
	require.True(t, ok)
	assert.Equal(t, "capacitor-2", sel.ID)
	assert.False(t, c.SelectNode("ghost-9"))

	yes := true
	no := false
	applied := c.ApplyNodeChanges([]NodeChange{
		{Type: ChangePosition, ID: "resistor-1", Position: &valueobjects.Position{X: 40, Y: 60}},
		{Type: ChangeSelect, ID: "resistor-1", Selected: &yes},
		{Type: ChangePosition, ID: "ghost-9", Position: &valueobjects.Position{X: 1, Y: 1}},
		{Type: ChangeSelect, ID: "capacitor-2", Selected: &no},
		{Type: "remove", ID: "resistor-1"},
	})
	assert.Equal(t, 3, applied)

	nodes := c.Nodes()
	assert.Equal(t, valueobjects.Position{X: 40, Y: 60}, nodes[0].Position)
	assert.True(t, nodes[0].Selected)
	assert.False(t, nodes[1].Selected)
	assert.Equal(t, 2, c.Len())

	c.ClearSelection()
	_, ok = c.Selected()
	assert.False(t, ok)
}

func TestCanvas_NodesReturnsCopy(t *testing.T) {
	s := NewToolStore()
	c := NewCanvas(s, nil, 0)
	s.ChooseSymbol(symA)
	c.Click(click(0, 0, 0, 0))

	nodes := c.Nodes()
	nodes[0].ID = "changed"
	assert.Equal(t, "resistor-1", c.Nodes()[0].ID)
}
