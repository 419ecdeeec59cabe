package memory

import (
	"context"
	"testing"

	"blueprint-editor/application/ports"
	"blueprint-editor/domain/core/aggregates"
	"blueprint-editor/domain/core/entities"
	"blueprint-editor/domain/core/valueobjects"
	pkgerrors "blueprint-editor/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDiagram(t *testing.T, title string) *aggregates.Diagram {
	t.Helper()
	d, err := aggregates.NewDiagram(title, aggregates.Blueprint{URL: "/blobs/" + title}, nil)
	require.NoError(t, err)
	return d
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewDiagramRepository()

	id, err := repo.Create(ctx, newDiagram(t, "a.png"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	d, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "a.png", d.Title())
	assert.Empty(t, d.Nodes())

	_, err = repo.GetByID(ctx, 99)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestSaveNodesRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewDiagramRepository()
	repo.Seed(aggregates.Snapshot{ID: 7, Title: "plan", BlueprintURL: "/blobs/plan.png", Nodes: []entities.Node{}})

	nodes := []entities.Node{{
		ID:       "resistor-1",
		Type:     valueobjects.NodeTypeSymbol,
		Position: valueobjects.Position{X: 10, Y: 20},
		Data:     entities.NodeData{ID: "resistor", Name: "Resistor", SVG: "<svg/>"},
	}}
	require.NoError(t, repo.SaveNodes(ctx, 7, nodes, 1))

	d, err := repo.GetByID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, nodes, d.Nodes())
	assert.Equal(t, int64(1), d.NodeSequence())

	// The stored list is not aliased with the caller's slice
	nodes[0].ID = "changed"
	d, err = repo.GetByID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "resistor-1", d.Nodes()[0].ID)

	assert.True(t, pkgerrors.IsNotFound(repo.SaveNodes(ctx, 8, nodes, 1)))
}

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewDiagramRepository()
	for _, title := range []string{"one", "two", "three"} {
		_, err := repo.Create(ctx, newDiagram(t, title))
		require.NoError(t, err)
	}

	list, err := repo.List(ctx, ports.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "three", list[0].Title)
	assert.Equal(t, "one", list[2].Title)

	list, err = repo.List(ctx, ports.ListOptions{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "two", list[0].Title)
}
