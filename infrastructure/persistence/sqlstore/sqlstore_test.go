package sqlstore

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
	"go.uber.org/zap"
)

func newSQLiteRepo(t *testing.T) *DiagramRepository {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, SQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	migrator, err := NewMigrator(db, SQLite, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, migrator.Migrate(ctx, -1))

	return NewDiagramRepository(db, SQLite, zap.NewNop())
}

func createDiagram(t *testing.T, repo *DiagramRepository, title string) int64 {
	t.Helper()
	d, err := aggregates.NewDiagram(title, aggregates.Blueprint{URL: "/blobs/" + title, Width: 800, Height: 600}, nil)
	require.NoError(t, err)
	id, err := repo.Create(context.Background(), d)
	require.NoError(t, err)
	return id
}

func TestRebind(t *testing.T) {
	q := "UPDATE t SET a = ?, b = ? WHERE id = ?"
	assert.Equal(t, q, SQLite.Rebind(q))
	assert.Equal(t, "UPDATE t SET a = $1, b = $2 WHERE id = $3", Postgres.Rebind(q))
}

func TestDialectFor(t *testing.T) {
	d, err := DialectFor("PostgreSQL")
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)

	_, err = DialectFor("oracle")
	assert.Error(t, err)
}

func TestParseMigrationName(t *testing.T) {
	v, desc, dir, ok := parseMigrationName("0002_blueprint_offset.down.sql")
	require.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, "blueprint offset", desc)
	assert.Equal(t, "down", dir)

	_, _, _, ok = parseMigrationName("README.md")
	assert.False(t, ok)
}

func TestMigrationsRecorded(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, SQLite, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	migrator, err := NewMigrator(db, SQLite, nil)
	require.NoError(t, err)
	require.NoError(t, migrator.Migrate(ctx, -1))

	history, drifted, err := migrator.History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 2)
	assert.Empty(t, drifted)
	assert.NotEmpty(t, history[0].Checksum)
}

func TestCreateGetAndDefaults(t *testing.T) {
	repo := newSQLiteRepo(t)
	id := createDiagram(t, repo, "plan.png")
	assert.Equal(t, int64(1), id)

	d, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "plan.png", d.Title())
	assert.Equal(t, "/blobs/plan.png", d.BlueprintURL())
	assert.Empty(t, d.Nodes())
	w, h := d.BlueprintSize()
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)
	assert.False(t, d.CreatedAt().IsZero())

	_, err = repo.GetByID(context.Background(), 42)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestSaveNodesRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepo(t)
	for i := 0; i < 7; i++ {
		createDiagram(t, repo, "sheet.png")
	}

	nodes := []entities.Node{
		{
			ID:       "resistor-1",
			Type:     valueobjects.NodeTypeSymbol,
			Position: valueobjects.Position{X: 12.5, Y: 40},
			Data:     entities.NodeData{ID: "resistor", Name: "Resistor", SVG: "<svg/>", Description: "R"},
		},
		{
			ID:       "lamp-2",
			Type:     valueobjects.NodeTypeSymbol,
			Position: valueobjects.Position{X: 100, Y: 8},
			Data:     entities.NodeData{ID: "lamp", Name: "Lamp", SVG: "<svg/>"},
			Selected: true,
		},
	}
	require.NoError(t, repo.SaveNodes(ctx, 7, nodes, 2))

	d, err := repo.GetByID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, nodes, d.Nodes())
	assert.Equal(t, int64(2), d.NodeSequence())

	// a lower sequence never lowers the stored one
	require.NoError(t, repo.SaveNodes(ctx, 7, nodes[:1], 1))
	d, err = repo.GetByID(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, d.Nodes(), 1)
	assert.Equal(t, int64(2), d.NodeSequence())

	assert.True(t, pkgerrors.IsNotFound(repo.SaveNodes(ctx, 99, nodes, 2)))
}

func TestUpdateAndList(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepo(t)
	first := createDiagram(t, repo, "first.png")
	createDiagram(t, repo, "second.png")

	d, err := repo.GetByID(ctx, first)
	require.NoError(t, err)
	require.NoError(t, d.Rename("Ground floor", nil))
	require.NoError(t, d.FixBlueprintPosition(valueobjects.Position{X: 5, Y: -3}))
	require.NoError(t, repo.Update(ctx, d))

	d, err = repo.GetByID(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "Ground floor", d.Title())
	assert.Equal(t, valueobjects.Position{X: 5, Y: -3}, d.BlueprintOffset())

	list, err := repo.List(ctx, ports.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second.png", list[0].Title)
	assert.Equal(t, "Ground floor", list[1].Title)

	list, err = repo.List(ctx, ports.ListOptions{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, first, list[0].ID)
}
