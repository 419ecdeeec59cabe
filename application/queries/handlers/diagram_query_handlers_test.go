package handlers

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"blueprint-editor/application/ports"
	"blueprint-editor/application/queries"
	"blueprint-editor/domain/catalog"
	"blueprint-editor/domain/config"
	"blueprint-editor/domain/core/aggregates"
	"blueprint-editor/domain/core/entities"
	"blueprint-editor/domain/core/valueobjects"
	"blueprint-editor/infrastructure/persistence/memory"
	pkgerrors "blueprint-editor/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type listCache struct {
	data map[string]interface{}
	gens map[string]uint64
	sets int
}

func (c *listCache) Get(_ context.Context, key string) (interface{}, bool) {
	v, ok := c.data[key]
	return v, ok
}

func (c *listCache) Set(_ context.Context, key string, value interface{}, _ int) error {
	c.sets++
	c.data[key] = value
	return nil
}

func (c *listCache) Delete(_ context.Context, key string) error {
	delete(c.data, key)
	c.bump(key)
	return nil
}

func (c *listCache) Clear(context.Context) error {
	c.data = map[string]interface{}{}
	return nil
}

func (c *listCache) bump(key string) {
	if c.gens == nil {
		c.gens = map[string]uint64{}
	}
	c.gens[key]++
}

func (c *listCache) Generation(key string) uint64 {
	return c.gens[key]
}

func (c *listCache) SetIfGeneration(_ context.Context, key string, value interface{}, _ int, gen uint64) (bool, error) {
	if c.gens[key] != gen {
		return false, nil
	}
	c.sets++
	c.data[key] = value
	return true, nil
}

type stubBlobs struct {
	objects []ports.BlobObject
	err     error
}

func (b stubBlobs) Put(context.Context, string, io.Reader, int64, string) (string, error) {
	return "", errors.New("read only")
}
func (b stubBlobs) Delete(context.Context, string) error { return nil }
func (b stubBlobs) List(context.Context) ([]ports.BlobObject, error) {
	return b.objects, b.err
}
func (b stubBlobs) Open(context.Context, string) (io.ReadCloser, error) {
	return nil, pkgerrors.NewNotFoundError("blob")
}
func (b stubBlobs) PathnameFromURL(string) (string, bool) { return "", false }

func seed(repo *memory.DiagramRepository, id int64, nodes ...entities.Node) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(id) * time.Minute)
	repo.Seed(aggregates.Snapshot{
		ID:           id,
		Title:        "Diagram",
		BlueprintURL: "https://blobs.test/plan.png",
		Nodes:        nodes,
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      1,
	})
}

func TestGetDiagram(t *testing.T) {
	repo := memory.NewDiagramRepository()
	symbol, _ := catalog.Default().Lookup("resistor")
	seed(repo, 7, entities.NewSymbolNode(valueobjects.NewNodeID("resistor", 4), symbol, valueobjects.Position{X: 1, Y: 2}))

	view, err := NewGetDiagramHandler(repo, zap.NewNop()).Handle(context.Background(), queries.GetDiagramQuery{DiagramID: 7})
	require.NoError(t, err)
	assert.Equal(t, int64(7), view.ID)
	assert.Equal(t, "https://blobs.test/plan.png", view.BlueprintURL)
	require.Len(t, view.Nodes, 1)
	assert.Equal(t, "resistor-4", view.Nodes[0].ID)
	assert.Equal(t, int64(4), view.NodeSequence)
}

func TestGetDiagram_NotFound(t *testing.T) {
	h := NewGetDiagramHandler(memory.NewDiagramRepository(), zap.NewNop())
	_, err := h.Handle(context.Background(), queries.GetDiagramQuery{DiagramID: 7})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeDiagramNotFound, pkgerrors.GetAppError(err).Code)
}

func TestListDiagrams_PagesNewestFirst(t *testing.T) {
	repo := memory.NewDiagramRepository()
	for id := int64(1); id <= 5; id++ {
		seed(repo, id)
	}
	cache := &listCache{data: map[string]interface{}{}}
	h := NewListDiagramsHandler(repo, cache, config.DefaultDomainConfig(), zap.NewNop())

	first, err := h.Handle(context.Background(), queries.ListDiagramsQuery{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, first.TotalCount)
	assert.True(t, first.HasMore)
	require.Len(t, first.Diagrams, 2)
	assert.Equal(t, int64(5), first.Diagrams[0].ID)
	assert.Equal(t, int64(4), first.Diagrams[1].ID)

	last, err := h.Handle(context.Background(), queries.ListDiagramsQuery{Page: 3, PageSize: 2})
	require.NoError(t, err)
	assert.False(t, last.HasMore)
	require.Len(t, last.Diagrams, 1)
	assert.Equal(t, int64(1), last.Diagrams[0].ID)

	beyond, err := h.Handle(context.Background(), queries.ListDiagramsQuery{Page: 9, PageSize: 2})
	require.NoError(t, err)
	assert.Empty(t, beyond.Diagrams)

	assert.Equal(t, 1, cache.sets, "every page is served from one cached listing")
}

func TestListDiagrams_Defaults(t *testing.T) {
	h := NewListDiagramsHandler(memory.NewDiagramRepository(), nil, config.DefaultDomainConfig(), zap.NewNop())
	res, err := h.Handle(context.Background(), queries.ListDiagramsQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 20, res.PageSize)
	assert.NotNil(t, res.Diagrams)
	assert.Zero(t, res.TotalCount)
}

func TestListDiagrams_InvalidatedListIsReloaded(t *testing.T) {
	repo := memory.NewDiagramRepository()
	seed(repo, 1)
	cache := &listCache{data: map[string]interface{}{}}
	h := NewListDiagramsHandler(repo, cache, config.DefaultDomainConfig(), zap.NewNop())

	res, err := h.Handle(context.Background(), queries.ListDiagramsQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalCount)

	seed(repo, 2)
	require.NoError(t, cache.Delete(context.Background(), ports.DiagramListCacheKey))

	res, err = h.Handle(context.Background(), queries.ListDiagramsQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalCount)
}

// invalidatingRepo drops the cached listing while List is running, the way
// a create landing mid-read does
type invalidatingRepo struct {
	ports.DiagramRepository
	cache *listCache
}

func (r invalidatingRepo) List(ctx context.Context, opts ports.ListOptions) ([]ports.DiagramSummary, error) {
	list, err := r.DiagramRepository.List(ctx, opts)
	_ = r.cache.Delete(ctx, ports.DiagramListCacheKey)
	return list, err
}

func TestListDiagrams_ListingReadBeforeInvalidationIsNotCached(t *testing.T) {
	repo := memory.NewDiagramRepository()
	seed(repo, 1)
	cache := &listCache{data: map[string]interface{}{}}
	h := NewListDiagramsHandler(invalidatingRepo{DiagramRepository: repo, cache: cache}, cache, config.DefaultDomainConfig(), zap.NewNop())

	res, err := h.Handle(context.Background(), queries.ListDiagramsQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalCount)
	assert.Zero(t, cache.sets)
	assert.Empty(t, cache.data)
}

func TestListBlueprints(t *testing.T) {
	objects := []ports.BlobObject{{Pathname: "a.png"}, {Pathname: "b.jpg"}}
	res, err := NewListBlueprintsHandler(stubBlobs{objects: objects}, zap.NewNop()).
		Handle(context.Background(), queries.ListBlueprintsQuery{})
	require.NoError(t, err)
	assert.Equal(t, objects, res.Blueprints)

	empty, err := NewListBlueprintsHandler(stubBlobs{}, zap.NewNop()).
		Handle(context.Background(), queries.ListBlueprintsQuery{})
	require.NoError(t, err)
	assert.NotNil(t, empty.Blueprints)
}

func TestListBlueprints_StoreFailure(t *testing.T) {
	_, err := NewListBlueprintsHandler(stubBlobs{err: errors.New("timeout")}, zap.NewNop()).
		Handle(context.Background(), queries.ListBlueprintsQuery{})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeExternal))
}

func TestListSymbols(t *testing.T) {
	c := catalog.Default()
	res, err := NewListSymbolsHandler(c).Handle(context.Background(), queries.ListSymbolsQuery{})
	require.NoError(t, err)
	assert.Equal(t, c.All(), res.Symbols)
}
