package handlers

import (
	"context"
	"fmt"
	"time"

	"blueprint-editor/application/ports"
	"blueprint-editor/application/queries"
	"blueprint-editor/domain/catalog"
	"blueprint-editor/domain/config"
	pkgerrors "blueprint-editor/pkg/errors"

	"go.uber.org/zap"
)

// GetDiagramHandler loads one diagram
type GetDiagramHandler struct {
	repo   ports.DiagramRepository
	logger *zap.Logger
}

// NewGetDiagramHandler creates a new handler
func NewGetDiagramHandler(repo ports.DiagramRepository, logger *zap.Logger) *GetDiagramHandler {
	return &GetDiagramHandler{repo: repo, logger: logger}
}

// Handle executes the query
func (h *GetDiagramHandler) Handle(ctx context.Context, q queries.GetDiagramQuery) (*queries.DiagramView, error) {
	diagram, err := h.repo.GetByID(ctx, q.DiagramID)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil, pkgerrors.NewDiagramNotFoundError(q.DiagramID)
		}
		return nil, pkgerrors.NewDatabaseError("get diagram", err)
	}

	s := diagram.Snapshot()
	return &queries.DiagramView{
		ID:              s.ID,
		Title:           s.Title,
		BlueprintURL:    s.BlueprintURL,
		BlueprintWidth:  s.BlueprintWidth,
		BlueprintHeight: s.BlueprintHeight,
		BlueprintOffset: s.BlueprintOffset,
		Nodes:           s.Nodes,
		NodeSequence:    s.NodeSequence,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}, nil
}

// ListDiagramsHandler pages through the diagram listing. The full listing
// is cached under one key so a single invalidation covers every page.
type ListDiagramsHandler struct {
	repo   ports.DiagramRepository
	cache  ports.Cache
	config *config.DomainConfig
	logger *zap.Logger
}

// NewListDiagramsHandler creates a new handler
func NewListDiagramsHandler(repo ports.DiagramRepository, cache ports.Cache, cfg *config.DomainConfig, logger *zap.Logger) *ListDiagramsHandler {
	return &ListDiagramsHandler{repo: repo, cache: cache, config: cfg, logger: logger}
}

// Handle executes the query
func (h *ListDiagramsHandler) Handle(ctx context.Context, q queries.ListDiagramsQuery) (*queries.ListDiagramsResult, error) {
	all, err := h.all(ctx)
	if err != nil {
		return nil, err
	}

	page, size := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}

	start := (page - 1) * size
	if start > len(all) {
		start = len(all)
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}

	items := make([]ports.DiagramSummary, end-start)
	copy(items, all[start:end])
	return &queries.ListDiagramsResult{
		Diagrams:   items,
		TotalCount: len(all),
		Page:       page,
		PageSize:   size,
		HasMore:    end < len(all),
	}, nil
}

func (h *ListDiagramsHandler) all(ctx context.Context) ([]ports.DiagramSummary, error) {
	cache := h.cache
	if h.config.ListCacheTTL < time.Second {
		cache = nil
	}

	var gen uint64
	if cache != nil {
		if cached, ok := cache.Get(ctx, ports.DiagramListCacheKey); ok {
			if list, ok := cached.([]ports.DiagramSummary); ok {
				return list, nil
			}
		}
		gen = cache.Generation(ports.DiagramListCacheKey)
	}

	list, err := h.repo.List(ctx, ports.ListOptions{})
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("list diagrams", err)
	}
	if list == nil {
		list = []ports.DiagramSummary{}
	}

	if cache != nil {
		ttl := int(h.config.ListCacheTTL.Seconds())
		if _, err := cache.SetIfGeneration(ctx, ports.DiagramListCacheKey, list, ttl, gen); err != nil {
			h.logger.Warn("Caching diagram list failed", zap.Error(err))
		}
	}
	return list, nil
}

// ListBlueprintsHandler lists stored blueprint files
type ListBlueprintsHandler struct {
	blobs  ports.BlobStore
	logger *zap.Logger
}

// NewListBlueprintsHandler creates a new handler
func NewListBlueprintsHandler(blobs ports.BlobStore, logger *zap.Logger) *ListBlueprintsHandler {
	return &ListBlueprintsHandler{blobs: blobs, logger: logger}
}

// Handle executes the query
func (h *ListBlueprintsHandler) Handle(ctx context.Context, _ queries.ListBlueprintsQuery) (*queries.ListBlueprintsResult, error) {
	objects, err := h.blobs.List(ctx)
	if err != nil {
		if pkgerrors.IsAppError(err) {
			return nil, err
		}
		return nil, pkgerrors.NewExternalError("blob storage", fmt.Errorf("list blueprints: %w", err))
	}
	if objects == nil {
		objects = []ports.BlobObject{}
	}
	return &queries.ListBlueprintsResult{Blueprints: objects}, nil
}

// ListSymbolsHandler serves the symbol catalog
type ListSymbolsHandler struct {
	catalog *catalog.Catalog
}

// NewListSymbolsHandler creates a new handler
func NewListSymbolsHandler(c *catalog.Catalog) *ListSymbolsHandler {
	return &ListSymbolsHandler{catalog: c}
}

// Handle executes the query
func (h *ListSymbolsHandler) Handle(_ context.Context, _ queries.ListSymbolsQuery) (*queries.ListSymbolsResult, error) {
	return &queries.ListSymbolsResult{Symbols: h.catalog.All()}, nil
}
