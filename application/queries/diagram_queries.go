package queries

import (
	"time"

	"blueprint-editor/application/ports"
	"blueprint-editor/domain/core/entities"
	"blueprint-editor/domain/core/valueobjects"
	pkgerrors "blueprint-editor/pkg/errors"
)

// GetDiagramQuery reads one diagram through the cache
type GetDiagramQuery struct {
	DiagramID int64
}

// Validate validates the query
func (q GetDiagramQuery) Validate() error {
	if q.DiagramID <= 0 {
		return pkgerrors.NewValidationError("diagram id must be positive")
	}
	return nil
}

// CacheKey is the key save and update handlers invalidate
func (q GetDiagramQuery) CacheKey() string {
	return ports.DiagramCacheKey(q.DiagramID)
}

// DiagramView is the read model of a diagram. Cached views are shared, so
// callers must not modify Nodes.
type DiagramView struct {
	ID              int64                 `json:"id"`
	Title           string                `json:"title"`
	BlueprintURL    string                `json:"blueprintUrl"`
	BlueprintWidth  int                   `json:"blueprintWidth,omitempty"`
	BlueprintHeight int                   `json:"blueprintHeight,omitempty"`
	BlueprintOffset valueobjects.Position `json:"blueprintOffset"`
	Nodes           []entities.Node       `json:"nodes"`
	NodeSequence    int64                 `json:"nodeSequence"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

// ListDiagramsQuery pages through diagrams, newest first
type ListDiagramsQuery struct {
	Page     int
	PageSize int
}

// Validate validates the query
func (q ListDiagramsQuery) Validate() error {
	if q.Page < 0 || q.PageSize < 0 {
		return pkgerrors.NewValidationError("page and page size cannot be negative")
	}
	if q.PageSize > 100 {
		return pkgerrors.NewValidationError("page size cannot exceed 100")
	}
	return nil
}

// ListDiagramsResult is one page of the diagram listing
type ListDiagramsResult struct {
	Diagrams   []ports.DiagramSummary `json:"diagrams"`
	TotalCount int                    `json:"totalCount"`
	Page       int                    `json:"page"`
	PageSize   int                    `json:"pageSize"`
	HasMore    bool                   `json:"hasMore"`
}

// ListBlueprintsQuery lists stored blueprint blobs
type ListBlueprintsQuery struct{}

// Validate validates the query
func (q ListBlueprintsQuery) Validate() error { return nil }

// CacheKey is the key the upload handler invalidates
func (q ListBlueprintsQuery) CacheKey() string { return ports.BlueprintListCacheKey }

// ListBlueprintsResult lists stored blueprints
type ListBlueprintsResult struct {
	Blueprints []ports.BlobObject `json:"blueprints"`
}

// ListSymbolsQuery returns the symbol catalog
type ListSymbolsQuery struct{}

// Validate validates the query
func (q ListSymbolsQuery) Validate() error { return nil }

// ListSymbolsResult holds the catalog in display order
type ListSymbolsResult struct {
	Symbols []valueobjects.Symbol `json:"symbols"`
}
