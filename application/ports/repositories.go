package ports

import (
	"context"
	"io"
	"strconv"
	"time"

	"blueprint-editor/domain/core/aggregates"
	"blueprint-editor/domain/core/entities"
	"blueprint-editor/domain/events"
)

// DiagramRepository defines the interface for diagram persistence
// This is a port in hexagonal architecture - the domain doesn't know about the implementation
type DiagramRepository interface {
	// Create stores a new diagram and returns the id handed out by storage
	Create(ctx context.Context, diagram *aggregates.Diagram) (int64, error)

	// GetByID retrieves a diagram; a missing id yields a not-found AppError
	GetByID(ctx context.Context, id int64) (*aggregates.Diagram, error)

	// SaveNodes overwrites the stored node list and raises the node sequence
	SaveNodes(ctx context.Context, id int64, nodes []entities.Node, sequence int64) error

	// Update persists title and blueprint offset changes
	Update(ctx context.Context, diagram *aggregates.Diagram) error

	// List returns diagram summaries ordered newest first
	List(ctx context.Context, opts ListOptions) ([]DiagramSummary, error)
}

// ListOptions bounds a diagram listing
type ListOptions struct {
	Limit  int
	Offset int
}

// DiagramSummary is one row of the diagram listing
type DiagramSummary struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	BlueprintURL string    `json:"blueprintUrl"`
	NodeCount    int       `json:"nodeCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// BlobObject describes a stored blueprint file
type BlobObject struct {
	URL         string    `json:"url"`
	Pathname    string    `json:"pathname"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType"`
	Checksum    string    `json:"checksum,omitempty"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// BlobStore is the image storage collaborator
type BlobStore interface {
	// Put stores the content under pathname and returns its public url
	Put(ctx context.Context, pathname string, body io.Reader, size int64, contentType string) (string, error)

	// Delete removes a stored blob; a missing blob is not an error
	Delete(ctx context.Context, pathname string) error

	// List returns stored blobs, newest first
	List(ctx context.Context) ([]BlobObject, error)

	// Open streams a stored blob
	Open(ctx context.Context, pathname string) (io.ReadCloser, error)

	// PathnameFromURL maps a url handed out by Put back to its pathname.
	// It reports false for urls this store did not issue.
	PathnameFromURL(url string) (string, bool)
}

// NodeListValidator checks a node list against the persisted JSON contract
type NodeListValidator interface {
	ValidateNodes(nodes []entities.Node) error
}

// BusinessMetrics records domain-level counters
type BusinessMetrics interface {
	RecordUpload(size int64, err error)
	RecordSave(nodeCount int, err error)
	RecordPlacement(symbolID string)
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// Cache defines the interface for caching
type Cache interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set stores a value in cache with TTL in seconds
	Set(ctx context.Context, key string, value interface{}, ttl int) error

	// Generation returns the key's invalidation generation. Delete and
	// Clear advance it.
	Generation(key string) uint64

	// SetIfGeneration stores a value only while the key is still at gen
	SetIfGeneration(ctx context.Context, key string, value interface{}, ttl int, gen uint64) (bool, error)

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error

	// Clear removes all values from cache
	Clear(ctx context.Context) error
}

// Notifier fans session state out to live subscribers
type Notifier interface {
	Broadcast(sessionID string, payload interface{})
	CloseSession(sessionID string)
}

// Cache keys shared between command and query handlers
const (
	DiagramListCacheKey   = "diagrams:list"
	BlueprintListCacheKey = "blueprints:list"
)

// DiagramCacheKey returns the cache key of one diagram view
func DiagramCacheKey(id int64) string {
	return "diagram:" + strconv.FormatInt(id, 10)
}
