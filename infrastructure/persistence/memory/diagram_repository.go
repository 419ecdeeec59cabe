// Package memory keeps diagrams in process memory. It backs development
// runs and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"blueprint-editor/application/ports"
	"blueprint-editor/domain/core/aggregates"
	"blueprint-editor/domain/core/entities"
	pkgerrors "blueprint-editor/pkg/errors"
)

// DiagramRepository implements ports.DiagramRepository in memory
type DiagramRepository struct {
	mu     sync.RWMutex
	items  map[int64]aggregates.Snapshot
	nextID int64
	now    func() time.Time
}

// NewDiagramRepository creates an empty repository
func NewDiagramRepository() *DiagramRepository {
	return &DiagramRepository{
		items: make(map[int64]aggregates.Snapshot),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new diagram under the next id
func (r *DiagramRepository) Create(_ context.Context, diagram *aggregates.Diagram) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	s := diagram.Snapshot()
	s.ID = r.nextID
	r.items[s.ID] = s
	return s.ID, nil
}

// GetByID retrieves a diagram
func (r *DiagramRepository) GetByID(_ context.Context, id int64) (*aggregates.Diagram, error) {
	r.mu.RLock()
	s, ok := r.items[id]
	r.mu.RUnlock()
	if !ok {
		return nil, pkgerrors.NewDiagramNotFoundError(id)
	}
	s.Nodes = entities.CloneNodes(s.Nodes)
	return aggregates.ReconstructDiagram(s)
}

// SaveNodes overwrites the node list
func (r *DiagramRepository) SaveNodes(_ context.Context, id int64, nodes []entities.Node, sequence int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.items[id]
	if !ok {
		return pkgerrors.NewDiagramNotFoundError(id)
	}
	s.Nodes = entities.CloneNodes(nodes)
	if sequence > s.NodeSequence {
		s.NodeSequence = sequence
	}
	s.UpdatedAt = r.now()
	s.Version++
	r.items[id] = s
	return nil
}

// Update persists the title and blueprint offset
func (r *DiagramRepository) Update(_ context.Context, diagram *aggregates.Diagram) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.items[diagram.ID()]
	if !ok {
		return pkgerrors.NewDiagramNotFoundError(diagram.ID())
	}
	s.Title = diagram.Title()
	s.BlueprintOffset = diagram.BlueprintOffset()
	s.UpdatedAt = diagram.UpdatedAt()
	s.Version = diagram.Version()
	r.items[s.ID] = s
	return nil
}

// List returns summaries newest first
func (r *DiagramRepository) List(_ context.Context, opts ports.ListOptions) ([]ports.DiagramSummary, error) {
	r.mu.RLock()
	out := make([]ports.DiagramSummary, 0, len(r.items))
	for _, s := range r.items {
		out = append(out, ports.DiagramSummary{
			ID:           s.ID,
			Title:        s.Title,
			BlueprintURL: s.BlueprintURL,
			NodeCount:    len(s.Nodes),
			CreatedAt:    s.CreatedAt,
			UpdatedAt:    s.UpdatedAt,
		})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, opts), nil
}

// Seed stores a snapshot under its own id. It is used to load fixtures.
func (r *DiagramRepository) Seed(s aggregates.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.Nodes = entities.CloneNodes(s.Nodes)
	r.items[s.ID] = s
	if s.ID > r.nextID {
		r.nextID = s.ID
	}
}

func page(list []ports.DiagramSummary, opts ports.ListOptions) []ports.DiagramSummary {
	if opts.Offset > 0 {
		if opts.Offset >= len(list) {
			return []ports.DiagramSummary{}
		}
		list = list[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(list) {
		list = list[:opts.Limit]
	}
	return list
}
