// Package rendering draws diagram nodes and scenes as SVG. Each node type
// has its own Renderer, looked up through a Registry.
package rendering

import (
	"fmt"
	"io"
	"sync"

	"blueprint-editor/domain/core/entities"
	"blueprint-editor/domain/core/valueobjects"
)

// Renderer draws one node
type Renderer interface {
	RenderNode(w io.Writer, n entities.Node) error
}

// RendererFunc adapts a function to Renderer
type RendererFunc func(w io.Writer, n entities.Node) error

// RenderNode implements Renderer
func (f RendererFunc) RenderNode(w io.Writer, n entities.Node) error {
	return f(w, n)
}

// Registry maps node types to renderers
type Registry struct {
	mu        sync.RWMutex
	renderers map[valueobjects.NodeType]Renderer
	fallback  Renderer
}

// NewRegistry creates an empty registry that uses fallback for types
// without a renderer
func NewRegistry(fallback Renderer) *Registry {
	return &Registry{
		renderers: make(map[valueobjects.NodeType]Renderer),
		fallback:  fallback,
	}
}

// DefaultRegistry wires the symbol renderer and the labelled box renderer
// for every built-in node type
func DefaultRegistry(glyphSize float64) *Registry {
	box := NewBoxRenderer()
	r := NewRegistry(box)
	for _, t := range valueobjects.KnownNodeTypes() {
		if t == valueobjects.NodeTypeSymbol {
			continue
		}
		r.Register(t, box)
	}
	r.Register(valueobjects.NodeTypeSymbol, NewSymbolRenderer(glyphSize))
	return r
}

// Register sets the renderer for a node type, replacing any previous one
func (r *Registry) Register(t valueobjects.NodeType, renderer Renderer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renderers[t.Normalize()] = renderer
}

// Lookup returns the renderer for t and whether it was registered
// explicitly
func (r *Registry) Lookup(t valueobjects.NodeType) (Renderer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if renderer, ok := r.renderers[t.Normalize()]; ok {
		return renderer, true
	}
	return r.fallback, false
}

// RenderNode draws n with the renderer registered for its type
func (r *Registry) RenderNode(w io.Writer, n entities.Node) error {
	renderer, _ := r.Lookup(n.Type)
	if renderer == nil {
		return fmt.Errorf("no renderer for node type %q", n.Type)
	}
	return renderer.RenderNode(w, n)
}
