package rendering

import (
	"bufio"
	"fmt"
	"html"
	"io"
	"math"

	"blueprint-editor/domain/core/entities"
	"blueprint-editor/domain/core/valueobjects"
)

const (
	defaultSceneWidth  = 1200.0
	defaultSceneHeight = 800.0
)

// Viewport is the pan and zoom applied to the whole canvas
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// DefaultViewport is the identity transform
func DefaultViewport() Viewport { return Viewport{Zoom: 1} }

// Transform returns the SVG transform for the viewport
func (v Viewport) Transform() string {
	zoom := v.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	return fmt.Sprintf("translate(%s %s) scale(%s)", num(v.X), num(v.Y), num(zoom))
}

// Scene is everything drawn for one diagram
type Scene struct {
	BlueprintURL    string
	BlueprintWidth  int
	BlueprintHeight int
	BlueprintOffset valueobjects.Position
	Nodes           []entities.Node
}

// SceneRenderer composes the blueprint background, the dot grid and the
// nodes into one SVG document
type SceneRenderer struct {
	registry    *Registry
	glyphSize   float64
	gridSpacing float64
}

// NewSceneRenderer creates a scene renderer
func NewSceneRenderer(registry *Registry, glyphSize, gridSpacing float64) *SceneRenderer {
	if gridSpacing <= 0 {
		gridSpacing = 20
	}
	return &SceneRenderer{registry: registry, glyphSize: glyphSize, gridSpacing: gridSpacing}
}

// bounds tracks the extent of drawn content
type bounds struct {
	maxX, maxY float64
}

func (b *bounds) updateRect(x, y, width, height float64) {
	b.maxX = math.Max(b.maxX, x+width)
	b.maxY = math.Max(b.maxY, y+height)
}

// Size returns the document size needed to show the scene untransformed
func (r *SceneRenderer) Size(s Scene) (width, height float64) {
	var b bounds
	if s.BlueprintWidth > 0 && s.BlueprintHeight > 0 {
		b.updateRect(s.BlueprintOffset.X, s.BlueprintOffset.Y, float64(s.BlueprintWidth), float64(s.BlueprintHeight))
	} else {
		b.updateRect(0, 0, defaultSceneWidth, defaultSceneHeight)
	}
	for _, n := range s.Nodes {
		w, h := r.glyphSize, r.glyphSize
		if !n.IsSymbol() {
			w, h = boxWidth, boxHeight
		}
		b.updateRect(n.Position.X, n.Position.Y, w, h)
	}
	return math.Ceil(b.maxX), math.Ceil(b.maxY)
}

// Render writes the scene. The background image sits inside the viewport
// group so it pans and zooms together with the nodes.
func (r *SceneRenderer) Render(w io.Writer, s Scene, vp Viewport) error {
	bw := bufio.NewWriter(w)
	width, height := r.Size(s)

	fmt.Fprintf(bw, `<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" width="%s" height="%s" viewBox="0 0 %s %s">`,
		num(width), num(height), num(width), num(height))
	fmt.Fprintf(bw, `<defs><pattern id="dot-grid" width="%s" height="%s" patternUnits="userSpaceOnUse"><circle cx="1" cy="1" r="1" fill="#91919a" fill-opacity="0.5"/></pattern></defs>`,
		num(r.gridSpacing), num(r.gridSpacing))
	fmt.Fprintf(bw, `<g class="viewport" transform="%s">`, vp.Transform())

	if s.BlueprintURL != "" {
		fmt.Fprintf(bw, `<image class="blueprint" href="%s" xlink:href="%s" x="%s" y="%s"`,
			html.EscapeString(s.BlueprintURL), html.EscapeString(s.BlueprintURL),
			num(s.BlueprintOffset.X), num(s.BlueprintOffset.Y))
		if s.BlueprintWidth > 0 && s.BlueprintHeight > 0 {
			fmt.Fprintf(bw, ` width="%d" height="%d"`, s.BlueprintWidth, s.BlueprintHeight)
		}
		bw.WriteString(`/>`)
	}
	fmt.Fprintf(bw, `<rect class="grid" x="0" y="0" width="%s" height="%s" fill="url(#dot-grid)"/>`, num(width), num(height))

	bw.WriteString(`<g class="nodes">`)
	for _, n := range s.Nodes {
		if err := r.registry.RenderNode(bw, n); err != nil {
			return fmt.Errorf("render node %s: %w", n.ID, err)
		}
	}
	bw.WriteString(`</g></g></svg>`)
	return bw.Flush()
}
