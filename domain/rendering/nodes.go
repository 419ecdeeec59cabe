package rendering

import (
	"fmt"
	"html"
	"io"
	"strings"

	"blueprint-editor/domain/core/entities"
)

const (
	selectedStroke = "#2563eb"
	boxWidth       = 150.0
	boxHeight      = 40.0
)

// SymbolRenderer draws a symbol's markup centered in a square glyph
type SymbolRenderer struct {
	size float64
}

// NewSymbolRenderer creates a renderer with a glyph of size x size
func NewSymbolRenderer(size float64) *SymbolRenderer {
	if size <= 0 {
		size = 40
	}
	return &SymbolRenderer{size: size}
}

// Size returns the glyph edge length
func (r *SymbolRenderer) Size() float64 { return r.size }

// RenderNode implements Renderer
func (r *SymbolRenderer) RenderNode(w io.Writer, n entities.Node) error {
	half := r.size / 2
	_, err := fmt.Fprintf(w,
		`<g class="node symbol-node" data-id="%s" data-symbol="%s" transform="translate(%s %s)"><title>%s</title>`,
		html.EscapeString(n.ID), html.EscapeString(n.Data.ID), num(n.Position.X), num(n.Position.Y),
		html.EscapeString(n.Data.Name))
	if err != nil {
		return err
	}
	if n.Selected {
		if _, err := fmt.Fprintf(w,
			`<circle class="selected-ring" cx="%s" cy="%s" r="%s" fill="none" stroke="%s" stroke-width="2"/>`,
			num(half), num(half), num(half+2), selectedStroke); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, fitGlyph(n.Data.SVG, r.size)); err != nil {
		return err
	}
	_, err = io.WriteString(w, "</g>")
	return err
}

// fitGlyph sizes a nested <svg> element to the glyph box. The symbol's
// own viewBox is kept and centered by preserveAspectRatio.
func fitGlyph(markup string, size float64) string {
	markup = strings.TrimSpace(markup)
	if !strings.HasPrefix(markup, "<svg") {
		return fmt.Sprintf(`<g class="glyph">%s</g>`, markup)
	}
	attrs := fmt.Sprintf(`<svg class="glyph" x="0" y="0" width="%s" height="%s" preserveAspectRatio="xMidYMid meet" color="currentColor"`,
		num(size), num(size))
	return attrs + strings.TrimPrefix(markup, "<svg")
}

// BoxRenderer draws a labelled rounded rectangle for built-in node types
type BoxRenderer struct{}

// NewBoxRenderer creates a BoxRenderer
func NewBoxRenderer() *BoxRenderer { return &BoxRenderer{} }

// RenderNode implements Renderer
func (r *BoxRenderer) RenderNode(w io.Writer, n entities.Node) error {
	stroke := "#1a192b"
	if n.Selected {
		stroke = selectedStroke
	}
	label := n.Data.Label
	if label == "" {
		label = n.ID
	}
	_, err := fmt.Fprintf(w,
		`<g class="node %s-node" data-id="%s" transform="translate(%s %s)">`+
			`<rect width="%s" height="%s" rx="3" fill="#fff" stroke="%s"/>`+
			`<text x="%s" y="%s" text-anchor="middle" dominant-baseline="middle" font-size="12">%s</text></g>`,
		html.EscapeString(string(n.Type.Normalize())), html.EscapeString(n.ID), num(n.Position.X), num(n.Position.Y),
		num(boxWidth), num(boxHeight), stroke,
		num(boxWidth/2), num(boxHeight/2), html.EscapeString(label))
	return err
}

// num formats a coordinate without trailing zeros
func num(f float64) string {
	return fmt.Sprintf("%g", f)
}
