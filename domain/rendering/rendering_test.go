package rendering

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"blueprint-editor/domain/catalog"
	"blueprint-editor/domain/core/entities"
	"blueprint-editor/domain/core/valueobjects"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resistorNode(t *testing.T, selected bool) entities.Node {
	t.Helper()
	sym, ok := catalog.Default().Lookup("resistor")
	require.True(t, ok)
	n := entities.NewSymbolNode(valueobjects.NewNodeID("resistor", 1), sym, valueobjects.Position{X: 200, Y: 100})
	n.Selected = selected
	return n
}

func TestRegistryLookup(t *testing.T) {
	r := DefaultRegistry(40)

	renderer, explicit := r.Lookup(valueobjects.NodeTypeSymbol)
	assert.True(t, explicit)
	assert.IsType(t, &SymbolRenderer{}, renderer)

	renderer, explicit = r.Lookup("electrical-symbol")
	assert.True(t, explicit)
	assert.IsType(t, &SymbolRenderer{}, renderer)

	renderer, explicit = r.Lookup(valueobjects.NodeTypeInput)
	assert.True(t, explicit)
	assert.IsType(t, &BoxRenderer{}, renderer)

	renderer, explicit = r.Lookup("unheard-of")
	assert.False(t, explicit)
	assert.IsType(t, &BoxRenderer{}, renderer)
}

func TestRegistryCustomRenderer(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("group", RendererFunc(func(w io.Writer, n entities.Node) error {
		_, err := io.WriteString(w, "<g id='"+n.ID+"'/>")
		return err
	}))

	var buf bytes.Buffer
	require.NoError(t, r.RenderNode(&buf, entities.Node{ID: "g1", Type: "group"}))
	assert.Equal(t, "<g id='g1'/>", buf.String())

	err := r.RenderNode(&buf, entities.Node{ID: "x", Type: "input"})
	assert.Error(t, err)
}

func TestSymbolRendererGlyph(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewSymbolRenderer(40).RenderNode(&buf, resistorNode(t, false)))
	out := buf.String()

	assert.Contains(t, out, `data-id="resistor-1"`)
	assert.Contains(t, out, `transform="translate(200 100)"`)
	assert.Contains(t, out, `width="40" height="40"`)
	assert.Contains(t, out, `preserveAspectRatio="xMidYMid meet"`)
	assert.Contains(t, out, `viewBox="0 0 40 20"`)
	assert.NotContains(t, out, "selected-ring")
	assert.Equal(t, 1, strings.Count(out, "<svg"))
}

func TestSymbolRendererSelectedRing(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewSymbolRenderer(40).RenderNode(&buf, resistorNode(t, true)))
	assert.Contains(t, buf.String(), `class="selected-ring" cx="20" cy="20" r="22"`)
}

func TestBoxRendererEscapesLabel(t *testing.T) {
	var buf bytes.Buffer
	n := entities.Node{ID: "in-1", Type: valueobjects.NodeTypeInput, Data: entities.NodeData{Label: "<Main> & panel"}}
	require.NoError(t, NewBoxRenderer().RenderNode(&buf, n))
	assert.Contains(t, buf.String(), "&lt;Main&gt; &amp; panel")
	assert.Contains(t, buf.String(), `class="node input-node"`)
}

func TestSceneRender(t *testing.T) {
	sr := NewSceneRenderer(DefaultRegistry(40), 40, 20)
	scene := Scene{
		BlueprintURL:    "https://blobs.test/plan.png",
		BlueprintWidth:  800,
		BlueprintHeight: 600,
		Nodes:           []entities.Node{resistorNode(t, false)},
	}

	var buf bytes.Buffer
	require.NoError(t, sr.Render(&buf, scene, Viewport{X: 10, Y: -5, Zoom: 1.5}))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "<svg"))
	assert.True(t, strings.HasSuffix(out, "</svg>"))
	assert.Contains(t, out, `transform="translate(10 -5) scale(1.5)"`)
	assert.Contains(t, out, `href="https://blobs.test/plan.png"`)
	assert.Contains(t, out, `pattern id="dot-grid" width="20" height="20"`)

	// background, then grid, then nodes
	img := strings.Index(out, `class="blueprint"`)
	grid := strings.Index(out, `class="grid"`)
	node := strings.Index(out, `data-id="resistor-1"`)
	assert.True(t, img < grid && grid < node)
}

func TestSceneRenderEmptyBoard(t *testing.T) {
	sr := NewSceneRenderer(DefaultRegistry(40), 40, 20)
	var buf bytes.Buffer
	require.NoError(t, sr.Render(&buf, Scene{BlueprintURL: "/blobs/plan.png"}, DefaultViewport()))

	assert.Contains(t, buf.String(), `href="/blobs/plan.png"`)
	assert.Equal(t, 0, strings.Count(buf.String(), `class="node `))
}

func TestSceneSize(t *testing.T) {
	sr := NewSceneRenderer(DefaultRegistry(40), 40, 20)

	w, h := sr.Size(Scene{})
	assert.Equal(t, 1200.0, w)
	assert.Equal(t, 800.0, h)

	w, h = sr.Size(Scene{
		BlueprintWidth: 300, BlueprintHeight: 200,
		Nodes: []entities.Node{{ID: "a-1", Type: valueobjects.NodeTypeSymbol, Position: valueobjects.Position{X: 500, Y: 10}}},
	})
	assert.Equal(t, 540.0, w)
	assert.Equal(t, 200.0, h)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestSceneRenderPropagatesWriteErrors(t *testing.T) {
	sr := NewSceneRenderer(DefaultRegistry(40), 40, 20)
	err := sr.Render(failingWriter{}, Scene{BlueprintURL: "u"}, DefaultViewport())
	assert.Error(t, err)
}
