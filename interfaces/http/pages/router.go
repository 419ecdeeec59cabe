package pages

import (
	"bytes"
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"blueprint-editor/application/ports"
	"blueprint-editor/application/queries"
	querybus "blueprint-editor/application/queries/bus"
	"blueprint-editor/domain/catalog"
	domainconfig "blueprint-editor/domain/config"
	"blueprint-editor/domain/core/valueobjects"
	"blueprint-editor/domain/rendering"
	pkgerrors "blueprint-editor/pkg/errors"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// pickerLimit is how many drawings the picker lists
const pickerLimit = 100

// Router serves the browser-facing pages: the picker, saved drawings and
// transient boards
type Router struct {
	mux      *mux.Router
	queryBus *querybus.QueryBus
	catalog  *catalog.Catalog
	scenes   *rendering.SceneRenderer
	errors   *pkgerrors.ErrorHandler
	logger   *zap.Logger

	picker   *template.Template
	drawing  *template.Template
	notFound *template.Template
}

// NewRouter creates the page router
func NewRouter(
	queryBus *querybus.QueryBus,
	symbols *catalog.Catalog,
	cfg *domainconfig.DomainConfig,
	errorHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *Router {
	rt := &Router{
		mux:      mux.NewRouter(),
		queryBus: queryBus,
		catalog:  symbols,
		scenes:   rendering.NewSceneRenderer(rendering.DefaultRegistry(cfg.GlyphSize), cfg.GlyphSize, cfg.GridSpacing),
		errors:   errorHandler,
		logger:   logger,
		picker:   template.Must(template.New("picker").Parse(pickerHTML)),
		drawing:  template.Must(template.New("drawing").Parse(drawingHTML)),
		notFound: template.Must(template.New("not-found").Parse(notFoundHTML)),
	}

	rt.mux.HandleFunc("/", rt.pickerPage).Methods("GET")
	rt.mux.HandleFunc("/drawing/{id:[0-9]+}", rt.drawingPage).Methods("GET")
	rt.mux.HandleFunc("/drawing/{id:[0-9]+}/canvas.svg", rt.drawingCanvas).Methods("GET")
	rt.mux.HandleFunc("/board", rt.boardPage).Methods("GET")
	rt.mux.HandleFunc("/board/canvas.svg", rt.boardCanvas).Methods("GET")
	rt.mux.NotFoundHandler = noStore(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rt.renderNotFound(w, r, "There is no page at "+r.URL.Path+".")
	}))
	rt.mux.Use(noStore)

	return rt
}

// ServeHTTP implements http.Handler
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.mux.ServeHTTP(w, r)
}

type pickerData struct {
	Diagrams   []ports.DiagramSummary
	Blueprints []ports.BlobObject
}

type notFoundData struct {
	Message string
}

type drawingData struct {
	DiagramID    int64
	Title        string
	BlueprintURL string
	Transient    bool
	CanvasURL    string
	Symbols      []valueobjects.Symbol
}

func (rt *Router) pickerPage(w http.ResponseWriter, r *http.Request) {
	diagrams, err := rt.queryBus.Ask(r.Context(), queries.ListDiagramsQuery{Page: 1, PageSize: pickerLimit})
	if err != nil {
		rt.errors.Handle(w, r, err)
		return
	}
	blueprints, err := rt.queryBus.Ask(r.Context(), queries.ListBlueprintsQuery{})
	if err != nil {
		rt.errors.Handle(w, r, err)
		return
	}

	rt.render(w, r, rt.picker, pickerData{
		Diagrams:   diagrams.(*queries.ListDiagramsResult).Diagrams,
		Blueprints: blueprints.(*queries.ListBlueprintsResult).Blueprints,
	})
}

func (rt *Router) drawingPage(w http.ResponseWriter, r *http.Request) {
	view, err := rt.view(r)
	if err != nil {
		rt.pageError(w, r, err)
		return
	}
	rt.render(w, r, rt.drawing, drawingData{
		DiagramID:    view.ID,
		Title:        view.Title,
		BlueprintURL: view.BlueprintURL,
		CanvasURL:    "/drawing/" + strconv.FormatInt(view.ID, 10) + "/canvas.svg",
		Symbols:      rt.catalog.All(),
	})
}

func (rt *Router) drawingCanvas(w http.ResponseWriter, r *http.Request) {
	view, err := rt.view(r)
	if err != nil {
		rt.errors.Handle(w, r, err)
		return
	}
	rt.svg(w, r, rendering.Scene{
		BlueprintURL:    view.BlueprintURL,
		BlueprintWidth:  view.BlueprintWidth,
		BlueprintHeight: view.BlueprintHeight,
		BlueprintOffset: view.BlueprintOffset,
		Nodes:           view.Nodes,
	})
}

func (rt *Router) boardPage(w http.ResponseWriter, r *http.Request) {
	blueprintURL := r.URL.Query().Get("blueprintUrl")
	if blueprintURL == "" {
		rt.errors.Handle(w, r, pkgerrors.NewValidationError("blueprintUrl is required"))
		return
	}
	rt.render(w, r, rt.drawing, drawingData{
		Title:        "Unsaved board",
		BlueprintURL: blueprintURL,
		Transient:    true,
		CanvasURL:    "/board/canvas.svg?blueprintUrl=" + url.QueryEscape(blueprintURL),
		Symbols:      rt.catalog.All(),
	})
}

func (rt *Router) boardCanvas(w http.ResponseWriter, r *http.Request) {
	blueprintURL := r.URL.Query().Get("blueprintUrl")
	if blueprintURL == "" {
		rt.errors.Handle(w, r, pkgerrors.NewValidationError("blueprintUrl is required"))
		return
	}
	rt.svg(w, r, rendering.Scene{BlueprintURL: blueprintURL})
}

func (rt *Router) view(r *http.Request) (*queries.DiagramView, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return nil, pkgerrors.NewValidationError("invalid diagram id")
	}
	result, err := rt.queryBus.Ask(r.Context(), queries.GetDiagramQuery{DiagramID: id})
	if err != nil {
		return nil, err
	}
	return result.(*queries.DiagramView), nil
}

func (rt *Router) render(w http.ResponseWriter, r *http.Request, tmpl *template.Template, data interface{}) {
	rt.renderStatus(w, r, http.StatusOK, tmpl, data)
}

func (rt *Router) renderStatus(w http.ResponseWriter, r *http.Request, status int, tmpl *template.Template, data interface{}) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		rt.errors.Handle(w, r, pkgerrors.NewInternalError("render page").WithCause(err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// pageError answers a page route. A missing drawing gets the not found
// page; anything else goes through the JSON error handler.
func (rt *Router) pageError(w http.ResponseWriter, r *http.Request, err error) {
	if !pkgerrors.IsNotFound(err) {
		rt.errors.Handle(w, r, err)
		return
	}
	rt.renderNotFound(w, r, "This drawing does not exist or was removed.")
}

func (rt *Router) renderNotFound(w http.ResponseWriter, r *http.Request, message string) {
	rt.logger.Debug("Page not found", zap.String("path", r.URL.Path))
	rt.renderStatus(w, r, http.StatusNotFound, rt.notFound, notFoundData{Message: message})
}

func (rt *Router) svg(w http.ResponseWriter, r *http.Request, scene rendering.Scene) {
	vp, err := viewport(r.URL.Query())
	if err != nil {
		rt.errors.Handle(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := rt.scenes.Render(&buf, scene, vp); err != nil {
		rt.errors.Handle(w, r, pkgerrors.NewInternalError("render canvas").WithCause(err))
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// viewport reads the optional x, y and zoom query parameters
func viewport(q url.Values) (rendering.Viewport, error) {
	vp := rendering.DefaultViewport()
	for key, dst := range map[string]*float64{"x": &vp.X, "y": &vp.Y, "zoom": &vp.Zoom} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return vp, pkgerrors.NewValidationError("invalid viewport " + key)
		}
		*dst = v
	}
	if vp.Zoom <= 0 {
		return vp, pkgerrors.NewValidationError("zoom must be positive")
	}
	return vp, nil
}

// noStore keeps browsers from caching pages that reflect unsaved edits
func noStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
