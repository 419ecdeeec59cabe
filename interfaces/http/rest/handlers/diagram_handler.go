package handlers

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"net/http"
	"strconv"
	"time"

	"blueprint-editor/application/commands"
	"blueprint-editor/application/commands/bus"
	"blueprint-editor/application/ports"
	"blueprint-editor/application/queries"
	querybus "blueprint-editor/application/queries/bus"
	"blueprint-editor/domain/core/entities"
	"blueprint-editor/infrastructure/export/pdf"
	"blueprint-editor/pkg/common"
	pkgerrors "blueprint-editor/pkg/errors"
	"blueprint-editor/pkg/files"

	"go.uber.org/zap"
)

// previewMaxSide bounds the blueprint image embedded in schedule exports
const previewMaxSide = 1600

// DiagramHandler handles diagram HTTP requests
type DiagramHandler struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	blobs      ports.BlobStore
	exporter   *pdf.Exporter
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewDiagramHandler creates a new diagram handler
func NewDiagramHandler(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	blobs ports.BlobStore,
	exporter *pdf.Exporter,
	errorHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *DiagramHandler {
	return &DiagramHandler{
		commandBus: commandBus,
		queryBus:   queryBus,
		blobs:      blobs,
		exporter:   exporter,
		errors:     errorHandler,
		logger:     logger,
	}
}

// CreateDiagramRequest is the body of POST /diagrams
type CreateDiagramRequest struct {
	Title           string `json:"title"`
	BlueprintURL    string `json:"blueprintUrl"`
	BlueprintWidth  int    `json:"blueprintWidth"`
	BlueprintHeight int    `json:"blueprintHeight"`
}

// SaveNodesRequest is the body of PUT /diagrams/{id}/nodes
type SaveNodesRequest struct {
	Nodes []entities.Node `json:"nodes"`
}

// RenameDiagramRequest is the body of PATCH /diagrams/{id}
type RenameDiagramRequest struct {
	Title string `json:"title"`
}

// BlueprintPositionRequest is the body of PUT /diagrams/{id}/blueprint-position
type BlueprintPositionRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ListDiagrams handles GET /diagrams
func (h *DiagramHandler) ListDiagrams(w http.ResponseWriter, r *http.Request) {
	params := common.ExtractPaginationParams(r)
	result, err := h.queryBus.Ask(r.Context(), queries.ListDiagramsQuery{
		Page:     params.Page,
		PageSize: params.PageSize,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// CreateDiagram handles POST /diagrams
func (h *DiagramHandler) CreateDiagram(w http.ResponseWriter, r *http.Request) {
	var req CreateDiagramRequest
	if err := common.ParseJSONBody(w, r, &req, maxJSONBody); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	result, err := h.commandBus.Dispatch(r.Context(), commands.CreateDiagramCommand{
		Title:           req.Title,
		BlueprintURL:    req.BlueprintURL,
		BlueprintWidth:  req.BlueprintWidth,
		BlueprintHeight: req.BlueprintHeight,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, result)
}

// GetDiagram handles GET /diagrams/{id}
func (h *DiagramHandler) GetDiagram(w http.ResponseWriter, r *http.Request) {
	view, err := h.view(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, view)
}

// SaveNodes handles PUT /diagrams/{id}/nodes
func (h *DiagramHandler) SaveNodes(w http.ResponseWriter, r *http.Request) {
	id, err := diagramID(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	var req SaveNodesRequest
	if err := common.ParseJSONBody(w, r, &req, maxJSONBody); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	result, err := h.commandBus.Dispatch(r.Context(), commands.SaveNodesCommand{
		DiagramID: id,
		Nodes:     req.Nodes,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// RenameDiagram handles PATCH /diagrams/{id}
func (h *DiagramHandler) RenameDiagram(w http.ResponseWriter, r *http.Request) {
	id, err := diagramID(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	var req RenameDiagramRequest
	if err := common.ParseJSONBody(w, r, &req, maxJSONBody); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	if err := h.commandBus.Send(r.Context(), commands.RenameDiagramCommand{DiagramID: id, Title: req.Title}); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondNoContent(w)
}

// SetBlueprintPosition handles PUT /diagrams/{id}/blueprint-position
func (h *DiagramHandler) SetBlueprintPosition(w http.ResponseWriter, r *http.Request) {
	id, err := diagramID(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	var req BlueprintPositionRequest
	if err := common.ParseJSONBody(w, r, &req, maxJSONBody); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	cmd := commands.SetBlueprintPositionCommand{DiagramID: id, X: req.X, Y: req.Y}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondNoContent(w)
}

// ExportSchedule handles GET /diagrams/{id}/schedule.pdf
func (h *DiagramHandler) ExportSchedule(w http.ResponseWriter, r *http.Request) {
	view, err := h.view(r)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	var buf bytes.Buffer
	err = h.exporter.Write(&buf, pdf.Schedule{
		DiagramID:   view.ID,
		Title:       view.Title,
		Nodes:       view.Nodes,
		Width:       view.BlueprintWidth,
		Height:      view.BlueprintHeight,
		Offset:      view.BlueprintOffset,
		Preview:     h.preview(r.Context(), view.BlueprintURL),
		GeneratedAt: time.Now().UTC(),
	})
	if err != nil {
		h.errors.Handle(w, r, pkgerrors.NewInternalError("schedule export failed").WithCause(err))
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="diagram-%d-schedule.pdf"`, view.ID))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("Writing schedule failed", zap.Int64("diagram_id", view.ID), zap.Error(err))
	}
}

func (h *DiagramHandler) view(r *http.Request) (*queries.DiagramView, error) {
	id, err := diagramID(r)
	if err != nil {
		return nil, err
	}
	result, err := h.queryBus.Ask(r.Context(), queries.GetDiagramQuery{DiagramID: id})
	if err != nil {
		return nil, err
	}
	return result.(*queries.DiagramView), nil
}

// preview loads the blueprint for the plan page. Blueprints held outside
// the blob store, or unreadable ones, export without the image.
func (h *DiagramHandler) preview(ctx context.Context, blueprintURL string) image.Image {
	pathname, ok := h.blobs.PathnameFromURL(blueprintURL)
	if !ok {
		return nil
	}
	rc, err := h.blobs.Open(ctx, pathname)
	if err != nil {
		h.logger.Warn("Opening blueprint for export failed", zap.String("pathname", pathname), zap.Error(err))
		return nil
	}
	defer rc.Close()

	img, err := files.Preview(rc, previewMaxSide)
	if err != nil {
		h.logger.Warn("Decoding blueprint for export failed", zap.String("pathname", pathname), zap.Error(err))
		return nil
	}
	return img
}
