package handlers

import (
	"net/http"

	"blueprint-editor/application/services"
	"blueprint-editor/domain/editor"
	"blueprint-editor/interfaces/websocket"
	"blueprint-editor/pkg/common"
	pkgerrors "blueprint-editor/pkg/errors"

	"go.uber.org/zap"
)

// SessionHandler exposes editing sessions over HTTP
type SessionHandler struct {
	sessions *services.SessionService
	hub      *websocket.Hub
	errors   *pkgerrors.ErrorHandler
	logger   *zap.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(
	sessions *services.SessionService,
	hub *websocket.Hub,
	errorHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		hub:      hub,
		errors:   errorHandler,
		logger:   logger,
	}
}

// OpenSessionRequest opens either a saved diagram or a transient board
type OpenSessionRequest struct {
	DiagramID    int64  `json:"diagramId,omitempty"`
	BlueprintURL string `json:"blueprintUrl,omitempty"`
}

// ChooseSymbolRequest is the body of PUT /sessions/{sid}/pending-symbol
type ChooseSymbolRequest struct {
	SymbolID string `json:"symbolId"`
}

// SetToolRequest is the body of PUT /sessions/{sid}/tool
type SetToolRequest struct {
	Tool string `json:"tool"`
}

// ClickRequest is a canvas click in client coordinates
type ClickRequest struct {
	ClientX float64        `json:"clientX"`
	ClientY float64        `json:"clientY"`
	Bounds  *editor.Bounds `json:"bounds"`
}

// ApplyChangesRequest carries move-tool edits
type ApplyChangesRequest struct {
	Changes []editor.NodeChange `json:"changes"`
}

// ApplyChangesResponse reports how many edits took effect
type ApplyChangesResponse struct {
	Applied int                   `json:"applied"`
	State   services.SessionState `json:"state"`
}

// Open handles POST /sessions
func (h *SessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req OpenSessionRequest
	if err := common.ParseJSONBody(w, r, &req, maxJSONBody); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	var (
		state services.SessionState
		err   error
	)
	switch {
	case req.DiagramID > 0 && req.BlueprintURL != "":
		err = pkgerrors.NewValidationError("give either diagramId or blueprintUrl, not both")
	case req.DiagramID > 0:
		state, err = h.sessions.Open(r.Context(), req.DiagramID)
	default:
		state, err = h.sessions.OpenBlueprint(r.Context(), req.BlueprintURL)
	}
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, state)
}

// State handles GET /sessions/{sid}
func (h *SessionHandler) State(w http.ResponseWriter, r *http.Request) {
	h.respondState(w, r)(h.sessions.State(sessionID(r)))
}

// Close handles DELETE /sessions/{sid}
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(sessionID(r)); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondNoContent(w)
}

// ChooseSymbol handles PUT /sessions/{sid}/pending-symbol
func (h *SessionHandler) ChooseSymbol(w http.ResponseWriter, r *http.Request) {
	var req ChooseSymbolRequest
	if err := common.ParseJSONBody(w, r, &req, maxJSONBody); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondState(w, r)(h.sessions.ChooseSymbol(sessionID(r), req.SymbolID))
}

// ResetPendingSymbol handles DELETE /sessions/{sid}/pending-symbol
func (h *SessionHandler) ResetPendingSymbol(w http.ResponseWriter, r *http.Request) {
	h.respondState(w, r)(h.sessions.ResetPendingSymbol(sessionID(r)))
}

// SetTool handles PUT /sessions/{sid}/tool
func (h *SessionHandler) SetTool(w http.ResponseWriter, r *http.Request) {
	var req SetToolRequest
	if err := common.ParseJSONBody(w, r, &req, maxJSONBody); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	h.respondState(w, r)(h.sessions.SetTool(sessionID(r), req.Tool))
}

// ResetTool handles DELETE /sessions/{sid}/tool
func (h *SessionHandler) ResetTool(w http.ResponseWriter, r *http.Request) {
	h.respondState(w, r)(h.sessions.ResetTool(sessionID(r)))
}

// Click handles POST /sessions/{sid}/clicks
func (h *SessionHandler) Click(w http.ResponseWriter, r *http.Request) {
	var req ClickRequest
	if err := common.ParseJSONBody(w, r, &req, maxJSONBody); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	result, err := h.sessions.Click(sessionID(r), req.ClientX, req.ClientY, req.Bounds)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// ApplyChanges handles POST /sessions/{sid}/changes
func (h *SessionHandler) ApplyChanges(w http.ResponseWriter, r *http.Request) {
	var req ApplyChangesRequest
	if err := common.ParseJSONBody(w, r, &req, maxJSONBody); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	applied, state, err := h.sessions.ApplyChanges(sessionID(r), req.Changes)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, ApplyChangesResponse{Applied: applied, State: state})
}

// Save handles POST /sessions/{sid}/save
func (h *SessionHandler) Save(w http.ResponseWriter, r *http.Request) {
	result, err := h.sessions.Save(r.Context(), sessionID(r))
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// Subscribe handles GET /sessions/{sid}/ws. The first frame is the
// current session state.
func (h *SessionHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	state, err := h.sessions.State(id)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if err := h.hub.Serve(w, r, id, state); err != nil {
		// The upgrader has already answered the request
		meta := common.ExtractMetadata(r.Context())
		h.logger.Warn("Websocket upgrade failed",
			zap.String("session_id", meta.SessionID),
			zap.String("request_id", meta.RequestID),
			zap.Error(err),
		)
	}
}

func (h *SessionHandler) respondState(w http.ResponseWriter, r *http.Request) func(services.SessionState, error) {
	return func(state services.SessionState, err error) {
		if err != nil {
			h.errors.Handle(w, r, err)
			return
		}
		common.RespondJSON(w, http.StatusOK, state)
	}
}
