package handlers

import (
	"net/http"
	"strconv"

	pkgerrors "blueprint-editor/pkg/errors"

	"github.com/go-chi/chi/v5"
)

// maxJSONBody bounds JSON request bodies; a full node list fits comfortably
const maxJSONBody = 8 << 20

// diagramID reads the {id} path parameter
func diagramID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, pkgerrors.NewValidationError("invalid diagram id " + strconv.Quote(raw))
	}
	return id, nil
}

// sessionID reads the {sid} path parameter
func sessionID(r *http.Request) string {
	return chi.URLParam(r, "sid")
}
