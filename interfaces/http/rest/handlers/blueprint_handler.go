package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"sort"

	"blueprint-editor/application/commands"
	"blueprint-editor/application/commands/bus"
	"blueprint-editor/application/queries"
	querybus "blueprint-editor/application/queries/bus"
	domainconfig "blueprint-editor/domain/config"
	"blueprint-editor/pkg/common"
	pkgerrors "blueprint-editor/pkg/errors"

	"go.uber.org/zap"
)

// multipartOverhead is the allowance for part headers and boundaries on
// top of the file bytes themselves
const multipartOverhead = 1 << 20

// BlueprintHandler handles blueprint upload and listing
type BlueprintHandler struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	config     *domainconfig.DomainConfig
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewBlueprintHandler creates a new blueprint handler
func NewBlueprintHandler(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	cfg *domainconfig.DomainConfig,
	errorHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *BlueprintHandler {
	return &BlueprintHandler{
		commandBus: commandBus,
		queryBus:   queryBus,
		config:     cfg,
		errors:     errorHandler,
		logger:     logger,
	}
}

// Upload handles POST /blueprints. Every file part of the form is handed
// to the upload command, which owns the count, size and type checks.
func (h *BlueprintHandler) Upload(w http.ResponseWriter, r *http.Request) {
	limit := h.config.MaxUploadBytes*int64(h.config.MaxFilesPerUpload+1) + multipartOverhead
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(h.config.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			h.errors.Handle(w, r, pkgerrors.NewFileTooLargeError("request", tooLarge.Limit, h.config.MaxUploadBytes))
		case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
			h.errors.Handle(w, r, pkgerrors.NewNoFileError())
		default:
			h.errors.Handle(w, r, pkgerrors.NewValidationError("malformed multipart body: "+err.Error()))
		}
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			h.logger.Warn("Removing multipart temp files failed", zap.Error(err))
		}
	}()

	headers := formFiles(r.MultipartForm)
	uploads := make([]commands.UploadFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			h.errors.Handle(w, r, pkgerrors.NewValidationError("unreadable file part "+fh.Filename))
			return
		}
		defer f.Close()
		uploads = append(uploads, commands.UploadFile{Name: fh.Filename, Size: fh.Size, Body: f})
	}

	result, err := h.commandBus.Dispatch(r.Context(), commands.UploadBlueprintCommand{Files: uploads})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusCreated, result)
}

// ListBlueprints handles GET /blueprints
func (h *BlueprintHandler) ListBlueprints(w http.ResponseWriter, r *http.Request) {
	result, err := h.queryBus.Ask(r.Context(), queries.ListBlueprintsQuery{})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// ListSymbols handles GET /symbols
func (h *BlueprintHandler) ListSymbols(w http.ResponseWriter, r *http.Request) {
	result, err := h.queryBus.Ask(r.Context(), queries.ListSymbolsQuery{})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, http.StatusOK, result)
}

// formFiles flattens the file parts of a form in field name order
func formFiles(form *multipart.Form) []*multipart.FileHeader {
	fields := make([]string, 0, len(form.File))
	for field := range form.File {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var out []*multipart.FileHeader
	for _, field := range fields {
		out = append(out, form.File[field]...)
	}
	return out
}
