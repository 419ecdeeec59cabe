package handlers

import (
	"context"
	"fmt"
	"io"
	"time"

	"blueprint-editor/application/commands"
	"blueprint-editor/application/ports"
	"blueprint-editor/application/sagas"
	"blueprint-editor/domain/config"
	"blueprint-editor/domain/core/validators"
	"blueprint-editor/domain/events"
	pkgerrors "blueprint-editor/pkg/errors"
	"blueprint-editor/pkg/files"

	"go.uber.org/zap"
)

const sniffLen = 512

// UploadBlueprintHandler validates an uploaded image, stores it and opens a
// diagram on it
type UploadBlueprintHandler struct {
	blobs     ports.BlobStore
	creator   *CreateDiagramHandler
	validator *validators.UploadValidator
	cache     ports.Cache
	publisher ports.EventPublisher
	metrics   ports.BusinessMetrics
	config    *config.DomainConfig
	logger    *zap.Logger
}

// NewUploadBlueprintHandler creates a new upload handler
func NewUploadBlueprintHandler(
	blobs ports.BlobStore,
	creator *CreateDiagramHandler,
	cache ports.Cache,
	publisher ports.EventPublisher,
	metrics ports.BusinessMetrics,
	cfg *config.DomainConfig,
	logger *zap.Logger,
) *UploadBlueprintHandler {
	return &UploadBlueprintHandler{
		blobs:     blobs,
		creator:   creator,
		validator: validators.NewUploadValidator(cfg),
		cache:     cache,
		publisher: publisher,
		metrics:   metrics,
		config:    cfg,
		logger:    logger,
	}
}

// inspected is what the handler learns about a file before storing it
type inspected struct {
	pathname    string
	contentType string
	checksum    string
	width       int
	height      int
}

// Handle runs the upload. Rejections carry FILE_TOO_LARGE,
// FILE_INVALID_TYPE or TOO_MANY_FILES codes and store nothing.
func (h *UploadBlueprintHandler) Handle(ctx context.Context, cmd commands.UploadBlueprintCommand) (result *commands.UploadBlueprintResult, err error) {
	var size int64
	defer func() {
		if h.metrics != nil {
			h.metrics.RecordUpload(size, err)
		}
	}()

	if err := h.validator.ValidateCount(len(cmd.Files)); err != nil {
		return nil, err
	}
	file := cmd.Files[0]
	size = file.Size

	info, err := h.inspect(file)
	if err != nil {
		return nil, err
	}

	saga := sagas.New("upload-blueprint", h.logger).
		AddStep(sagas.Step{
			Name:       "store-blob",
			MaxRetries: 3,
			RetryDelay: 200 * time.Millisecond,
			Execute: func(ctx context.Context, _ interface{}) (interface{}, error) {
				if _, err := file.Body.Seek(0, io.SeekStart); err != nil {
					return nil, sagas.Permanent(err)
				}
				return h.blobs.Put(ctx, info.pathname, file.Body, file.Size, info.contentType)
			},
			Compensate: func(ctx context.Context, _ interface{}) error {
				return h.blobs.Delete(ctx, info.pathname)
			},
		}).
		AddStep(sagas.Step{
			Name: "create-diagram",
			Execute: func(ctx context.Context, data interface{}) (interface{}, error) {
				url := data.(string)
				created, err := h.creator.Handle(ctx, commands.CreateDiagramCommand{
					Title:           info.pathname,
					BlueprintURL:    url,
					BlueprintWidth:  info.width,
					BlueprintHeight: info.height,
				})
				if err != nil {
					return nil, err
				}
				return &commands.UploadBlueprintResult{
					DiagramID: created.DiagramID,
					URL:       url,
					Pathname:  info.pathname,
					Size:      file.Size,
					Type:      info.contentType,
					Checksum:  info.checksum,
					Width:     info.width,
					Height:    info.height,
				}, nil
			},
		})

	out, err := saga.Execute(ctx, nil)
	if err != nil {
		if pkgerrors.IsAppError(err) {
			return nil, err
		}
		return nil, pkgerrors.NewExternalError("blob storage", err)
	}
	result = out.(*commands.UploadBlueprintResult)

	invalidate(ctx, h.cache, h.logger, ports.BlueprintListCacheKey)
	publish(ctx, h.publisher, h.logger, []events.DomainEvent{
		events.NewBlueprintUploaded(result.Pathname, result.URL, result.Size, result.Checksum, time.Now().UTC()),
	})

	h.logger.Info("Blueprint uploaded",
		zap.String("pathname", result.Pathname),
		zap.Int64("size", result.Size),
		zap.Int64("diagram_id", result.DiagramID),
	)
	return result, nil
}

// inspect runs the size and type checks, then reads the checksum and the
// image dimensions. The body is rewound after every pass.
func (h *UploadBlueprintHandler) inspect(file commands.UploadFile) (*inspected, error) {
	if err := h.validator.ValidateSize(file.Name, file.Size); err != nil {
		return nil, err
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file.Body, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("reading %q failed", file.Name)).WithCause(err)
	}
	contentType, err := h.validator.ValidateType(file.Name, head[:n])
	if err != nil {
		return nil, err
	}

	info := &inspected{contentType: contentType}

	if err := rewind(file.Body); err != nil {
		return nil, err
	}
	if info.checksum, err = files.Checksum(file.Body); err != nil {
		return nil, pkgerrors.NewInternalError("checksum failed").WithCause(err)
	}

	if err := rewind(file.Body); err != nil {
		return nil, err
	}
	if info.width, info.height, err = files.Dimensions(file.Body); err != nil {
		// Content sniffing passed but the header is unreadable
		return nil, pkgerrors.NewInvalidFileTypeError(file.Name, contentType).WithCause(err)
	}

	name, err := files.GenerateName(h.config.GeneratedNameLen)
	if err != nil {
		return nil, pkgerrors.NewInternalError("name generation failed").WithCause(err)
	}
	info.pathname = files.Pathname(name, file.Name)
	return info, nil
}

func rewind(r io.Seeker) error {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return pkgerrors.NewInternalError("rewinding upload failed").WithCause(err)
	}
	return nil
}
