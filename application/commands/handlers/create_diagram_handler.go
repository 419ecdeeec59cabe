package handlers

import (
	"context"

	"blueprint-editor/application/commands"
	"blueprint-editor/application/ports"
	"blueprint-editor/domain/config"
	"blueprint-editor/domain/core/aggregates"
	"blueprint-editor/domain/events"
	pkgerrors "blueprint-editor/pkg/errors"

	"go.uber.org/zap"
)

// CreateDiagramHandler handles diagram creation
type CreateDiagramHandler struct {
	repo      ports.DiagramRepository
	cache     ports.Cache
	publisher ports.EventPublisher
	config    *config.DomainConfig
	logger    *zap.Logger
}

// NewCreateDiagramHandler creates a new handler instance
func NewCreateDiagramHandler(
	repo ports.DiagramRepository,
	cache ports.Cache,
	publisher ports.EventPublisher,
	cfg *config.DomainConfig,
	logger *zap.Logger,
) *CreateDiagramHandler {
	return &CreateDiagramHandler{
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		config:    cfg,
		logger:    logger,
	}
}

// Handle creates the diagram and returns its id
func (h *CreateDiagramHandler) Handle(ctx context.Context, cmd commands.CreateDiagramCommand) (*commands.CreateDiagramResult, error) {
	diagram, err := aggregates.NewDiagram(cmd.Title, aggregates.Blueprint{
		URL:    cmd.BlueprintURL,
		Width:  cmd.BlueprintWidth,
		Height: cmd.BlueprintHeight,
	}, h.config)
	if err != nil {
		return nil, err
	}

	id, err := h.repo.Create(ctx, diagram)
	if err != nil {
		if pkgerrors.IsAppError(err) {
			return nil, err
		}
		return nil, pkgerrors.NewDatabaseError("create diagram", err)
	}
	if err := diagram.AssignID(id); err != nil {
		return nil, pkgerrors.NewInternalError(err.Error())
	}

	invalidate(ctx, h.cache, h.logger, ports.DiagramListCacheKey)
	publish(ctx, h.publisher, h.logger, diagram.GetUncommittedEvents())
	diagram.MarkEventsAsCommitted()

	h.logger.Info("Diagram created",
		zap.Int64("diagram_id", id),
		zap.String("blueprint_url", cmd.BlueprintURL),
	)
	return &commands.CreateDiagramResult{DiagramID: id}, nil
}

// invalidate drops cache keys. Failures are logged, never returned: the
// write has already been acknowledged by storage.
func invalidate(ctx context.Context, cache ports.Cache, logger *zap.Logger, keys ...string) {
	if cache == nil {
		return
	}
	for _, key := range keys {
		if err := cache.Delete(ctx, key); err != nil {
			logger.Warn("Cache invalidation failed", zap.String("key", key), zap.Error(err))
		}
	}
}

func publish(ctx context.Context, publisher ports.EventPublisher, logger *zap.Logger, evts []events.DomainEvent) {
	if publisher == nil || len(evts) == 0 {
		return
	}
	if err := publisher.PublishBatch(ctx, evts); err != nil {
		logger.Warn("Failed to publish events", zap.Int("count", len(evts)), zap.Error(err))
	}
}
