package handlers

import (
	"context"

	"blueprint-editor/application/commands"
	"blueprint-editor/application/ports"
	"blueprint-editor/domain/config"
	"blueprint-editor/domain/core/aggregates"
	"blueprint-editor/domain/core/valueobjects"
	pkgerrors "blueprint-editor/pkg/errors"

	"go.uber.org/zap"
)

// UpdateDiagramHandler handles title and blueprint offset changes
type UpdateDiagramHandler struct {
	repo      ports.DiagramRepository
	cache     ports.Cache
	publisher ports.EventPublisher
	config    *config.DomainConfig
	logger    *zap.Logger
}

// NewUpdateDiagramHandler creates a new update handler
func NewUpdateDiagramHandler(
	repo ports.DiagramRepository,
	cache ports.Cache,
	publisher ports.EventPublisher,
	cfg *config.DomainConfig,
	logger *zap.Logger,
) *UpdateDiagramHandler {
	return &UpdateDiagramHandler{
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		config:    cfg,
		logger:    logger,
	}
}

// HandleRename executes RenameDiagramCommand
func (h *UpdateDiagramHandler) HandleRename(ctx context.Context, cmd commands.RenameDiagramCommand) error {
	return h.update(ctx, cmd.DiagramID, func(d *aggregates.Diagram) error {
		return d.Rename(cmd.Title, h.config)
	})
}

// HandleSetBlueprintPosition executes SetBlueprintPositionCommand
func (h *UpdateDiagramHandler) HandleSetBlueprintPosition(ctx context.Context, cmd commands.SetBlueprintPositionCommand) error {
	return h.update(ctx, cmd.DiagramID, func(d *aggregates.Diagram) error {
		return d.FixBlueprintPosition(valueobjects.Position{X: cmd.X, Y: cmd.Y})
	})
}

func (h *UpdateDiagramHandler) update(ctx context.Context, id int64, mutate func(*aggregates.Diagram) error) error {
	diagram, err := h.repo.GetByID(ctx, id)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return pkgerrors.NewDiagramNotFoundError(id)
		}
		return pkgerrors.NewDatabaseError("load diagram", err)
	}

	if err := mutate(diagram); err != nil {
		return err
	}
	if len(diagram.GetUncommittedEvents()) == 0 {
		return nil
	}

	if err := h.repo.Update(ctx, diagram); err != nil {
		if pkgerrors.IsNotFound(err) {
			return pkgerrors.NewDiagramNotFoundError(id)
		}
		return pkgerrors.NewDatabaseError("update diagram", err)
	}

	invalidate(ctx, h.cache, h.logger, ports.DiagramCacheKey(id), ports.DiagramListCacheKey)
	publish(ctx, h.publisher, h.logger, diagram.GetUncommittedEvents())
	diagram.MarkEventsAsCommitted()

	h.logger.Info("Diagram updated", zap.Int64("diagram_id", id), zap.Int("version", diagram.Version()))
	return nil
}
