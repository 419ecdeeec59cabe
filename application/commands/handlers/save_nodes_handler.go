package handlers

import (
	"context"

	"blueprint-editor/application/commands"
	"blueprint-editor/application/ports"
	"blueprint-editor/domain/config"
	"blueprint-editor/domain/versioning"
	pkgerrors "blueprint-editor/pkg/errors"

	"go.uber.org/zap"
)

// SaveNodesHandler overwrites a diagram's node list
type SaveNodesHandler struct {
	repo      ports.DiagramRepository
	schema    ports.NodeListValidator
	cache     ports.Cache
	publisher ports.EventPublisher
	metrics   ports.BusinessMetrics
	config    *config.DomainConfig
	logger    *zap.Logger
}

// NewSaveNodesHandler creates a new save handler
func NewSaveNodesHandler(
	repo ports.DiagramRepository,
	schema ports.NodeListValidator,
	cache ports.Cache,
	publisher ports.EventPublisher,
	metrics ports.BusinessMetrics,
	cfg *config.DomainConfig,
	logger *zap.Logger,
) *SaveNodesHandler {
	return &SaveNodesHandler{
		repo:      repo,
		schema:    schema,
		cache:     cache,
		publisher: publisher,
		metrics:   metrics,
		config:    cfg,
		logger:    logger,
	}
}

// Handle submits the node list. Only an acknowledged write invalidates
// the cached views; any storage failure comes back as SAVE_FAILED, an
// unknown diagram as DIAGRAM_NOT_FOUND.
func (h *SaveNodesHandler) Handle(ctx context.Context, cmd commands.SaveNodesCommand) (result *commands.SaveNodesResult, err error) {
	defer func() {
		if h.metrics != nil {
			h.metrics.RecordSave(len(cmd.Nodes), err)
		}
	}()

	if h.schema != nil {
		if err := h.schema.ValidateNodes(cmd.Nodes); err != nil {
			return nil, err
		}
	}

	diagram, err := h.repo.GetByID(ctx, cmd.DiagramID)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil, pkgerrors.NewDiagramNotFoundError(cmd.DiagramID)
		}
		return nil, pkgerrors.NewSaveFailedError(cmd.DiagramID, err)
	}

	previous := diagram.Nodes()
	if err := diagram.ReplaceNodes(cmd.Nodes, h.config); err != nil {
		return nil, err
	}
	changes := versioning.Compare(previous, diagram.Nodes())

	if err := h.repo.SaveNodes(ctx, diagram.ID(), diagram.Nodes(), diagram.NodeSequence()); err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil, pkgerrors.NewDiagramNotFoundError(cmd.DiagramID)
		}
		h.logger.Error("Saving nodes failed",
			zap.Int64("diagram_id", cmd.DiagramID),
			zap.Int("node_count", len(cmd.Nodes)),
			zap.Error(err),
		)
		return nil, pkgerrors.NewSaveFailedError(cmd.DiagramID, err)
	}

	invalidate(ctx, h.cache, h.logger, ports.DiagramCacheKey(diagram.ID()), ports.DiagramListCacheKey)
	publish(ctx, h.publisher, h.logger, diagram.GetUncommittedEvents())
	diagram.MarkEventsAsCommitted()

	h.logger.Info("Nodes saved",
		zap.Int64("diagram_id", diagram.ID()),
		zap.Int("node_count", len(cmd.Nodes)),
		zap.Int64("node_sequence", diagram.NodeSequence()),
		zap.Int("changed", changes.Changed()),
	)

	return &commands.SaveNodesResult{
		DiagramID:    diagram.ID(),
		NodeCount:    len(cmd.Nodes),
		NodeSequence: diagram.NodeSequence(),
		Changes:      changes,
	}, nil
}
