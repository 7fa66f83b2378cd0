package commands

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"reallynicca-backend/application/ports"
	"reallynicca-backend/application/queries"
	"reallynicca-backend/domain/core/aggregates"
	"reallynicca-backend/domain/core/entities"
	pkgerrors "reallynicca-backend/pkg/errors"
	"reallynicca-backend/pkg/utils"
)

// StoreGraphCommand replaces the stored snapshot of a graph
type StoreGraphCommand struct {
	GraphID       string                  `json:"graph_id" validate:"required,max=128"`
	Entities      []entities.Entity       `json:"nodes" validate:"max=50000"`
	Relationships []entities.Relationship `json:"edges" validate:"max=250000"`
}

// Validate validates the command
func (c StoreGraphCommand) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}
	if strings.ContainsAny(c.GraphID, "#/") {
		return pkgerrors.NewValidationError("graph_id must not contain '#' or '/'")
	}
	return nil
}

// StoreGraphHandler validates and persists graph snapshots
type StoreGraphHandler struct {
	snapshots ports.GraphSnapshotRepository
	cache     ports.Cache
	logger    *zap.Logger
}

// NewStoreGraphHandler creates a new store graph handler
func NewStoreGraphHandler(snapshots ports.GraphSnapshotRepository, cache ports.Cache, logger *zap.Logger) *StoreGraphHandler {
	return &StoreGraphHandler{
		snapshots: snapshots,
		cache:     cache,
		logger:    logger,
	}
}

// Handle stores the snapshot. A snapshot that would not load as a graph is
// rejected before anything is written.
func (h *StoreGraphHandler) Handle(ctx context.Context, cmd StoreGraphCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	entityList := make([]entities.Entity, len(cmd.Entities))
	for i, e := range cmd.Entities {
		entityList[i] = e.WithDefaults()
	}
	relationshipList := make([]entities.Relationship, len(cmd.Relationships))
	for i, r := range cmd.Relationships {
		relationshipList[i] = r.WithDefaults()
	}

	if _, err := aggregates.NewGraph(entityList, relationshipList); err != nil {
		return err
	}

	snapshot := &ports.GraphSnapshot{
		GraphID:       cmd.GraphID,
		Entities:      entityList,
		Relationships: relationshipList,
	}
	if err := h.snapshots.SaveSnapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to store graph %s: %w", cmd.GraphID, err)
	}

	if h.cache != nil {
		if err := h.cache.DeletePrefix(ctx, queries.GapResultCachePrefix(cmd.GraphID)); err != nil {
			h.logger.Warn("Failed to invalidate cached gap results",
				zap.String("graphID", cmd.GraphID),
				zap.Error(err),
			)
		}
	}

	h.logger.Info("Graph snapshot stored",
		zap.String("graphID", cmd.GraphID),
		zap.Int("nodeCount", len(entityList)),
		zap.Int("edgeCount", len(relationshipList)),
	)
	return nil
}
