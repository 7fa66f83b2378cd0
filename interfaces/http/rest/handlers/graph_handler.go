package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"reallynicca-backend/application/commands"
	"reallynicca-backend/application/commands/bus"
	"reallynicca-backend/domain/core/entities"
	"reallynicca-backend/pkg/common"
	pkgerrors "reallynicca-backend/pkg/errors"
)

// CommandSender dispatches commands
type CommandSender interface {
	Send(ctx context.Context, cmd bus.Command) error
}

// GraphHandler handles graph storage HTTP requests
type GraphHandler struct {
	commandBus CommandSender
	errors     *pkgerrors.ErrorHandler
	maxBytes   int64
	logger     *zap.Logger
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(commandBus CommandSender, errorHandler *pkgerrors.ErrorHandler, maxBytes int64, logger *zap.Logger) *GraphHandler {
	return &GraphHandler{
		commandBus: commandBus,
		errors:     errorHandler,
		maxBytes:   maxBytes,
		logger:     logger,
	}
}

// StoreGraphRequest is the body of PUT /graphs/{graphID}
type StoreGraphRequest struct {
	Entities      []entities.Entity       `json:"nodes"`
	Relationships []entities.Relationship `json:"edges"`
}

// StoreGraphResponse acknowledges a stored graph
type StoreGraphResponse struct {
	GraphID   string `json:"graph_id"`
	NodeCount int    `json:"node_count"`
	EdgeCount int    `json:"edge_count"`
}

// StoreGraph handles PUT /graphs/{graphID}
func (h *GraphHandler) StoreGraph(w http.ResponseWriter, r *http.Request) {
	graphID := chi.URLParam(r, "graphID")

	var req StoreGraphRequest
	if err := common.ParseJSONBody(w, r, &req, h.maxBytes); err != nil {
		h.errors.Handle(w, r, bodyError(err))
		return
	}

	cmd := commands.StoreGraphCommand{
		GraphID:       graphID,
		Entities:      req.Entities,
		Relationships: req.Relationships,
	}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.logger.Debug("Graph stored via API",
		zap.String("graphID", graphID),
		zap.Int("nodeCount", len(req.Entities)),
		zap.Int("edgeCount", len(req.Relationships)),
	)

	common.RespondJSON(w, http.StatusOK, StoreGraphResponse{
		GraphID:   graphID,
		NodeCount: len(req.Entities),
		EdgeCount: len(req.Relationships),
	})
}
