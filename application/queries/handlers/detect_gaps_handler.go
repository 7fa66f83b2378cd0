package handlers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"reallynicca-backend/application/ports"
	"reallynicca-backend/application/queries"
	"reallynicca-backend/domain/core/entities"
	"reallynicca-backend/domain/events"
	"reallynicca-backend/domain/services"
)

// GapAnalyzer runs structural gap analysis over a graph snapshot
type GapAnalyzer interface {
	AnalyzeWithOptions(ctx context.Context, nodes []entities.Entity, edges []entities.Relationship, opts services.GapOptions) (*services.GapReport, error)
	DefaultGapOptions() services.GapOptions
}

// DetectGapsHandler handles gap queries over inline graphs
type DetectGapsHandler struct {
	analyzer GapAnalyzer
	logger   *zap.Logger
}

// NewDetectGapsHandler creates a new inline gap handler
func NewDetectGapsHandler(analyzer GapAnalyzer, logger *zap.Logger) *DetectGapsHandler {
	return &DetectGapsHandler{
		analyzer: analyzer,
		logger:   logger,
	}
}

// Handle executes the gap query
func (h *DetectGapsHandler) Handle(ctx context.Context, query queries.DetectGapsQuery) (*queries.DetectGapsResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	opts := query.Options.Apply(h.analyzer.DefaultGapOptions())
	report, err := h.analyzer.AnalyzeWithOptions(ctx, query.Entities, query.Relationships, opts)
	if err != nil {
		return nil, err
	}

	return &queries.DetectGapsResult{Report: report}, nil
}

// DetectGapsForGraphHandler handles gap queries over stored graphs
type DetectGapsForGraphHandler struct {
	analyzer  GapAnalyzer
	snapshots ports.GraphSnapshotRepository
	publisher ports.EventPublisher
	logger    *zap.Logger
}

// NewDetectGapsForGraphHandler creates a new stored graph gap handler
func NewDetectGapsForGraphHandler(
	analyzer GapAnalyzer,
	snapshots ports.GraphSnapshotRepository,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *DetectGapsForGraphHandler {
	return &DetectGapsForGraphHandler{
		analyzer:  analyzer,
		snapshots: snapshots,
		publisher: publisher,
		logger:    logger,
	}
}

// Handle loads the graph, analyzes it and announces the result
func (h *DetectGapsForGraphHandler) Handle(ctx context.Context, query queries.DetectGapsForGraphQuery) (*queries.DetectGapsResult, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	snapshot, err := h.snapshots.LoadSnapshot(ctx, query.GraphID)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph %s: %w", query.GraphID, err)
	}

	opts := query.Options.Apply(h.analyzer.DefaultGapOptions())
	report, err := h.analyzer.AnalyzeWithOptions(ctx, snapshot.Entities, snapshot.Relationships, opts)
	if err != nil {
		return nil, err
	}

	h.publish(ctx, query.GraphID, report)

	h.logger.Debug("Stored graph analyzed",
		zap.String("graphID", query.GraphID),
		zap.String("runID", report.Metadata.RunID),
		zap.String("status", string(report.Status)),
		zap.Int("gapCount", report.Metadata.NumGaps),
	)

	return &queries.DetectGapsResult{GraphID: query.GraphID, Report: report}, nil
}

// publish announces the analysis; failures never fail the query
func (h *DetectGapsForGraphHandler) publish(ctx context.Context, graphID string, report *services.GapReport) {
	if h.publisher == nil {
		return
	}

	event := events.NewGapsDetected(
		graphID,
		report.Metadata.RunID,
		string(report.Status),
		report.Metadata.NumGaps,
		report.Metadata.NumCommunities,
		report.TopGapScore(),
		report.Metadata.CommunityStrategy,
		report.Metadata.Warnings,
		time.Now().UTC(),
	)

	if err := h.publisher.Publish(ctx, event); err != nil {
		h.logger.Warn("Failed to publish gaps detected event",
			zap.String("graphID", graphID),
			zap.String("runID", report.Metadata.RunID),
			zap.Error(err),
		)
	}
}
