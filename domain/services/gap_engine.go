package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"reallynicca-backend/domain/config"
	"reallynicca-backend/domain/core/aggregates"
	"reallynicca-backend/domain/core/entities"
)

// GapEngine runs the full structural gap analysis over one graph snapshot.
// It holds no per-run state and is safe for concurrent use.
type GapEngine struct {
	config     *config.AnalysisConfig
	centrality *CentralityEngine
	detector   CommunityDetector
	gapScorer  *GapScorer
	logger     *zap.Logger
	now        func() time.Time
}

// NewGapEngine creates a gap engine. The detector is used as given; scorer
// may be nil, in which case every gap uses the default semantic distance.
func NewGapEngine(cfg *config.AnalysisConfig, detector CommunityDetector, scorer SemanticScorer, logger *zap.Logger) *GapEngine {
	guarded := NewGuardedScorer(scorer, cfg.DefaultSemanticDistance, cfg.ScorerTimeout, logger)
	return &GapEngine{
		config:     cfg,
		centrality: NewCentralityEngine(cfg.CentralityWorkers, cfg.NormalizeCentrality, logger),
		detector:   detector,
		gapScorer:  NewGapScorer(guarded, logger),
		logger:     logger,
		now:        time.Now,
	}
}

// NewDefaultDetector builds the Louvain detector, wrapped with the connected
// components fallback when enabled
func NewDefaultDetector(cfg *config.AnalysisConfig, logger *zap.Logger) CommunityDetector {
	louvain := NewLouvainDetector(LouvainOptions{
		Resolution: cfg.Resolution,
		Epsilon:    cfg.Epsilon,
		MaxPasses:  cfg.MaxPasses,
		MaxLevels:  cfg.MaxLevels,
	}, logger)
	if !cfg.EnableCommunityFallback {
		return louvain
	}
	return NewFallbackDetector(louvain, NewComponentsDetector(), logger)
}

// DefaultGapOptions returns the gap heuristics of the engine configuration
func (e *GapEngine) DefaultGapOptions() GapOptions {
	return GapOptions{
		MinClusterSize:        e.config.MinClusterSize,
		ConnectivityThreshold: e.config.ConnectivityThreshold,
		MaxGaps:               e.config.MaxGaps,
		TopBridges:            e.config.TopBridges,
		KeywordsPerCluster:    e.config.KeywordsPerCluster,
	}
}

// Analyze runs the analysis with the configured heuristics
func (e *GapEngine) Analyze(ctx context.Context, nodes []entities.Entity, edges []entities.Relationship) (*GapReport, error) {
	return e.AnalyzeWithOptions(ctx, nodes, edges, e.DefaultGapOptions())
}

// AnalyzeWithOptions runs the analysis with explicit heuristics.
//
// Malformed input is returned as an error and no report is produced. Inputs
// below the minimum size yield a too_small report. Community detection and
// semantic scoring degrade to fallbacks and annotate the report instead of
// failing.
func (e *GapEngine) AnalyzeWithOptions(ctx context.Context, nodes []entities.Entity, edges []entities.Relationship, opts GapOptions) (*GapReport, error) {
	start := e.now()
	runID := uuid.New().String()

	ctx, span := tracer.Start(ctx, "GapEngine.Analyze",
		trace.WithAttributes(
			attribute.String("run_id", runID),
			attribute.Int("input_nodes", len(nodes)),
			attribute.Int("input_edges", len(edges)),
		),
	)
	defer span.End()

	graph, err := aggregates.NewGraph(nodes, edges)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	report := &GapReport{
		Status: StatusOK,
		Gaps:   []Gap{},
		Metadata: ReportMetadata{
			RunID:       runID,
			TotalNodes:  len(nodes),
			TotalEdges:  len(edges),
			UniqueEdges: graph.EdgeCount(),
			AnalyzedAt:  start.UTC(),
		},
	}

	if len(nodes) < e.config.MinNodes || len(edges) < e.config.MinEdges {
		report.Status = StatusTooSmall
		report.Message = tooSmallMessage(e.config.MinNodes, e.config.MinEdges)
		report.Metadata.DurationMS = e.now().Sub(start).Milliseconds()
		span.AddEvent("too_small")
		e.logger.Info("Graph too small for gap analysis",
			zap.String("runID", runID),
			zap.Int("nodeCount", len(nodes)),
			zap.Int("edgeCount", len(edges)),
		)
		return report, nil
	}

	var (
		table     *CentralityTable
		partition *Partition
	)
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		table, err = e.centrality.Compute(gctx, graph)
		return err
	})
	group.Go(func() error {
		var err error
		partition, err = e.detector.Detect(gctx, graph)
		return err
	})
	if err := group.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	gaps, semanticDegraded, err := e.gapScorer.FindGaps(ctx, graph, partition, table, opts)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	warnings := append([]string{}, partition.Warnings...)
	if semanticDegraded {
		warnings = append(warnings, WarningSemanticScorerUnavailable)
	}

	report.Gaps = gaps
	report.Metadata.NumCommunities = partition.NumCommunities()
	report.Metadata.NumGaps = len(gaps)
	report.Metadata.AverageGapScore = averageGapScore(gaps)
	report.Metadata.CommunityStrategy = partition.Strategy
	report.Metadata.Modularity = partition.Modularity
	report.Metadata.CommunitySizes = partition.Sizes()
	report.Metadata.CentralNodes = table.TopCentral(opts.TopBridges)
	if len(warnings) > 0 {
		report.Metadata.Warnings = warnings
	}
	report.Metadata.DurationMS = e.now().Sub(start).Milliseconds()

	span.SetAttributes(
		attribute.Int("community_count", report.Metadata.NumCommunities),
		attribute.Int("gap_count", report.Metadata.NumGaps),
		attribute.String("community_strategy", partition.Strategy),
	)
	e.logger.Info("Gap analysis completed",
		zap.String("runID", runID),
		zap.Int("nodeCount", graph.NodeCount()),
		zap.Int("edgeCount", graph.EdgeCount()),
		zap.Int("communityCount", report.Metadata.NumCommunities),
		zap.Int("gapCount", report.Metadata.NumGaps),
		zap.String("strategy", partition.Strategy),
		zap.Strings("warnings", warnings),
		zap.Int64("durationMs", report.Metadata.DurationMS),
	)

	return report, nil
}
