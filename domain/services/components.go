package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"reallynicca-backend/domain/core/aggregates"
)

// WarningCommunityDetectionDegraded marks a run whose partition came from the fallback strategy
const WarningCommunityDetectionDegraded = "COMMUNITY_DETECTION_DEGRADED"

// ComponentsDetector assigns each node the index of its connected component
type ComponentsDetector struct{}

// NewComponentsDetector creates a connected components detector
func NewComponentsDetector() *ComponentsDetector {
	return &ComponentsDetector{}
}

// Name returns the strategy name
func (d *ComponentsDetector) Name() string {
	return StrategyComponents
}

// Detect partitions the graph by reachability
func (d *ComponentsDetector) Detect(ctx context.Context, g *aggregates.Graph) (*Partition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	labels := make([]int, g.NodeCount())
	for c, members := range g.ConnectedComponents() {
		for _, idx := range members {
			labels[idx] = c
		}
	}
	return NewPartition(g, labels, StrategyComponents)
}

// FallbackDetector runs a primary detector and falls back to a secondary one
// when the primary fails or panics. A fallback partition is marked degraded.
type FallbackDetector struct {
	primary  CommunityDetector
	fallback CommunityDetector
	logger   *zap.Logger
}

// NewFallbackDetector wraps primary with fallback
func NewFallbackDetector(primary, fallback CommunityDetector, logger *zap.Logger) *FallbackDetector {
	return &FallbackDetector{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// Name returns the primary strategy name
func (d *FallbackDetector) Name() string {
	if d.primary == nil {
		return d.fallback.Name()
	}
	return d.primary.Name()
}

// Detect partitions the graph
func (d *FallbackDetector) Detect(ctx context.Context, g *aggregates.Graph) (*Partition, error) {
	var primaryErr error
	if d.primary == nil {
		primaryErr = fmt.Errorf("no community detector configured")
	} else {
		partition, err := d.safeDetect(ctx, d.primary, g)
		if err == nil {
			return partition, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		primaryErr = err
	}

	d.logger.Warn("Community detection degraded, falling back",
		zap.String("primary", d.Name()),
		zap.String("fallback", d.fallback.Name()),
		zap.Error(primaryErr),
	)

	partition, err := d.fallback.Detect(ctx, g)
	if err != nil {
		return nil, err
	}
	partition.Degraded = true
	partition.addWarning(WarningCommunityDetectionDegraded)
	return partition, nil
}

func (d *FallbackDetector) safeDetect(ctx context.Context, detector CommunityDetector, g *aggregates.Graph) (partition *Partition, err error) {
	defer func() {
		if r := recover(); r != nil {
			partition = nil
			err = fmt.Errorf("%s detector panicked: %v", detector.Name(), r)
		}
	}()
	return detector.Detect(ctx, g)
}
