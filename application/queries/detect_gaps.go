package queries

import (
	"fmt"
	"strings"

	"reallynicca-backend/domain/core/entities"
	"reallynicca-backend/domain/services"
	pkgerrors "reallynicca-backend/pkg/errors"
	"reallynicca-backend/pkg/utils"
)

// AnalysisOptions overrides the configured gap heuristics for one request.
// Nil fields keep the configured value.
type AnalysisOptions struct {
	MinClusterSize        *int     `json:"min_cluster_size,omitempty" validate:"omitempty,gte=1,lte=10000"`
	ConnectivityThreshold *float64 `json:"connectivity_threshold,omitempty" validate:"omitempty,gt=0,lte=1"`
	MaxGaps               *int     `json:"max_gaps,omitempty" validate:"omitempty,gte=1,lte=100"`
	TopBridges            *int     `json:"top_bridges,omitempty" validate:"omitempty,gte=0,lte=50"`
	KeywordsPerCluster    *int     `json:"keywords_per_cluster,omitempty" validate:"omitempty,gte=0,lte=50"`
}

// Apply returns base with every non-nil override applied
func (o AnalysisOptions) Apply(base services.GapOptions) services.GapOptions {
	if o.MinClusterSize != nil {
		base.MinClusterSize = *o.MinClusterSize
	}
	if o.ConnectivityThreshold != nil {
		base.ConnectivityThreshold = *o.ConnectivityThreshold
	}
	if o.MaxGaps != nil {
		base.MaxGaps = *o.MaxGaps
	}
	if o.TopBridges != nil {
		base.TopBridges = *o.TopBridges
	}
	if o.KeywordsPerCluster != nil {
		base.KeywordsPerCluster = *o.KeywordsPerCluster
	}
	return base
}

// key renders the overrides in a stable form
func (o AnalysisOptions) key() string {
	parts := make([]string, 0, 5)
	if o.MinClusterSize != nil {
		parts = append(parts, fmt.Sprintf("mcs=%d", *o.MinClusterSize))
	}
	if o.ConnectivityThreshold != nil {
		parts = append(parts, fmt.Sprintf("ct=%g", *o.ConnectivityThreshold))
	}
	if o.MaxGaps != nil {
		parts = append(parts, fmt.Sprintf("mg=%d", *o.MaxGaps))
	}
	if o.TopBridges != nil {
		parts = append(parts, fmt.Sprintf("tb=%d", *o.TopBridges))
	}
	if o.KeywordsPerCluster != nil {
		parts = append(parts, fmt.Sprintf("kw=%d", *o.KeywordsPerCluster))
	}
	return strings.Join(parts, ",")
}

// DetectGapsQuery analyzes a graph supplied inline by the caller
type DetectGapsQuery struct {
	Entities      []entities.Entity       `json:"nodes" validate:"max=50000"`
	Relationships []entities.Relationship `json:"edges" validate:"max=250000"`
	Options       AnalysisOptions         `json:"options"`
}

// Validate validates the query
func (q DetectGapsQuery) Validate() error {
	if err := utils.ValidateStruct(q); err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}
	return nil
}

// DetectGapsForGraphQuery analyzes a stored graph
type DetectGapsForGraphQuery struct {
	GraphID string          `json:"graph_id" validate:"required,max=128"`
	Options AnalysisOptions `json:"options"`
}

// Validate validates the query
func (q DetectGapsForGraphQuery) Validate() error {
	if err := utils.ValidateStruct(q); err != nil {
		return pkgerrors.NewValidationError(err.Error())
	}
	if strings.ContainsAny(q.GraphID, "#/") {
		return pkgerrors.NewValidationError("graph_id must not contain '#' or '/'")
	}
	return nil
}

// CacheKey identifies the result of this query for caching
func (q DetectGapsForGraphQuery) CacheKey() string {
	return GapResultCachePrefix(q.GraphID) + q.Options.key()
}

// GapResultCachePrefix is the cache key prefix of analysis results for a graph
func GapResultCachePrefix(graphID string) string {
	return "gaps:" + graphID + ":"
}

// DetectGapsResult is the answer to both gap queries
type DetectGapsResult struct {
	GraphID string              `json:"graph_id,omitempty"`
	Report  *services.GapReport `json:"report"`
}
