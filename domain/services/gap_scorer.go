package services

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"reallynicca-backend/domain/core/aggregates"
	"reallynicca-backend/domain/core/valueobjects"
)

// Gap is a pair of communities that are large but weakly linked
type Gap struct {
	Community1       int                     `json:"community_1"`
	Community2       int                     `json:"community_2"`
	Nodes1           []valueobjects.EntityID `json:"nodes_1"`
	Nodes2           []valueobjects.EntityID `json:"nodes_2"`
	Cluster1Keywords []string                `json:"cluster_1_keywords"`
	Cluster2Keywords []string                `json:"cluster_2_keywords"`
	InterEdges       int                     `json:"inter_edges"`
	Connectivity     float64                 `json:"connectivity"`
	SemanticDistance float64                 `json:"semantic_distance"`
	GapScore         float64                 `json:"gap_score"`
	ClusterSize      int                     `json:"cluster_size"`
	BridgeNodes      []valueobjects.EntityID `json:"bridge_nodes"`
	BridgeLabels     []string                `json:"bridge_labels"`
}

// GapOptions are the heuristics applied while scoring community pairs
type GapOptions struct {
	MinClusterSize        int
	ConnectivityThreshold float64
	MaxGaps               int
	TopBridges            int
	KeywordsPerCluster    int
}

// GapScorer enumerates community pairs and scores the weakly connected ones
type GapScorer struct {
	scorer *GuardedScorer
	logger *zap.Logger
}

// NewGapScorer creates a gap scorer
func NewGapScorer(scorer *GuardedScorer, logger *zap.Logger) *GapScorer {
	return &GapScorer{scorer: scorer, logger: logger}
}

// FindGaps scores every pair of communities c1 < c2 whose sides both reach
// the minimum cluster size and whose connectivity stays under the threshold.
// The result is ordered by score descending, then by (c1, c2) ascending, and
// truncated to MaxGaps. The returned flag reports whether any pair used the
// default semantic distance because the scorer was unavailable.
func (s *GapScorer) FindGaps(ctx context.Context, g *aggregates.Graph, p *Partition, table *CentralityTable, opts GapOptions) ([]Gap, bool, error) {
	ctx, span := tracer.Start(ctx, "GapScorer.FindGaps",
		trace.WithAttributes(
			attribute.Int("community_count", p.NumCommunities()),
			attribute.Float64("connectivity_threshold", opts.ConnectivityThreshold),
		),
	)
	defer span.End()

	eligible := make([]int, 0, p.NumCommunities())
	for c := 0; c < p.NumCommunities(); c++ {
		if len(p.Members(c)) >= opts.MinClusterSize {
			eligible = append(eligible, c)
		}
	}

	gaps := []Gap{}
	semanticDegraded := false
	pairs := 0

	for a := 0; a < len(eligible); a++ {
		for b := a + 1; b < len(eligible); b++ {
			if err := ctx.Err(); err != nil {
				return nil, false, err
			}
			pairs++

			c1, c2 := eligible[a], eligible[b]
			members1, members2 := p.Members(c1), p.Members(c2)

			inter := countInterEdges(g, p, members1, members2, c2)
			denominator := len(members1) * len(members2)
			connectivity := 0.0
			if denominator > 0 {
				connectivity = float64(inter) / float64(denominator)
			}
			if connectivity >= opts.ConnectivityThreshold {
				continue
			}

			keywords1 := representativeLabels(g, members1, opts.KeywordsPerCluster)
			keywords2 := representativeLabels(g, members2, opts.KeywordsPerCluster)
			distance, defaulted := s.scorer.Distance(ctx, keywords1, keywords2)
			if defaulted {
				semanticDegraded = true
			}

			nodes1 := toEntityIDs(g, members1)
			nodes2 := toEntityIDs(g, members2)
			bridges := TopBridges(table, nodes1, nodes2, opts.TopBridges)

			gaps = append(gaps, Gap{
				Community1:       c1,
				Community2:       c2,
				Nodes1:           nodes1,
				Nodes2:           nodes2,
				Cluster1Keywords: keywords1,
				Cluster2Keywords: keywords2,
				InterEdges:       inter,
				Connectivity:     connectivity,
				SemanticDistance: distance,
				GapScore:         float64(denominator) * (1 - connectivity) * (1 + distance),
				ClusterSize:      len(members1) + len(members2),
				BridgeNodes:      bridges,
				BridgeLabels:     labelsOf(g, bridges),
			})
		}
	}

	sort.SliceStable(gaps, func(i, j int) bool {
		if gaps[i].GapScore != gaps[j].GapScore {
			return gaps[i].GapScore > gaps[j].GapScore
		}
		if gaps[i].Community1 != gaps[j].Community1 {
			return gaps[i].Community1 < gaps[j].Community1
		}
		return gaps[i].Community2 < gaps[j].Community2
	})

	candidates := len(gaps)
	if opts.MaxGaps >= 0 && len(gaps) > opts.MaxGaps {
		gaps = gaps[:opts.MaxGaps]
	}

	span.SetAttributes(
		attribute.Int("pairs_evaluated", pairs),
		attribute.Int("gap_candidates", candidates),
		attribute.Int("gaps_returned", len(gaps)),
	)
	s.logger.Debug("Scored community pairs",
		zap.Int("eligibleCommunities", len(eligible)),
		zap.Int("pairsEvaluated", pairs),
		zap.Int("gapCandidates", candidates),
		zap.Int("gapsReturned", len(gaps)),
	)

	return gaps, semanticDegraded, nil
}

// countInterEdges counts edges with one endpoint in each community by
// walking the smaller side only, so each edge is seen once
func countInterEdges(g *aggregates.Graph, p *Partition, members1, members2 []int, c2 int) int {
	walk, target := members1, c2
	if len(members2) < len(members1) {
		walk, target = members2, p.CommunityAt(members1[0])
	}

	count := 0
	for _, u := range walk {
		for _, v := range g.Neighbors(u) {
			if p.CommunityAt(v) == target {
				count++
			}
		}
	}
	return count
}

// representativeLabels returns the first k labels of a community in node order
func representativeLabels(g *aggregates.Graph, members []int, k int) []string {
	if k > len(members) {
		k = len(members)
	}
	labels := make([]string, 0, k)
	for _, idx := range members[:k] {
		labels = append(labels, g.Entity(idx).Label)
	}
	return labels
}

func toEntityIDs(g *aggregates.Graph, members []int) []valueobjects.EntityID {
	ids := make([]valueobjects.EntityID, len(members))
	for i, idx := range members {
		ids[i] = g.IDAt(idx)
	}
	return ids
}

func labelsOf(g *aggregates.Graph, ids []valueobjects.EntityID) []string {
	labels := make([]string, 0, len(ids))
	for _, id := range ids {
		if idx, ok := g.IndexOf(id); ok {
			labels = append(labels, g.Entity(idx).Label)
		}
	}
	return labels
}
