package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"reallynicca-backend/domain/core/aggregates"
	"reallynicca-backend/domain/core/valueobjects"
	"reallynicca-backend/pkg/fixtures"
)

func defaultGapOptions() GapOptions {
	return GapOptions{
		MinClusterSize:        3,
		ConnectivityThreshold: 0.2,
		MaxGaps:               10,
		TopBridges:            3,
		KeywordsPerCluster:    5,
	}
}

func newTestGapScorer(inner SemanticScorer) *GapScorer {
	return NewGapScorer(NewGuardedScorer(inner, 0.5, time.Second, zap.NewNop()), zap.NewNop())
}

func scoreSetup(t *testing.T, g *aggregates.Graph, labels []int) (*Partition, *CentralityTable) {
	t.Helper()
	p, err := NewPartition(g, labels, "test")
	require.NoError(t, err)
	table, err := NewCentralityEngine(2, true, zap.NewNop()).Compute(context.Background(), g)
	require.NoError(t, err)
	return p, table
}

func assertGapInvariants(t *testing.T, gaps []Gap, opts GapOptions) {
	t.Helper()
	for i, gap := range gaps {
		assert.Less(t, gap.Community1, gap.Community2)
		assert.GreaterOrEqual(t, gap.Connectivity, 0.0)
		assert.Less(t, gap.Connectivity, opts.ConnectivityThreshold)
		assert.GreaterOrEqual(t, len(gap.Nodes1), opts.MinClusterSize)
		assert.GreaterOrEqual(t, len(gap.Nodes2), opts.MinClusterSize)
		assert.LessOrEqual(t, len(gap.BridgeNodes), opts.TopBridges)

		union := make(map[valueobjects.EntityID]bool)
		for _, id := range append(append([]valueobjects.EntityID{}, gap.Nodes1...), gap.Nodes2...) {
			union[id] = true
		}
		for _, id := range gap.BridgeNodes {
			assert.True(t, union[id], "bridge %d outside gap", id)
		}

		if i > 0 {
			prev := gaps[i-1]
			ordered := prev.GapScore > gap.GapScore ||
				(prev.GapScore == gap.GapScore && (prev.Community1 < gap.Community1 ||
					(prev.Community1 == gap.Community1 && prev.Community2 < gap.Community2)))
			assert.True(t, ordered, "gaps %d and %d out of order", i-1, i)
		}
	}
}

func TestGapScorer_TwoCliques(t *testing.T) {
	nodes, edges := fixtures.TwoCliquesWithBridge()
	g := mustGraph(t, nodes, edges)
	p, table := scoreSetup(t, g, []int{0, 0, 0, 0, 1, 1, 1, 1})

	tests := []struct {
		name          string
		inner         SemanticScorer
		wantDistance  float64
		wantScore     float64
		wantDefaulted bool
	}{
		{
			name:          "default distance without scorer",
			inner:         nil,
			wantDistance:  0.5,
			wantScore:     16 * 0.9375 * 1.5,
			wantDefaulted: true,
		},
		{
			name:         "injected distance",
			inner:        ConstantScorer(0.2),
			wantDistance: 0.2,
			wantScore:    16 * 0.9375 * 1.2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gaps, defaulted, err := newTestGapScorer(tt.inner).FindGaps(context.Background(), g, p, table, defaultGapOptions())
			require.NoError(t, err)
			require.Len(t, gaps, 1)

			gap := gaps[0]
			assert.Equal(t, 0, gap.Community1)
			assert.Equal(t, 1, gap.Community2)
			assert.Equal(t, 1, gap.InterEdges)
			assert.Equal(t, 0.0625, gap.Connectivity)
			assert.Equal(t, tt.wantDistance, gap.SemanticDistance)
			assert.InDelta(t, tt.wantScore, gap.GapScore, 1e-12)
			assert.Equal(t, 8, gap.ClusterSize)
			assert.Equal(t, []string{"node-1", "node-2", "node-3", "node-4"}, gap.Cluster1Keywords)
			assert.Equal(t, []string{"node-5", "node-6", "node-7", "node-8"}, gap.Cluster2Keywords)
			assert.Equal(t, []valueobjects.EntityID{4, 5, 1}, gap.BridgeNodes)
			assert.Equal(t, []string{"node-4", "node-5", "node-1"}, gap.BridgeLabels)
			assert.Equal(t, tt.wantDefaulted, defaulted)
			assertGapInvariants(t, gaps, defaultGapOptions())
		})
	}
}

func TestGapScorer_Filters(t *testing.T) {
	nodes, edges := fixtures.TwoCliquesWithBridge()
	g := mustGraph(t, nodes, edges)
	p, table := scoreSetup(t, g, []int{0, 0, 0, 0, 1, 1, 1, 1})

	tests := []struct {
		name   string
		modify func(*GapOptions)
	}{
		{
			name:   "connectivity above threshold",
			modify: func(o *GapOptions) { o.ConnectivityThreshold = 0.05 },
		},
		{
			name:   "connectivity equal to threshold",
			modify: func(o *GapOptions) { o.ConnectivityThreshold = 0.0625 },
		},
		{
			name:   "clusters below minimum size",
			modify: func(o *GapOptions) { o.MinClusterSize = 5 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := defaultGapOptions()
			tt.modify(&opts)

			gaps, _, err := newTestGapScorer(ConstantScorer(0.5)).FindGaps(context.Background(), g, p, table, opts)
			require.NoError(t, err)
			assert.Empty(t, gaps)
			assert.NotNil(t, gaps)
		})
	}
}

func TestGapScorer_OrderingAndTruncation(t *testing.T) {
	nodes, edges := fixtures.ThreeClusters()
	g := mustGraph(t, nodes, edges)
	p, table := scoreSetup(t, g, []int{0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2})

	opts := defaultGapOptions()
	gaps, _, err := newTestGapScorer(nil).FindGaps(context.Background(), g, p, table, opts)
	require.NoError(t, err)
	require.Len(t, gaps, 3)

	assert.Equal(t, [2]int{0, 2}, [2]int{gaps[0].Community1, gaps[0].Community2})
	assert.Equal(t, 0, gaps[0].InterEdges)
	assert.InDelta(t, 24.0, gaps[0].GapScore, 1e-12)
	assert.Equal(t, [2]int{0, 1}, [2]int{gaps[1].Community1, gaps[1].Community2})
	assert.Equal(t, [2]int{1, 2}, [2]int{gaps[2].Community1, gaps[2].Community2})
	assert.Equal(t, gaps[1].GapScore, gaps[2].GapScore)
	assertGapInvariants(t, gaps, opts)

	opts.MaxGaps = 2
	truncated, _, err := newTestGapScorer(nil).FindGaps(context.Background(), g, p, table, opts)
	require.NoError(t, err)
	assert.Equal(t, gaps[:2], truncated)
}

func TestGapScorer_SmallCommunitySkipped(t *testing.T) {
	nodes, edges := fixtures.NewSnapshotBuilder().
		WithClique(1, 2, 3).
		WithClique(4, 5, 6).
		WithEdge(7, 8).
		Build()
	g := mustGraph(t, nodes, edges)
	p, table := scoreSetup(t, g, []int{0, 0, 0, 1, 1, 1, 2, 2})

	gaps, _, err := newTestGapScorer(nil).FindGaps(context.Background(), g, p, table, defaultGapOptions())
	require.NoError(t, err)
	require.Len(t, gaps, 1)
	assert.Equal(t, 0, gaps[0].Community1)
	assert.Equal(t, 1, gaps[0].Community2)
	assert.Equal(t, 0.0, gaps[0].Connectivity)
}

func TestGapScorer_KeywordLimit(t *testing.T) {
	nodes, edges := fixtures.NewSnapshotBuilder().
		WithClique(1, 2, 3, 4, 5, 6, 7).
		WithClique(8, 9, 10).
		Build()
	g := mustGraph(t, nodes, edges)
	p, table := scoreSetup(t, g, []int{0, 0, 0, 0, 0, 0, 0, 1, 1, 1})

	gaps, _, err := newTestGapScorer(nil).FindGaps(context.Background(), g, p, table, defaultGapOptions())
	require.NoError(t, err)
	require.Len(t, gaps, 1)
	assert.Equal(t, []string{"node-1", "node-2", "node-3", "node-4", "node-5"}, gaps[0].Cluster1Keywords)
	assert.Len(t, gaps[0].Cluster2Keywords, 3)
}

func TestGapScorer_Cancelled(t *testing.T) {
	nodes, edges := fixtures.TwoCliquesWithBridge()
	g := mustGraph(t, nodes, edges)
	p, table := scoreSetup(t, g, []int{0, 0, 0, 0, 1, 1, 1, 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gaps, _, err := newTestGapScorer(nil).FindGaps(ctx, g, p, table, defaultGapOptions())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, gaps)
}
