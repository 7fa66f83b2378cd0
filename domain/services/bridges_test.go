package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"reallynicca-backend/domain/core/valueobjects"
	"reallynicca-backend/pkg/fixtures"
)

func TestTopBridges(t *testing.T) {
	nodes, edges := fixtures.TwoCliquesWithBridge()
	g := mustGraph(t, nodes, edges)
	table, err := NewCentralityEngine(2, true, zap.NewNop()).Compute(context.Background(), g)
	require.NoError(t, err)

	left := []valueobjects.EntityID{1, 2, 3, 4}
	right := []valueobjects.EntityID{5, 6, 7, 8}

	tests := []struct {
		name     string
		nodes1   []valueobjects.EntityID
		nodes2   []valueobjects.EntityID
		topN     int
		expected []valueobjects.EntityID
	}{
		{
			name:     "bridge endpoints first then ascending id",
			nodes1:   left,
			nodes2:   right,
			topN:     3,
			expected: []valueobjects.EntityID{4, 5, 1},
		},
		{
			name:     "top one",
			nodes1:   left,
			nodes2:   right,
			topN:     1,
			expected: []valueobjects.EntityID{4},
		},
		{
			name:     "fewer candidates than requested",
			nodes1:   []valueobjects.EntityID{2},
			nodes2:   []valueobjects.EntityID{3},
			topN:     3,
			expected: []valueobjects.EntityID{2, 3},
		},
		{
			name:     "overlapping sets are deduplicated",
			nodes1:   []valueobjects.EntityID{5, 6},
			nodes2:   []valueobjects.EntityID{5, 6},
			topN:     3,
			expected: []valueobjects.EntityID{5, 6},
		},
		{
			name:     "unknown ids ignored",
			nodes1:   []valueobjects.EntityID{99},
			nodes2:   []valueobjects.EntityID{6},
			topN:     3,
			expected: []valueobjects.EntityID{6},
		},
		{
			name:     "empty input",
			topN:     3,
			expected: []valueobjects.EntityID{},
		},
		{
			name:     "zero requested",
			nodes1:   left,
			nodes2:   right,
			topN:     0,
			expected: []valueobjects.EntityID{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bridges := TopBridges(table, tt.nodes1, tt.nodes2, tt.topN)
			assert.Equal(t, tt.expected, bridges)
			assert.LessOrEqual(t, len(bridges), tt.topN)
		})
	}
}
