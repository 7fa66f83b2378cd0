package aggregates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reallynicca-backend/domain/core/entities"
	"reallynicca-backend/domain/core/valueobjects"
	pkgerrors "reallynicca-backend/pkg/errors"
)

func entity(id int64, label string) entities.Entity {
	return entities.NewEntity(valueobjects.EntityID(id), label, "")
}

func rel(from, to int64) entities.Relationship {
	return entities.NewRelationship(valueobjects.EntityID(from), valueobjects.EntityID(to), "")
}

func TestNewGraph_Basic(t *testing.T) {
	g, err := NewGraph(
		[]entities.Entity{entity(10, "a"), entity(20, "b"), entity(30, "c")},
		[]entities.Relationship{rel(10, 20), rel(20, 30)},
	)
	require.NoError(t, err)

	assert.Equal(t, 3, g.NodeCount())
	assert.Equal(t, 2, g.EdgeCount())
	assert.Equal(t, 2, g.InputEdgeCount())

	idx, ok := g.IndexOf(20)
	require.True(t, ok)
	assert.Equal(t, 1, idx)
	assert.Equal(t, valueobjects.EntityID(30), g.IDAt(2))
	assert.Equal(t, []int{0, 2}, g.Neighbors(1))
	assert.Equal(t, 2, g.Degree(1))
	assert.True(t, g.HasEdge(10, 20))
	assert.True(t, g.HasEdge(20, 10))
	assert.False(t, g.HasEdge(10, 30))
	assert.False(t, g.HasEdge(10, 99))
	assert.True(t, g.HasNode(30))
	assert.False(t, g.HasNode(99))
	assert.Equal(t, entities.DefaultEntityType, g.Entity(0).Type)
}

func TestNewGraph_DuplicateEdgesCollapse(t *testing.T) {
	g, err := NewGraph(
		[]entities.Entity{entity(1, "a"), entity(2, "b")},
		[]entities.Relationship{rel(1, 2), rel(2, 1), rel(1, 2)},
	)
	require.NoError(t, err)

	assert.Equal(t, 1, g.EdgeCount())
	assert.Equal(t, 3, g.InputEdgeCount())
	assert.Equal(t, []int{1}, g.Neighbors(0))
	assert.Equal(t, []int{0}, g.Neighbors(1))
}

func TestNewGraph_SelfLoop(t *testing.T) {
	g, err := NewGraph(
		[]entities.Entity{entity(1, "a"), entity(2, "b")},
		[]entities.Relationship{rel(1, 1), rel(1, 2)},
	)
	require.NoError(t, err)

	assert.True(t, g.HasSelfLoop(0))
	assert.False(t, g.HasSelfLoop(1))
	assert.True(t, g.HasEdge(1, 1))
	assert.Equal(t, []int{1}, g.Neighbors(0), "self-loops are not neighbors")
	assert.Equal(t, 2, g.EdgeCount())
}

func TestNewGraph_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		nodes []entities.Entity
		edges []entities.Relationship
	}{
		{
			name:  "unknown target",
			nodes: []entities.Entity{entity(1, "a")},
			edges: []entities.Relationship{rel(1, 2)},
		},
		{
			name:  "unknown source",
			nodes: []entities.Entity{entity(1, "a")},
			edges: []entities.Relationship{rel(5, 1)},
		},
		{
			name:  "duplicate id",
			nodes: []entities.Entity{entity(1, "a"), entity(1, "b")},
		},
		{
			name:  "non-positive id",
			nodes: []entities.Entity{entity(0, "a")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGraph(tt.nodes, tt.edges)
			assert.Nil(t, g)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsMalformedInput(err))
		})
	}
}

func TestGraph_ConnectedComponents(t *testing.T) {
	g, err := NewGraph(
		[]entities.Entity{entity(1, "a"), entity(2, "b"), entity(3, "c"), entity(4, "d"), entity(5, "e")},
		[]entities.Relationship{rel(1, 3), rel(2, 4), rel(4, 5)},
	)
	require.NoError(t, err)

	components := g.ConnectedComponents()
	assert.Equal(t, [][]int{{0, 2}, {1, 3, 4}}, components)
}

func TestGraph_Empty(t *testing.T) {
	g, err := NewGraph(nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, g.NodeCount())
	assert.Equal(t, 0, g.EdgeCount())
	assert.Empty(t, g.ConnectedComponents())
	assert.Empty(t, g.Entities())
}
