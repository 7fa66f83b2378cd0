package fixtures

import (
	"fmt"

	"reallynicca-backend/domain/core/entities"
	"reallynicca-backend/domain/core/valueobjects"
)

// SnapshotBuilder helps create test graphs with default labels
type SnapshotBuilder struct {
	nodes []entities.Entity
	edges []entities.Relationship
	known map[valueobjects.EntityID]bool
}

func NewSnapshotBuilder() *SnapshotBuilder {
	return &SnapshotBuilder{known: make(map[valueobjects.EntityID]bool)}
}

// WithNode adds a node with an explicit label
func (b *SnapshotBuilder) WithNode(id int64, label string) *SnapshotBuilder {
	eid := valueobjects.EntityID(id)
	if !b.known[eid] {
		b.known[eid] = true
		b.nodes = append(b.nodes, entities.NewEntity(eid, label, "CONCEPT"))
	}
	return b
}

// WithNodes adds nodes labelled "node-<id>"
func (b *SnapshotBuilder) WithNodes(ids ...int64) *SnapshotBuilder {
	for _, id := range ids {
		b.WithNode(id, fmt.Sprintf("node-%d", id))
	}
	return b
}

// WithEdge adds an edge, creating missing endpoints
func (b *SnapshotBuilder) WithEdge(from, to int64) *SnapshotBuilder {
	b.WithNodes(from, to)
	b.edges = append(b.edges, entities.NewRelationship(valueobjects.EntityID(from), valueobjects.EntityID(to), ""))
	return b
}

// WithClique connects every pair of ids
func (b *SnapshotBuilder) WithClique(ids ...int64) *SnapshotBuilder {
	b.WithNodes(ids...)
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			b.WithEdge(ids[i], ids[j])
		}
	}
	return b
}

// WithStar connects the hub to every leaf
func (b *SnapshotBuilder) WithStar(hub int64, leaves ...int64) *SnapshotBuilder {
	b.WithNodes(hub)
	for _, leaf := range leaves {
		b.WithEdge(hub, leaf)
	}
	return b
}

// WithDanglingEdge adds an edge without registering its endpoints
func (b *SnapshotBuilder) WithDanglingEdge(from, to int64) *SnapshotBuilder {
	b.edges = append(b.edges, entities.NewRelationship(valueobjects.EntityID(from), valueobjects.EntityID(to), ""))
	return b
}

// Build returns copies of the node and edge lists
func (b *SnapshotBuilder) Build() ([]entities.Entity, []entities.Relationship) {
	nodes := make([]entities.Entity, len(b.nodes))
	copy(nodes, b.nodes)
	edges := make([]entities.Relationship, len(b.edges))
	copy(edges, b.edges)
	return nodes, edges
}

// TrianglePendant is a triangle 1-2-3 with node 4 hanging off node 3
func TrianglePendant() ([]entities.Entity, []entities.Relationship) {
	return NewSnapshotBuilder().
		WithClique(1, 2, 3).
		WithEdge(3, 4).
		Build()
}

// TwoCliquesWithBridge is two 4-cliques {1..4} and {5..8} joined by 4-5
func TwoCliquesWithBridge() ([]entities.Entity, []entities.Relationship) {
	return NewSnapshotBuilder().
		WithClique(1, 2, 3, 4).
		WithClique(5, 6, 7, 8).
		WithEdge(4, 5).
		Build()
}

// Clique is a complete graph over ids 1..n
func Clique(n int) ([]entities.Entity, []entities.Relationship) {
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	return NewSnapshotBuilder().WithClique(ids...).Build()
}

// Star is hub 1 connected to leaves 2..leaves+1
func Star(leaves int) ([]entities.Entity, []entities.Relationship) {
	ids := make([]int64, leaves)
	for i := range ids {
		ids[i] = int64(i + 2)
	}
	return NewSnapshotBuilder().WithStar(1, ids...).Build()
}

// ThreeClusters is three 4-cliques joined in a chain by single edges
func ThreeClusters() ([]entities.Entity, []entities.Relationship) {
	return NewSnapshotBuilder().
		WithClique(1, 2, 3, 4).
		WithClique(5, 6, 7, 8).
		WithClique(9, 10, 11, 12).
		WithEdge(4, 5).
		WithEdge(8, 9).
		Build()
}
