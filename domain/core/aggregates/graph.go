package aggregates

import (
	"sort"

	"reallynicca-backend/domain/core/entities"
	"reallynicca-backend/domain/core/valueobjects"
	pkgerrors "reallynicca-backend/pkg/errors"
)

// Graph is an immutable, undirected snapshot of the knowledge graph.
//
// External entity ids are remapped to a dense 0..n-1 index at construction
// time. Adjacency is one sorted, de-duplicated neighbor slice per index and
// is never written after construction, so concurrent readers need no locks.
// Self-loops are tracked separately and never appear in neighbor slices.
type Graph struct {
	entities   []entities.Entity
	index      map[valueobjects.EntityID]int
	adjacency  [][]int
	selfLoops  []bool
	edgeCount  int
	inputEdges int
}

// NewGraph builds the graph from an entity list and a relationship list.
// Duplicate relationships collapse to a single edge. A relationship that
// references an unknown entity, a non-positive id, or a duplicated entity id
// makes the whole snapshot malformed.
func NewGraph(nodes []entities.Entity, edges []entities.Relationship) (*Graph, error) {
	g := &Graph{
		entities:   make([]entities.Entity, len(nodes)),
		index:      make(map[valueobjects.EntityID]int, len(nodes)),
		adjacency:  make([][]int, len(nodes)),
		selfLoops:  make([]bool, len(nodes)),
		inputEdges: len(edges),
	}

	for i, node := range nodes {
		if !node.ID.IsValid() {
			return nil, pkgerrors.NewMalformedInputError("entity at position %d has non-positive id %d", i, node.ID)
		}
		if _, exists := g.index[node.ID]; exists {
			return nil, pkgerrors.NewMalformedInputError("entity id %d is duplicated", node.ID)
		}
		g.entities[i] = node.WithDefaults()
		g.index[node.ID] = i
	}

	for i, edge := range edges {
		from, ok := g.index[edge.From]
		if !ok {
			return nil, pkgerrors.NewMalformedInputError("relationship %d references unknown entity %d", i, edge.From).
				WithDetail("relationship", i)
		}
		to, ok := g.index[edge.To]
		if !ok {
			return nil, pkgerrors.NewMalformedInputError("relationship %d references unknown entity %d", i, edge.To).
				WithDetail("relationship", i)
		}

		if edge.IsSelfLoop() {
			g.selfLoops[from] = true
			continue
		}
		g.adjacency[from] = append(g.adjacency[from], to)
		g.adjacency[to] = append(g.adjacency[to], from)
	}

	for i, neighbors := range g.adjacency {
		g.adjacency[i] = sortUnique(neighbors)
		g.edgeCount += len(g.adjacency[i])
	}
	g.edgeCount /= 2
	for _, loop := range g.selfLoops {
		if loop {
			g.edgeCount++
		}
	}

	return g, nil
}

// NodeCount returns the number of entities
func (g *Graph) NodeCount() int {
	return len(g.entities)
}

// EdgeCount returns the number of distinct undirected edges, self-loops included
func (g *Graph) EdgeCount() int {
	return g.edgeCount
}

// InputEdgeCount returns the number of relationships the graph was built from
func (g *Graph) InputEdgeCount() int {
	return g.inputEdges
}

// Entity returns the entity stored at a dense index
func (g *Graph) Entity(idx int) entities.Entity {
	return g.entities[idx]
}

// Entities returns all entities in index order
func (g *Graph) Entities() []entities.Entity {
	out := make([]entities.Entity, len(g.entities))
	copy(out, g.entities)
	return out
}

// IDAt returns the external id for a dense index
func (g *Graph) IDAt(idx int) valueobjects.EntityID {
	return g.entities[idx].ID
}

// IndexOf returns the dense index of an entity id
func (g *Graph) IndexOf(id valueobjects.EntityID) (int, bool) {
	idx, ok := g.index[id]
	return idx, ok
}

// HasNode checks if an entity exists in the graph
func (g *Graph) HasNode(id valueobjects.EntityID) bool {
	_, ok := g.index[id]
	return ok
}

// Neighbors returns the sorted neighbor indices of idx, excluding idx itself.
// The slice is shared with the graph and must not be modified.
func (g *Graph) Neighbors(idx int) []int {
	return g.adjacency[idx]
}

// Degree returns the number of distinct neighbors, ignoring self-loops
func (g *Graph) Degree(idx int) int {
	return len(g.adjacency[idx])
}

// HasSelfLoop reports whether idx is connected to itself
func (g *Graph) HasSelfLoop(idx int) bool {
	return g.selfLoops[idx]
}

// HasEdge tests whether two entities are connected
func (g *Graph) HasEdge(a, b valueobjects.EntityID) bool {
	i, ok := g.index[a]
	if !ok {
		return false
	}
	j, ok := g.index[b]
	if !ok {
		return false
	}
	return g.HasEdgeBetween(i, j)
}

// HasEdgeBetween tests whether two dense indices are connected
func (g *Graph) HasEdgeBetween(i, j int) bool {
	if i == j {
		return g.selfLoops[i]
	}
	neighbors := g.adjacency[i]
	pos := sort.SearchInts(neighbors, j)
	return pos < len(neighbors) && neighbors[pos] == j
}

// ConnectedComponents groups indices by reachability. Components are ordered
// by their lowest index and members are listed in index order.
func (g *Graph) ConnectedComponents() [][]int {
	visited := make([]bool, len(g.entities))
	var components [][]int
	queue := make([]int, 0, len(g.entities))

	for start := range g.entities {
		if visited[start] {
			continue
		}
		visited[start] = true
		queue = append(queue[:0], start)
		component := []int{}

		for head := 0; head < len(queue); head++ {
			current := queue[head]
			component = append(component, current)
			for _, next := range g.adjacency[current] {
				if !visited[next] {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}

		sort.Ints(component)
		components = append(components, component)
	}

	return components
}

func sortUnique(values []int) []int {
	if len(values) < 2 {
		return values
	}
	sort.Ints(values)
	out := values[:1]
	for _, v := range values[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
