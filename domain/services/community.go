package services

import (
	"context"
	"fmt"

	"reallynicca-backend/domain/core/aggregates"
	"reallynicca-backend/domain/core/valueobjects"
)

// Community detection strategy names reported in run metadata
const (
	StrategyLouvain    = "louvain"
	StrategyComponents = "connected_components"
)

// CommunityDetector partitions a graph into communities
type CommunityDetector interface {
	Detect(ctx context.Context, g *aggregates.Graph) (*Partition, error)
	Name() string
}

// Partition assigns every node of a graph to exactly one community.
// Community ids are dense, numbered by first appearance in node order.
type Partition struct {
	graph       *aggregates.Graph
	assignments []int
	communities [][]int

	Strategy   string
	Modularity float64
	Degraded   bool
	Warnings   []string
}

// NewPartition builds a partition from one community label per dense index.
// Labels may be arbitrary non-negative integers; they are renumbered.
func NewPartition(g *aggregates.Graph, labels []int, strategy string) (*Partition, error) {
	n := g.NodeCount()
	if len(labels) != n {
		return nil, fmt.Errorf("partition covers %d of %d nodes", len(labels), n)
	}

	renumber := make(map[int]int)
	assignments := make([]int, n)
	var communities [][]int
	for idx, label := range labels {
		if label < 0 {
			return nil, fmt.Errorf("node %d has negative community label %d", idx, label)
		}
		c, ok := renumber[label]
		if !ok {
			c = len(communities)
			renumber[label] = c
			communities = append(communities, nil)
		}
		assignments[idx] = c
		communities[c] = append(communities[c], idx)
	}

	p := &Partition{
		graph:       g,
		assignments: assignments,
		communities: communities,
		Strategy:    strategy,
	}
	p.Modularity = Modularity(g, assignments, 1.0)
	return p, nil
}

// NumCommunities returns the number of communities
func (p *Partition) NumCommunities() int {
	return len(p.communities)
}

// CommunityAt returns the community of a dense index
func (p *Partition) CommunityAt(idx int) int {
	return p.assignments[idx]
}

// CommunityOf returns the community of an entity
func (p *Partition) CommunityOf(id valueobjects.EntityID) (int, bool) {
	idx, ok := p.graph.IndexOf(id)
	if !ok {
		return 0, false
	}
	return p.assignments[idx], true
}

// Members returns the dense indices of a community in ascending order.
// The slice is shared and must not be modified.
func (p *Partition) Members(community int) []int {
	if community < 0 || community >= len(p.communities) {
		return nil
	}
	return p.communities[community]
}

// Assignments returns the partition keyed by entity id
func (p *Partition) Assignments() map[valueobjects.EntityID]int {
	out := make(map[valueobjects.EntityID]int, len(p.assignments))
	for idx, c := range p.assignments {
		out[p.graph.IDAt(idx)] = c
	}
	return out
}

// Sizes returns the member count of every community, indexed by id
func (p *Partition) Sizes() []int {
	sizes := make([]int, len(p.communities))
	for c, members := range p.communities {
		sizes[c] = len(members)
	}
	return sizes
}

func (p *Partition) addWarning(code string) {
	for _, w := range p.Warnings {
		if w == code {
			return
		}
	}
	p.Warnings = append(p.Warnings, code)
}

// Modularity computes Q = sum over communities of (L_c/m - gamma*(d_c/2m)^2)
// on the unweighted graph. A self-loop counts as one internal edge and adds
// two to its node's degree. Returns 0 for a graph without edges.
func Modularity(g *aggregates.Graph, assignments []int, resolution float64) float64 {
	m := float64(g.EdgeCount())
	if m == 0 {
		return 0
	}

	size := 0
	for _, c := range assignments {
		if c+1 > size {
			size = c + 1
		}
	}
	internal := make([]float64, size)
	degree := make([]float64, size)
	for i := 0; i < g.NodeCount(); i++ {
		c := assignments[i]
		d := float64(g.Degree(i))
		if g.HasSelfLoop(i) {
			d += 2
			internal[c]++
		}
		degree[c] += d
		for _, j := range g.Neighbors(i) {
			if j > i && assignments[j] == c {
				internal[c]++
			}
		}
	}

	q := 0.0
	for c, d := range degree {
		share := d / (2 * m)
		q += internal[c]/m - resolution*share*share
	}
	return q
}
