package services

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"reallynicca-backend/domain/core/aggregates"
)

// LouvainOptions configures the modularity optimizer
type LouvainOptions struct {
	// Resolution scales the null model term; 1.0 is standard modularity.
	Resolution float64

	// Epsilon is the minimum modularity gain for a pass or level to count.
	Epsilon float64

	// MaxPasses bounds the local moving sweeps per level.
	MaxPasses int

	// MaxLevels bounds the number of aggregation levels.
	MaxLevels int
}

// DefaultLouvainOptions returns the standard optimizer settings
func DefaultLouvainOptions() LouvainOptions {
	return LouvainOptions{
		Resolution: 1.0,
		Epsilon:    1e-7,
		MaxPasses:  100,
		MaxLevels:  32,
	}
}

// LouvainDetector finds communities by multi-level greedy modularity
// optimization. Nodes are visited in index order on every sweep, which makes
// the result a pure function of the input order.
type LouvainDetector struct {
	opts   LouvainOptions
	logger *zap.Logger
}

// NewLouvainDetector creates a Louvain detector
func NewLouvainDetector(opts LouvainOptions, logger *zap.Logger) *LouvainDetector {
	defaults := DefaultLouvainOptions()
	if opts.Resolution <= 0 {
		opts.Resolution = defaults.Resolution
	}
	if opts.Epsilon < 0 {
		opts.Epsilon = defaults.Epsilon
	}
	if opts.MaxPasses < 1 {
		opts.MaxPasses = defaults.MaxPasses
	}
	if opts.MaxLevels < 1 {
		opts.MaxLevels = defaults.MaxLevels
	}
	return &LouvainDetector{opts: opts, logger: logger}
}

// Name returns the strategy name
func (d *LouvainDetector) Name() string {
	return StrategyLouvain
}

// Detect partitions the graph
func (d *LouvainDetector) Detect(ctx context.Context, g *aggregates.Graph) (*Partition, error) {
	ctx, span := tracer.Start(ctx, "LouvainDetector.Detect",
		trace.WithAttributes(
			attribute.Int("node_count", g.NodeCount()),
			attribute.Int("edge_count", g.EdgeCount()),
			attribute.Float64("resolution", d.opts.Resolution),
		),
	)
	defer span.End()

	n := g.NodeCount()
	labels := make([]int, n)
	for i := range labels {
		labels[i] = i
	}

	lg := newLevelGraph(g)
	if lg.total == 0 {
		span.AddEvent("no_edges")
		return NewPartition(g, labels, StrategyLouvain)
	}

	q := lg.modularity(identity(lg.size()), d.opts.Resolution)
	levels := 0
	for level := 0; level < d.opts.MaxLevels; level++ {
		comm, err := d.oneLevel(ctx, lg)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		dense, k := renumber(comm)
		newQ := lg.modularity(dense, d.opts.Resolution)
		if level > 0 && newQ-q < d.opts.Epsilon {
			break
		}

		for i, l := range labels {
			labels[i] = dense[l]
		}
		q = newQ
		levels++

		if k == lg.size() {
			break
		}
		lg = lg.aggregate(dense, k)
	}

	partition, err := NewPartition(g, labels, StrategyLouvain)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("levels", levels),
		attribute.Int("community_count", partition.NumCommunities()),
		attribute.Float64("modularity", partition.Modularity),
	)
	d.logger.Debug("Louvain detection completed",
		zap.Int("levels", levels),
		zap.Int("communityCount", partition.NumCommunities()),
		zap.Float64("modularity", partition.Modularity),
	)

	return partition, nil
}

// oneLevel runs local moving sweeps until no node moves or a sweep gains
// less than epsilon. It returns one community label per level node.
func (d *LouvainDetector) oneLevel(ctx context.Context, lg *levelGraph) ([]int, error) {
	n := lg.size()
	gamma := d.opts.Resolution

	comm := identity(n)
	tot := make([]float64, n)
	copy(tot, lg.degree)

	weightTo := make([]float64, n)
	seen := make([]bool, n)
	touched := make([]int, 0, 16)

	q := lg.modularity(comm, gamma)
	for pass := 0; pass < d.opts.MaxPasses; pass++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		moved := false
		for i := 0; i < n; i++ {
			current := comm[i]
			ki := lg.degree[i]

			touched = touched[:0]
			for _, e := range lg.adj[i] {
				c := comm[e.to]
				if !seen[c] {
					seen[c] = true
					touched = append(touched, c)
				}
				weightTo[c] += e.weight
			}

			tot[current] -= ki
			// stay on ties; otherwise the first community in neighbor order wins
			best := current
			bestGain := weightTo[current] - gamma*tot[current]*ki/lg.total
			for _, c := range touched {
				if c == current {
					continue
				}
				gain := weightTo[c] - gamma*tot[c]*ki/lg.total
				if gain > bestGain {
					best = c
					bestGain = gain
				}
			}
			tot[best] += ki
			comm[i] = best
			if best != current {
				moved = true
			}

			for _, c := range touched {
				weightTo[c] = 0
				seen[c] = false
			}
		}

		newQ := lg.modularity(comm, gamma)
		if !moved || newQ-q < d.opts.Epsilon {
			break
		}
		q = newQ
	}

	return comm, nil
}

type weightedEdge struct {
	to     int
	weight float64
}

// levelGraph is the weighted graph of one aggregation level. Self weights
// hold the total weight of edges folded into a node and count twice toward
// its degree.
type levelGraph struct {
	adj    [][]weightedEdge
	self   []float64
	degree []float64
	total  float64
}

func newLevelGraph(g *aggregates.Graph) *levelGraph {
	n := g.NodeCount()
	lg := &levelGraph{
		adj:    make([][]weightedEdge, n),
		self:   make([]float64, n),
		degree: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		neighbors := g.Neighbors(i)
		edges := make([]weightedEdge, len(neighbors))
		for k, j := range neighbors {
			edges[k] = weightedEdge{to: j, weight: 1}
		}
		lg.adj[i] = edges
		if g.HasSelfLoop(i) {
			lg.self[i] = 1
		}
		lg.degree[i] = float64(len(neighbors)) + 2*lg.self[i]
		lg.total += lg.degree[i]
	}
	return lg
}

func (lg *levelGraph) size() int {
	return len(lg.adj)
}

func (lg *levelGraph) modularity(comm []int, gamma float64) float64 {
	if lg.total == 0 {
		return 0
	}
	n := lg.size()
	internal := make([]float64, n)
	tot := make([]float64, n)
	for i := 0; i < n; i++ {
		c := comm[i]
		tot[c] += lg.degree[i]
		internal[c] += lg.self[i]
		for _, e := range lg.adj[i] {
			if comm[e.to] == c {
				internal[c] += e.weight / 2
			}
		}
	}

	m := lg.total / 2
	q := 0.0
	for c := 0; c < n; c++ {
		if tot[c] == 0 {
			continue
		}
		share := tot[c] / lg.total
		q += internal[c]/m - gamma*share*share
	}
	return q
}

// aggregate folds every community into a single node
func (lg *levelGraph) aggregate(comm []int, k int) *levelGraph {
	next := &levelGraph{
		adj:    make([][]weightedEdge, k),
		self:   make([]float64, k),
		degree: make([]float64, k),
		total:  lg.total,
	}

	links := make([]map[int]float64, k)
	for i := 0; i < lg.size(); i++ {
		ci := comm[i]
		next.self[ci] += lg.self[i]
		next.degree[ci] += lg.degree[i]
		for _, e := range lg.adj[i] {
			cj := comm[e.to]
			if cj == ci {
				next.self[ci] += e.weight / 2
				continue
			}
			if links[ci] == nil {
				links[ci] = make(map[int]float64)
			}
			links[ci][cj] += e.weight
		}
	}

	for c, targets := range links {
		edges := make([]weightedEdge, 0, len(targets))
		for to, w := range targets {
			edges = append(edges, weightedEdge{to: to, weight: w})
		}
		sort.Slice(edges, func(a, b int) bool { return edges[a].to < edges[b].to })
		next.adj[c] = edges
	}

	return next
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// renumber maps labels to 0..k-1 by first appearance
func renumber(labels []int) ([]int, int) {
	mapping := make(map[int]int)
	out := make([]int, len(labels))
	for i, l := range labels {
		c, ok := mapping[l]
		if !ok {
			c = len(mapping)
			mapping[l] = c
		}
		out[i] = c
	}
	return out, len(mapping)
}
