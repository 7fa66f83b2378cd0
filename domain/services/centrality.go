package services

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"reallynicca-backend/domain/core/aggregates"
	"reallynicca-backend/domain/core/valueobjects"
)

// CentralityTable maps every node of a graph to its betweenness score
type CentralityTable struct {
	graph  *aggregates.Graph
	scores []float64
}

// Score returns the score of an entity
func (t *CentralityTable) Score(id valueobjects.EntityID) (float64, bool) {
	idx, ok := t.graph.IndexOf(id)
	if !ok {
		return 0, false
	}
	return t.scores[idx], true
}

// ScoreAt returns the score stored at a dense index
func (t *CentralityTable) ScoreAt(idx int) float64 {
	return t.scores[idx]
}

// Len returns the number of scored nodes
func (t *CentralityTable) Len() int {
	return len(t.scores)
}

// ToMap returns the table keyed by entity id
func (t *CentralityTable) ToMap() map[valueobjects.EntityID]float64 {
	out := make(map[valueobjects.EntityID]float64, len(t.scores))
	for idx, score := range t.scores {
		out[t.graph.IDAt(idx)] = score
	}
	return out
}

// CentralityEngine computes betweenness centrality using Brandes' algorithm
type CentralityEngine struct {
	workers    int
	normalized bool
	logger     *zap.Logger
}

// NewCentralityEngine creates a centrality engine
func NewCentralityEngine(workers int, normalized bool, logger *zap.Logger) *CentralityEngine {
	if workers < 1 {
		workers = 1
	}
	return &CentralityEngine{
		workers:    workers,
		normalized: normalized,
		logger:     logger,
	}
}

// centralityBlockSize is the number of sources folded into one partial vector
const centralityBlockSize = 32

// Compute scores every node of the graph.
//
// Sources are grouped into fixed blocks of centralityBlockSize indices. Up to
// one block per worker runs at a time and finished blocks are added to the
// totals in block order, so the floating point result does not depend on the
// worker count.
func (e *CentralityEngine) Compute(ctx context.Context, g *aggregates.Graph) (*CentralityTable, error) {
	n := g.NodeCount()

	ctx, span := tracer.Start(ctx, "CentralityEngine.Compute",
		trace.WithAttributes(
			attribute.Int("node_count", n),
			attribute.Int("edge_count", g.EdgeCount()),
		),
	)
	defer span.End()

	table := &CentralityTable{graph: g, scores: make([]float64, n)}
	if n == 0 {
		return table, nil
	}

	blocks := (n + centralityBlockSize - 1) / centralityBlockSize
	workers := e.workers
	if workers > blocks {
		workers = blocks
	}

	partials := make([][]float64, workers)
	states := make([]*brandesState, workers)
	for w := range partials {
		partials[w] = make([]float64, n)
		states[w] = newBrandesState(n)
	}

	for first := 0; first < blocks; first += workers {
		wave := workers
		if first+wave > blocks {
			wave = blocks - first
		}

		group, gctx := errgroup.WithContext(ctx)
		for w := 0; w < wave; w++ {
			w := w
			lo := (first + w) * centralityBlockSize
			hi := lo + centralityBlockSize
			if hi > n {
				hi = n
			}
			group.Go(func() error {
				acc := partials[w]
				for i := range acc {
					acc[i] = 0
				}
				for s := lo; s < hi; s++ {
					if err := gctx.Err(); err != nil {
						return err
					}
					states[w].accumulate(g, s, acc)
				}
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			span.RecordError(err)
			return nil, err
		}

		for w := 0; w < wave; w++ {
			for i, v := range partials[w] {
				table.scores[i] += v
			}
		}
	}

	e.scale(table.scores, n)

	span.SetAttributes(
		attribute.Int("workers", workers),
		attribute.Int("blocks", blocks),
	)
	e.logger.Debug("Computed betweenness centrality",
		zap.Int("nodeCount", n),
		zap.Int("workers", workers),
		zap.Int("blocks", blocks),
		zap.Bool("normalized", e.normalized),
	)

	return table, nil
}

// scale halves the raw totals and applies normalization. Each unordered pair
// of endpoints is visited from both sides, hence the halving. Normalization
// divides by the number of unordered pairs that exclude the node itself.
func (e *CentralityEngine) scale(scores []float64, n int) {
	if e.normalized && n < 3 {
		for i := range scores {
			scores[i] = 0
		}
		return
	}

	factor := 0.5
	if e.normalized {
		factor = 1 / (float64(n-1) * float64(n-2))
	}
	for i := range scores {
		scores[i] *= factor
		if e.normalized {
			scores[i] = clamp01(scores[i])
		}
	}
}

// brandesState holds the per-source buffers reused by one worker
type brandesState struct {
	sigma []float64
	delta []float64
	dist  []int
	preds [][]int
	stack []int
	queue []int
}

func newBrandesState(n int) *brandesState {
	return &brandesState{
		sigma: make([]float64, n),
		delta: make([]float64, n),
		dist:  make([]int, n),
		preds: make([][]int, n),
		stack: make([]int, 0, n),
		queue: make([]int, 0, n),
	}
}

// accumulate runs a single-source BFS from s and adds the dependencies of
// every other node into acc
func (b *brandesState) accumulate(g *aggregates.Graph, s int, acc []float64) {
	for i := range b.sigma {
		b.sigma[i] = 0
		b.delta[i] = 0
		b.dist[i] = -1
		b.preds[i] = b.preds[i][:0]
	}
	b.stack = b.stack[:0]
	b.queue = append(b.queue[:0], s)
	b.sigma[s] = 1
	b.dist[s] = 0

	for head := 0; head < len(b.queue); head++ {
		v := b.queue[head]
		b.stack = append(b.stack, v)
		for _, w := range g.Neighbors(v) {
			if b.dist[w] < 0 {
				b.dist[w] = b.dist[v] + 1
				b.queue = append(b.queue, w)
			}
			if b.dist[w] == b.dist[v]+1 {
				b.sigma[w] += b.sigma[v]
				b.preds[w] = append(b.preds[w], v)
			}
		}
	}

	for i := len(b.stack) - 1; i >= 0; i-- {
		w := b.stack[i]
		coeff := (1 + b.delta[w]) / b.sigma[w]
		for _, v := range b.preds[w] {
			b.delta[v] += b.sigma[v] * coeff
		}
		if w != s {
			acc[w] += b.delta[w]
		}
	}
}

// RankedNode pairs an entity with its centrality score
type RankedNode struct {
	ID    valueobjects.EntityID `json:"id"`
	Label string                `json:"label"`
	Score float64               `json:"score"`
}

// TopCentral returns the n highest scoring nodes of the whole graph,
// ties broken by ascending id
func (t *CentralityTable) TopCentral(n int) []RankedNode {
	ranked := make([]RankedNode, 0, len(t.scores))
	for idx, score := range t.scores {
		entity := t.graph.Entity(idx)
		ranked = append(ranked, RankedNode{ID: entity.ID, Label: entity.Label, Score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ID < ranked[j].ID
	})
	if n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
