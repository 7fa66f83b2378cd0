package services

import (
	"sort"

	"reallynicca-backend/domain/core/valueobjects"
)

// TopBridges ranks the union of two node sets by centrality and returns the
// first topN ids. Ties are broken by ascending id. Ids missing from the table
// are ignored.
func TopBridges(table *CentralityTable, nodes1, nodes2 []valueobjects.EntityID, topN int) []valueobjects.EntityID {
	if topN <= 0 || table == nil {
		return []valueobjects.EntityID{}
	}

	seen := make(map[valueobjects.EntityID]struct{}, len(nodes1)+len(nodes2))
	candidates := make([]RankedNode, 0, len(nodes1)+len(nodes2))
	for _, set := range [][]valueobjects.EntityID{nodes1, nodes2} {
		for _, id := range set {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			score, ok := table.Score(id)
			if !ok {
				continue
			}
			candidates = append(candidates, RankedNode{ID: id, Score: score})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ID < candidates[j].ID
	})

	if topN > len(candidates) {
		topN = len(candidates)
	}
	out := make([]valueobjects.EntityID, topN)
	for i := 0; i < topN; i++ {
		out[i] = candidates[i].ID
	}
	return out
}
