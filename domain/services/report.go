package services

import (
	"fmt"
	"time"
)

// ReportStatus describes how an analysis run ended
type ReportStatus string

const (
	StatusOK       ReportStatus = "ok"
	StatusTooSmall ReportStatus = "too_small"
)

// GapReport is the outcome of one analysis run
type GapReport struct {
	Status   ReportStatus   `json:"status"`
	Message  string         `json:"message,omitempty"`
	Gaps     []Gap          `json:"gaps"`
	Metadata ReportMetadata `json:"metadata"`
}

// ReportMetadata carries run-level totals and annotations
type ReportMetadata struct {
	RunID             string       `json:"run_id"`
	TotalNodes        int          `json:"total_nodes"`
	TotalEdges        int          `json:"total_edges"`
	UniqueEdges       int          `json:"unique_edges"`
	NumCommunities    int          `json:"num_communities"`
	NumGaps           int          `json:"num_gaps_detected"`
	AverageGapScore   float64      `json:"average_gap_score"`
	CommunityStrategy string       `json:"community_strategy,omitempty"`
	Modularity        float64      `json:"modularity"`
	CommunitySizes    []int        `json:"community_sizes,omitempty"`
	CentralNodes      []RankedNode `json:"central_nodes,omitempty"`
	Warnings          []string     `json:"warnings,omitempty"`
	AnalyzedAt        time.Time    `json:"analyzed_at"`
	DurationMS        int64        `json:"duration_ms"`
}

// TopGapScore returns the score of the highest ranked gap, or 0
func (r *GapReport) TopGapScore() float64 {
	if len(r.Gaps) == 0 {
		return 0
	}
	return r.Gaps[0].GapScore
}

// HasWarning reports whether the run carries a warning code
func (r *GapReport) HasWarning(code string) bool {
	for _, w := range r.Metadata.Warnings {
		if w == code {
			return true
		}
	}
	return false
}

func averageGapScore(gaps []Gap) float64 {
	if len(gaps) == 0 {
		return 0
	}
	sum := 0.0
	for _, gap := range gaps {
		sum += gap.GapScore
	}
	return sum / float64(len(gaps))
}

func tooSmallMessage(minNodes, minEdges int) string {
	return fmt.Sprintf("Graph too small for gap analysis (need %d+ nodes, %d+ edges)", minNodes, minEdges)
}
