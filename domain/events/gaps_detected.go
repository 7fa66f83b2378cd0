package events

import (
	"time"
)

// DomainEvent is the base interface for all domain events
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

const (
	// EventTypeGapsDetected is emitted after a stored graph has been analyzed
	EventTypeGapsDetected = "gaps.detected"
)

// GapsDetected is raised when an analysis of a stored graph completes
type GapsDetected struct {
	BaseEvent
	GraphID           string   `json:"graph_id"`
	RunID             string   `json:"run_id"`
	Status            string   `json:"status"`
	NumGaps           int      `json:"num_gaps"`
	NumCommunities    int      `json:"num_communities"`
	TopGapScore       float64  `json:"top_gap_score"`
	CommunityStrategy string   `json:"community_strategy"`
	Warnings          []string `json:"warnings,omitempty"`
}

// NewGapsDetected creates a GapsDetected event
func NewGapsDetected(graphID, runID, status string, numGaps, numCommunities int, topGapScore float64, strategy string, warnings []string, timestamp time.Time) GapsDetected {
	return GapsDetected{
		BaseEvent: BaseEvent{
			AggregateID: graphID,
			EventType:   EventTypeGapsDetected,
			Timestamp:   timestamp,
			Version:     1,
		},
		GraphID:           graphID,
		RunID:             runID,
		Status:            status,
		NumGaps:           numGaps,
		NumCommunities:    numCommunities,
		TopGapScore:       topGapScore,
		CommunityStrategy: strategy,
		Warnings:          warnings,
	}
}
