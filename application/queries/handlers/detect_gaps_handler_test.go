package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"reallynicca-backend/application/ports"
	"reallynicca-backend/application/queries"
	"reallynicca-backend/domain/config"
	"reallynicca-backend/domain/events"
	"reallynicca-backend/domain/services"
	pkgerrors "reallynicca-backend/pkg/errors"
	"reallynicca-backend/pkg/fixtures"
)

type MockSnapshotRepository struct {
	mock.Mock
}

func (m *MockSnapshotRepository) LoadSnapshot(ctx context.Context, graphID string) (*ports.GraphSnapshot, error) {
	args := m.Called(ctx, graphID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.GraphSnapshot), args.Error(1)
}

func (m *MockSnapshotRepository) SaveSnapshot(ctx context.Context, snapshot *ports.GraphSnapshot) error {
	args := m.Called(ctx, snapshot)
	return args.Error(0)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	args := m.Called(ctx, batch)
	return args.Error(0)
}

func newTestEngine() *services.GapEngine {
	cfg := config.DefaultAnalysisConfig()
	cfg.CentralityWorkers = 2
	return services.NewGapEngine(cfg, services.NewDefaultDetector(cfg, zap.NewNop()), nil, zap.NewNop())
}

func twoCliquesSnapshot(graphID string) *ports.GraphSnapshot {
	nodes, edges := fixtures.TwoCliquesWithBridge()
	return &ports.GraphSnapshot{GraphID: graphID, Entities: nodes, Relationships: edges}
}

func TestDetectGapsHandler_Handle(t *testing.T) {
	nodes, edges := fixtures.TwoCliquesWithBridge()
	handler := NewDetectGapsHandler(newTestEngine(), zap.NewNop())

	result, err := handler.Handle(context.Background(), queries.DetectGapsQuery{
		Entities:      nodes,
		Relationships: edges,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Report)

	assert.Empty(t, result.GraphID)
	assert.Equal(t, services.StatusOK, result.Report.Status)
	require.Len(t, result.Report.Gaps, 1)
	assert.InDelta(t, 22.5, result.Report.Gaps[0].GapScore, 1e-9)
}

func TestDetectGapsHandler_AppliesOverrides(t *testing.T) {
	nodes, edges := fixtures.TwoCliquesWithBridge()
	handler := NewDetectGapsHandler(newTestEngine(), zap.NewNop())

	minSize := 5
	result, err := handler.Handle(context.Background(), queries.DetectGapsQuery{
		Entities:      nodes,
		Relationships: edges,
		Options:       queries.AnalysisOptions{MinClusterSize: &minSize},
	})
	require.NoError(t, err)

	assert.Equal(t, services.StatusOK, result.Report.Status)
	assert.Empty(t, result.Report.Gaps)
}

func TestDetectGapsHandler_RejectsInvalidOptions(t *testing.T) {
	handler := NewDetectGapsHandler(newTestEngine(), zap.NewNop())

	threshold := 1.5
	_, err := handler.Handle(context.Background(), queries.DetectGapsQuery{
		Options: queries.AnalysisOptions{ConnectivityThreshold: &threshold},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestDetectGapsHandler_MalformedInput(t *testing.T) {
	nodes, edges := fixtures.NewSnapshotBuilder().
		WithClique(1, 2, 3).
		WithDanglingEdge(3, 42).
		Build()
	handler := NewDetectGapsHandler(newTestEngine(), zap.NewNop())

	_, err := handler.Handle(context.Background(), queries.DetectGapsQuery{Entities: nodes, Relationships: edges})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsMalformedInput(err))
}

func TestDetectGapsForGraphHandler_Handle(t *testing.T) {
	ctx := context.Background()
	repo := new(MockSnapshotRepository)
	publisher := new(MockEventPublisher)

	repo.On("LoadSnapshot", ctx, "graph-1").Return(twoCliquesSnapshot("graph-1"), nil)
	publisher.On("Publish", ctx, mock.MatchedBy(func(event events.DomainEvent) bool {
		detected, ok := event.(events.GapsDetected)
		return ok &&
			detected.GraphID == "graph-1" &&
			detected.NumGaps == 1 &&
			detected.NumCommunities == 2 &&
			detected.Status == string(services.StatusOK)
	})).Return(nil)

	handler := NewDetectGapsForGraphHandler(newTestEngine(), repo, publisher, zap.NewNop())
	result, err := handler.Handle(ctx, queries.DetectGapsForGraphQuery{GraphID: "graph-1"})
	require.NoError(t, err)

	assert.Equal(t, "graph-1", result.GraphID)
	assert.Len(t, result.Report.Gaps, 1)
	repo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestDetectGapsForGraphHandler_PublishFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	repo := new(MockSnapshotRepository)
	publisher := new(MockEventPublisher)

	repo.On("LoadSnapshot", ctx, "graph-1").Return(twoCliquesSnapshot("graph-1"), nil)
	publisher.On("Publish", ctx, mock.Anything).Return(errors.New("bus unavailable"))

	handler := NewDetectGapsForGraphHandler(newTestEngine(), repo, publisher, zap.NewNop())
	result, err := handler.Handle(ctx, queries.DetectGapsForGraphQuery{GraphID: "graph-1"})
	require.NoError(t, err)

	assert.Equal(t, services.StatusOK, result.Report.Status)
	publisher.AssertNumberOfCalls(t, "Publish", 1)
}

func TestDetectGapsForGraphHandler_NilPublisher(t *testing.T) {
	ctx := context.Background()
	repo := new(MockSnapshotRepository)
	repo.On("LoadSnapshot", ctx, "graph-1").Return(twoCliquesSnapshot("graph-1"), nil)

	handler := NewDetectGapsForGraphHandler(newTestEngine(), repo, nil, zap.NewNop())
	result, err := handler.Handle(ctx, queries.DetectGapsForGraphQuery{GraphID: "graph-1"})
	require.NoError(t, err)
	assert.NotNil(t, result.Report)
}

func TestDetectGapsForGraphHandler_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := new(MockSnapshotRepository)
	publisher := new(MockEventPublisher)

	repo.On("LoadSnapshot", ctx, "missing").Return(nil, pkgerrors.NewNotFoundError("graph missing"))

	handler := NewDetectGapsForGraphHandler(newTestEngine(), repo, publisher, zap.NewNop())
	_, err := handler.Handle(ctx, queries.DetectGapsForGraphQuery{GraphID: "missing"})
	require.Error(t, err)

	assert.True(t, pkgerrors.IsNotFound(err))
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestDetectGapsForGraphHandler_InvalidGraphID(t *testing.T) {
	repo := new(MockSnapshotRepository)
	handler := NewDetectGapsForGraphHandler(newTestEngine(), repo, nil, zap.NewNop())

	tests := []string{"", "a/b", "GRAPH#1"}
	for _, graphID := range tests {
		_, err := handler.Handle(context.Background(), queries.DetectGapsForGraphQuery{GraphID: graphID})
		require.Error(t, err, graphID)
		assert.True(t, pkgerrors.IsValidation(err), graphID)
	}
	repo.AssertNotCalled(t, "LoadSnapshot", mock.Anything, mock.Anything)
}
