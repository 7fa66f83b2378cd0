package eventbridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"reallynicca-backend/domain/events"
)

type MockPutEventsAPI struct {
	mock.Mock
}

func (m *MockPutEventsAPI) PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*eventbridge.PutEventsOutput), args.Error(1)
}

func testEvent(graphID string) events.DomainEvent {
	return events.NewGapsDetected(graphID, "run-1", "ok", 2, 3, 12.5, "louvain", nil, time.Unix(1700000000, 0).UTC())
}

func newTestPublisher(client PutEventsAPI) *Publisher {
	p := NewPublisher(client, "bus", zap.NewNop())
	p.backoff = time.Millisecond
	return p
}

func TestPublisher_Publish(t *testing.T) {
	ctx := context.Background()
	client := new(MockPutEventsAPI)
	client.On("PutEvents", ctx, mock.MatchedBy(func(in *eventbridge.PutEventsInput) bool {
		if len(in.Entries) != 1 {
			return false
		}
		entry := in.Entries[0]
		var detail map[string]any
		if err := json.Unmarshal([]byte(aws.ToString(entry.Detail)), &detail); err != nil {
			return false
		}
		return aws.ToString(entry.EventBusName) == "bus" &&
			aws.ToString(entry.Source) == EventSource &&
			aws.ToString(entry.DetailType) == events.EventTypeGapsDetected &&
			detail["graph_id"] == "g1" &&
			detail["num_gaps"] == float64(2)
	})).Return(&eventbridge.PutEventsOutput{}, nil)

	require.NoError(t, newTestPublisher(client).Publish(ctx, testEvent("g1")))
	client.AssertExpectations(t)
}

func TestPublisher_PublishBatchChunks(t *testing.T) {
	ctx := context.Background()
	client := new(MockPutEventsAPI)
	client.On("PutEvents", ctx, mock.Anything).Return(&eventbridge.PutEventsOutput{}, nil)

	batch := make([]events.DomainEvent, 23)
	for i := range batch {
		batch[i] = testEvent("g1")
	}

	require.NoError(t, newTestPublisher(client).PublishBatch(ctx, batch))
	client.AssertNumberOfCalls(t, "PutEvents", 3)
}

func TestPublisher_FailedEntries(t *testing.T) {
	ctx := context.Background()
	client := new(MockPutEventsAPI)
	client.On("PutEvents", ctx, mock.Anything).Return(&eventbridge.PutEventsOutput{
		FailedEntryCount: 1,
		Entries:          []types.PutEventsResultEntry{{ErrorCode: aws.String("InternalFailure")}},
	}, nil)

	err := newTestPublisher(client).Publish(ctx, testEvent("g1"))
	assert.ErrorContains(t, err, "1 events failed to publish")
	client.AssertNumberOfCalls(t, "PutEvents", 1)
}

func TestPublisher_RetriesThrottling(t *testing.T) {
	ctx := context.Background()
	client := new(MockPutEventsAPI)
	throttled := &smithy.GenericAPIError{Code: "ThrottlingException", Fault: smithy.FaultClient}
	client.On("PutEvents", ctx, mock.Anything).Return(nil, throttled).Once()
	client.On("PutEvents", ctx, mock.Anything).Return(&eventbridge.PutEventsOutput{}, nil).Once()

	require.NoError(t, newTestPublisher(client).Publish(ctx, testEvent("g1")))
	client.AssertNumberOfCalls(t, "PutEvents", 2)
}

func TestPublisher_GivesUpAfterRetries(t *testing.T) {
	ctx := context.Background()
	client := new(MockPutEventsAPI)
	client.On("PutEvents", ctx, mock.Anything).Return(nil, &smithy.GenericAPIError{Code: "ThrottlingException"})

	err := newTestPublisher(client).Publish(ctx, testEvent("g1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	client.AssertNumberOfCalls(t, "PutEvents", 3)
}

func TestPublisher_DoesNotRetryClientErrors(t *testing.T) {
	ctx := context.Background()
	client := new(MockPutEventsAPI)
	client.On("PutEvents", ctx, mock.Anything).Return(nil, errors.New("access denied"))

	err := newTestPublisher(client).Publish(ctx, testEvent("g1"))
	require.Error(t, err)
	client.AssertNumberOfCalls(t, "PutEvents", 1)
}

func TestPublisher_EmptyBatch(t *testing.T) {
	client := new(MockPutEventsAPI)
	require.NoError(t, newTestPublisher(client).PublishBatch(context.Background(), nil))
	client.AssertNotCalled(t, "PutEvents", mock.Anything, mock.Anything)
}
