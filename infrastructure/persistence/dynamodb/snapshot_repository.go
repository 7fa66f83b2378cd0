package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"reallynicca-backend/application/ports"
	"reallynicca-backend/domain/core/entities"
	"reallynicca-backend/domain/core/valueobjects"
	pkgerrors "reallynicca-backend/pkg/errors"
)

const (
	itemTypeGraph        = "GRAPH"
	itemTypeEntity       = "ENTITY"
	itemTypeRelationship = "RELATIONSHIP"

	metadataSK = "METADATA"

	// DynamoDB rejects batches larger than this
	maxBatchWriteItems = 25
	maxBatchAttempts   = 5
)

// DBClient is the subset of the DynamoDB API the snapshot repository uses
type DBClient interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// SnapshotRepository stores graph snapshots in a single-table layout.
// Every item of a graph shares the partition key GRAPH#<graphID>.
type SnapshotRepository struct {
	client    DBClient
	tableName string
	logger    *zap.Logger
	backoff   time.Duration
}

// NewSnapshotRepository creates a new DynamoDB snapshot repository
func NewSnapshotRepository(client DBClient, tableName string, logger *zap.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
		backoff:   50 * time.Millisecond,
	}
}

// snapshotItem is the DynamoDB item structure shared by all item types
type snapshotItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	GraphID    string `dynamodbav:"GraphID"`

	// Entity and relationship attributes
	Position int    `dynamodbav:"Position,omitempty"`
	EntityID int64  `dynamodbav:"EntityID,omitempty"`
	FromID   int64  `dynamodbav:"FromID,omitempty"`
	ToID     int64  `dynamodbav:"ToID,omitempty"`
	Label    string `dynamodbav:"Label,omitempty"`
	Kind     string `dynamodbav:"Kind,omitempty"`

	// Graph metadata attributes
	NodeCount int    `dynamodbav:"NodeCount,omitempty"`
	EdgeCount int    `dynamodbav:"EdgeCount,omitempty"`
	UpdatedAt string `dynamodbav:"UpdatedAt,omitempty"`
}

func graphPK(graphID string) string {
	return "GRAPH#" + graphID
}

func entitySK(id valueobjects.EntityID) string {
	return fmt.Sprintf("ENTITY#%d", id.Int64())
}

func relationshipSK(position int) string {
	return fmt.Sprintf("REL#%08d", position)
}

// LoadSnapshot reads every item of the graph partition
func (r *SnapshotRepository) LoadSnapshot(ctx context.Context, graphID string) (*ports.GraphSnapshot, error) {
	input, err := r.partitionQuery(graphID, false)
	if err != nil {
		return nil, err
	}

	var (
		found         bool
		entityItems   []snapshotItem
		relationships []entities.Relationship
	)

	paginator := dynamodb.NewQueryPaginator(r.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, mapError("load snapshot", err)
		}

		var items []snapshotItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot items: %w", err)
		}

		for _, item := range items {
			switch item.EntityType {
			case itemTypeGraph:
				found = true
			case itemTypeEntity:
				entityItems = append(entityItems, item)
			case itemTypeRelationship:
				relationships = append(relationships, entities.Relationship{
					From:  valueobjects.EntityID(item.FromID),
					To:    valueobjects.EntityID(item.ToID),
					Label: item.Label,
				})
			}
		}
	}

	if !found {
		return nil, pkgerrors.NewNotFoundError("graph " + graphID)
	}

	// Entity sort keys order by id text; restore the stored order
	sort.SliceStable(entityItems, func(i, j int) bool {
		return entityItems[i].Position < entityItems[j].Position
	})
	nodes := make([]entities.Entity, len(entityItems))
	for i, item := range entityItems {
		nodes[i] = entities.Entity{
			ID:    valueobjects.EntityID(item.EntityID),
			Label: item.Label,
			Type:  item.Kind,
		}
	}
	if relationships == nil {
		relationships = []entities.Relationship{}
	}

	r.logger.Debug("Graph snapshot loaded from DynamoDB",
		zap.String("graphID", graphID),
		zap.Int("nodeCount", len(nodes)),
		zap.Int("edgeCount", len(relationships)),
	)

	return &ports.GraphSnapshot{
		GraphID:       graphID,
		Entities:      nodes,
		Relationships: relationships,
	}, nil
}

// SaveSnapshot writes the graph and removes items left over from a
// previous version. The replacement is not atomic.
func (r *SnapshotRepository) SaveSnapshot(ctx context.Context, snapshot *ports.GraphSnapshot) error {
	if snapshot == nil || snapshot.GraphID == "" {
		return pkgerrors.NewValidationError("snapshot requires a graph id")
	}

	existing, err := r.existingKeys(ctx, snapshot.GraphID)
	if err != nil {
		return err
	}

	items := r.buildItems(snapshot)
	writes := make([]types.WriteRequest, 0, len(items))
	for _, item := range items {
		av, err := attributevalue.MarshalMap(item)
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot item: %w", err)
		}
		writes = append(writes, types.WriteRequest{PutRequest: &types.PutRequest{Item: av}})
		delete(existing, item.SK)
	}

	stale := make([]string, 0, len(existing))
	for sk := range existing {
		stale = append(stale, sk)
	}
	sort.Strings(stale)
	for _, sk := range stale {
		writes = append(writes, types.WriteRequest{DeleteRequest: &types.DeleteRequest{
			Key: map[string]types.AttributeValue{
				"PK": &types.AttributeValueMemberS{Value: graphPK(snapshot.GraphID)},
				"SK": &types.AttributeValueMemberS{Value: sk},
			},
		}})
	}

	for start := 0; start < len(writes); start += maxBatchWriteItems {
		end := start + maxBatchWriteItems
		if end > len(writes) {
			end = len(writes)
		}
		if err := r.batchWrite(ctx, writes[start:end]); err != nil {
			return err
		}
	}

	r.logger.Info("Graph snapshot saved to DynamoDB",
		zap.String("graphID", snapshot.GraphID),
		zap.Int("nodeCount", len(snapshot.Entities)),
		zap.Int("edgeCount", len(snapshot.Relationships)),
		zap.Int("staleItems", len(stale)),
	)
	return nil
}

func (r *SnapshotRepository) buildItems(snapshot *ports.GraphSnapshot) []snapshotItem {
	pk := graphPK(snapshot.GraphID)
	items := make([]snapshotItem, 0, len(snapshot.Entities)+len(snapshot.Relationships)+1)

	items = append(items, snapshotItem{
		PK:         pk,
		SK:         metadataSK,
		EntityType: itemTypeGraph,
		GraphID:    snapshot.GraphID,
		NodeCount:  len(snapshot.Entities),
		EdgeCount:  len(snapshot.Relationships),
		UpdatedAt:  time.Now().UTC().Format(time.RFC3339),
	})

	for i, entity := range snapshot.Entities {
		items = append(items, snapshotItem{
			PK:         pk,
			SK:         entitySK(entity.ID),
			EntityType: itemTypeEntity,
			GraphID:    snapshot.GraphID,
			Position:   i,
			EntityID:   entity.ID.Int64(),
			Label:      entity.Label,
			Kind:       entity.Type,
		})
	}

	for i, rel := range snapshot.Relationships {
		items = append(items, snapshotItem{
			PK:         pk,
			SK:         relationshipSK(i),
			EntityType: itemTypeRelationship,
			GraphID:    snapshot.GraphID,
			Position:   i,
			FromID:     rel.From.Int64(),
			ToID:       rel.To.Int64(),
			Label:      rel.Label,
		})
	}

	return items
}

// existingKeys returns the sort keys currently stored for a graph
func (r *SnapshotRepository) existingKeys(ctx context.Context, graphID string) (map[string]struct{}, error) {
	input, err := r.partitionQuery(graphID, true)
	if err != nil {
		return nil, err
	}

	keys := make(map[string]struct{})
	paginator := dynamodb.NewQueryPaginator(r.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, mapError("list snapshot keys", err)
		}
		for _, item := range page.Items {
			if sk, ok := item["SK"].(*types.AttributeValueMemberS); ok {
				keys[sk.Value] = struct{}{}
			}
		}
	}
	return keys, nil
}

func (r *SnapshotRepository) partitionQuery(graphID string, keysOnly bool) (*dynamodb.QueryInput, error) {
	builder := expression.NewBuilder().
		WithKeyCondition(expression.Key("PK").Equal(expression.Value(graphPK(graphID))))
	if keysOnly {
		builder = builder.WithProjection(expression.NamesList(expression.Name("PK"), expression.Name("SK")))
	}

	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query expression: %w", err)
	}

	return &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}, nil
}

// batchWrite sends one batch and retries unprocessed items with backoff
func (r *SnapshotRepository) batchWrite(ctx context.Context, writes []types.WriteRequest) error {
	pending := writes
	for attempt := 0; attempt < maxBatchAttempts && len(pending) > 0; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.backoff * time.Duration(1<<uint(attempt-1))):
			}
		}

		output, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{r.tableName: pending},
		})
		if err != nil {
			return mapError("save snapshot", err)
		}

		pending = nil
		if output != nil && output.UnprocessedItems != nil {
			pending = output.UnprocessedItems[r.tableName]
		}
	}

	if len(pending) > 0 {
		r.logger.Error("Batch write left unprocessed items", zap.Int("unprocessed", len(pending)))
		return pkgerrors.NewUnavailableError("dynamodb").
			WithDetail("unprocessed_items", len(pending))
	}
	return nil
}

// mapError converts DynamoDB API errors to application errors
func mapError(operation string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "ProvisionedThroughputExceededException", "RequestLimitExceeded", "ThrottlingException":
			return pkgerrors.NewUnavailableError("dynamodb").WithCause(err)
		case "ResourceNotFoundException":
			return pkgerrors.NewDatabaseError(operation, err).WithDetail("reason", "table not found")
		}
	}

	return pkgerrors.NewDatabaseError(operation, err)
}
