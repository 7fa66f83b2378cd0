package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"reallynicca-backend/application/ports"
	"reallynicca-backend/domain/core/entities"
	"reallynicca-backend/domain/core/valueobjects"
	pkgerrors "reallynicca-backend/pkg/errors"
)

const (
	loadGraphCypher = `
MATCH (g:Graph {id: $graphID})
RETURN g.id AS id`

	loadEntitiesCypher = `
MATCH (e:Entity {graph_id: $graphID})
RETURN e.id AS id, e.label AS label, e.type AS type
ORDER BY e.position`

	loadRelationshipsCypher = `
MATCH (a:Entity {graph_id: $graphID})-[r:RELATES]->(b:Entity {graph_id: $graphID})
RETURN a.id AS from, b.id AS to, r.label AS label
ORDER BY r.position`

	deleteEntitiesCypher = `
MATCH (e:Entity {graph_id: $graphID})
DETACH DELETE e`

	mergeGraphCypher = `
MERGE (g:Graph {id: $graphID})
SET g.node_count = $nodeCount,
    g.edge_count = $edgeCount,
    g.updated_at = $updatedAt`

	createEntitiesCypher = `
UNWIND $entities AS n
CREATE (e:Entity {graph_id: $graphID, id: n.id})
SET e.label = n.label,
    e.type = n.type,
    e.position = n.position`

	createRelationshipsCypher = `
UNWIND $relationships AS r
MATCH (a:Entity {graph_id: $graphID, id: r.from})
MATCH (b:Entity {graph_id: $graphID, id: r.to})
CREATE (a)-[e:RELATES {label: r.label, position: r.position}]->(b)`
)

// Client holds the driver and target database
type Client struct {
	Driver   neo4j.DriverWithContext
	Database string
}

// NewClient connects to Neo4j and verifies connectivity
func NewClient(ctx context.Context, uri, user, password, database string, timeout time.Duration) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""), func(cfg *neo4j.Config) {
		cfg.SocketConnectTimeout = timeout
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: init driver: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j: verify connectivity: %w", err)
	}

	return &Client{Driver: driver, Database: database}, nil
}

// Close releases the driver
func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.Driver == nil {
		return nil
	}
	return c.Driver.Close(ctx)
}

// SnapshotRepository stores each graph as (:Graph) plus (:Entity) nodes
// scoped by graph_id and [:RELATES] relationships between them
type SnapshotRepository struct {
	client *Client
	logger *zap.Logger
}

// NewSnapshotRepository creates a new Neo4j snapshot repository
func NewSnapshotRepository(client *Client, logger *zap.Logger) *SnapshotRepository {
	return &SnapshotRepository{client: client, logger: logger}
}

// LoadSnapshot reads the entities and relationships of a graph in stored order
func (r *SnapshotRepository) LoadSnapshot(ctx context.Context, graphID string) (*ports.GraphSnapshot, error) {
	session := r.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: r.client.Database,
	})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		params := map[string]any{"graphID": graphID}

		res, err := tx.Run(ctx, loadGraphCypher, params)
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			if err := res.Err(); err != nil {
				return nil, err
			}
			return nil, nil
		}

		snapshot := &ports.GraphSnapshot{
			GraphID:       graphID,
			Entities:      []entities.Entity{},
			Relationships: []entities.Relationship{},
		}

		res, err = tx.Run(ctx, loadEntitiesCypher, params)
		if err != nil {
			return nil, err
		}
		for res.Next(ctx) {
			entity, err := entityFromRecord(res.Record())
			if err != nil {
				return nil, err
			}
			snapshot.Entities = append(snapshot.Entities, entity)
		}
		if err := res.Err(); err != nil {
			return nil, err
		}

		res, err = tx.Run(ctx, loadRelationshipsCypher, params)
		if err != nil {
			return nil, err
		}
		for res.Next(ctx) {
			rel, err := relationshipFromRecord(res.Record())
			if err != nil {
				return nil, err
			}
			snapshot.Relationships = append(snapshot.Relationships, rel)
		}
		if err := res.Err(); err != nil {
			return nil, err
		}

		return snapshot, nil
	})
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("load snapshot", err)
	}

	snapshot, _ := result.(*ports.GraphSnapshot)
	if snapshot == nil {
		return nil, pkgerrors.NewNotFoundError("graph " + graphID)
	}

	r.logger.Debug("Graph snapshot loaded from Neo4j",
		zap.String("graphID", graphID),
		zap.Int("nodeCount", len(snapshot.Entities)),
		zap.Int("edgeCount", len(snapshot.Relationships)),
	)
	return snapshot, nil
}

// SaveSnapshot replaces the graph in a single write transaction
func (r *SnapshotRepository) SaveSnapshot(ctx context.Context, snapshot *ports.GraphSnapshot) error {
	if snapshot == nil || snapshot.GraphID == "" {
		return pkgerrors.NewValidationError("snapshot requires a graph id")
	}

	session := r.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: r.client.Database,
	})
	defer session.Close(ctx)

	statements := buildSaveStatements(snapshot, time.Now().UTC())

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, stmt := range statements {
			res, err := tx.Run(ctx, stmt.cypher, stmt.params)
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return pkgerrors.NewDatabaseError("save snapshot", err)
	}

	r.logger.Info("Graph snapshot saved to Neo4j",
		zap.String("graphID", snapshot.GraphID),
		zap.Int("nodeCount", len(snapshot.Entities)),
		zap.Int("edgeCount", len(snapshot.Relationships)),
	)
	return nil
}

type statement struct {
	cypher string
	params map[string]any
}

func buildSaveStatements(snapshot *ports.GraphSnapshot, now time.Time) []statement {
	graphParam := map[string]any{"graphID": snapshot.GraphID}

	statements := []statement{
		{cypher: deleteEntitiesCypher, params: graphParam},
		{cypher: mergeGraphCypher, params: map[string]any{
			"graphID":   snapshot.GraphID,
			"nodeCount": int64(len(snapshot.Entities)),
			"edgeCount": int64(len(snapshot.Relationships)),
			"updatedAt": now.Format(time.RFC3339Nano),
		}},
	}

	if len(snapshot.Entities) > 0 {
		rows := make([]map[string]any, len(snapshot.Entities))
		for i, e := range snapshot.Entities {
			rows[i] = map[string]any{
				"id":       e.ID.Int64(),
				"label":    e.Label,
				"type":     e.Type,
				"position": int64(i),
			}
		}
		statements = append(statements, statement{
			cypher: createEntitiesCypher,
			params: map[string]any{"graphID": snapshot.GraphID, "entities": rows},
		})
	}

	if len(snapshot.Relationships) > 0 {
		rows := make([]map[string]any, len(snapshot.Relationships))
		for i, rel := range snapshot.Relationships {
			rows[i] = map[string]any{
				"from":     rel.From.Int64(),
				"to":       rel.To.Int64(),
				"label":    rel.Label,
				"position": int64(i),
			}
		}
		statements = append(statements, statement{
			cypher: createRelationshipsCypher,
			params: map[string]any{"graphID": snapshot.GraphID, "relationships": rows},
		})
	}

	return statements
}

func entityFromRecord(record *neo4j.Record) (entities.Entity, error) {
	id, err := int64Value(record, "id")
	if err != nil {
		return entities.Entity{}, err
	}
	return entities.Entity{
		ID:    valueobjects.EntityID(id),
		Label: stringValue(record, "label"),
		Type:  stringValue(record, "type"),
	}, nil
}

func relationshipFromRecord(record *neo4j.Record) (entities.Relationship, error) {
	from, err := int64Value(record, "from")
	if err != nil {
		return entities.Relationship{}, err
	}
	to, err := int64Value(record, "to")
	if err != nil {
		return entities.Relationship{}, err
	}
	return entities.Relationship{
		From:  valueobjects.EntityID(from),
		To:    valueobjects.EntityID(to),
		Label: stringValue(record, "label"),
	}, nil
}

func int64Value(record *neo4j.Record, key string) (int64, error) {
	value, ok := record.Get(key)
	if !ok {
		return 0, fmt.Errorf("record has no %q field", key)
	}
	id, ok := value.(int64)
	if !ok {
		return 0, fmt.Errorf("field %q is %T, not an integer", key, value)
	}
	return id, nil
}

func stringValue(record *neo4j.Record, key string) string {
	value, ok := record.Get(key)
	if !ok || value == nil {
		return ""
	}
	s, _ := value.(string)
	return s
}
