package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"reallynicca-backend/application/commands"
	"reallynicca-backend/application/commands/bus"
	"reallynicca-backend/application/ports"
	"reallynicca-backend/application/queries"
	querybus "reallynicca-backend/application/queries/bus"
	"reallynicca-backend/application/queries/handlers"
	domainconfig "reallynicca-backend/domain/config"
	"reallynicca-backend/domain/services"
	"reallynicca-backend/infrastructure/config"
	"reallynicca-backend/infrastructure/messaging/eventbridge"
	"reallynicca-backend/infrastructure/persistence/dynamodb"
	"reallynicca-backend/infrastructure/persistence/memory"
	"reallynicca-backend/infrastructure/persistence/neo4j"
	"reallynicca-backend/infrastructure/semantic"
	"reallynicca-backend/pkg/observability"
)

const neo4jConnectTimeout = 10 * time.Second

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	if cfg.LogLevel != "" {
		level, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
		}
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}

	return zapCfg.Build()
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideAnalysisConfig builds the analysis heuristics for the environment
func ProvideAnalysisConfig(cfg *config.Config) (*domainconfig.AnalysisConfig, error) {
	return cfg.AnalysisConfig()
}

// ProvideInMemoryCache creates the process-local cache shared by query
// results and embeddings
func ProvideInMemoryCache() (*InMemoryCache, func()) {
	cache := NewInMemoryCache(time.Minute)
	return cache, cache.Close
}

// ProvideSnapshotRepository selects the configured snapshot backend
func ProvideSnapshotRepository(
	ctx context.Context,
	cfg *config.Config,
	client *awsdynamodb.Client,
	logger *zap.Logger,
) (ports.GraphSnapshotRepository, func(), error) {
	noop := func() {}

	switch cfg.SnapshotBackend {
	case config.SnapshotBackendDynamoDB:
		return dynamodb.NewSnapshotRepository(client, cfg.DynamoDBTable, logger), noop, nil

	case config.SnapshotBackendNeo4j:
		neo4jClient, err := neo4j.NewClient(ctx,
			cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase,
			neo4jConnectTimeout,
		)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			if err := neo4jClient.Close(context.Background()); err != nil {
				logger.Warn("Failed to close Neo4j driver", zap.Error(err))
			}
		}
		return neo4j.NewSnapshotRepository(neo4jClient, logger), cleanup, nil

	case config.SnapshotBackendMemory:
		return memory.NewSnapshotRepository(), noop, nil

	default:
		return nil, nil, fmt.Errorf("unknown snapshot backend %q", cfg.SnapshotBackend)
	}
}

// ProvideEventPublisher creates the EventBridge publisher, or returns nil
// when events are disabled
func ProvideEventPublisher(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) ports.EventPublisher {
	if !cfg.EnableEvents {
		return nil
	}
	return eventbridge.NewPublisher(client, cfg.EventBusName, logger)
}

// ProvideSemanticScorer creates the embedding scorer, or returns nil when no
// API key is configured
func ProvideSemanticScorer(cfg *config.Config, cache ports.Cache, logger *zap.Logger) services.SemanticScorer {
	if !cfg.SemanticScorerEnabled() {
		logger.Info("Semantic scorer disabled, gaps use the default distance")
		return nil
	}

	scorerCfg := semantic.Config{
		APIKey:   cfg.OpenAIAPIKey,
		BaseURL:  cfg.OpenAIBaseURL,
		Model:    cfg.EmbeddingModel,
		CacheTTL: cfg.EmbeddingCacheTTL,
	}
	return semantic.NewOpenAIScorer(semantic.NewOpenAIClient(scorerCfg), scorerCfg, cache, logger)
}

// ProvideGapEngine creates the analysis engine
func ProvideGapEngine(analysisCfg *domainconfig.AnalysisConfig, scorer services.SemanticScorer, logger *zap.Logger) *services.GapEngine {
	detector := services.NewDefaultDetector(analysisCfg, logger)
	return services.NewGapEngine(analysisCfg, detector, scorer, logger)
}

// ProvideCollector creates the Prometheus collector
func ProvideCollector() *observability.Collector {
	return observability.NewCollector("reallynicca")
}

// ProvideQueryBus creates a query bus with registered handlers
func ProvideQueryBus(
	engine *services.GapEngine,
	snapshots ports.GraphSnapshotRepository,
	publisher ports.EventPublisher,
	cache ports.Cache,
	collector *observability.Collector,
	cfg *config.Config,
	logger *zap.Logger,
) (*querybus.QueryBus, error) {
	queryBus := querybus.NewQueryBus()

	metrics := querybus.NewMetricsMiddleware(&queryMetricsAdapter{collector: collector})
	caching := querybus.NewCachingMiddleware(cache, cfg.ResultCacheTTL)
	wrap := func(h querybus.QueryHandler) querybus.QueryHandler {
		return metrics.Wrap(caching.Wrap(recordAnalysis(collector, h)))
	}

	detectHandler := handlers.NewDetectGapsHandler(engine, logger)
	err := queryBus.Register(queries.DetectGapsQuery{}, wrap(querybus.QueryHandlerFunc(
		func(ctx context.Context, q querybus.Query) (interface{}, error) {
			query, ok := q.(queries.DetectGapsQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type %T", q)
			}
			result, err := detectHandler.Handle(ctx, query)
			if err != nil {
				return nil, err
			}
			return result, nil
		},
	)))
	if err != nil {
		return nil, err
	}

	storedHandler := handlers.NewDetectGapsForGraphHandler(engine, snapshots, publisher, logger)
	err = queryBus.Register(queries.DetectGapsForGraphQuery{}, wrap(querybus.QueryHandlerFunc(
		func(ctx context.Context, q querybus.Query) (interface{}, error) {
			query, ok := q.(queries.DetectGapsForGraphQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type %T", q)
			}
			result, err := storedHandler.Handle(ctx, query)
			if err != nil {
				return nil, err
			}
			return result, nil
		},
	)))
	if err != nil {
		return nil, err
	}

	return queryBus, nil
}

// ProvideCommandBus creates a command bus with registered handlers
func ProvideCommandBus(
	snapshots ports.GraphSnapshotRepository,
	cache ports.Cache,
	logger *zap.Logger,
) (*bus.CommandBus, error) {
	commandBus := bus.NewCommandBus(bus.LoggingMiddleware(logger))

	storeHandler := commands.NewStoreGraphHandler(snapshots, cache, logger)
	err := commandBus.Register(commands.StoreGraphCommand{}, bus.CommandHandlerFunc(
		func(ctx context.Context, cmd bus.Command) error {
			storeCmd, ok := cmd.(commands.StoreGraphCommand)
			if !ok {
				return fmt.Errorf("invalid command type %T", cmd)
			}
			return storeHandler.Handle(ctx, storeCmd)
		},
	))
	if err != nil {
		return nil, err
	}

	return commandBus, nil
}

// recordAnalysis reports every freshly computed gap report to the collector.
// Cached answers never reach it.
func recordAnalysis(collector *observability.Collector, next querybus.QueryHandler) querybus.QueryHandler {
	return querybus.QueryHandlerFunc(func(ctx context.Context, query querybus.Query) (interface{}, error) {
		start := time.Now()
		result, err := next.Handle(ctx, query)
		if err != nil {
			return nil, err
		}

		if res, ok := result.(*queries.DetectGapsResult); ok && res.Report != nil {
			collector.RecordAnalysis(
				string(res.Report.Status),
				time.Since(start),
				len(res.Report.Gaps),
				res.Report.Metadata.Warnings,
			)
		}
		return result, nil
	})
}

// queryMetricsAdapter adapts the Prometheus collector to the query bus
// metrics interface
type queryMetricsAdapter struct {
	collector *observability.Collector
}

var queryOutcomes = map[string]string{
	"query_count":   "received",
	"query_success": "success",
	"query_errors":  "error",
}

func (a *queryMetricsAdapter) StartTimer(metric, label string) querybus.Timer {
	return &queryTimer{collector: a.collector, query: label, start: time.Now()}
}

func (a *queryMetricsAdapter) Increment(metric, label string) {
	outcome, ok := queryOutcomes[metric]
	if !ok {
		return
	}
	a.collector.RecordQuery(label, outcome)
}

type queryTimer struct {
	collector *observability.Collector
	query     string
	start     time.Time
}

func (t *queryTimer) Stop() {
	t.collector.ObserveQueryDuration(t.query, time.Since(t.start))
}
