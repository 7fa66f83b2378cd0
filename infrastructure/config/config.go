package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	domainconfig "reallynicca-backend/domain/config"
)

// Snapshot store backends
const (
	SnapshotBackendMemory   = "memory"
	SnapshotBackendDynamoDB = "dynamodb"
	SnapshotBackendNeo4j    = "neo4j"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string `yaml:"server_address"`
	Environment   string `yaml:"environment"`

	// Snapshot storage
	SnapshotBackend string `yaml:"snapshot_backend"`

	// AWS configuration
	AWSRegion     string `yaml:"aws_region"`
	DynamoDBTable string `yaml:"dynamodb_table"`
	EventBusName  string `yaml:"event_bus_name"`

	// Neo4j configuration
	Neo4jURI      string `yaml:"neo4j_uri"`
	Neo4jUser     string `yaml:"neo4j_user"`
	Neo4jPassword string `yaml:"neo4j_password"`
	Neo4jDatabase string `yaml:"neo4j_database"`

	// Semantic scorer
	OpenAIAPIKey         string `yaml:"openai_api_key"`
	OpenAIBaseURL        string `yaml:"openai_base_url"`
	EmbeddingModel       string `yaml:"embedding_model"`
	EmbeddingCacheTTL    int    `yaml:"embedding_cache_ttl"` // seconds
	ScorerTimeoutSeconds int    `yaml:"scorer_timeout_seconds"`

	// Lambda configuration
	IsLambda bool `yaml:"is_lambda"`

	// Query result cache TTL in seconds; 0 disables caching
	ResultCacheTTL int `yaml:"result_cache_ttl"`

	// Request limits
	MaxRequestBytes int64 `yaml:"max_request_bytes"`

	// Logging
	LogLevel string `yaml:"log_level"`

	// Tracing
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// Feature flags
	EnableMetrics bool `yaml:"enable_metrics"`
	EnableTracing bool `yaml:"enable_tracing"`
	EnableCORS    bool `yaml:"enable_cors"`
	EnableEvents  bool `yaml:"enable_events"`

	// Analysis overrides; zero values keep the environment defaults
	Analysis AnalysisOverrides `yaml:"analysis"`
}

// AnalysisOverrides adjusts the analysis heuristics from configuration
type AnalysisOverrides struct {
	MinClusterSize        int     `yaml:"min_cluster_size"`
	ConnectivityThreshold float64 `yaml:"connectivity_threshold"`
	MaxGaps               int     `yaml:"max_gaps"`
	TopBridges            int     `yaml:"top_bridges"`
	MinNodes              int     `yaml:"min_nodes"`
	MinEdges              int     `yaml:"min_edges"`
	CentralityWorkers     int     `yaml:"centrality_workers"`
	DisableFallback       bool    `yaml:"disable_fallback"`
}

// LoadConfig loads configuration from an optional YAML file named by
// CONFIG_FILE, then applies environment variables on top
func LoadConfig() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load is an alias for LoadConfig
func Load() (*Config, error) {
	return LoadConfig()
}

func defaults() *Config {
	return &Config{
		ServerAddress:     ":8080",
		Environment:       "development",
		SnapshotBackend:   SnapshotBackendMemory,
		AWSRegion:         "us-west-2",
		DynamoDBTable:     "reallynicca-graphs",
		EventBusName:      "reallynicca-events",
		Neo4jDatabase:     "neo4j",
		EmbeddingModel:    "text-embedding-3-small",
		EmbeddingCacheTTL: 3600,
		ResultCacheTTL:    300,
		MaxRequestBytes:   16 << 20,
		LogLevel:          "info",
		EnableCORS:        true,
		EnableMetrics:     true,
	}
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.SnapshotBackend = getEnv("SNAPSHOT_BACKEND", c.SnapshotBackend)

	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.DynamoDBTable = getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", c.DynamoDBTable))
	c.EventBusName = getEnv("EVENT_BUS_NAME", c.EventBusName)

	c.Neo4jURI = getEnv("NEO4J_URI", c.Neo4jURI)
	c.Neo4jUser = getEnv("NEO4J_USER", c.Neo4jUser)
	c.Neo4jPassword = getEnv("NEO4J_PASSWORD", c.Neo4jPassword)
	c.Neo4jDatabase = getEnv("NEO4J_DATABASE", c.Neo4jDatabase)

	c.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.EmbeddingModel = getEnv("EMBEDDING_MODEL", c.EmbeddingModel)
	c.EmbeddingCacheTTL = getEnvInt("EMBEDDING_CACHE_TTL", c.EmbeddingCacheTTL)
	c.ScorerTimeoutSeconds = getEnvInt("SCORER_TIMEOUT_SECONDS", c.ScorerTimeoutSeconds)

	c.IsLambda = getEnvBool("IS_LAMBDA", c.IsLambda || os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "")
	c.ResultCacheTTL = getEnvInt("RESULT_CACHE_TTL", c.ResultCacheTTL)
	c.MaxRequestBytes = int64(getEnvInt("MAX_REQUEST_BYTES", int(c.MaxRequestBytes)))
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.OTLPEndpoint)

	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.EnableTracing = getEnvBool("ENABLE_TRACING", c.EnableTracing)
	c.EnableCORS = getEnvBool("ENABLE_CORS", c.EnableCORS)
	c.EnableEvents = getEnvBool("ENABLE_EVENTS", c.EnableEvents)

	c.Analysis.MinClusterSize = getEnvInt("GAP_MIN_CLUSTER_SIZE", c.Analysis.MinClusterSize)
	c.Analysis.ConnectivityThreshold = getEnvFloat("GAP_CONNECTIVITY_THRESHOLD", c.Analysis.ConnectivityThreshold)
	c.Analysis.MaxGaps = getEnvInt("GAP_MAX_GAPS", c.Analysis.MaxGaps)
	c.Analysis.TopBridges = getEnvInt("GAP_TOP_BRIDGES", c.Analysis.TopBridges)
	c.Analysis.CentralityWorkers = getEnvInt("GAP_CENTRALITY_WORKERS", c.Analysis.CentralityWorkers)
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.SnapshotBackend {
	case SnapshotBackendMemory:
	case SnapshotBackendDynamoDB:
		if c.DynamoDBTable == "" {
			return fmt.Errorf("DYNAMODB_TABLE is required for the dynamodb snapshot backend")
		}
	case SnapshotBackendNeo4j:
		if c.Neo4jURI == "" {
			return fmt.Errorf("NEO4J_URI is required for the neo4j snapshot backend")
		}
	default:
		return fmt.Errorf("unknown snapshot backend %q", c.SnapshotBackend)
	}

	if c.EnableEvents && c.EventBusName == "" {
		return fmt.Errorf("EVENT_BUS_NAME is required when events are enabled")
	}
	if c.ResultCacheTTL < 0 {
		return fmt.Errorf("RESULT_CACHE_TTL must not be negative")
	}
	if c.MaxRequestBytes <= 0 {
		return fmt.Errorf("MAX_REQUEST_BYTES must be positive")
	}

	return nil
}

// AnalysisConfig returns the analysis configuration for the environment
// with the configured overrides applied
func (c *Config) AnalysisConfig() (*domainconfig.AnalysisConfig, error) {
	ac := domainconfig.LoadAnalysisConfig(c.Environment)

	o := c.Analysis
	if o.MinClusterSize > 0 {
		ac.MinClusterSize = o.MinClusterSize
	}
	if o.ConnectivityThreshold > 0 {
		ac.ConnectivityThreshold = o.ConnectivityThreshold
	}
	if o.MaxGaps > 0 {
		ac.MaxGaps = o.MaxGaps
	}
	if o.TopBridges > 0 {
		ac.TopBridges = o.TopBridges
	}
	if o.MinNodes > 0 {
		ac.MinNodes = o.MinNodes
	}
	if o.MinEdges > 0 {
		ac.MinEdges = o.MinEdges
	}
	if o.CentralityWorkers > 0 {
		ac.CentralityWorkers = o.CentralityWorkers
	}
	if o.DisableFallback {
		ac.EnableCommunityFallback = false
	}
	if c.ScorerTimeoutSeconds > 0 {
		ac.ScorerTimeout = time.Duration(c.ScorerTimeoutSeconds) * time.Second
	}

	if err := ac.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analysis configuration: %w", err)
	}
	return ac, nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// SemanticScorerEnabled reports whether an embedding scorer is configured
func (c *Config) SemanticScorerEnabled() bool {
	return c.OpenAIAPIKey != ""
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat gets a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
