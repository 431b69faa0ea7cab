package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Dialects understood by the warehouse client.
const (
	DialectSnowflake = "snowflake"
	DialectPostgres  = "postgres"
	DialectSQLite    = "sqlite"
)

// Embedding providers.
const (
	EmbedNone   = "none"
	EmbedGemini = "gemini"
	EmbedOpenAI = "openai"
	EmbedAzure  = "azure"
)

type Config struct {
	// warehouse
	Dialect     string
	Account     string
	User        string
	Password    string
	Role        string
	Warehouse   string
	Database    string
	Schema      string
	DatabaseURL string

	// embedding
	EmbedProvider    string
	EmbedEndpoint    string
	EmbedAPIKey      string
	EmbedModel       string
	EmbedAPIVersion  string
	EmbedDim         int
	EmbedBatchSize   int
	EmbedConcurrency int

	// chunking / search pipeline
	ChunkSize     int
	ChunkOverlap  int
	TargetLag     string
	SourceFile    string
	SearchTable   string
	SearchService string

	// analyst pipeline
	AnalystTable      string
	AnalystDataFile   string
	SemanticModelPath string
	AnalystEnableAOAI bool

	CallTimeout time.Duration

	// object storage
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string
	S3Endpoint   string // MinIO or another S3 compatible endpoint

	// agent runtime
	AgentEndpoint   string
	AgentAPIKey     string
	AgentMaxRetries int

	Port      string
	PublicURL string // base URL the agent runtime uses to call function tools
	JWTSecret string

	LogLevel  string
	LogFormat string
}

// LoadConfig loads the environment variables and return config
func LoadConfig() *Config {

	_ = godotenv.Load()

	return &Config{
		Dialect:     strings.ToLower(getEnv("WAREHOUSE_DIALECT", DialectSnowflake)),
		Account:     getEnv("SNOWFLAKE_ACCOUNT", ""),
		User:        getEnv("SNOWFLAKE_USER", ""),
		Password:    getEnv("SNOWFLAKE_PASSWORD", ""),
		Role:        getEnv("SNOWFLAKE_ROLE", ""),
		Warehouse:   getEnv("SNOWFLAKE_WAREHOUSE", "CORTEX_WH"),
		Database:    getEnv("SNOWFLAKE_DATABASE", "CORTEX_DB"),
		Schema:      getEnv("SNOWFLAKE_SCHEMA", "PUBLIC"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		EmbedProvider:    strings.ToLower(getEnv("EMBED_PROVIDER", EmbedNone)),
		EmbedEndpoint:    getEnv("EMBED_ENDPOINT", ""),
		EmbedAPIKey:      getEnv("EMBED_API_KEY", ""),
		EmbedModel:       getEnv("EMBED_MODEL", "text-embedding-004"),
		EmbedAPIVersion:  getEnv("EMBED_API_VERSION", "2024-02-01"),
		EmbedDim:         getEnvInt("EMBED_DIM", 768),
		EmbedBatchSize:   getEnvInt("EMBED_BATCH_SIZE", 16),
		EmbedConcurrency: getEnvInt("EMBED_CONCURRENCY", 1),

		ChunkSize:     getEnvInt("CHUNK_SIZE", 100),
		ChunkOverlap:  getEnvInt("CHUNK_OVERLAP", 20),
		TargetLag:     getEnv("TARGET_LAG", "1 hour"),
		SourceFile:    getEnv("SOURCE_FILE", ""),
		SearchTable:   getEnv("SEARCH_TABLE", "SAMPLE_TECH_1Q_MANAGEMENT_PLAN"),
		SearchService: getEnv("SEARCH_SERVICE", "CORTEX_SEARCH_SVC"),

		AnalystTable:      getEnv("ANALYST_TABLE", "WORK_RECORD"),
		AnalystDataFile:   getEnv("ANALYST_DATA_FILE", ""),
		SemanticModelPath: getEnv("SEMANTIC_MODEL_PATH", ""),
		AnalystEnableAOAI: getEnvBool("ANALYST_ENABLE_AOAI", false),

		CallTimeout: getEnvDuration("CALL_TIMEOUT", 2*time.Minute),

		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", ""),
		S3Endpoint:   getEnv("S3_ENDPOINT", ""),

		AgentEndpoint:   getEnv("AGENT_ENDPOINT", ""),
		AgentAPIKey:     getEnv("AGENT_API_KEY", ""),
		AgentMaxRetries: getEnvInt("AGENT_MAX_RETRIES", 3),

		Port:      getEnv("PORT", "8080"),
		PublicURL: getEnv("PUBLIC_URL", ""),
		JWTSecret: getEnv("JWT_SECRET", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
}

// Validate checks the settings every pipeline run depends on.
func (c *Config) Validate() error {
	switch c.Dialect {
	case DialectSnowflake:
		if c.Account == "" || c.User == "" {
			return fmt.Errorf("SNOWFLAKE_ACCOUNT and SNOWFLAKE_USER must be set for the snowflake dialect")
		}
	case DialectPostgres, DialectSQLite:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set for the %s dialect", c.Dialect)
		}
	default:
		return fmt.Errorf("unknown WAREHOUSE_DIALECT %q", c.Dialect)
	}

	switch c.EmbedProvider {
	case EmbedNone:
	case EmbedGemini, EmbedOpenAI:
		if c.EmbedDim <= 0 {
			return fmt.Errorf("EMBED_DIM must be positive when embeddings are enabled")
		}
	case EmbedAzure:
		if c.EmbedEndpoint == "" {
			return fmt.Errorf("EMBED_ENDPOINT must be set for the azure embedding provider")
		}
		if c.EmbedDim <= 0 {
			return fmt.Errorf("EMBED_DIM must be positive when embeddings are enabled")
		}
	default:
		return fmt.Errorf("unknown EMBED_PROVIDER %q", c.EmbedProvider)
	}

	if c.ChunkSize <= 0 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP (%d) must be in [0, CHUNK_SIZE=%d)", c.ChunkOverlap, c.ChunkSize)
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("CALL_TIMEOUT must be positive")
	}
	return nil
}

// EmbeddingEnabled reports whether the pipeline runs an embedding stage.
func (c *Config) EmbeddingEnabled() bool {
	return c.EmbedProvider != "" && c.EmbedProvider != EmbedNone
}

// VectorDim is the embedding column width, 0 when embeddings are disabled.
func (c *Config) VectorDim() int {
	if !c.EmbeddingEnabled() {
		return 0
	}
	return c.EmbedDim
}

// FunctionToolBaseURL is PUBLIC_URL, or the local listen address when unset.
func (c *Config) FunctionToolBaseURL() string {
	if c.PublicURL != "" {
		return strings.TrimRight(c.PublicURL, "/")
	}
	return "http://localhost:" + c.Port
}

// ObjectStorageEnabled reports whether S3 credentials were provided.
func (c *Config) ObjectStorageEnabled() bool {
	return c.AwsAccessKey != "" && c.AwsSecretKey != ""
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("WARN: %s=%q not a bool, using default %t", key, v, def)
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("WARN: %s=%q not a duration, using default %s", key, v, def)
		return def
	}
	return d
}
