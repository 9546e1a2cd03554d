package config

import (
	"fmt"
	"os"
	"reflect"
	"runtime"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/estategraph/estate-engine/pkg/apperrors"
)

// Config holds all configuration for a pipeline run.
// Configuration can come from a YAML file or environment variables; env vars
// always override YAML values. Secrets (API keys, store and sink passwords)
// must only come from environment variables (yaml:"-" fields).
type Config struct {
	Env     string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version string `yaml:"-"` // set at load time, not from config

	Logging   LoggingConfig   `yaml:"logging"`
	Run       RunConfig       `yaml:"run"`
	Sources   SourcesConfig   `yaml:"sources"`
	Store     StoreConfig     `yaml:"store"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Sinks     SinksConfig     `yaml:"sinks"`
}

// LoggingConfig controls the root logger.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// RunConfig holds run-wide knobs.
type RunConfig struct {
	// SampleSize caps rows read per source. 0 reads everything.
	SampleSize int `yaml:"sample_size" env:"RUN_SAMPLE_SIZE" env-default:"0"`

	// Parallelism caps concurrent entity work. 0 uses the CPU count.
	Parallelism int `yaml:"parallelism" env:"RUN_PARALLELISM" env-default:"0"`

	// Entities restricts the run to a subset. Empty runs all three.
	Entities []string `yaml:"entities" env:"RUN_ENTITIES" env-separator:","`

	// StopOnError halts sibling orchestrators when one entity fails.
	StopOnError bool `yaml:"stop_on_error" env:"RUN_STOP_ON_ERROR" env-default:"false"`

	// KeepIntermediate keeps bronze/silver tables after a successful run.
	KeepIntermediate bool `yaml:"keep_intermediate" env:"RUN_KEEP_INTERMEDIATE" env-default:"false"`
}

// EffectiveParallelism resolves run.parallelism, defaulting to the CPU count.
func (c *RunConfig) EffectiveParallelism() int {
	if c.Parallelism > 0 {
		return c.Parallelism
	}
	return runtime.NumCPU()
}

// SourcesConfig names the input locations. A path may be a file or a
// directory of JSON files; the wikipedia source is a relational store.
type SourcesConfig struct {
	PropertyPath     string `yaml:"property_path" env:"SOURCE_PROPERTY_PATH" env-default:""`
	NeighborhoodPath string `yaml:"neighborhood_path" env:"SOURCE_NEIGHBORHOOD_PATH" env-default:""`
	WikipediaDB      string `yaml:"wikipedia_db" env:"SOURCE_WIKIPEDIA_DB" env-default:""`
	LocationPath     string `yaml:"location_path" env:"SOURCE_LOCATION_PATH" env-default:""`
}

// StoreConfig selects and configures the tiered table store backend.
type StoreConfig struct {
	// Backend is "sqlite" (in-process, default) or "postgres".
	Backend string `yaml:"backend" env:"STORE_BACKEND" env-default:"sqlite"`

	// Path is the sqlite database file; ":memory:" keeps the run in memory.
	Path string `yaml:"path" env:"STORE_PATH" env-default:":memory:"`

	// Postgres settings, used when Backend is "postgres".
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"estate"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // secret, env only
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"estate_engine"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int    `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
}

// ConnectionString returns a key-value DSN for the postgres backend.
func (c *StoreConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// EmbeddingConfig configures the embedding engine and its provider.
type EmbeddingConfig struct {
	Provider string `yaml:"provider" env:"EMBEDDING_PROVIDER" env-default:"mock"`
	Model    string `yaml:"model" env:"EMBEDDING_MODEL" env-default:""`

	// BaseURL overrides the provider endpoint (ollama hosts, proxies).
	BaseURL string `yaml:"base_url" env:"EMBEDDING_BASE_URL" env-default:""`

	BatchSize    int `yaml:"batch_size" env:"EMBEDDING_BATCH_SIZE" env-default:"20"`
	MaxRetries   int `yaml:"max_retries" env:"EMBEDDING_MAX_RETRIES" env-default:"3"`
	RetryDelayMS int `yaml:"retry_delay_ms" env:"EMBEDDING_RETRY_DELAY_MS" env-default:"1000"`
	TimeoutMS    int `yaml:"timeout_ms" env:"EMBEDDING_TIMEOUT_MS" env-default:"60000"`

	// Shards partitions the node set across workers. 0 uses run.parallelism.
	Shards int `yaml:"shards" env:"EMBEDDING_SHARDS" env-default:"0"`

	// BreakerThreshold opens the per-worker circuit breaker after this many
	// consecutive provider failures.
	BreakerThreshold int `yaml:"breaker_threshold" env:"EMBEDDING_BREAKER_THRESHOLD" env-default:"5"`

	Cache CacheConfig `yaml:"cache"`

	// Provider secrets, env only.
	OpenAIAPIKey string `yaml:"-" env:"OPENAI_API_KEY"`
	VoyageAPIKey string `yaml:"-" env:"VOYAGE_API_KEY"`
	GeminiAPIKey string `yaml:"-" env:"GEMINI_API_KEY"`
}

// CacheConfig configures the local vector cache.
type CacheConfig struct {
	Enabled bool `yaml:"enabled" env:"EMBEDDING_CACHE_ENABLED" env-default:"false"`
	// Path is the cache directory; empty uses an in-memory cache.
	Path string `yaml:"path" env:"EMBEDDING_CACHE_PATH" env-default:""`
}

// ChunkingConfig controls text chunking before embedding.
type ChunkingConfig struct {
	Enable bool `yaml:"enable" env:"CHUNKING_ENABLE" env-default:"false"`
	// Method is none, simple, sentence, or semantic (an alias of sentence).
	Method       string `yaml:"method" env:"CHUNKING_METHOD" env-default:"sentence"`
	ChunkSize    int    `yaml:"chunk_size" env:"CHUNKING_CHUNK_SIZE" env-default:"512"`
	ChunkOverlap int    `yaml:"chunk_overlap" env:"CHUNKING_CHUNK_OVERLAP" env-default:"50"`
}

// SinksConfig enables and configures the terminal writers.
type SinksConfig struct {
	// Enabled lists active sinks from {parquet, search, graph}.
	Enabled []string `yaml:"enabled" env:"SINKS_ENABLED" env-separator:","`

	Parquet ParquetSinkConfig `yaml:"parquet"`
	Search  SearchSinkConfig  `yaml:"search"`
	Graph   GraphSinkConfig   `yaml:"graph"`
}

// ParquetSinkConfig configures the columnar file sink.
type ParquetSinkConfig struct {
	Path        string   `yaml:"path" env:"SINK_PARQUET_PATH" env-default:"./out"`
	PartitionBy []string `yaml:"partition_by" env:"SINK_PARQUET_PARTITION_BY" env-separator:","`
	// Compression is snappy, zstd, or gzip.
	Compression string `yaml:"compression" env:"SINK_PARQUET_COMPRESSION" env-default:"snappy"`
	// Mode is overwrite or append.
	Mode string `yaml:"mode" env:"SINK_PARQUET_MODE" env-default:"overwrite"`
}

// SearchSinkConfig configures the search-index sink.
type SearchSinkConfig struct {
	Hosts         []string `yaml:"hosts" env:"SINK_SEARCH_HOSTS" env-separator:"," env-default:"http://localhost:9200"`
	IndexPrefix   string   `yaml:"index_prefix" env:"SINK_SEARCH_INDEX_PREFIX" env-default:"estate"`
	BulkSize      int      `yaml:"bulk_size" env:"SINK_SEARCH_BULK_SIZE" env-default:"1000"`
	Username      string   `yaml:"username" env:"ES_USERNAME" env-default:""`
	Password      string   `yaml:"-" env:"ES_PASSWORD"` // secret, env only
	ExcludeFields []string `yaml:"exclude_fields" env:"SINK_SEARCH_EXCLUDE_FIELDS" env-separator:","`
}

// GraphSinkConfig configures the graph-store sink.
type GraphSinkConfig struct {
	URI       string `yaml:"uri" env:"SINK_GRAPH_URI" env-default:"bolt://localhost:7687"`
	Username  string `yaml:"username" env:"SINK_GRAPH_USERNAME" env-default:"neo4j"`
	Password  string `yaml:"-" env:"GRAPH_STORE_PASSWORD"` // secret, env only
	Database  string `yaml:"database" env:"SINK_GRAPH_DATABASE" env-default:"neo4j"`
	BatchSize int    `yaml:"batch_size" env:"SINK_GRAPH_BATCH_SIZE" env-default:"500"`
}

// Load reads configuration from the given YAML file with environment variable
// overrides, then expands ${VAR} placeholders inside string values and
// validates the result. When the file does not exist, configuration comes
// from environment variables and defaults alone.
func Load(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if path == "" {
		path = "config.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	expandPlaceholders(reflect.ValueOf(cfg).Elem())

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// expandPlaceholders walks every exported string field (and slice of strings)
// and substitutes ${VAR} references from the environment. Secret fields have
// already been read from env directly; expanding them again is harmless.
func expandPlaceholders(v reflect.Value) {
	switch v.Kind() {
	case reflect.String:
		if v.CanSet() && strings.Contains(v.String(), "${") {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandPlaceholders(v.Field(i))
		}
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			expandPlaceholders(v.Index(i))
		}
	case reflect.Pointer:
		if !v.IsNil() {
			expandPlaceholders(v.Elem())
		}
	}
}

var (
	validProviders    = []string{"ollama", "openai", "voyage", "gemini", "mock"}
	validChunkMethods = []string{"none", "simple", "sentence", "semantic"}
	validCompressions = []string{"snappy", "zstd", "gzip"}
	validSinks        = []string{"parquet", "search", "graph"}
	validBackends     = []string{"sqlite", "postgres"}
	validEntities     = []string{"property", "neighborhood", "wikipedia"}
)

func oneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}

// Validate checks every enumerated field and cross-field requirement. All
// violations are reported together so a bad config fails with one message.
func (c *Config) Validate() error {
	var problems []string

	if !oneOf(c.Store.Backend, validBackends) {
		problems = append(problems, fmt.Sprintf("store.backend %q not in %v", c.Store.Backend, validBackends))
	}
	if !oneOf(c.Embedding.Provider, validProviders) {
		problems = append(problems, fmt.Sprintf("embedding.provider %q not in %v", c.Embedding.Provider, validProviders))
	}
	if c.Embedding.BatchSize <= 0 {
		problems = append(problems, "embedding.batch_size must be positive")
	}
	if c.Embedding.MaxRetries < 0 {
		problems = append(problems, "embedding.max_retries must not be negative")
	}
	if c.Embedding.TimeoutMS <= 0 {
		problems = append(problems, "embedding.timeout_ms must be positive")
	}

	switch c.Embedding.Provider {
	case "openai":
		if c.Embedding.OpenAIAPIKey == "" {
			problems = append(problems, "embedding.provider openai requires OPENAI_API_KEY")
		}
	case "voyage":
		if c.Embedding.VoyageAPIKey == "" {
			problems = append(problems, "embedding.provider voyage requires VOYAGE_API_KEY")
		}
	case "gemini":
		if c.Embedding.GeminiAPIKey == "" {
			problems = append(problems, "embedding.provider gemini requires GEMINI_API_KEY")
		}
	}

	if !oneOf(c.Chunking.Method, validChunkMethods) {
		problems = append(problems, fmt.Sprintf("chunking.method %q not in %v", c.Chunking.Method, validChunkMethods))
	}
	if c.Chunking.ChunkSize <= 0 {
		problems = append(problems, "chunking.chunk_size must be positive")
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		problems = append(problems, "chunking.chunk_overlap must be in [0, chunk_size)")
	}

	for _, sink := range c.Sinks.Enabled {
		if !oneOf(sink, validSinks) {
			problems = append(problems, fmt.Sprintf("sinks.enabled entry %q not in %v", sink, validSinks))
		}
	}
	if !oneOf(c.Sinks.Parquet.Compression, validCompressions) {
		problems = append(problems, fmt.Sprintf("sinks.parquet.compression %q not in %v", c.Sinks.Parquet.Compression, validCompressions))
	}
	if c.Sinks.Parquet.Mode != "overwrite" && c.Sinks.Parquet.Mode != "append" {
		problems = append(problems, fmt.Sprintf("sinks.parquet.mode %q not in [overwrite append]", c.Sinks.Parquet.Mode))
	}
	if c.Sinks.Search.BulkSize <= 0 {
		problems = append(problems, "sinks.search.bulk_size must be positive")
	}

	if c.Run.SampleSize < 0 {
		problems = append(problems, "run.sample_size must not be negative")
	}
	if c.Run.Parallelism < 0 {
		problems = append(problems, "run.parallelism must not be negative")
	}
	for _, e := range c.Run.Entities {
		if !oneOf(e, validEntities) {
			problems = append(problems, fmt.Sprintf("run.entities entry %q not in %v", e, validEntities))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrConfigInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// EnabledEntities returns the configured entity subset, defaulting to all
// three in run order (neighborhood, wikipedia, property).
func (c *Config) EnabledEntities() []string {
	if len(c.Run.Entities) == 0 {
		return []string{"neighborhood", "wikipedia", "property"}
	}
	return c.Run.Entities
}

// SourceFor returns the configured source path for an entity name. A missing
// path is not a config error; the entity's reader fails with a source error
// and the rest of the run proceeds.
func (c *Config) SourceFor(entity string) string {
	switch entity {
	case "property":
		return c.Sources.PropertyPath
	case "neighborhood":
		return c.Sources.NeighborhoodPath
	case "wikipedia":
		return c.Sources.WikipediaDB
	default:
		return ""
	}
}

// SinkEnabled reports whether the named sink is in sinks.enabled.
func (c *Config) SinkEnabled(name string) bool {
	for _, s := range c.Sinks.Enabled {
		if s == name {
			return true
		}
	}
	return false
}
