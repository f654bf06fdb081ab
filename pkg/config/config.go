// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// build stage (Corpus, Dedup, Indexer, Shards, Registry) and for the external
// services the pipeline can talk to (Postgres, Redis, Kafka).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/shardsearch/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Corpus   CorpusConfig   `yaml:"corpus"`
	Dedup    DedupConfig    `yaml:"dedup"`
	Indexer  IndexerConfig  `yaml:"indexer"`
	Shards   ShardConfig    `yaml:"shards"`
	Registry RegistryConfig `yaml:"registry"`
	Search   SearchConfig   `yaml:"search"`
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// CorpusConfig points at the crawled document snapshot.
type CorpusConfig struct {
	Dir       string   `yaml:"dir"`
	Encodings []string `yaml:"encodings"`
}

// Dedup strategies and hash-set backends.
const (
	DedupPartitioned = "partitioned"
	DedupShared      = "shared"

	HashSetMemory = "memory"
	HashSetRedis  = "redis"
)

// DedupConfig controls the parallel content-hash deduplication stage.
type DedupConfig struct {
	Workers  int    `yaml:"workers"`
	Strategy string `yaml:"strategy"`
	HashSet  string `yaml:"hashSet"`
}

// IndexerConfig controls the partitioned indexer.
type IndexerConfig struct {
	Workers              int      `yaml:"workers"`
	WeightedTags         []string `yaml:"weightedTags"`
	PartialDir           string   `yaml:"partialDir"`
	MaxPostingsPerWorker int      `yaml:"maxPostingsPerWorker"`
	DictionaryPath       string   `yaml:"dictionaryPath"`
}

// ShardConfig describes the alphabetic partitioning of the merged index.
// When Boundaries is empty the alphabet is split into Alphabetic near-equal
// ranges; otherwise each boundary is the first letter of one range.
type ShardConfig struct {
	Dir        string   `yaml:"dir"`
	Alphabetic int      `yaml:"alphabetic"`
	Boundaries []string `yaml:"boundaries"`
	CatchAll   string   `yaml:"catchAll"`
}

// Registry backends.
const (
	RegistryJSON     = "json"
	RegistrySQLite   = "sqlite"
	RegistryPostgres = "postgres"
)

// RegistryConfig controls where the id→path mapping is persisted.
type RegistryConfig struct {
	Backend    string `yaml:"backend"`
	Path       string `yaml:"path"`
	SQLitePath string `yaml:"sqlitePath"`
}

// SearchConfig controls query execution limits and result caching.
type SearchConfig struct {
	MaxResults   int  `yaml:"maxResults"`
	DefaultLimit int  `yaml:"defaultLimit"`
	CacheEnabled bool `yaml:"cacheEnabled"`
}

// ServerConfig controls the HTTP query server started with --serve.
type ServerConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds Kafka broker and topic settings. An empty broker list
// disables build notifications.
type KafkaConfig struct {
	Brokers []string    `yaml:"brokers"`
	Topics  KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	IndexComplete string `yaml:"indexComplete"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided), applies environment-variable
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrConfiguration, "config", "reading %s: %v", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, apperrors.Newf(apperrors.ErrConfiguration, "config", "parsing %s: %v", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config with the defaults used for a local build.
func Default() *Config {
	return &Config{
		Corpus: CorpusConfig{
			Dir:       "DEV",
			Encodings: []string{"ascii", "us-ascii", "utf-8", "utf8"},
		},
		Dedup: DedupConfig{
			Workers:  8,
			Strategy: DedupPartitioned,
			HashSet:  HashSetMemory,
		},
		Indexer: IndexerConfig{
			Workers:      10,
			WeightedTags: []string{"h1", "h2", "h3", "title", "b", "i"},
			PartialDir:   "indexes",
		},
		Shards: ShardConfig{
			Dir:        "final_index",
			Alphabetic: 4,
			CatchAll:   "other",
		},
		Registry: RegistryConfig{
			Backend:    RegistryJSON,
			Path:       "document_indexes.json",
			SQLitePath: "registry.db",
		},
		Search: SearchConfig{
			MaxResults:   100,
			DefaultLimit: 10,
		},
		Server: ServerConfig{
			Port:           8080,
			RequestTimeout: 5 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "shardsearch",
			User:            "shardsearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 10 * time.Minute,
		},
		Kafka: KafkaConfig{
			Topics: KafkaTopics{
				IndexComplete: "index.complete",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

// Validate rejects configurations the build cannot run with. Every failure
// wraps errors.ErrConfiguration.
func (c *Config) Validate() error {
	if c.Indexer.Workers < 3 {
		return apperrors.Newf(apperrors.ErrConfiguration, "config",
			"indexer.workers must be at least 3, got %d", c.Indexer.Workers)
	}
	if c.Dedup.Workers < 1 {
		return apperrors.Newf(apperrors.ErrConfiguration, "config",
			"dedup.workers must be at least 1, got %d", c.Dedup.Workers)
	}
	switch c.Dedup.Strategy {
	case DedupPartitioned, DedupShared:
	default:
		return apperrors.Newf(apperrors.ErrConfiguration, "config",
			"unknown dedup.strategy %q", c.Dedup.Strategy)
	}
	switch c.Dedup.HashSet {
	case HashSetMemory, HashSetRedis:
	default:
		return apperrors.Newf(apperrors.ErrConfiguration, "config",
			"unknown dedup.hashSet %q", c.Dedup.HashSet)
	}
	switch c.Registry.Backend {
	case RegistryJSON, RegistrySQLite, RegistryPostgres:
	default:
		return apperrors.Newf(apperrors.ErrConfiguration, "config",
			"unknown registry.backend %q", c.Registry.Backend)
	}
	if c.Indexer.MaxPostingsPerWorker < 0 {
		return apperrors.Newf(apperrors.ErrConfiguration, "config",
			"indexer.maxPostingsPerWorker must not be negative")
	}
	if len(c.Shards.Boundaries) == 0 && (c.Shards.Alphabetic < 1 || c.Shards.Alphabetic > 26) {
		return apperrors.Newf(apperrors.ErrConfiguration, "config",
			"shards.alphabetic must be within 1..26, got %d", c.Shards.Alphabetic)
	}
	if c.Shards.CatchAll == "" {
		return apperrors.New(apperrors.ErrConfiguration, "config", "shards.catchAll must be set")
	}
	return nil
}

// applyEnvOverrides reads SP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SP_CORPUS_DIR"); v != "" {
		cfg.Corpus.Dir = v
	}
	if v := os.Getenv("SP_DEDUP_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Dedup.Workers = n
		}
	}
	if v := os.Getenv("SP_DEDUP_STRATEGY"); v != "" {
		cfg.Dedup.Strategy = v
	}
	if v := os.Getenv("SP_DEDUP_HASHSET"); v != "" {
		cfg.Dedup.HashSet = v
	}
	if v := os.Getenv("SP_INDEXER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Indexer.Workers = n
		}
	}
	if v := os.Getenv("SP_INDEXER_PARTIAL_DIR"); v != "" {
		cfg.Indexer.PartialDir = v
	}
	if v := os.Getenv("SP_INDEXER_DICTIONARY"); v != "" {
		cfg.Indexer.DictionaryPath = v
	}
	if v := os.Getenv("SP_SHARDS_DIR"); v != "" {
		cfg.Shards.Dir = v
	}
	if v := os.Getenv("SP_REGISTRY_BACKEND"); v != "" {
		cfg.Registry.Backend = v
	}
	if v := os.Getenv("SP_REGISTRY_PATH"); v != "" {
		cfg.Registry.Path = v
	}
	if v := os.Getenv("SP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SP_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("SP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SP_SEARCH_CACHE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Search.CacheEnabled = b
		}
	}
	if v := os.Getenv("SP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("SP_METRICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics.Enabled = b
		}
	}
}
