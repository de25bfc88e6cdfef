// Package config loads and validates the help search service configuration
// from YAML files with environment-variable overrides. It provides typed
// structs for every subsystem (Server, Postgres, Kafka, Redis, Search,
// Content, Statistics, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	Search     SearchConfig     `yaml:"search"`
	Content    ContentConfig    `yaml:"content"`
	Statistics StatisticsConfig `yaml:"statistics"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// CORSOrigins lists the sites allowed to call the API from a browser,
	// e.g. the in-app help widget. Empty disables CORS headers.
	CORSOrigins []string `yaml:"corsOrigins"`
	// RateLimitPerMinute caps requests per client IP. Zero disables it.
	RateLimitPerMinute int `yaml:"rateLimitPerMinute"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
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

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	ContentUpdates string `yaml:"contentUpdates"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// SearchConfig is the fixed set of options recognised by the search engine.
//
// SearchTimeout is advisory: the engine never enforces it, the HTTP layer
// wraps each query with it.
type SearchConfig struct {
	MinQueryLength       int                 `yaml:"minQueryLength"`
	MaxResults           int                 `yaml:"maxResults"`
	SearchTimeout        time.Duration       `yaml:"searchTimeout"`
	FuzzyThreshold       float64             `yaml:"fuzzyThreshold"`
	DefaultLanguage      string              `yaml:"defaultLanguage"`
	HistoryLimit         int                 `yaml:"historyLimit"`
	StopWords            map[string][]string `yaml:"stopWords"`
	JapaneseSegmentation bool                `yaml:"japaneseSegmentation"`
}

// ContentConfig selects where the initial index is built from.
type ContentConfig struct {
	BundleDir        string `yaml:"bundleDir"`
	LoadFromPostgres bool   `yaml:"loadFromPostgres"`
}

// StatisticsConfig controls periodic persistence of search statistics.
type StatisticsConfig struct {
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
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

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Search.Validate(); err != nil {
		return nil, fmt.Errorf("invalid search config: %w", err)
	}
	return cfg, nil
}

// DefaultSearchConfig returns the engine defaults used when no config file
// overrides them.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		MinQueryLength:  2,
		MaxResults:      50,
		SearchTimeout:   5 * time.Second,
		FuzzyThreshold:  0.7,
		DefaultLanguage: "ja",
		HistoryLimit:    1000,
		StopWords: map[string][]string{
			"ja": {"の", "に", "は", "を", "が", "で", "と", "た", "て", "だ", "である", "です", "ます"},
			"en": {"the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for", "of", "with", "by", "is", "are", "was", "were"},
		},
	}
}

// MaxHistoryLimit caps the retained search history. A HistoryLimit of 0
// selects this cap.
const MaxHistoryLimit = 1000

// Validate rejects values the engine cannot work with.
func (s SearchConfig) Validate() error {
	if s.MinQueryLength < 1 {
		return fmt.Errorf("minQueryLength must be at least 1, got %d", s.MinQueryLength)
	}
	if s.MaxResults < 1 {
		return fmt.Errorf("maxResults must be at least 1, got %d", s.MaxResults)
	}
	if s.FuzzyThreshold <= 0 || s.FuzzyThreshold > 1 {
		return fmt.Errorf("fuzzyThreshold must be in (0, 1], got %v", s.FuzzyThreshold)
	}
	if s.DefaultLanguage == "" {
		return fmt.Errorf("defaultLanguage is required")
	}
	if s.HistoryLimit < 0 || s.HistoryLimit > MaxHistoryLimit {
		return fmt.Errorf("historyLimit must be in [0, %d], got %d", MaxHistoryLimit, s.HistoryLimit)
	}
	return nil
}

// defaultConfig returns a Config with defaults suitable for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "helpsearch",
			User:            "helpsearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "helpsearch-group",
			Topics: KafkaTopics{
				ContentUpdates: "help-content-updates",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Search: DefaultSearchConfig(),
		Content: ContentConfig{
			BundleDir: "content",
		},
		Statistics: StatisticsConfig{
			SnapshotInterval: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads HS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("HS_SERVER_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("HS_SERVER_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimitPerMinute = n
		}
	}
	if v := os.Getenv("HS_POSTGRES_ENABLED"); v != "" {
		cfg.Postgres.Enabled = parseBool(v, cfg.Postgres.Enabled)
	}
	if v := os.Getenv("HS_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("HS_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("HS_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("HS_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("HS_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("HS_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("HS_KAFKA_ENABLED"); v != "" {
		cfg.Kafka.Enabled = parseBool(v, cfg.Kafka.Enabled)
	}
	if v := os.Getenv("HS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("HS_REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = parseBool(v, cfg.Redis.Enabled)
	}
	if v := os.Getenv("HS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("HS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("HS_SEARCH_DEFAULT_LANGUAGE"); v != "" {
		cfg.Search.DefaultLanguage = v
	}
	if v := os.Getenv("HS_SEARCH_FUZZY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Search.FuzzyThreshold = f
		}
	}
	if v := os.Getenv("HS_CONTENT_BUNDLE_DIR"); v != "" {
		cfg.Content.BundleDir = v
	}
	if v := os.Getenv("HS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("HS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
