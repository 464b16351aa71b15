// Package config loads and validates the search engine configuration from a
// YAML or JSON file with environment-variable overrides. Besides the corpus
// definition (application name, response limit, document files) it carries
// typed sections for every optional subsystem (Server, Redis, Kafka,
// Postgres, Metrics, Logging).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-engine/pkg/errors"
)

const (
	DefaultMaxResponses = 5
	DefaultVersion      = "0.1"
)

// Config is the top-level application configuration.
type Config struct {
	App      AppConfig      `yaml:"config"`
	Files    []string       `yaml:"files"`
	Requests string         `yaml:"requests"`
	Answers  string         `yaml:"answers"`
	Search   SearchConfig   `yaml:"search"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Postgres PostgresConfig `yaml:"postgres"`

	// dir is the directory of the loaded file; relative paths resolve
	// against it first.
	dir string
}

// AppConfig is the "config" section: application identity and the number of
// answers kept per request.
type AppConfig struct {
	Name         string `yaml:"name"`
	Version      string `yaml:"version"`
	MaxResponses int    `yaml:"max_responses"`
}

// SearchConfig controls query fan-out and the HTTP result cap.
type SearchConfig struct {
	Workers    int `yaml:"workers"`
	MaxResults int `yaml:"maxResults"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// RateLimit is the number of requests per minute allowed per client
	// address. Zero disables limiting.
	RateLimit int `yaml:"rateLimit"`
	// TrustForwardedFor keys rate limiting on X-Forwarded-For instead of
	// the peer address. Enable only behind a proxy that sets the header.
	TrustForwardedFor bool     `yaml:"trustForwardedFor"`
	CORSOrigins       []string `yaml:"corsOrigins"`
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

// RedisConfig holds Redis connection and result-caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// KafkaConfig holds Kafka broker and topic settings for search events.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	SearchEvents string `yaml:"searchEvents"`
}

// PostgresConfig holds PostgreSQL connection parameters for the run history.
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

// Load reads a YAML or JSON config file, applies environment-variable
// overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file %s: %w", path, apperrors.ErrFileNotFound)
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if abs, err := filepath.Abs(path); err == nil {
		cfg.dir = filepath.Dir(abs)
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes raw configuration bytes on top of the defaults. JSON input
// is accepted as YAML.
func Parse(data []byte) (*Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if _, ok := raw["config"]; !ok {
		return nil, fmt.Errorf("%w: missing 'config' section", apperrors.ErrInvalidConfig)
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the corpus definition and clamps the response limit.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.App.Name) == "" {
		return fmt.Errorf("%w: field 'name' is required in the 'config' section", apperrors.ErrInvalidConfig)
	}
	if c.App.Version == "" {
		c.App.Version = DefaultVersion
	}
	if c.App.MaxResponses <= 0 {
		slog.Warn("max_responses must be positive, using 1", "configured", c.App.MaxResponses)
		c.App.MaxResponses = 1
	}
	if len(c.Files) == 0 {
		return fmt.Errorf("%w: no files specified", apperrors.ErrInvalidConfig)
	}
	return nil
}

// Resolve maps a path from the config file to one usable from the working
// directory. Relative paths are tried against the config file's directory
// first.
func (c *Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || c.dir == "" {
		return path
	}
	candidate := filepath.Join(c.dir, path)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return path
}

// DocumentPaths returns every configured document file, resolved.
func (c *Config) DocumentPaths() []string {
	paths := make([]string, len(c.Files))
	for i, f := range c.Files {
		paths[i] = c.Resolve(f)
	}
	return paths
}

// RequestsPath returns the resolved requests file.
func (c *Config) RequestsPath() string {
	return c.Resolve(c.Requests)
}

// AnswersPath returns where answers are written. It is never probed for
// existence; relative paths land next to the config file.
func (c *Config) AnswersPath() string {
	if filepath.IsAbs(c.Answers) || c.dir == "" {
		return c.Answers
	}
	return filepath.Join(c.dir, c.Answers)
}

// searchDirs lists where Find looks, in order.
var searchDirs = []string{".", "..", filepath.Join("..", ".."), "JSON", filepath.Join("..", "JSON"), "config", filepath.Join("..", "config")}

// Find looks for name in the working directory, its ancestors and the
// conventional JSON/ and config/ directories.
func Find(name string) (string, error) {
	if filepath.IsAbs(name) {
		if _, err := os.Stat(name); err != nil {
			return "", fmt.Errorf("%s: %w", name, apperrors.ErrFileNotFound)
		}
		return name, nil
	}
	for _, dir := range searchDirs {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%s: %w (searched %d locations)", name, apperrors.ErrFileNotFound, len(searchDirs))
}

// defaultConfig returns a Config with defaults for local runs.
func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Version:      DefaultVersion,
			MaxResponses: DefaultMaxResponses,
		},
		Requests: "requests.json",
		Answers:  "answers.json",
		Search: SearchConfig{
			Workers:    0,
			MaxResults: 100,
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "search-analytics",
			Topics: KafkaTopics{
				SearchEvents: "search-events",
			},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "searchengine",
			User:            "searchengine",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
	}
}

// applyEnvOverrides reads SE_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SE_MAX_RESPONSES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.App.MaxResponses = n
		}
	}
	if v := os.Getenv("SE_SEARCH_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.Workers = n
		}
	}
	if v := os.Getenv("SE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SE_SERVER_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimit = n
		}
	}
	if v := os.Getenv("SE_SERVER_TRUST_FORWARDED_FOR"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Server.TrustForwardedFor = b
		}
	}
	if v := os.Getenv("SE_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SE_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("SE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SE_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SE_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SE_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
}
