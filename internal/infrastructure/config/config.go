// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ersonp/menu-core/internal/domain/matching"
)

const (
	// DefaultConfigDir is the directory name for menu configuration.
	DefaultConfigDir = ".menu"
	// DefaultConfigFile is the default config file name.
	DefaultConfigFile = "config.yaml"
	// DefaultDatabaseFile is the default SQLite file name.
	DefaultDatabaseFile = "menu.db"
	// DefaultCollection is the default Qdrant collection name.
	DefaultCollection = "menu_standard_menus"
)

// Config holds static infrastructure configuration (read-only after init).
type Config struct {
	Matching MatchingConfig `yaml:"matching,omitempty"`
	Ledger   LedgerConfig   `yaml:"ledger,omitempty"`
	SQLite   SQLiteConfig   `yaml:"sqlite,omitempty"`
	Server   ServerConfig   `yaml:"server,omitempty"`
	Log      LogConfig      `yaml:"log,omitempty"`
	Semantic SemanticConfig `yaml:"semantic,omitempty"`
	Embedder EmbedderConfig `yaml:"embedder,omitempty"`
	Qdrant   QdrantConfig   `yaml:"qdrant,omitempty"`
}

// MatchingConfig holds the normalizer tables, scorer weights and acceptance policy.
type MatchingConfig struct {
	HighThreshold  float64          `yaml:"high_threshold"`
	LowThreshold   float64          `yaml:"low_threshold"`
	CandidateLimit int              `yaml:"candidate_limit"`
	Stoplist       []string         `yaml:"stoplist"`
	StripPatterns  []string         `yaml:"strip_patterns"`
	Weights        matching.Weights `yaml:"weights"`
	LockShards     int              `yaml:"lock_shards,omitempty"`
}

// LedgerConfig controls alias promotion from the override ledger.
type LedgerConfig struct {
	AutoPromote      bool `yaml:"auto_promote"`
	PromoteThreshold int  `yaml:"promote_threshold"`
}

// SQLiteConfig holds configuration for the SQLite relational database.
type SQLiteConfig struct {
	// Path is the file path to the SQLite database.
	// Empty means <base>/.menu/menu.db; ":memory:" keeps everything in memory.
	Path string `yaml:"path,omitempty"`
}

// ServerConfig holds configuration for the HTTP API.
type ServerConfig struct {
	Addr        string        `yaml:"addr,omitempty"`
	BatchLimit  int           `yaml:"batch_limit,omitempty"`
	ReadTimeout time.Duration `yaml:"read_timeout,omitempty"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"` // console or json
}

// SemanticConfig toggles the vector candidate source.
type SemanticConfig struct {
	Enabled bool `yaml:"enabled"`
	Limit   int  `yaml:"limit,omitempty"`
}

// EmbedderConfig holds configuration for the embedding provider.
type EmbedderConfig struct {
	Provider          string  `yaml:"provider,omitempty"`
	Model             string  `yaml:"model,omitempty"`
	APIKey            string  `yaml:"api_key,omitempty"`
	BaseURL           string  `yaml:"base_url,omitempty"` // OpenAI-compatible endpoint
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"`
}

// QdrantConfig holds configuration for the Qdrant vector database.
type QdrantConfig struct {
	Host       string `yaml:"host,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	Collection string `yaml:"collection,omitempty"`
	APIKey     string `yaml:"api_key,omitempty"`
}

// Default returns a Config with default values.
func Default() *Config {
	opts := matching.DefaultOptions()
	return &Config{
		Matching: MatchingConfig{
			HighThreshold:  opts.Policy.HighThreshold,
			LowThreshold:   opts.Policy.LowThreshold,
			CandidateLimit: opts.Policy.CandidateLimit,
			Stoplist:       append([]string(nil), opts.Stoplist...),
			StripPatterns:  append([]string(nil), opts.StripPatterns...),
			Weights:        opts.Weights,
			LockShards:     opts.LockShards,
		},
		Ledger: LedgerConfig{
			PromoteThreshold: 3,
		},
		Server: ServerConfig{
			Addr:        ":8080",
			BatchLimit:  100,
			ReadTimeout: 15 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Semantic: SemanticConfig{
			Limit: 5,
		},
		Embedder: EmbedderConfig{
			Provider:          "openai",
			Model:             "text-embedding-3-small",
			RequestsPerSecond: 3,
		},
		Qdrant: QdrantConfig{
			Host:       "localhost",
			Port:       6334,
			Collection: DefaultCollection,
		},
	}
}

// Load loads configuration from the .menu directory in the given path.
// A .env file next to it is loaded into the environment first.
func Load(basePath string) (*Config, error) {
	if err := loadDotEnv(basePath); err != nil {
		return nil, err
	}

	configFile := ConfigFilePath(basePath)

	data, err := os.ReadFile(configFile)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s (run 'menu init' first)", configFile)
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Start with defaults
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	cfg.applyEnvOverrides()
	cfg.resolvePaths(basePath)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// loadDotEnv loads <base>/.env without overriding variables already set.
func loadDotEnv(basePath string) error {
	envFile := filepath.Join(basePath, ".env")
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil {
		return fmt.Errorf("loading %s: %w", envFile, err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.Embedder.APIKey == "" {
		c.Embedder.APIKey = key
	}
	if key := os.Getenv("QDRANT_API_KEY"); key != "" && c.Qdrant.APIKey == "" {
		c.Qdrant.APIKey = key
	}
	if path := os.Getenv("MENU_DB_PATH"); path != "" {
		c.SQLite.Path = path
	}
	if level := os.Getenv("MENU_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if addr := os.Getenv("MENU_SERVER_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
}

func (c *Config) resolvePaths(basePath string) {
	switch {
	case c.SQLite.Path == "":
		c.SQLite.Path = DatabasePath(basePath)
	case c.SQLite.Path == ":memory:", filepath.IsAbs(c.SQLite.Path):
	default:
		c.SQLite.Path = filepath.Join(basePath, c.SQLite.Path)
	}
}

// Validate checks thresholds, weights, patterns and enumerations.
func (c *Config) Validate() error {
	if err := c.Matching.Policy().Validate(); err != nil {
		return fmt.Errorf("matching: %w", err)
	}
	if err := c.Matching.Weights.Validate(); err != nil {
		return fmt.Errorf("matching.weights: %w", err)
	}
	for _, p := range c.Matching.StripPatterns {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("matching.strip_patterns: %q: %w", p, err)
		}
	}
	if c.Ledger.PromoteThreshold < 1 {
		return fmt.Errorf("ledger.promote_threshold must be at least 1, got %d", c.Ledger.PromoteThreshold)
	}
	if c.Server.BatchLimit < 1 {
		return fmt.Errorf("server.batch_limit must be at least 1, got %d", c.Server.BatchLimit)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}
	if c.Semantic.Enabled {
		if c.Semantic.Limit < 1 {
			return fmt.Errorf("semantic.limit must be at least 1, got %d", c.Semantic.Limit)
		}
		if c.Embedder.RequestsPerSecond <= 0 {
			return fmt.Errorf("embedder.requests_per_second must be positive, got %v", c.Embedder.RequestsPerSecond)
		}
	}
	return nil
}

// Policy returns the acceptance policy described by the config.
func (m MatchingConfig) Policy() matching.Policy {
	return matching.Policy{
		HighThreshold:  m.HighThreshold,
		LowThreshold:   m.LowThreshold,
		CandidateLimit: m.CandidateLimit,
	}
}

// EngineOptions converts the config into matching engine options.
func (m MatchingConfig) EngineOptions() matching.Options {
	return matching.Options{
		Stoplist:      m.Stoplist,
		StripPatterns: m.StripPatterns,
		Weights:       m.Weights,
		Policy:        m.Policy(),
		LockShards:    m.LockShards,
	}
}

// ConfigDir returns the path to the .menu config directory.
func ConfigDir(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir)
}

// ConfigFilePath returns the path to the config file.
func ConfigFilePath(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir, DefaultConfigFile)
}

// DatabasePath returns the default SQLite path under the config directory.
func DatabasePath(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir, DefaultDatabaseFile)
}

// Exists checks if a menu config exists in the given path.
func Exists(basePath string) bool {
	_, err := os.Stat(ConfigFilePath(basePath))
	return err == nil
}
