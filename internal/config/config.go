// Package config loads vaultrag settings from YAML, .env files, the
// environment and the OS keyring.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // Zone names resolve without system zoneinfo

	"github.com/robfig/cron/v3"

	"github.com/dshills/vaultrag/internal/embedder"
	"github.com/dshills/vaultrag/internal/llm"
)

// Environment variables read on top of the config file.
const (
	EnvVault  = "VAULTRAG_VAULT"
	EnvDBPath = "VAULTRAG_DB_PATH"
	EnvAPIKey = "VAULTRAG_API_KEY"
	EnvOpenAI = "OPENAI_API_KEY"
)

// dataDir holds the database inside the vault. The vault store skips hidden
// folders, so it is never indexed.
const dataDir = ".vaultrag"

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the complete vaultrag configuration.
type Config struct {
	Vault     VaultConfig     `yaml:"vault"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Search    SearchConfig    `yaml:"search"`
	Indexing  IndexingConfig  `yaml:"indexing"`
	Logging   LoggingConfig   `yaml:"logging"`

	// APISource records where the API key came from: config, env, keyring or "".
	APISource string `yaml:"-"`
}

type VaultConfig struct {
	Path            string   `yaml:"path"`
	ExcludedFolders []string `yaml:"excluded_folders"`
	Timezone        string   `yaml:"timezone"` // IANA name; empty means the system zone
}

type DatabaseConfig struct {
	Path string `yaml:"path"` // Default: <vault>/.vaultrag/index.db
}

type EmbeddingConfig struct {
	Provider  string        `yaml:"provider"` // openai, local or empty for auto
	APIKey    string        `yaml:"api_key"`
	BaseURL   string        `yaml:"base_url"`
	Model     string        `yaml:"model"`
	Dimension int           `yaml:"dimension"`
	Timeout   time.Duration `yaml:"timeout"`
	CacheSize int           `yaml:"cache_size"`
}

// LLMConfig configures the date classifier's chat model. It shares the
// embedding API key.
type LLMConfig struct {
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type SearchConfig struct {
	Threshold      float64       `yaml:"threshold"`
	TopK           int           `yaml:"top_k"`
	MaxResults     int           `yaml:"max_results"`
	ChunkSize      int           `yaml:"chunk_size"`
	SemanticWeight float64       `yaml:"semantic_weight"`
	KeywordWeight  float64       `yaml:"keyword_weight"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
}

type IndexingConfig struct {
	Debounce        time.Duration `yaml:"debounce"`
	MinCallInterval time.Duration `yaml:"min_call_interval"` // Negative disables spacing
	Schedule        string        `yaml:"schedule"`          // Cron spec; "off" disables
	IndexOnStart    bool          `yaml:"index_on_start"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// SlogLevel maps Level onto a slog level. Unknown names mean info.
func (l LoggingConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Timeout:   30 * time.Second,
			CacheSize: 10000,
		},
		LLM: LLMConfig{
			BaseURL: llm.DefaultBaseURL,
			Model:   llm.DefaultModel,
			Timeout: llm.DefaultTimeout,
		},
		Search: SearchConfig{
			Threshold:      0.75,
			TopK:           5,
			MaxResults:     10,
			ChunkSize:      500,
			SemanticWeight: 0.8,
			KeywordWeight:  0.2,
			CacheTTL:       time.Minute,
		},
		Indexing: IndexingConfig{
			Debounce:        5 * time.Second,
			MinCallInterval: time.Second,
			Schedule:        "@every 1h",
			IndexOnStart:    true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks ranges and required fields.
func (c *Config) Validate() error {
	if c.Vault.Path == "" {
		return fmt.Errorf("%w: vault.path is required (or set %s)", ErrInvalidConfig, EnvVault)
	}
	if c.Search.Threshold <= 0 || c.Search.Threshold > 1 {
		return fmt.Errorf("%w: search.threshold must be in (0, 1], got %v", ErrInvalidConfig, c.Search.Threshold)
	}
	if c.Search.TopK < 1 || c.Search.MaxResults < 1 {
		return fmt.Errorf("%w: search.top_k and search.max_results must be positive", ErrInvalidConfig)
	}
	if c.Search.SemanticWeight < 0 || c.Search.KeywordWeight < 0 {
		return fmt.Errorf("%w: search weights must not be negative", ErrInvalidConfig)
	}
	if c.Search.SemanticWeight+c.Search.KeywordWeight == 0 {
		return fmt.Errorf("%w: search weights cannot both be zero", ErrInvalidConfig)
	}
	if c.Indexing.Debounce < 0 {
		return fmt.Errorf("%w: indexing.debounce must not be negative", ErrInvalidConfig)
	}
	if c.ScheduleEnabled() {
		if _, err := cron.ParseStandard(c.Indexing.Schedule); err != nil {
			return fmt.Errorf("%w: indexing.schedule: %v", ErrInvalidConfig, err)
		}
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("%w: vault.timezone: %v", ErrInvalidConfig, err)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: logging.format must be text or json, got %q", ErrInvalidConfig, c.Logging.Format)
	}
	return nil
}

// ScheduleEnabled reports whether periodic bulk passes are configured.
func (c *Config) ScheduleEnabled() bool {
	return c.Indexing.Schedule != "" && c.Indexing.Schedule != "off"
}

// Location resolves the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Vault.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Vault.Timezone)
}

// DBPath returns the database path, defaulting to a hidden folder in the vault.
func (c *Config) DBPath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.Vault.Path, dataDir, "index.db")
}

// EnsureDBDir creates the database's parent directory.
func (c *Config) EnsureDBDir() error {
	if c.DBPath() == ":memory:" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.DBPath()), 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	return nil
}

// EmbedderConfig converts the embedding section for embedder.New.
func (c *Config) EmbedderConfig() embedder.Config {
	return embedder.Config{
		Provider:  c.Embedding.Provider,
		APIKey:    c.Embedding.APIKey,
		BaseURL:   c.Embedding.BaseURL,
		Model:     c.Embedding.Model,
		Dimension: c.Embedding.Dimension,
		Timeout:   c.Embedding.Timeout,
		CacheSize: c.Embedding.CacheSize,
	}
}

// ChatConfig converts the llm section for llm.NewOpenAIChat.
func (c *Config) ChatConfig() llm.Config {
	return llm.Config{
		APIKey:  c.Embedding.APIKey,
		BaseURL: c.LLM.BaseURL,
		Model:   c.LLM.Model,
		Timeout: c.LLM.Timeout,
	}
}
