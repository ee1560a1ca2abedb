package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the docrag tool.
type Config struct {
	Index     IndexConfig     `yaml:"index"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// IndexConfig holds indexing configuration.
type IndexConfig struct {
	Includes     []string `yaml:"includes"`
	Excludes     []string `yaml:"excludes"`
	ChunkSize    int      `yaml:"chunk_size"`    // max chunk length in characters
	ChunkOverlap int      `yaml:"chunk_overlap"` // window overlap in characters
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK              int     `yaml:"top_k"`
	UseGraph          bool    `yaml:"use_graph"`
	MaxHops           int     `yaml:"max_hops"`
	Ranker            string  `yaml:"ranker"` // "score" or "mmr"
	MMRLambda         float64 `yaml:"mmr_lambda"`
	DedupJaccard      float64 `yaml:"dedup_jaccard"`
	MinScoreThreshold float64 `yaml:"min_score_threshold"` // Filter results below this score (0 = disabled)
	CacheEnabled      bool    `yaml:"cache_enabled"`
	CacheSize         int     `yaml:"cache_size"`
	CacheTTLSeconds   int     `yaml:"cache_ttl_seconds"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider          string  `yaml:"provider"`    // "openai", "ollama", "custom", "mock"
	Model             string  `yaml:"model"`       // e.g., "text-embedding-3-small"
	BaseURL           string  `yaml:"base_url"`    // Override for "custom" provider
	APIKeyEnv         string  `yaml:"api_key_env"` // Environment variable for API key
	Dimension         int     `yaml:"dimension"`   // 0 derives the dimension from the model
	BatchSize         int     `yaml:"batch_size"`
	Concurrency       int     `yaml:"concurrency"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 = unlimited
	MaxRetries        int     `yaml:"max_retries"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Index: IndexConfig{
			Includes:     []string{"**/*.md"},
			Excludes:     []string{"**/node_modules/**", "**/.git/**", "**/.docrag/**"},
			ChunkSize:    1000,
			ChunkOverlap: 200,
		},
		Retrieve: RetrieveConfig{
			TopK:            5,
			UseGraph:        true,
			MaxHops:         2,
			Ranker:          "score",
			MMRLambda:       0.7,
			DedupJaccard:    0.8,
			CacheEnabled:    false,
			CacheSize:       128,
			CacheTTLSeconds: 300,
		},
		Embedding: EmbeddingConfig{
			Provider:    "openai",
			Model:       "text-embedding-3-small",
			APIKeyEnv:   "OPENAI_API_KEY",
			BatchSize:   100,
			Concurrency: 2,
			MaxRetries:  3,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for docrag.yaml).
func LoadFromDir(dir string) (*Config, error) {
	// Try docrag.yaml in the directory
	path := filepath.Join(dir, "docrag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	// Try .docrag/config.yaml
	path = filepath.Join(dir, ".docrag", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	// Return defaults
	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks that the configuration is usable for indexing.
func (c *Config) Validate() error {
	if c.Index.ChunkSize <= 0 {
		return fmt.Errorf("index.chunk_size must be positive, got %d", c.Index.ChunkSize)
	}
	if c.Index.ChunkOverlap < 0 {
		return fmt.Errorf("index.chunk_overlap must be non-negative, got %d", c.Index.ChunkOverlap)
	}
	if c.Index.ChunkOverlap >= c.Index.ChunkSize {
		return fmt.Errorf("index.chunk_overlap (%d) must be smaller than index.chunk_size (%d)",
			c.Index.ChunkOverlap, c.Index.ChunkSize)
	}
	switch c.Embedding.Provider {
	case "openai", "ollama", "custom", "mock":
	default:
		return fmt.Errorf("embedding.provider %q is not supported", c.Embedding.Provider)
	}
	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("embedding.batch_size must be positive, got %d", c.Embedding.BatchSize)
	}
	switch c.Retrieve.Ranker {
	case "score", "mmr":
	default:
		return fmt.Errorf("retrieve.ranker %q is not supported", c.Retrieve.Ranker)
	}
	return nil
}

// IndexDBPath returns the path to the index database.
func IndexDBPath(dir string) string {
	return filepath.Join(dir, ".docrag", "index.db")
}

// LockPath returns the path to the index lock file.
func LockPath(dir string) string {
	return filepath.Join(dir, ".docrag", "index.lock")
}

// EnsureIndexDir ensures the .docrag directory exists.
func EnsureIndexDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".docrag"), 0755)
}
