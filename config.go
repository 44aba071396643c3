package regdocs

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the RegDocs engine.
type Config struct {
	// DBPath is the full path to the SQLite database file.
	// If empty, defaults to ~/.regdocs/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	// Defaults to "regdocs". The file will be <DBName>.db inside the
	// storage directory (~/.regdocs/ or working dir).
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir controls where the database is created when DBPath
	// is not explicitly set. Options: "home" (default) uses ~/.regdocs/,
	// "local" uses the current working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// DocsDirs lists directories scanned for ingestible documents by
	// the file listing endpoint.
	DocsDirs []string `json:"docs_dirs" yaml:"docs_dirs"`

	// Embedding provider endpoint.
	Embedding EmbeddingConfig `json:"embedding" yaml:"embedding"`

	// Hybrid search weights.
	KeywordWeight  float64 `json:"keyword_weight" yaml:"keyword_weight"`
	SemanticWeight float64 `json:"semantic_weight" yaml:"semantic_weight"`
	TopKDefault    int     `json:"top_k_default" yaml:"top_k_default"`

	// Chunking
	ChunkTargetSize int  `json:"chunk_target_size" yaml:"chunk_target_size"`
	ChunkOverlap    int  `json:"chunk_overlap" yaml:"chunk_overlap"`
	PreserveTables  bool `json:"preserve_tables" yaml:"preserve_tables"`

	// Table detection
	MinTableColumns int `json:"min_table_columns" yaml:"min_table_columns"`

	// EmbedBatchSize is the number of chunk texts sent per embedding
	// request during ingest.
	EmbedBatchSize int `json:"embed_batch_size" yaml:"embed_batch_size"`

	// EmbeddingDim must match the embedding model's output dimension.
	EmbeddingDim int `json:"embedding_dim" yaml:"embedding_dim"`
}

// EmbeddingConfig configures the embedding provider endpoint.
type EmbeddingConfig struct {
	Provider string `json:"provider" yaml:"provider"` // ollama, openai, custom
	Model    string `json:"model" yaml:"model"`
	BaseURL  string `json:"base_url" yaml:"base_url"`
	APIKey   string `json:"api_key" yaml:"api_key"`
}

// DefaultConfig returns a Config with sensible defaults for local inference.
// Database is stored in ~/.regdocs/regdocs.db by default.
func DefaultConfig() Config {
	return Config{
		DBName:     "regdocs",
		StorageDir: "home",
		Embedding: EmbeddingConfig{
			Provider: "ollama",
			Model:    "nomic-embed-text",
			BaseURL:  "http://localhost:11434",
		},
		KeywordWeight:   0.4,
		SemanticWeight:  0.6,
		TopKDefault:     5,
		ChunkTargetSize: 2500,
		ChunkOverlap:    200,
		PreserveTables:  true,
		MinTableColumns: 3,
		EmbedBatchSize:  32,
		EmbeddingDim:    768,
	}
}

// LoadConfig reads a YAML config file and fills unset fields from
// DefaultConfig. Environment variables override file values for the
// embedding endpoint (REGDOCS_EMBED_URL, REGDOCS_EMBED_MODEL,
// REGDOCS_EMBED_API_KEY) and the database path (REGDOCS_DB).
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}

	if v := os.Getenv("REGDOCS_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("REGDOCS_EMBED_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("REGDOCS_EMBED_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("REGDOCS_EMBED_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}

	if cfg.ChunkTargetSize <= 0 || cfg.ChunkOverlap < 0 {
		return cfg, fmt.Errorf("%w: chunk sizes must be positive", ErrInvalidConfig)
	}
	if cfg.EmbeddingDim <= 0 {
		return cfg, fmt.Errorf("%w: embedding dimension must be positive", ErrInvalidConfig)
	}
	return cfg, nil
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "regdocs"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db" // fallback to cwd
		}
		dir := filepath.Join(home, ".regdocs")
		return filepath.Join(dir, name+".db")
	}
}
