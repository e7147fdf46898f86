package config

import "time"

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"    validate:"required"`
	Database  DatabaseConfig  `koanf:"database"  validate:"required"`
	Embedder  EmbedderConfig  `koanf:"embedder"  validate:"required"`
	Generator GeneratorConfig `koanf:"generator" validate:"required"`
	Chunking  ChunkingConfig  `koanf:"chunking"  validate:"required"`
	Retrieval RetrievalConfig `koanf:"retrieval" validate:"required"`
	Auth      AuthConfig      `koanf:"auth"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"    validate:"required"`
	Port    int           `koanf:"port"    validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout"`
}

// DatabaseConfig holds postgres connection settings. The same database backs
// the credential store, the document catalog, and the vector index.
type DatabaseConfig struct {
	DSN string `koanf:"dsn" validate:"required"`
}

// EmbedderConfig configures the embedding provider adapter.
type EmbedderConfig struct {
	Provider  string `koanf:"provider"   validate:"oneof=openai ollama"`
	Model     string `koanf:"model"      validate:"required"`
	Dimension int    `koanf:"dimension"  validate:"gt=0"`
	BatchSize int    `koanf:"batch_size" validate:"gt=0"`
	APIKey    string `koanf:"api_key"`
	BaseURL   string `koanf:"base_url"`
	CacheSize int    `koanf:"cache_size"`
}

// GeneratorConfig configures the answer generation provider adapter.
type GeneratorConfig struct {
	Provider   string        `koanf:"provider"    validate:"oneof=openai ollama"`
	Model      string        `koanf:"model"       validate:"required"`
	APIKey     string        `koanf:"api_key"`
	BaseURL    string        `koanf:"base_url"`
	BufferSize int           `koanf:"buffer_size" validate:"gt=0"`
	Timeout    time.Duration `koanf:"timeout"`
}

// ChunkingConfig controls how documents are split before embedding.
type ChunkingConfig struct {
	MaxSize           int `koanf:"max_size"           validate:"gt=0"`
	Overlap           int `koanf:"overlap"            validate:"gte=0"`
	MinSize           int `koanf:"min_size"           validate:"gt=0"`
	BoundaryTolerance int `koanf:"boundary_tolerance" validate:"gte=0"`
}

// RetrievalConfig controls similarity search and context assembly.
type RetrievalConfig struct {
	TopK             int     `koanf:"top_k"              validate:"gt=0"`
	MaxContextTokens int     `koanf:"max_context_tokens" validate:"gt=0"`
	MinScore         float64 `koanf:"min_score"          validate:"gte=0"`
}

// AuthConfig configures credential issuance.
type AuthConfig struct {
	KeyPrefix  string `koanf:"key_prefix"`
	BcryptCost int    `koanf:"bcrypt_cost" validate:"gte=0,lte=31"`
}

// Default returns the built-in configuration. Environment variables override
// individual fields at load time.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8420,
			Timeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			DSN: "postgres://localhost:5432/askdocs?sslmode=disable",
		},
		Embedder: EmbedderConfig{
			Provider:  "ollama",
			Model:     "nomic-embed-text",
			Dimension: 768,
			BatchSize: 16,
			BaseURL:   "http://localhost:11434",
			CacheSize: 1024,
		},
		Generator: GeneratorConfig{
			Provider:   "ollama",
			Model:      "llama3.1",
			BaseURL:    "http://localhost:11434",
			BufferSize: 32,
			Timeout:    5 * time.Minute,
		},
		Chunking: ChunkingConfig{
			MaxSize:           1000,
			Overlap:           100,
			MinSize:           50,
			BoundaryTolerance: 100,
		},
		Retrieval: RetrievalConfig{
			TopK:             6,
			MaxContextTokens: 3000,
			MinScore:         0,
		},
		Auth: AuthConfig{
			KeyPrefix:  "adk_",
			BcryptCost: 0,
		},
	}
}
