package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
)

// Config is the top-level configuration structure.
type Config struct {
	Server     ServerConfig     `json:"server"`
	Embedding  EmbeddingConfig  `json:"embedding"`
	Providers  []ProviderConfig `json:"providers"`
	Generation GenerationConfig `json:"generation"`
	Index      IndexConfig      `json:"index"`
	Catalog    CatalogConfig    `json:"catalog"`
	Database   DatabaseConfig   `json:"database"`
	Gateway    GatewayConfig    `json:"gateway"`
}

type ServerConfig struct {
	Port        int      `json:"port"`
	LogLevel    string   `json:"log_level"`
	CORSOrigins []string `json:"cors_origins,omitempty"`
}

type EmbeddingConfig struct {
	Provider       string `json:"provider"`
	Endpoint       string `json:"endpoint"`
	Model          string `json:"model"`
	APIKey         string `json:"api_key"`
	APIVersion     string `json:"api_version,omitempty"`
	Dimension      int    `json:"dimension"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

type ProviderConfig struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	Name           string `json:"name"`
	Endpoint       string `json:"endpoint"`
	APIKey         string `json:"api_key"`
	APIVersion     string `json:"api_version,omitempty"`
	Model          string `json:"model"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

type GenerationConfig struct {
	DefaultProvider string `json:"default_provider,omitempty"`
	MaxTokens       int    `json:"max_tokens"`
}

// IndexConfig selects the vector index backend: "memory", "qdrant",
// "pgvector" or "none".
type IndexConfig struct {
	Backend    string `json:"backend"`
	TopK       int    `json:"top_k"`
	Collection string `json:"collection,omitempty"`
}

// CatalogConfig selects where products come from ("postgres" or "file")
// and which change feed triggers re-syncs ("postgres", "redis" or "none").
type CatalogConfig struct {
	Source          string `json:"source"`
	File            string `json:"file,omitempty"`
	Migrations      string `json:"migrations,omitempty"`
	Watch           string `json:"watch"`
	Channel         string `json:"channel,omitempty"`
	Stream          string `json:"stream,omitempty"`
	SyncConcurrency int    `json:"sync_concurrency"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres"`
	Redis    RedisConfig    `json:"redis"`
	Qdrant   QdrantConfig   `json:"qdrant"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type RedisConfig struct {
	URL string `json:"url"`
}

type QdrantConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type GatewayConfig struct {
	Slack   SlackGatewayConfig   `json:"slack"`
	Discord DiscordGatewayConfig `json:"discord"`
}

type SlackGatewayConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	AppToken string `json:"app_token"`
}

type DiscordGatewayConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file, substitutes environment variable
// references and fills defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// Substitute ${VAR} and ${VAR:default} with environment values.
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 3210
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "api"
	}
	if c.Embedding.Dimension == 0 {
		c.Embedding.Dimension = 1536
	}
	if c.Generation.MaxTokens == 0 {
		c.Generation.MaxTokens = 500
	}
	if c.Index.Backend == "" {
		c.Index.Backend = "memory"
	}
	if c.Index.TopK == 0 {
		c.Index.TopK = 3
	}
	if c.Index.Collection == "" {
		c.Index.Collection = "products"
	}
	if c.Catalog.Source == "" {
		c.Catalog.Source = "file"
	}
	if c.Catalog.File == "" {
		c.Catalog.File = "configs/products.json"
	}
	if c.Catalog.Migrations == "" {
		c.Catalog.Migrations = "migrations"
	}
	if c.Catalog.Watch == "" {
		c.Catalog.Watch = "none"
	}
	if c.Catalog.SyncConcurrency == 0 {
		c.Catalog.SyncConcurrency = 8
	}
	if c.Database.Qdrant.Port == 0 {
		c.Database.Qdrant.Port = 6334
	}
}
