package embedding

import (
	"context"
	"time"
)

// DefaultDimension matches text-embedding-3-small.
const DefaultDimension = 1536

// Vector is a fixed-dimension embedding.
type Vector = []float32

// Provider generates vector embeddings from text using a hosted model.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Config holds embedding provider configuration.
type Config struct {
	Provider   string        `json:"provider"` // "api", "azure" or "local"
	Endpoint   string        `json:"endpoint"`
	Model      string        `json:"model"` // model name, or deployment name for azure
	APIKey     string        `json:"api_key"`
	APIVersion string        `json:"api_version"`
	Dimension  int           `json:"dimension"`
	Timeout    time.Duration `json:"timeout"`
}

// Configured reports whether cfg carries enough to call a hosted backend,
// and if not, why.
func (cfg Config) Configured() (bool, string) {
	switch {
	case cfg.Endpoint == "":
		return false, "embedding endpoint not set"
	case cfg.Model == "":
		return false, "embedding model not set"
	case cfg.Provider != "local" && cfg.APIKey == "":
		return false, "embedding api key not set"
	}
	return true, ""
}

// NewProvider builds the hosted provider named by cfg.Provider.
func NewProvider(cfg Config) Provider {
	if cfg.Provider == "local" {
		return NewLocalProvider(cfg)
	}
	return NewAPIProvider(cfg)
}

func timeoutOr(d time.Duration) time.Duration {
	if d <= 0 {
		return 30 * time.Second
	}
	return d
}
