package provider

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Provider defines the interface for chat completion providers.
type Provider interface {
	ID() string
	Name() string
	Model() string
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// ChatRequest is one exchange. Each provider answers with its configured
// model, so a request can move along the fallback chain unchanged.
type ChatRequest struct {
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse represents a response from a provider.
type ChatResponse struct {
	ID           string `json:"id"`
	Model        string `json:"model"`
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason"`
	Usage        Usage  `json:"usage"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ProviderConfig holds configuration for a provider instance.
// Type is one of "openai", "azure" or "anthropic". For Azure, Model names
// the deployment.
type ProviderConfig struct {
	ID         string        `json:"id"`
	Type       string        `json:"type"`
	Name       string        `json:"name"`
	Endpoint   string        `json:"endpoint"`
	APIKey     string        `json:"api_key"`
	APIVersion string        `json:"api_version,omitempty"`
	Model      string        `json:"model"`
	Timeout    time.Duration `json:"timeout,omitempty"`
}

// Configured reports whether the entry carries enough to make calls.
func (c ProviderConfig) Configured() (bool, string) {
	switch {
	case c.APIKey == "":
		return false, fmt.Sprintf("provider %s: api key not set", c.ID)
	case c.Type == "azure" && (c.Endpoint == "" || c.Model == ""):
		return false, fmt.Sprintf("provider %s: azure endpoint and deployment required", c.ID)
	}
	return true, ""
}

// New builds a provider for cfg.Type.
func New(cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	switch cfg.Type {
	case "openai", "azure", "":
		return NewOpenAIProvider(cfg, logger), nil
	case "anthropic":
		return NewAnthropicProvider(cfg, logger), nil
	}
	return nil, fmt.Errorf("unknown provider type %q", cfg.Type)
}
