package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/nidhogg/makers-assistant/internal/backend"
	"go.uber.org/zap"
)

// ErrNoProvider is returned when nothing is registered.
var ErrNoProvider = errors.New("no completion provider registered")

// Router holds completion providers and tries them in order: the default
// first, then the rest in registration order.
type Router struct {
	providers map[string]Provider
	order     []string
	defaults  string
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewRouter creates a new provider router.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		providers: make(map[string]Provider),
		logger:    logger,
	}
}

// Register adds a provider to the router.
func (r *Router) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[p.ID()]; !ok {
		r.order = append(r.order, p.ID())
	}
	r.providers[p.ID()] = p
	if r.defaults == "" {
		r.defaults = p.ID()
	}
	r.logger.Info("registered provider", zap.String("id", p.ID()), zap.String("name", p.Name()))
}

// SetDefault makes a registered provider the first one tried.
func (r *Router) SetDefault(providerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[providerID]; !ok {
		return false
	}
	r.defaults = providerID
	return true
}

// DefaultID returns the current default provider ID.
func (r *Router) DefaultID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaults
}

// Available reports whether at least one provider is registered.
func (r *Router) Available() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers) > 0
}

// chain returns providers in attempt order.
func (r *Router) chain() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, 0, len(r.order))
	if p, ok := r.providers[r.defaults]; ok {
		out = append(out, p)
	}
	for _, id := range r.order {
		if id != r.defaults {
			out = append(out, r.providers[id])
		}
	}
	return out
}

// Route sends a chat request through the default provider, falling back
// along the chain.
func (r *Router) Route(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	chain := r.chain()
	if len(chain) == 0 {
		return nil, ErrNoProvider
	}
	var err error
	for i, p := range chain {
		var resp *ChatResponse
		resp, err = p.Chat(ctx, req)
		if err == nil {
			return resp, nil
		}
		if i == 0 {
			r.logger.Warn("primary provider failed, trying fallbacks",
				zap.String("provider", p.ID()), zap.Error(err))
		} else {
			r.logger.Warn("fallback provider failed", zap.String("provider", p.ID()), zap.Error(err))
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("all providers failed: %w", err)
}

// Complete runs a single system+user exchange and returns the trimmed text.
// An empty completion counts as a malformed response.
func (r *Router) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	resp, err := r.Route(ctx, &ChatRequest{
		Messages: []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", backend.ErrBackendUnavailable, err)
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", fmt.Errorf("%w: empty completion", backend.ErrMalformedResponse)
	}
	return text, nil
}

// GetProvider returns a provider by ID.
func (r *Router) GetProvider(id string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}

// ListProviders returns registered providers in attempt order.
func (r *Router) ListProviders() []Provider {
	return r.chain()
}
