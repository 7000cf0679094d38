// Package generator answers a question from retrieved product context. It
// prefers a hosted completion and degrades to deterministic templates.
package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/nidhogg/makers-assistant/internal/backend"
	"go.uber.org/zap"
)

// Tier names the strategy that produced a reply.
type Tier string

const (
	TierCompletion Tier = "completion"
	TierTemplate   Tier = "template"
	TierCanned     Tier = "canned"
)

// DefaultMaxTokens bounds hosted completions.
const DefaultMaxTokens = 500

const systemPrompt = `You are an expert assistant in tech products for Makers Tech. Your job is to help customers find the perfect products based on the available product information.

INSTRUCTIONS:
- Be friendly, conversational, and professional
- Recommend specific products when relevant
- Include key details like price, brand, and features
- If there are no relevant products, suggest alternatives or ask for clarification
- Keep responses concise but informative
- Use appropriate emojis to make the conversation more engaging
- Respond in the same language the user asks`

// Completer is a hosted completion service.
type Completer interface {
	Complete(ctx context.Context, system, user string, maxTokens int) (string, error)
}

// Result is a generated reply. Degraded is set when a configured completion
// backend failed and a template answered instead.
type Result struct {
	Text     string `json:"text"`
	Tier     Tier   `json:"tier"`
	Degraded bool   `json:"degraded"`
}

// Options tunes a Generator. Zero values take defaults.
type Options struct {
	MaxTokens int
	Policy    *Policy
}

// Generator produces replies. It never returns an error.
type Generator struct {
	completion backend.State[Completer]
	policy     Policy
	maxTokens  int
	logger     *zap.Logger
}

// New creates a Generator over an optional completion backend.
func New(completion backend.State[Completer], opts Options, logger *zap.Logger) *Generator {
	g := &Generator{
		completion: completion,
		policy:     DefaultPolicy(),
		maxTokens:  opts.MaxTokens,
		logger:     logger,
	}
	if opts.Policy != nil {
		g.policy = *opts.Policy
	}
	if g.maxTokens <= 0 {
		g.maxTokens = DefaultMaxTokens
	}
	return g
}

// Available reports whether a completion backend is configured.
func (g *Generator) Available() bool { return backend.IsConfigured[Completer](g.completion) }

// Generate answers question from the assembled product context.
func (g *Generator) Generate(ctx context.Context, productContext, question string) Result {
	switch c := g.completion.(type) {
	case backend.Configured[Completer]:
		text, err := c.Handle.Complete(ctx, systemPrompt, userPrompt(productContext, question), g.maxTokens)
		if err == nil {
			return Result{Text: text, Tier: TierCompletion}
		}
		backend.LogFallback(g.logger, "completion failed, using template", err)
		return Result{Text: g.recommend(productContext, question), Tier: TierTemplate, Degraded: true}
	case backend.Unconfigured[Completer]:
		g.logger.Debug("completion not configured", zap.String("reason", c.Reason))
	}

	if strings.TrimSpace(productContext) == "" {
		return Result{Text: canned(question), Tier: TierCanned}
	}
	return Result{Text: g.recommend(productContext, question), Tier: TierTemplate}
}

func userPrompt(productContext, question string) string {
	return fmt.Sprintf(`Available product information:
%s

User question: %s

Please provide a helpful and specific response based on the available products.`, productContext, question)
}
