package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Gateway fans inbound messages from every platform adapter into one handler
// and sends replies back through the adapter they came from.
type Gateway struct {
	mu       sync.RWMutex
	adapters map[string]GatewayAdapter
	handler  atomic.Pointer[MessageHandler]
	logger   *zap.Logger
}

func NewGateway(logger *zap.Logger) *Gateway {
	return &Gateway{
		adapters: make(map[string]GatewayAdapter),
		logger:   logger,
	}
}

// SetHandler sets the callback for inbound messages. It may be called at any
// time; messages that arrive with no handler set are dropped.
func (g *Gateway) SetHandler(h MessageHandler) {
	g.handler.Store(&h)
}

func (g *Gateway) dispatch(msg *InboundMessage) {
	h := g.handler.Load()
	if h == nil {
		g.logger.Warn("dropping message, no handler", zap.String("platform", msg.Platform))
		return
	}
	(*h)(msg)
}

// Register adds an adapter, replacing any adapter for the same platform.
func (g *Gateway) Register(adapter GatewayAdapter) {
	platform := adapter.Platform()
	adapter.OnMessage(g.dispatch)

	g.mu.Lock()
	g.adapters[platform] = adapter
	g.mu.Unlock()
	g.logger.Info("registered gateway adapter", zap.String("platform", platform))
}

// ConnectAll connects every adapter. A platform that fails to connect does
// not stop the others; the returned error joins all failures.
func (g *Gateway) ConnectAll(ctx context.Context) error {
	var errs []error
	for _, platform := range g.Adapters() {
		adapter := g.adapter(platform)
		if err := adapter.Connect(ctx); err != nil {
			g.logger.Warn("adapter connect failed", zap.String("platform", platform), zap.Error(err))
			errs = append(errs, fmt.Errorf("connect %s: %w", platform, err))
			continue
		}
		g.logger.Info("adapter connected", zap.String("platform", platform))
	}
	return errors.Join(errs...)
}

func (g *Gateway) adapter(platform string) GatewayAdapter {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.adapters[platform]
}

// Send delivers msg through the adapter for msg.Platform.
func (g *Gateway) Send(ctx context.Context, msg *OutboundMessage) error {
	adapter := g.adapter(msg.Platform)
	if adapter == nil {
		return fmt.Errorf("no adapter for platform: %s", msg.Platform)
	}
	return adapter.Send(ctx, msg)
}

// Close closes every adapter and joins their errors.
func (g *Gateway) Close() error {
	var errs []error
	for _, platform := range g.Adapters() {
		if err := g.adapter(platform).Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", platform, err))
		}
	}
	return errors.Join(errs...)
}

// Adapters returns the registered platform names, sorted.
func (g *Gateway) Adapters() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, 0, len(g.adapters))
	for p := range g.adapters {
		names = append(names, p)
	}
	sort.Strings(names)
	return names
}

// StatusAll reports every adapter's connection state, sorted by platform.
func (g *Gateway) StatusAll() []AdapterStatus {
	names := g.Adapters()
	out := make([]AdapterStatus, 0, len(names))
	for _, p := range names {
		out = append(out, g.adapter(p).Status())
	}
	return out
}
