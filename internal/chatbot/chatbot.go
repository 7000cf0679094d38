// Package chatbot wires retrieval and generation into a single
// ProcessMessage call and keeps the vector index in sync with the catalog.
package chatbot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nidhogg/makers-assistant/internal/catalog"
	"github.com/nidhogg/makers-assistant/internal/embedding"
	"github.com/nidhogg/makers-assistant/internal/generator"
	"github.com/nidhogg/makers-assistant/internal/rag"
	"github.com/nidhogg/makers-assistant/internal/vectorstore"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrPipelineFault wraps anything caught at the ProcessMessage boundary.
var ErrPipelineFault = errors.New("pipeline fault")

// TierApology marks the reply given when the pipeline itself broke.
const TierApology generator.Tier = "apology"

const apology = "Sorry, something went wrong while I was looking that up. Please try again in a moment."

const (
	DefaultTopK        = 3
	DefaultConcurrency = 8
	DefaultSyncTimeout = 2 * time.Minute
	syncKey            = "catalog-sync"
)

// Reply is the answer to one user message.
type Reply struct {
	Text     string         `json:"text"`
	Tier     generator.Tier `json:"tier"`
	Degraded bool           `json:"degraded"`
}

// SyncReport summarises one catalog sync.
type SyncReport struct {
	Products int           `json:"products"`
	Skipped  int           `json:"skipped"`
	Indexed  int           `json:"indexed"`
	Fallback int           `json:"fallback_embeddings"`
	Degraded bool          `json:"degraded"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// Status reports readiness and which backends are configured.
type Status struct {
	Ready      bool       `json:"ready"`
	LastSync   *time.Time `json:"last_sync,omitempty"`
	Products   int        `json:"products"`
	Embedding  bool       `json:"embedding"`
	Index      bool       `json:"index"`
	Completion bool       `json:"completion"`
}

// Options tunes an Orchestrator. Zero values take defaults.
type Options struct {
	TopK        int
	Concurrency int
	// SyncTimeout bounds one catalog sync. Syncs are detached from the
	// caller's context, so this is their only deadline.
	SyncTimeout time.Duration
}

// Orchestrator owns the warm-up state and runs the message pipeline.
type Orchestrator struct {
	source    catalog.Source
	embedder  *embedding.Service
	index     *vectorstore.Index
	generator *generator.Generator
	logger    *zap.Logger

	topK        int
	concurrency int
	syncTimeout time.Duration

	ready  atomic.Bool
	flight singleflight.Group
	// requested counts Sync calls; covered is the highest count whose
	// catalog read started after the request was made.
	requested atomic.Uint64
	covered   atomic.Uint64

	mu       sync.RWMutex
	lastSync time.Time
	products int
}

// New creates an Orchestrator. Nothing is loaded until Initialize or the
// first ProcessMessage.
func New(source catalog.Source, embedder *embedding.Service, index *vectorstore.Index,
	gen *generator.Generator, opts Options, logger *zap.Logger) *Orchestrator {
	o := &Orchestrator{
		source:      source,
		embedder:    embedder,
		index:       index,
		generator:   gen,
		logger:      logger,
		topK:        opts.TopK,
		concurrency: opts.Concurrency,
		syncTimeout: opts.SyncTimeout,
	}
	if o.topK <= 0 {
		o.topK = DefaultTopK
	}
	if o.concurrency <= 0 {
		o.concurrency = DefaultConcurrency
	}
	if o.syncTimeout <= 0 {
		o.syncTimeout = DefaultSyncTimeout
	}
	return o
}

// Ready reports whether the index has been populated at least once.
func (o *Orchestrator) Ready() bool { return o.ready.Load() }

// Initialize loads the catalog into the index. Concurrent calls share one run.
func (o *Orchestrator) Initialize(ctx context.Context) SyncReport {
	return o.do(ctx, false)
}

// Sync re-runs Initialize; call it when the catalog changes. A run already in
// flight read the catalog before this call, so Sync waits for it and then
// joins or starts a fresh one. Syncs requested during the same run share the
// follow-up.
func (o *Orchestrator) Sync(ctx context.Context) SyncReport {
	want := o.requested.Add(1)
	for {
		r := o.do(ctx, false)
		if r.Err != nil || o.covered.Load() >= want {
			return r
		}
	}
}

func (o *Orchestrator) ensureReady(ctx context.Context) {
	if o.ready.Load() {
		return
	}
	o.do(ctx, true)
}

// do runs or joins the shared sync. The run itself is detached from ctx; a
// caller whose ctx ends stops waiting but leaves the run going.
func (o *Orchestrator) do(ctx context.Context, lazy bool) SyncReport {
	ch := o.flight.DoChan(syncKey, func() (any, error) {
		if lazy && o.ready.Load() {
			return SyncReport{}, nil
		}
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.syncTimeout)
		defer cancel()
		return o.sync(sctx), nil
	})
	select {
	case res := <-ch:
		return res.Val.(SyncReport)
	case <-ctx.Done():
		return SyncReport{Err: ctx.Err(), Degraded: true}
	}
}

func (o *Orchestrator) sync(ctx context.Context) SyncReport {
	start := time.Now()
	seen := o.requested.Load()
	products, err := o.source.ListProducts(ctx)
	if err != nil {
		o.logger.Warn("catalog read failed, index not refreshed", zap.Error(err))
		return SyncReport{Err: err, Degraded: true, Duration: time.Since(start)}
	}

	valid := make([]catalog.Product, 0, len(products))
	for _, p := range products {
		if err := p.Validate(); err != nil {
			o.logger.Warn("skipping product", zap.String("id", p.ID), zap.Error(err))
			continue
		}
		valid = append(valid, p)
	}

	entries := make([]vectorstore.Entry, len(valid))
	var fallback atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, p := range valid {
		g.Go(func() error {
			res := o.embedder.Embed(gctx, rag.DocumentText(p))
			if res.Source == embedding.SourceHash {
				fallback.Add(1)
			}
			entries[i] = vectorstore.Entry{Product: p, Vector: res.Vector}
			return nil
		})
	}
	_ = g.Wait()

	// Vectors embedded after the deadline are hash fallbacks; writing them
	// would mix spaces with hosted query vectors.
	if err := ctx.Err(); err != nil {
		o.logger.Warn("catalog sync timed out, index not refreshed", zap.Error(err))
		return SyncReport{Products: len(products), Err: err, Degraded: true, Duration: time.Since(start)}
	}

	up := o.index.Upsert(ctx, entries)
	o.covered.Store(seen)

	now := time.Now()
	o.mu.Lock()
	o.lastSync = now
	o.products = len(valid)
	o.mu.Unlock()
	o.ready.Store(true)

	report := SyncReport{
		Products: len(products),
		Skipped:  len(products) - len(valid),
		Indexed:  up.Written,
		Fallback: int(fallback.Load()),
		Degraded: up.Degraded,
		Duration: time.Since(start),
	}
	o.logger.Info("catalog synced",
		zap.Int("products", report.Products),
		zap.Int("indexed", report.Indexed),
		zap.Int("fallback_embeddings", report.Fallback),
		zap.Duration("took", report.Duration))
	return report
}

// ProcessMessage answers text. It always returns a reply; a panic anywhere
// in the pipeline yields a fixed apology.
func (o *Orchestrator) ProcessMessage(ctx context.Context, text string) (reply Reply) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: %v", ErrPipelineFault, r)
			o.logger.Error("message pipeline panicked", zap.Error(err),
				zap.ByteString("stack", debug.Stack()))
			reply = Reply{Text: apology, Tier: TierApology, Degraded: true}
		}
	}()

	o.ensureReady(ctx)

	emb := o.embedder.Embed(ctx, text)
	found := o.index.Query(ctx, emb.Vector, o.topK)
	productContext := rag.Assemble(found.Matches)
	res := o.generator.Generate(ctx, productContext, text)

	o.logger.Debug("message answered",
		zap.Int("matches", len(found.Matches)),
		zap.String("tier", string(res.Tier)),
		zap.Bool("embedding_fallback", emb.Degraded),
		zap.Bool("index_degraded", found.Degraded))

	// Fallbacks from backends that were never configured are the normal
	// offline path, not degradation.
	return Reply{
		Text:     res.Text,
		Tier:     res.Tier,
		Degraded: res.Degraded || (emb.Degraded && o.embedder.Available()) || (found.Degraded && o.index.Available()),
	}
}

// Search returns the raw index matches for query, warming up first.
func (o *Orchestrator) Search(ctx context.Context, query string, topK int) []vectorstore.Match {
	o.ensureReady(ctx)
	if topK <= 0 {
		topK = o.topK
	}
	emb := o.embedder.Embed(ctx, query)
	return o.index.Query(ctx, emb.Vector, topK).Matches
}

// WatchCatalog syncs on every change until changes closes or ctx ends.
// Changes that queue up during a sync are folded into the next one.
func (o *Orchestrator) WatchCatalog(ctx context.Context, changes <-chan catalog.Change) {
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			n := 1 + drain(changes)
			o.logger.Info("catalog changed, syncing",
				zap.String("op", c.Op), zap.String("product_id", c.ProductID),
				zap.String("source", c.Source), zap.Int("pending", n))
			o.Sync(ctx)
		}
	}
}

func drain(changes <-chan catalog.Change) int {
	n := 0
	for {
		select {
		case _, ok := <-changes:
			if !ok {
				return n
			}
			n++
		default:
			return n
		}
	}
}

// Status reports readiness and backend availability.
func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s := Status{
		Ready:      o.ready.Load(),
		Products:   o.products,
		Embedding:  o.embedder.Available(),
		Index:      o.index.Available(),
		Completion: o.generator.Available(),
	}
	if !o.lastSync.IsZero() {
		t := o.lastSync
		s.LastSync = &t
	}
	return s
}

// AnyBackendAvailable reports whether at least one hosted backend is set up.
func (o *Orchestrator) AnyBackendAvailable() bool {
	s := o.Status()
	return s.Embedding || s.Index || s.Completion
}

// Describe renders Status for chat surfaces.
func (s Status) Describe() string {
	mark := func(b bool) string {
		if b {
			return "on"
		}
		return "fallback"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "ready: %t, products: %d\n", s.Ready, s.Products)
	fmt.Fprintf(&b, "embedding: %s, index: %s, completion: %s", mark(s.Embedding), mark(s.Index), mark(s.Completion))
	if s.LastSync != nil {
		fmt.Fprintf(&b, "\nlast sync: %s", s.LastSync.Format(time.RFC3339))
	}
	return b.String()
}
