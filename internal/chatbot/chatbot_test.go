package chatbot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nidhogg/makers-assistant/internal/backend"
	"github.com/nidhogg/makers-assistant/internal/catalog"
	"github.com/nidhogg/makers-assistant/internal/embedding"
	"github.com/nidhogg/makers-assistant/internal/generator"
	"github.com/nidhogg/makers-assistant/internal/vectorstore"
	"go.uber.org/zap"
)

const dim = 64

type staticSource struct {
	products []catalog.Product
	err      error
	calls    atomic.Int32
	delay    time.Duration
}

func (s *staticSource) ListProducts(context.Context) ([]catalog.Product, error) {
	s.calls.Add(1)
	time.Sleep(s.delay)
	return s.products, s.err
}

// countingStore records upsert batches on top of a MemoryStore.
type countingStore struct {
	*vectorstore.MemoryStore
	batches atomic.Int32
	panics  bool
}

func (c *countingStore) Upsert(ctx context.Context, entries []vectorstore.Entry) error {
	c.batches.Add(1)
	return c.MemoryStore.Upsert(ctx, entries)
}

func (c *countingStore) Search(ctx context.Context, v []float32, k int) ([]vectorstore.Match, error) {
	if c.panics {
		panic("index exploded")
	}
	return c.MemoryStore.Search(ctx, v, k)
}

var products = []catalog.Product{
	{ID: "1", Name: "MacBook Air", Brand: "Apple", Category: "Computers", Description: "Thin laptop", Price: 1099, Stock: 4},
	{ID: "2", Name: "Galaxy S24", Brand: "Samsung", Category: "Smartphones", Description: "Android phone", Price: 899, Stock: 9},
	{ID: "3", Name: "iPad Air", Brand: "Apple", Category: "Tablets", Description: "M2 tablet", Price: 599, Stock: 2},
	{ID: "", Name: "Broken"},
}

func newTestOrchestrator(src catalog.Source, store *countingStore) *Orchestrator {
	logger := zap.NewNop()
	emb := embedding.NewService(backend.None[embedding.Provider]("offline"), dim, logger)
	idx := vectorstore.NewIndex(backend.Use[vectorstore.Store](store, true, ""), logger)
	gen := generator.New(backend.None[generator.Completer]("offline"), generator.Options{}, logger)
	return New(src, emb, idx, gen, Options{}, logger)
}

func TestConcurrentMessagesWarmUpOnce(t *testing.T) {
	src := &staticSource{products: products, delay: 50 * time.Millisecond}
	store := &countingStore{MemoryStore: vectorstore.NewMemoryStore(dim)}
	o := newTestOrchestrator(src, store)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reply := o.ProcessMessage(context.Background(), "any laptop?")
			if reply.Text == "" {
				t.Error("empty reply")
			}
		}()
	}
	wg.Wait()

	if got := store.batches.Load(); got != 1 {
		t.Fatalf("expected exactly one upsert batch, got %d", got)
	}
	if got := src.calls.Load(); got != 1 {
		t.Fatalf("expected one catalog read, got %d", got)
	}
	if store.Len() != 3 {
		t.Fatalf("expected 3 indexed products, got %d", store.Len())
	}
	if !o.Ready() {
		t.Fatal("orchestrator should be ready")
	}
}

func TestInitializeReport(t *testing.T) {
	store := &countingStore{MemoryStore: vectorstore.NewMemoryStore(dim)}
	o := newTestOrchestrator(&staticSource{products: products}, store)

	r := o.Initialize(context.Background())
	if r.Products != 4 || r.Skipped != 1 || r.Indexed != 3 || r.Fallback != 3 {
		t.Fatalf("unexpected report %+v", r)
	}
	// Sync re-runs even when ready.
	o.Sync(context.Background())
	if store.batches.Load() != 2 {
		t.Fatalf("expected a second batch, got %d", store.batches.Load())
	}
}

func TestProcessMessageUsesIndex(t *testing.T) {
	store := &countingStore{MemoryStore: vectorstore.NewMemoryStore(dim)}
	o := newTestOrchestrator(&staticSource{products: products}, store)

	reply := o.ProcessMessage(context.Background(), "Thin laptop")
	if reply.Tier != generator.TierTemplate {
		t.Fatalf("expected template tier, got %+v", reply)
	}
	if !strings.Contains(reply.Text, "MacBook Air") {
		t.Fatalf("expected MacBook in reply:\n%s", reply.Text)
	}
}

func TestCatalogFailureRetriesLazily(t *testing.T) {
	src := &staticSource{err: errors.New("db down")}
	store := &countingStore{MemoryStore: vectorstore.NewMemoryStore(dim)}
	o := newTestOrchestrator(src, store)

	reply := o.ProcessMessage(context.Background(), "hello")
	if reply.Tier != generator.TierCanned {
		t.Fatalf("expected canned reply with empty index, got %+v", reply)
	}
	if o.Ready() {
		t.Fatal("failed warm-up must not mark ready")
	}

	src.err = nil
	src.products = products
	o.ProcessMessage(context.Background(), "hello")
	if !o.Ready() || src.calls.Load() != 2 {
		t.Fatalf("expected retry on next message, calls=%d", src.calls.Load())
	}
}

func TestPanicBecomesApology(t *testing.T) {
	store := &countingStore{MemoryStore: vectorstore.NewMemoryStore(dim), panics: true}
	o := newTestOrchestrator(&staticSource{products: products}, store)

	reply := o.ProcessMessage(context.Background(), "laptop")
	if reply.Tier != TierApology || reply.Text != apology {
		t.Fatalf("expected apology, got %+v", reply)
	}
}

func TestWatchCatalogSyncsOnChange(t *testing.T) {
	store := &countingStore{MemoryStore: vectorstore.NewMemoryStore(dim)}
	o := newTestOrchestrator(&staticSource{products: products}, store)

	changes := make(chan catalog.Change, 4)
	done := make(chan struct{})
	go func() {
		o.WatchCatalog(context.Background(), changes)
		close(done)
	}()
	changes <- catalog.Change{Op: "UPDATE", ProductID: "1", Source: "test"}
	close(changes)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop after channel close")
	}
	if store.batches.Load() != 1 {
		t.Fatalf("expected one sync, got %d", store.batches.Load())
	}
}

func TestStatus(t *testing.T) {
	store := &countingStore{MemoryStore: vectorstore.NewMemoryStore(dim)}
	o := newTestOrchestrator(&staticSource{products: products}, store)

	s := o.Status()
	if s.Ready || s.LastSync != nil || s.Embedding || !s.Index || s.Completion {
		t.Fatalf("unexpected initial status %+v", s)
	}
	if !o.AnyBackendAvailable() {
		t.Fatal("index is configured")
	}
	o.Initialize(context.Background())
	s = o.Status()
	if !s.Ready || s.LastSync == nil || s.Products != 3 {
		t.Fatalf("unexpected status after sync %+v", s)
	}
	if !strings.Contains(s.Describe(), "embedding: fallback") {
		t.Fatalf("unexpected description %q", s.Describe())
	}
}

// growingSource returns the products present when the read starts, after a delay.
type growingSource struct {
	mu       sync.Mutex
	products []catalog.Product
	delay    time.Duration
	calls    atomic.Int32
}

func (s *growingSource) ListProducts(context.Context) ([]catalog.Product, error) {
	s.calls.Add(1)
	s.mu.Lock()
	snap := append([]catalog.Product(nil), s.products...)
	s.mu.Unlock()
	time.Sleep(s.delay)
	return snap, nil
}

func (s *growingSource) set(p []catalog.Product) {
	s.mu.Lock()
	s.products = p
	s.mu.Unlock()
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSyncDuringWarmUpSeesLaterChanges(t *testing.T) {
	src := &growingSource{products: products[:1], delay: 100 * time.Millisecond}
	store := &countingStore{MemoryStore: vectorstore.NewMemoryStore(dim)}
	o := newTestOrchestrator(src, store)

	go o.Initialize(context.Background())
	waitFor(t, "warm-up read", func() bool { return src.calls.Load() == 1 })

	src.set(products[:3])
	r := o.Sync(context.Background())

	if r.Indexed != 3 || store.Len() != 3 {
		t.Fatalf("sync after a change must index it: report %+v, store len %d", r, store.Len())
	}
	if got := src.calls.Load(); got != 2 {
		t.Fatalf("expected warm-up plus one follow-up read, got %d", got)
	}
}

func TestConcurrentSyncsShareFollowUp(t *testing.T) {
	src := &growingSource{products: products[:1], delay: 100 * time.Millisecond}
	store := &countingStore{MemoryStore: vectorstore.NewMemoryStore(dim)}
	o := newTestOrchestrator(src, store)

	go o.Initialize(context.Background())
	waitFor(t, "warm-up read", func() bool { return src.calls.Load() == 1 })
	src.set(products[:3])

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.Sync(context.Background())
		}()
	}
	wg.Wait()

	if store.Len() != 3 {
		t.Fatalf("expected 3 indexed products, got %d", store.Len())
	}
	if got := src.calls.Load(); got != 2 {
		t.Fatalf("syncs queued during one run should share a follow-up, got %d reads", got)
	}
}

// ctxProvider is a hosted embedder that honours cancellation.
type ctxProvider struct {
	block bool
	ok    atomic.Int32
}

func (p *ctxProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if p.block {
		<-ctx.Done()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.ok.Add(1)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = embedding.HashEmbed("hosted "+t, dim)
	}
	return out, nil
}

func (p *ctxProvider) Dimension() int { return dim }

func newHostedOrchestrator(src catalog.Source, store *countingStore, p *ctxProvider, opts Options) *Orchestrator {
	logger := zap.NewNop()
	emb := embedding.NewService(backend.Use[embedding.Provider](p, true, ""), dim, logger)
	idx := vectorstore.NewIndex(backend.Use[vectorstore.Store](store, true, ""), logger)
	gen := generator.New(backend.None[generator.Completer]("offline"), generator.Options{}, logger)
	return New(src, emb, idx, gen, opts, logger)
}

func TestCancelledCallerDoesNotPoisonWarmUp(t *testing.T) {
	src := &staticSource{products: products, delay: 20 * time.Millisecond}
	store := &countingStore{MemoryStore: vectorstore.NewMemoryStore(dim)}
	p := &ctxProvider{}
	o := newHostedOrchestrator(src, store, p, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reply := o.ProcessMessage(ctx, "laptop")
	if reply.Text == "" {
		t.Fatal("abandoned message still gets a reply")
	}

	waitFor(t, "detached warm-up", o.Ready)
	if store.batches.Load() != 1 || store.Len() != 3 {
		t.Fatalf("expected one batch of 3, got batches=%d len=%d", store.batches.Load(), store.Len())
	}
	if got := p.ok.Load(); got < 3 {
		t.Fatalf("catalog should be embedded by the hosted backend, got %d hosted calls", got)
	}
}

func TestTimedOutSyncLeavesIndexUntouched(t *testing.T) {
	src := &staticSource{products: products}
	store := &countingStore{MemoryStore: vectorstore.NewMemoryStore(dim)}
	o := newHostedOrchestrator(src, store, &ctxProvider{block: true}, Options{SyncTimeout: 20 * time.Millisecond})

	r := o.Initialize(context.Background())
	if r.Err == nil || !r.Degraded {
		t.Fatalf("expected a timed-out report, got %+v", r)
	}
	if o.Ready() || store.batches.Load() != 0 {
		t.Fatalf("timed-out sync must not write or mark ready: ready=%v batches=%d", o.Ready(), store.batches.Load())
	}
}

func TestOfflineRepliesAreNotDegraded(t *testing.T) {
	store := &countingStore{MemoryStore: vectorstore.NewMemoryStore(dim)}
	o := newTestOrchestrator(&staticSource{products: products}, store)

	reply := o.ProcessMessage(context.Background(), "Thin laptop")
	if reply.Degraded {
		t.Fatalf("unconfigured embedding and completion are not degradation: %+v", reply)
	}
}
