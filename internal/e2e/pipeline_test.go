//go:build integration

package e2e

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nidhogg/makers-assistant/internal/backend"
	"github.com/nidhogg/makers-assistant/internal/catalog"
	"github.com/nidhogg/makers-assistant/internal/chatbot"
	"github.com/nidhogg/makers-assistant/internal/embedding"
	"github.com/nidhogg/makers-assistant/internal/generator"
	"github.com/nidhogg/makers-assistant/internal/vectorstore"
	"github.com/testcontainers/testcontainers-go"
	tcpg "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"
)

// startPostgres starts a pgvector-enabled PostgreSQL container and returns its DSN.
func startPostgres(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tcpg.Run(ctx, "pgvector/pgvector:pg16",
		tcpg.WithDatabase("makers_test"),
		tcpg.WithUsername("test"),
		tcpg.WithPassword("test"),
		tcpg.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	testcontainers.CleanupContainer(t, container)
	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("pg connection string: %v", err)
	}
	return dsn
}

func TestPostgresPipeline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()
	logger := zap.NewNop()

	store, err := catalog.New(ctx, startPostgres(ctx, t), logger)
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx, "../../migrations"); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	for _, p := range []catalog.Product{
		{ID: "1", Name: "MacBook Air", Brand: "Apple", Category: "Computers", Description: "M3 laptop", Price: 1299, Stock: 4},
		{ID: "2", Name: "Galaxy S24", Brand: "Samsung", Category: "Phones", Description: "Android phone", Price: 859, Stock: 9},
		{ID: "3", Name: "iPad Air", Brand: "Apple", Category: "Tablets", Description: "M2 tablet", Price: 599, Stock: 7},
	} {
		if err := store.SaveProduct(ctx, p); err != nil {
			t.Fatalf("SaveProduct: %v", err)
		}
	}

	const dim = 128
	vectors, err := vectorstore.NewPgVectorStore(ctx, store.Pool(), dim)
	if err != nil {
		t.Fatalf("NewPgVectorStore: %v", err)
	}
	emb := embedding.NewService(backend.None[embedding.Provider]("offline"), dim, logger)
	idx := vectorstore.NewIndex(backend.Use[vectorstore.Store](vectorstore.Store(vectors), true, ""), logger)
	gen := generator.New(backend.None[generator.Completer]("offline"), generator.Options{}, logger)
	bot := chatbot.New(store, emb, idx, gen, chatbot.Options{}, logger)

	report := bot.Initialize(ctx)
	if report.Err != nil || report.Indexed != 3 {
		t.Fatalf("unexpected sync report: %+v", report)
	}
	if !bot.Ready() {
		t.Fatal("orchestrator should be ready after a successful sync")
	}

	reply := bot.ProcessMessage(ctx, "I need a tablet")
	if reply.Tier != generator.TierTemplate || !strings.Contains(reply.Text, "iPad Air") {
		t.Fatalf("unexpected reply: %+v", reply)
	}

	// A product inserted after start-up becomes searchable via LISTEN/NOTIFY.
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	listener := catalog.NewPGListener(store.Pool(), catalog.DefaultChannel, logger)
	go bot.WatchCatalog(watchCtx, listener.Watch(watchCtx))
	time.Sleep(500 * time.Millisecond)

	if err := store.SaveProduct(ctx, catalog.Product{
		ID: "4", Name: "Pixel 8 Pro", Brand: "Google", Category: "Phones", Description: "Tensor G3 phone", Price: 999, Stock: 3,
	}); err != nil {
		t.Fatalf("SaveProduct: %v", err)
	}

	deadline := time.Now().Add(15 * time.Second)
	for {
		if bot.Status().Products == 4 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("catalog change did not trigger a re-sync: %+v", bot.Status())
		}
		time.Sleep(200 * time.Millisecond)
	}
	found := false
	for _, m := range bot.Search(ctx, "Pixel 8 Pro Google phone", 4) {
		if m.Product.ID == "4" {
			found = true
		}
	}
	if !found {
		t.Fatal("new product not returned by search")
	}
}
