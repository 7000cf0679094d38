//go:build integration

package vectorstore

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nidhogg/makers-assistant/internal/catalog"
	tcpg "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func TestPgVectorStore(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := tcpg.Run(ctx, "pgvector/pgvector:pg16",
		tcpg.WithDatabase("vectors_test"),
		tcpg.WithUsername("test"),
		tcpg.WithPassword("test"),
		tcpg.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start pgvector: %v", err)
	}
	t.Cleanup(func() { container.Terminate(context.Background()) })
	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	defer pool.Close()

	s, err := NewPgVectorStore(ctx, pool, 3)
	if err != nil {
		t.Fatalf("NewPgVectorStore: %v", err)
	}

	err = s.Upsert(ctx, []Entry{
		{Product: catalog.Product{ID: "1", Name: "MacBook", Category: "Computers", Price: 1299}, Vector: []float32{1, 0, 0}},
		{Product: catalog.Product{ID: "2", Name: "Pixel", Category: "Phones", Price: 699}, Vector: []float32{0, 1, 0}},
		{Product: catalog.Product{ID: "3", Name: "ThinkPad", Category: "Computers", Price: 999}, Vector: []float32{1, 0, 0}},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	// Re-upserting an id overwrites it rather than adding a row.
	err = s.Upsert(ctx, []Entry{
		{Product: catalog.Product{ID: "2", Name: "Pixel 9", Category: "Phones", Price: 799}, Vector: []float32{0, 1, 0}},
	})
	if err != nil {
		t.Fatalf("re-Upsert: %v", err)
	}

	got, err := s.Search(ctx, []float32{1, 0, 0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(got))
	}
	if got[0].Product.ID != "1" || got[1].Product.ID != "3" {
		t.Fatalf("ties should keep insertion order, got %s,%s", got[0].Product.ID, got[1].Product.ID)
	}
	if got[2].Product.Name != "Pixel 9" || got[2].Product.Price != 799 {
		t.Fatalf("overwrite not visible: %+v", got[2].Product)
	}
}
