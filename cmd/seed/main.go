// Command seed loads a product file into the PostgreSQL catalog and, when a
// Redis URL is given, announces the change on the catalog stream.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/nidhogg/makers-assistant/internal/catalog"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	file := flag.String("file", "configs/products.json", "product JSON file")
	dsn := flag.String("dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL DSN")
	migrations := flag.String("migrations", "migrations", "migrations directory")
	redisURL := flag.String("redis", os.Getenv("REDIS_URL"), "Redis URL for change announcements (optional)")
	stream := flag.String("stream", catalog.DefaultStream, "Redis stream name")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if *dsn == "" {
		logger.Fatal("a PostgreSQL DSN is required (-dsn or POSTGRES_DSN)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	products, err := catalog.NewFileSource(*file).ListProducts(ctx)
	if err != nil {
		logger.Fatal("read products", zap.Error(err))
	}

	store, err := catalog.New(ctx, *dsn, logger)
	if err != nil {
		logger.Fatal("connect catalog", zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(ctx, *migrations); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	saved := 0
	for _, p := range products {
		if err := p.Validate(); err != nil {
			logger.Warn("skipping product", zap.Error(err))
			continue
		}
		if err := store.SaveProduct(ctx, p); err != nil {
			logger.Fatal("save product", zap.Error(err))
		}
		saved++
	}
	logger.Info("catalog seeded", zap.Int("products", saved), zap.String("file", *file))

	if *redisURL == "" {
		return
	}
	w, err := catalog.NewStreamWatcher(ctx, *redisURL, *stream, logger)
	if err != nil {
		logger.Warn("skipping change announcement", zap.Error(err))
		return
	}
	defer w.Close()
	if err := w.Publish(ctx, catalog.Change{Op: "UPDATE", Source: "seed"}); err != nil {
		logger.Warn("announce change", zap.Error(err))
	}
}
