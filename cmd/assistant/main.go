package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nidhogg/makers-assistant/internal/api"
	"github.com/nidhogg/makers-assistant/internal/backend"
	"github.com/nidhogg/makers-assistant/internal/catalog"
	"github.com/nidhogg/makers-assistant/internal/chatbot"
	"github.com/nidhogg/makers-assistant/internal/command"
	"github.com/nidhogg/makers-assistant/internal/config"
	"github.com/nidhogg/makers-assistant/internal/embedding"
	"github.com/nidhogg/makers-assistant/internal/gateway"
	"github.com/nidhogg/makers-assistant/internal/generator"
	"github.com/nidhogg/makers-assistant/internal/provider"
	msgrouter "github.com/nidhogg/makers-assistant/internal/router"
	"github.com/nidhogg/makers-assistant/internal/vectorstore"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/assistant.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", cfgPath, err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Server.LogLevel)
	defer logger.Sync()
	logger.Info("Starting Makers assistant...", zap.String("config", cfgPath))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Catalog source and optional Postgres pool shared with pgvector.
	source, pgStore := openCatalog(ctx, cfg, logger)
	if pgStore != nil {
		defer pgStore.Close()
	}

	emb := embedding.NewServiceFromConfig(embedding.Config{
		Provider:   cfg.Embedding.Provider,
		Endpoint:   cfg.Embedding.Endpoint,
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		APIVersion: cfg.Embedding.APIVersion,
		Dimension:  cfg.Embedding.Dimension,
		Timeout:    seconds(cfg.Embedding.TimeoutSeconds),
	}, logger.Named("embedding"))

	index := vectorstore.NewIndex(openIndex(ctx, cfg, pgStore, emb.Dimension(), logger), logger.Named("index"))
	defer index.Close()

	providers := provider.NewRouter(logger.Named("provider"))
	for _, pc := range cfg.Providers {
		provCfg := provider.ProviderConfig{
			ID: pc.ID, Type: pc.Type, Name: pc.Name,
			Endpoint: pc.Endpoint, APIKey: pc.APIKey,
			APIVersion: pc.APIVersion, Model: pc.Model,
			Timeout: seconds(pc.TimeoutSeconds),
		}
		if ok, reason := provCfg.Configured(); !ok {
			logger.Debug("skipping provider", zap.String("id", pc.ID), zap.String("reason", reason))
			continue
		}
		p, err := provider.New(provCfg, logger)
		if err != nil {
			logger.Warn("unknown provider type", zap.String("id", pc.ID), zap.Error(err))
			continue
		}
		providers.Register(p)
	}
	if cfg.Generation.DefaultProvider != "" {
		providers.SetDefault(cfg.Generation.DefaultProvider)
	}
	completion := backend.Use[generator.Completer](providers, providers.Available(), "no completion provider configured")
	gen := generator.New(completion, generator.Options{MaxTokens: cfg.Generation.MaxTokens}, logger.Named("generator"))

	bot := chatbot.New(source, emb, index, gen, chatbot.Options{
		TopK:        cfg.Index.TopK,
		Concurrency: cfg.Catalog.SyncConcurrency,
	}, logger.Named("chatbot"))

	// Warm up in the background; the first message waits on the same flight.
	go bot.Initialize(ctx)

	if watcher := openWatcher(ctx, cfg, pgStore, logger); watcher != nil {
		go bot.WatchCatalog(ctx, watcher.Watch(ctx))
	}

	// Gateway and message routing.
	gw := gateway.NewGateway(logger.Named("gateway"))
	commands := command.NewRegistry()
	command.RegisterBuiltins(commands, bot, msgrouter.AdapterStatuses{Gateway: gw})
	command.RegisterProviderCommands(commands, msgrouter.ProviderSwitcher{Router: providers})
	msgRouter := msgrouter.New(bot, gw, commands, 0, logger.Named("router"))
	gw.SetHandler(msgRouter.Handle)

	restAdapter := gateway.NewRESTAdapter(0, logger)
	gw.Register(restAdapter)

	if cfg.Gateway.Slack.Enabled && cfg.Gateway.Slack.BotToken != "" {
		gw.Register(gateway.NewSlackAdapter(cfg.Gateway.Slack.BotToken, cfg.Gateway.Slack.AppToken, logger.Named("slack")))
	}
	if cfg.Gateway.Discord.Enabled && cfg.Gateway.Discord.BotToken != "" {
		gw.Register(gateway.NewDiscordAdapter(cfg.Gateway.Discord.BotToken, logger.Named("discord")))
	}
	if err := gw.ConnectAll(ctx); err != nil {
		logger.Warn("some gateway adapters failed to connect", zap.Error(err))
	}

	handler := api.NewHandler(ctx, bot, restAdapter, gw, providers, cfg.Server.CORSOrigins, logger.Named("api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Makers assistant listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down Makers assistant...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	gw.Close()
}

func newLogger(level string) *zap.Logger {
	if level == "development" {
		logger, _ := zap.NewDevelopment()
		return logger
	}
	zc := zap.NewProductionConfig()
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := zc.Build()
	if err != nil {
		return zap.NewExample()
	}
	return logger
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// openCatalog returns the configured product source. A Postgres source that
// cannot be reached degrades to the seed file.
func openCatalog(ctx context.Context, cfg *config.Config, logger *zap.Logger) (catalog.Source, *catalog.Store) {
	fileSource := catalog.NewFileSource(cfg.Catalog.File)
	needPG := cfg.Catalog.Source == "postgres" || cfg.Index.Backend == "pgvector" || cfg.Catalog.Watch == "postgres"
	if !needPG || cfg.Database.Postgres.DSN == "" {
		return fileSource, nil
	}

	store, err := catalog.New(ctx, cfg.Database.Postgres.DSN, logger.Named("catalog"))
	if err != nil {
		logger.Warn("PostgreSQL unavailable, using catalog file", zap.Error(err))
		return fileSource, nil
	}
	if err := store.Migrate(ctx, cfg.Catalog.Migrations); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}
	if cfg.Catalog.Source == "postgres" {
		return store, store
	}
	return fileSource, store
}

func openIndex(ctx context.Context, cfg *config.Config, pg *catalog.Store, dim int, logger *zap.Logger) backend.State[vectorstore.Store] {
	switch cfg.Index.Backend {
	case "memory":
		return backend.Use[vectorstore.Store](vectorstore.NewMemoryStore(dim), true, "")
	case "qdrant":
		q, err := vectorstore.NewQdrantStore(ctx, vectorstore.QdrantConfig{
			Host:       cfg.Database.Qdrant.Host,
			Port:       cfg.Database.Qdrant.Port,
			Collection: cfg.Index.Collection,
		}, dim)
		if err != nil {
			logger.Warn("Qdrant unavailable, running without index", zap.Error(err))
			return backend.None[vectorstore.Store](err.Error())
		}
		return backend.Use[vectorstore.Store](q, true, "")
	case "pgvector":
		if pg == nil {
			return backend.None[vectorstore.Store]("pgvector selected but PostgreSQL unavailable")
		}
		s, err := vectorstore.NewPgVectorStore(ctx, pg.Pool(), dim)
		if err != nil {
			logger.Warn("pgvector unavailable, running without index", zap.Error(err))
			return backend.None[vectorstore.Store](err.Error())
		}
		return backend.Use[vectorstore.Store](s, true, "")
	}
	return backend.None[vectorstore.Store](fmt.Sprintf("index backend %q disabled", cfg.Index.Backend))
}

func openWatcher(ctx context.Context, cfg *config.Config, pg *catalog.Store, logger *zap.Logger) catalog.Watcher {
	switch cfg.Catalog.Watch {
	case "postgres":
		if pg == nil {
			logger.Warn("postgres change feed requested but PostgreSQL unavailable")
			return nil
		}
		return catalog.NewPGListener(pg.Pool(), cfg.Catalog.Channel, logger.Named("listener"))
	case "redis":
		w, err := catalog.NewStreamWatcher(ctx, cfg.Database.Redis.URL, cfg.Catalog.Stream, logger.Named("stream"))
		if err != nil {
			logger.Warn("Redis unavailable, catalog changes will not trigger syncs", zap.Error(err))
			return nil
		}
		go func() {
			<-ctx.Done()
			w.Close()
		}()
		return w
	}
	return nil
}
