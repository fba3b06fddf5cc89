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
	"github.com/nidhogg/findit/internal/api"
	"github.com/nidhogg/findit/internal/config"
	"github.com/nidhogg/findit/internal/embedding"
	"github.com/nidhogg/findit/internal/events"
	"github.com/nidhogg/findit/internal/graph"
	"github.com/nidhogg/findit/internal/match"
	"github.com/nidhogg/findit/internal/service"
	pgstore "github.com/nidhogg/findit/internal/store"
	"github.com/nidhogg/findit/internal/vectorstore"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const startupTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load()

	boot, _ := zap.NewDevelopment()
	cfgPath := config.Path()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		boot.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger, err := cfg.Logger()
	if err != nil {
		boot.Fatal("failed to build logger", zap.Error(err))
	}
	defer logger.Sync()
	logger.Info("Starting findit", zap.String("config", cfgPath))

	matchCfg, err := cfg.MatchOptions()
	if err != nil {
		logger.Fatal("invalid matching config", zap.Error(err))
	}

	ctx := context.Background()

	// PostgreSQL holds every report; nothing works without it.
	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	pg, err := pgstore.New(startCtx, cfg.Database.Postgres.DSN, logger)
	cancel()
	if err != nil {
		logger.Fatal("PostgreSQL unavailable", zap.Error(err))
	}
	defer pg.Close()
	if err := pg.Migrate(ctx, cfg.Server.MigrationsDir); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	// Redis backs the shared embedding cache and the match event stream.
	var rdb *redis.Client
	if cfg.Database.Redis.URL != "" {
		startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
		rdb, err = events.Dial(startCtx, cfg.Database.Redis.URL)
		cancel()
		if err != nil {
			logger.Warn("Redis unavailable, running without shared cache and events", zap.Error(err))
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	embedder := buildEmbedder(cfg.Embedding, rdb, logger)
	engine, err := match.NewEngine(embedder, matchCfg, logger)
	if err != nil {
		logger.Fatal("invalid matching config", zap.Error(err))
	}

	var with []service.Option

	if rdb != nil {
		bus := events.NewBus(rdb, cfg.Database.Redis.StreamMaxLen, logger)
		with = append(with, service.WithPublisher(bus))
	}

	if cfg.Database.Qdrant.Host != "" {
		if ix := buildIndex(ctx, cfg, logger); ix != nil {
			with = append(with, service.WithIndex(ix))
		}
	}

	var ledger *graph.Ledger
	if cfg.Database.Neo4j.URI != "" {
		ledger = buildLedger(ctx, cfg.Database.Neo4j, logger)
		if ledger != nil {
			defer ledger.Close(ctx)
			with = append(with, service.WithLedger(ledger))
		}
	}

	svc := service.New(engine, pg, embedder, cfg.ServiceOptions(), logger, with...)
	handler := api.NewHandler(svc, logger)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("findit listening",
			zap.String("addr", addr),
			zap.String("preset", matchCfg.Preset),
			zap.Float64("threshold", matchCfg.Threshold))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down findit...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

// buildEmbedder falls back to the hash provider when the configured model
// cannot be set up.
func buildEmbedder(ec embedding.Config, rdb *redis.Client, logger *zap.Logger) *embedding.Embedder {
	provider, err := embedding.NewProvider(ec)
	if err != nil {
		logger.Warn("embedding provider unavailable, using hash embeddings", zap.Error(err))
		provider = embedding.NewHashProvider(ec.Dimension)
	}

	var shared embedding.SharedStore
	ttl, err := ec.SharedTTL()
	if err != nil {
		logger.Warn("ignoring shared embedding cache", zap.Error(err))
	} else if ttl > 0 && rdb != nil {
		shared = embedding.NewRedisStore(rdb, embedding.Namespace(provider), ttl)
	}

	size := ec.CacheSize
	if size <= 0 {
		size = embedding.DefaultCacheSize
	}
	cache, err := embedding.NewCache(size, shared, logger)
	if err != nil {
		logger.Fatal("embedding cache", zap.Error(err))
	}
	logger.Info("Embedding provider ready",
		zap.String("provider", ec.Provider),
		zap.String("namespace", embedding.Namespace(provider)),
		zap.Int("dimension", provider.Dimension()),
		zap.Bool("shared_cache", shared != nil))
	return embedding.NewEmbedder(provider, cache, logger)
}

func buildIndex(ctx context.Context, cfg *config.Config, logger *zap.Logger) *vectorstore.Index {
	if cfg.Embedding.Dimension <= 0 {
		logger.Warn("embedding.dimension unset, running without vector prefilter")
		return nil
	}
	client, err := vectorstore.NewClient(cfg.Database.Qdrant)
	if err != nil {
		logger.Warn("Qdrant unavailable, running without vector prefilter", zap.Error(err))
		return nil
	}
	ix := vectorstore.NewIndex(client, cfg.Embedding.Dimension, logger)
	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()
	if err := ix.Ensure(startCtx); err != nil {
		logger.Warn("Qdrant unavailable, running without vector prefilter", zap.Error(err))
		client.Close()
		return nil
	}
	return ix
}

func buildLedger(ctx context.Context, nc config.Neo4jConfig, logger *zap.Logger) *graph.Ledger {
	ledger, err := graph.NewLedger(nc.URI, nc.User, nc.Password, logger)
	if err != nil {
		logger.Warn("Neo4j unavailable, running without match ledger", zap.Error(err))
		return nil
	}
	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()
	if err := ledger.Ping(startCtx); err != nil {
		logger.Warn("Neo4j unavailable, running without match ledger", zap.Error(err))
		ledger.Close(ctx)
		return nil
	}
	if err := ledger.EnsureSchema(startCtx); err != nil {
		logger.Warn("Neo4j schema", zap.Error(err))
	}
	return ledger
}
