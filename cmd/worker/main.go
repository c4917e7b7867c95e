package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"safetyreport_backend/internal/ai"
	"safetyreport_backend/internal/conversation"
	"safetyreport_backend/internal/ingest"
	"safetyreport_backend/internal/reports"
	"safetyreport_backend/internal/storage"
	"safetyreport_backend/internal/taxonomy"
	"safetyreport_backend/internal/whatsapp"
	"safetyreport_backend/migrations"
	"safetyreport_backend/platform/ai/embeddings"
	"safetyreport_backend/platform/config"
	"safetyreport_backend/platform/db"
	"safetyreport_backend/platform/logger"
	"safetyreport_backend/platform/qdrant"
	"safetyreport_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting conversation worker", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, cfg, migrations.FS); err != nil {
		log.Error("failed to run migrations", "error", err)
		panic("failed to run migrations: " + err.Error())
	}

	taxonomyRepo := taxonomy.NewRepository(pool)
	if err := taxonomyRepo.SeedDefaults(ctx); err != nil {
		log.Error("failed to seed taxonomy", "error", err)
		panic("failed to seed taxonomy: " + err.Error())
	}

	redisOpt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		log.Error("invalid redis url", "error", err)
		panic("invalid redis url: " + err.Error())
	}
	rdb := redis.NewClient(redisOpt)
	defer func() { _ = rdb.Close() }()

	snapshots := taxonomy.NewCachedProvider(taxonomyRepo, rdb, cfg.GetSnapshotCacheTTL(), log)

	images, err := storage.NewImageStore(cfg, log)
	if err != nil {
		log.Error("failed to initialize image store", "error", err)
		panic("failed to initialize image store: " + err.Error())
	}
	if err := withRetry(ctx, log, "image bucket", 5, 2*time.Second, func() error {
		return images.EnsureBucket(ctx)
	}); err != nil {
		log.Error("failed to ensure image bucket", "error", err)
		panic("failed to ensure image bucket: " + err.Error())
	}

	gemini, err := ai.NewGemini(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize gemini client", "error", err)
		panic("failed to initialize gemini client: " + err.Error())
	}

	var retriever ai.Retriever = ai.NoopRetriever{}
	if cfg.IsQdrantEnabled() && cfg.IsEmbeddingEnabled() {
		embedder := embeddings.NewClient(embeddings.Config{
			BaseURL: cfg.GetEmbeddingAPIURL(),
			APIKey:  cfg.GetEmbeddingAPIKey(),
		})
		qdrantClient := qdrant.NewClient(qdrant.Config{
			BaseURL:    cfg.GetQdrantURL(),
			APIKey:     cfg.GetQdrantAPIKey(),
			Collection: cfg.GetQdrantCollection(),
		})
		retriever = ai.NewQdrantRetriever(embedder, qdrantClient, log)
	} else {
		log.Warn("knowledge base not configured, advice will use general guidance only")
	}

	reportStore := reports.New(pool)

	module := conversation.NewModule(pool, reportStore, conversation.Deps{
		Images:    images,
		Taxonomy:  snapshots,
		Vision:    ai.NewGeminiVisionClassifier(gemini),
		Mapper:    ai.NewGeminiTextMapper(gemini),
		Retriever: retriever,
		Advisor:   ai.NewGeminiAdviceGenerator(gemini),
		Notifier:  whatsapp.NewClient(cfg, log),
	}, cfg, log)

	val := validator.New()

	worker, err := ingest.NewWorker(cfg, module.Dispatcher, val, log)
	if err != nil {
		log.Error("failed to initialize ingest worker", "error", err)
		panic("failed to initialize ingest worker: " + err.Error())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return warmSnapshots(gctx, snapshots, cfg.GetSnapshotCacheTTL(), log)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("worker exited", "error", err)
	}
}

// warmSnapshots keeps the taxonomy cache populated so the first message
// after a TTL expiry does not pay the database round trip.
func warmSnapshots(ctx context.Context, snapshots *taxonomy.CachedProvider, ttl time.Duration, log *logger.Logger) error {
	if ttl <= 0 {
		return nil
	}

	ticker := time.NewTicker(ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := snapshots.Snapshot(ctx); err != nil {
				log.Warn("taxonomy warm-up failed", "error", err)
			}
		}
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
