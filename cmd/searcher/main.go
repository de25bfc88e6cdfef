package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/help-search/internal/content"
	"github.com/Adithya-Monish-Kumar-K/help-search/internal/helpsearch"
	"github.com/Adithya-Monish-Kumar-K/help-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/help-search/internal/indexer/consumer"
	ingesthandler "github.com/Adithya-Monish-Kumar-K/help-search/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/help-search/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/help-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/help-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/help-search/internal/statistics"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/help-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/resilience"
)

const snapshotsKept = 100

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting help search service",
		"port", cfg.Server.Port,
		"default_language", cfg.Search.DefaultLanguage,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("help search service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("help search service stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownMetrics(shutdownCtx)
		}()
	}

	engine, err := helpsearch.New(cfg.Search)
	if err != nil {
		return fmt.Errorf("creating search engine: %w", err)
	}
	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		n := engine.Statistics().Index.TotalContentItems
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d content items", n)}
	})

	var (
		contentStore *content.Store
		statsStore   *statistics.Store
	)
	if cfg.Postgres.Enabled {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer db.Close()
		contentStore = content.NewStore(db)
		statsStore = statistics.NewStore(db)
		if err := contentStore.Migrate(ctx); err != nil {
			return err
		}
		if err := statsStore.Migrate(ctx); err != nil {
			return err
		}
		restoreStatistics(ctx, statsStore, engine)
		checker.Register("postgres", health.PingCheck(db.Ping, false))
		slog.Info("postgres connected", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	}

	var resultCache *cache.ResultCache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			breaker := resilience.NewBreaker("redis", resilience.BreakerConfig{
				FailureThreshold: 5,
				ResetTimeout:     30 * time.Second,
				OnStateChange: func(name string, from, to resilience.State) {
					m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
				},
			})
			resultCache = cache.New(redisClient, cfg.Redis.CacheTTL, breaker, m, cache.WithGeneration(engine.Generation))
			checker.Register("redis", health.PingCheck(redisClient.Ping, false))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var invalidator indexer.Invalidator
	if resultCache != nil {
		invalidator = resultCache
	}
	ix := indexer.New(engine, invalidator, m)

	var source indexer.Source = content.BundleDir{Dir: cfg.Content.BundleDir}
	if cfg.Content.LoadFromPostgres && contentStore != nil {
		source = contentStore
	}
	report, err := ix.Reload(ctx, source)
	if err != nil {
		slog.Warn("initial content load failed, starting with an empty index", "error", err)
	} else {
		slog.Info("initial content indexed", "indexed", report.Indexed, "skipped", len(report.Skipped))
	}

	g, ctx := errgroup.WithContext(ctx)

	var pub *publisher.Publisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.ContentUpdates)
		defer producer.Close()
		var store publisher.Store
		if contentStore != nil {
			store = contentStore
		}
		pub = publisher.New(store, producer)

		// Every replica applies every event, so each needs its own group.
		kafkaCfg := cfg.Kafka
		kafkaCfg.ConsumerGroup = replicaGroup(cfg.Kafka.ConsumerGroup)
		indexConsumer := consumer.New(kafka.NewConsumer(kafkaCfg, cfg.Kafka.Topics.ContentUpdates, consumer.HandleMessage(ix, m)))
		defer indexConsumer.Close()
		g.Go(func() error { return indexConsumer.Start(ctx) })
		slog.Info("content updates via kafka", "topic", cfg.Kafka.Topics.ContentUpdates, "group", kafkaCfg.ConsumerGroup)
	}

	if statsStore != nil {
		snapshotter := statistics.NewSnapshotter(statsStore, engine, cfg.Statistics.SnapshotInterval, m)
		g.Go(func() error { return snapshotter.Run(ctx) })
	}

	mux := http.NewServeMux()
	handler.New(engine, resultCache, m).Register(mux)
	ingesthandler.New(ix, pub, source).Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	chain := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.Logging,
		middleware.Recover,
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		chain = append(chain, middleware.CORS(cfg.Server.CORSOrigins))
	}
	if cfg.Server.RateLimitPerMinute > 0 {
		limiter := ratelimit.New(cfg.Server.RateLimitPerMinute, time.Minute)
		g.Go(func() error { return limiter.Run(ctx, 5*time.Minute) })
		chain = append(chain, middleware.RateLimit(limiter))
	}
	chain = append(chain, middleware.Timeout(cfg.Server.WriteTimeout), middleware.Metrics(m))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, chain...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g.Go(func() error {
		slog.Info("help search service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func restoreStatistics(ctx context.Context, store *statistics.Store, engine *helpsearch.Engine) {
	latest, err := store.LatestSnapshot(ctx)
	if err != nil {
		slog.Warn("could not load statistics snapshot", "error", err)
		return
	}
	if latest != nil {
		engine.RestoreStatistics(*latest)
	}
	if pruned, err := store.Prune(ctx, snapshotsKept); err != nil {
		slog.Warn("could not prune statistics snapshots", "error", err)
	} else if pruned > 0 {
		slog.Info("old statistics snapshots pruned", "count", pruned)
	}
}

func replicaGroup(base string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return base
	}
	return base + "-" + host
}
