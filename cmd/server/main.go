package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"cortex/internal/audit"
	chatservice "cortex/internal/chat/service"
	chatstore "cortex/internal/chat/store"
	"cortex/internal/jwttoken"
	"cortex/internal/knowledge"
	"cortex/internal/platform/config"
	"cortex/internal/platform/database"
	"cortex/internal/platform/health"
	"cortex/internal/platform/kafka/producer"
	"cortex/internal/platform/logger"
	platformredis "cortex/internal/platform/redis"
	rladmin "cortex/internal/ratelimit/admin"
	rlmetrics "cortex/internal/ratelimit/metrics"
	rlservice "cortex/internal/ratelimit/service"
	policystore "cortex/internal/ratelimit/store/policy"
	usagestore "cortex/internal/ratelimit/store/usage"
	"cortex/internal/ratelimit/workers/cleanup"
	"cortex/internal/server"
	"cortex/internal/upstream/llm"
	"cortex/migrations"
	"cortex/pkg/tracer"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal packages; everything here is assembly.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// usageBackend is what both the admission service and the cleanup worker
// need from one usage store instance.
type usageBackend interface {
	rlservice.UsageStore
	cleanup.UsageStore
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("initializing cortex",
		"addr", cfg.Addr,
		"postgres", cfg.DatabaseURL != "",
		"redis", cfg.RedisAddr != "",
		"kafka", cfg.KafkaBrokers != "",
	)

	// Storage. Missing Postgres or Redis falls back to in-memory stores so a
	// bare `go run ./cmd/server` works for local development.
	pool, err := database.New(database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return err
	}
	defer pool.Close() //nolint:errcheck // shutdown path

	if pool != nil {
		migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := migrations.Apply(migrateCtx, pool.DB()); err != nil {
			return err
		}
		log.Info("database migrations applied")
	}

	redisClient, err := platformredis.New(cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		return err
	}

	var (
		chatStore      chatservice.ChatStore
		policyStore    rlservice.PolicyStore
		usageStore     usageBackend
		knowledgeStore knowledge.Store
	)
	if pool != nil {
		chatStore = chatstore.NewPostgres(pool.DB())
		policyStore = policystore.NewPostgres(pool.DB())
		usageStore = usagestore.NewPostgres(pool.DB())
		knowledgeStore = knowledge.NewPostgres(pool.DB())
	} else {
		chatStore = chatstore.NewInMemoryStore()
		policyStore = policystore.NewInMemoryStore()
		usageStore = usagestore.NewInMemoryStore()
		knowledgeStore = knowledge.NewInMemoryStore()
	}
	// Redis beats Postgres for the hot admission path when both are up.
	if redisClient != nil {
		usageStore = usagestore.NewRedis(redisClient.Client)
	}

	// Audit pipeline. Absent brokers means events go to logs only.
	var auditPublisher *audit.Publisher
	var kafkaProducer *producer.Producer
	if cfg.KafkaBrokers != "" {
		kafkaProducer, err = producer.New(producer.Config{
			Brokers: cfg.KafkaBrokers,
		}, log)
		if err != nil {
			return err
		}
		defer kafkaProducer.Close() //nolint:errcheck // shutdown path
		auditPublisher = audit.NewPublisher(kafkaProducer, cfg.AuditTopic, log)
	}

	// Rate limiting.
	rlMetrics := rlmetrics.New()
	admitter, err := rlservice.New(policyStore, usageStore,
		rlservice.WithLogger(log),
		rlservice.WithMetrics(rlMetrics),
		rlservice.WithAuditPublisher(auditPublisher),
	)
	if err != nil {
		return err
	}

	// Upstream completion client; nil keeps the gateway serving 503 for chat
	// while health and admin stay up.
	otelTracer := tracer.NewOTel()
	var completer chatservice.Completer
	if cfg.UpstreamAPIKey != "" || cfg.UpstreamBaseURL != "" {
		client, err := llm.New(llm.Config{
			BaseURL: cfg.UpstreamBaseURL,
			APIKey:  cfg.UpstreamAPIKey,
			Model:   cfg.UpstreamModel,
			Timeout: cfg.UpstreamTimeout,
		}, llm.WithLogger(log), llm.WithTracer(otelTracer))
		if err != nil {
			return err
		}
		completer = client
	} else {
		log.Warn("upstream credentials not configured, chat requests will be rejected")
	}

	chatSvc, err := chatservice.New(chatStore, admitter,
		chatservice.WithLogger(log),
		chatservice.WithCompleter(completer),
		chatservice.WithContextBuilder(knowledge.NewContextBuilder(knowledgeStore)),
		chatservice.WithTracer(otelTracer),
	)
	if err != nil {
		return err
	}

	// Auth.
	tokens := jwttoken.New(cfg.JWTSigningKey, "cortex", time.Hour)

	// Health probes.
	healthHandler := health.New(envName())
	if pool != nil {
		healthHandler.RegisterCheck("postgres", func() error {
			checkCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Health(checkCtx)
		})
	}
	if redisClient != nil {
		healthHandler.RegisterCheck("redis", func() error {
			checkCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redisClient.Health(checkCtx)
		})
	}
	if kafkaProducer != nil {
		healthHandler.RegisterCheck("kafka", func() error {
			checkCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if !kafkaProducer.Healthy(checkCtx) {
				return errors.New("kafka unreachable")
			}
			return nil
		})
	}

	router := server.NewRouter(server.Config{
		Logger:         log,
		TokenValidator: jwttoken.NewMiddlewareAdapter(tokens),
		ChatService:    chatSvc,
		AdminHandler:   rladmin.NewHandler(admitter, log),
		Health:         healthHandler,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	cleanupWorker := cleanup.New(usageStore,
		cleanup.WithLogger(log),
		cleanup.WithInterval(cfg.CleanupInterval),
		cleanup.WithRetention(cfg.UsageRetention),
		cleanup.WithMetrics(rlMetrics),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if err := cleanupWorker.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if redisClient != nil {
		g.Go(func() error {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					redisClient.RecordPoolStats()
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

func envName() string {
	if env := os.Getenv("CORTEX_ENV"); env != "" {
		return env
	}
	return "development"
}
