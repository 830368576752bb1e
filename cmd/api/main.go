package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"
	limiterstdlib "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/noah-isme/backend-cotiza/internal/catalog"
	"github.com/noah-isme/backend-cotiza/internal/collections"
	"github.com/noah-isme/backend-cotiza/internal/config"
	"github.com/noah-isme/backend-cotiza/internal/events"
	"github.com/noah-isme/backend-cotiza/internal/health"
	"github.com/noah-isme/backend-cotiza/internal/jobs"
	"github.com/noah-isme/backend-cotiza/internal/obs"
	"github.com/noah-isme/backend-cotiza/internal/quote"
)

const metricsNamespace = "cotiza"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "cotiza-api",
			Endpoint:      cfg.OTLPEndpoint,
			SamplingRatio: 1,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := runMigrations(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	pool := mustInitDatabase(ctx, cfg, logger)
	defer pool.Close()

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	asynqOpts, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis uri for asynq")
	}
	taskClient := asynq.NewClient(asynqOpts)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close asynq client")
		}
	}()

	bus := &events.Bus{
		Store:     events.NewPGStore(pool),
		Scheduler: &jobs.Enqueuer{Client: taskClient},
		Notifiers: []events.Notifier{obs.MetricsNotifier{}},
	}

	catalogSvc, err := catalog.NewService(catalog.ServiceConfig{
		Store: catalog.NewRepository(pool),
		Cache: catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}
	catalogHandler := catalog.NewHandler(catalogSvc)

	quoteSvc := &quote.Service{
		Pool:     pool,
		Store:    quote.NewRepository(pool),
		Catalog:  catalogSvc,
		Bus:      bus,
		Cashback: cfg.CashbackSettings(),
	}
	quoteHandler := quote.NewHandler(quoteSvc)

	collectionsSvc := &collections.Service{
		Pool:  pool,
		Store: collections.NewRepository(pool),
		Cache: collections.NewCache(redisClient, cfg.PortfolioCacheTTL),
		Bus:   bus,
	}
	collectionsHandler := collections.NewHandler(collectionsSvc)

	httpMetrics := obs.NewHTTPMetrics(metricsNamespace, nil)

	rateMiddleware, err := newRateLimiter(redisClient, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(rateMiddleware)

	r.Handle("/metrics", promhttp.Handler())

	healthHandler := health.Handler{
		Checker: health.Probe{Pool: pool, Redis: redisClient},
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Route("/catalog/entries", func(c chi.Router) {
			c.Get("/", catalogHandler.List)
			c.Post("/", catalogHandler.Create)
			c.Get("/{entryId}", catalogHandler.Get)
			c.Put("/{entryId}", catalogHandler.Update)
		})

		v.Route("/quotes", func(q chi.Router) {
			q.Post("/", quoteHandler.Create)
			q.Get("/{quoteId}", quoteHandler.Get)
			q.Post("/{quoteId}/cancel", quoteHandler.Cancel)
			q.Post("/{quoteId}/pending-lines", quoteHandler.AddPendingLines)
			q.Post("/{quoteId}/pending-lines/approve", quoteHandler.ApprovePending)
			q.Delete("/{quoteId}/pending-lines", quoteHandler.RejectPending)
			q.Patch("/{quoteId}/lines/{lineId}", quoteHandler.RepriceLine)

			q.Post("/{quoteId}/payments", collectionsHandler.RecordPayment)
			q.Get("/{quoteId}/balance", collectionsHandler.Balance)
		})

		v.Delete("/payments/{paymentId}", collectionsHandler.VoidPayment)
		v.Get("/collections/portfolio", collectionsHandler.Portfolio)
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-runCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
}

func mustInitDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "cotiza-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisotel.InstrumentMetrics(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis metrics")
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return client
}

func runMigrations(databaseURL string) error {
	dir := envOrDefault("MIGRATIONS_DIR", "db/migrations")
	m, err := migrate.New("file://"+dir, databaseURL)
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func newRateLimiter(client *redis.Client, cfg *config.Config) (func(http.Handler) http.Handler, error) {
	store, err := limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix: "cotiza:ratelimit",
	})
	if err != nil {
		return nil, err
	}
	instance := limiter.New(store, limiter.Rate{
		Period: cfg.RateLimitPeriod,
		Limit:  cfg.RateLimitRequests,
	})
	return limiterstdlib.NewMiddleware(instance).Handler, nil
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}
