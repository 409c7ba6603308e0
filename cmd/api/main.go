package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gmeppo/eppo-proposals/internal/cart"
	"github.com/gmeppo/eppo-proposals/internal/catalog"
	"github.com/gmeppo/eppo-proposals/internal/common"
	"github.com/gmeppo/eppo-proposals/internal/config"
	"github.com/gmeppo/eppo-proposals/internal/events"
	"github.com/gmeppo/eppo-proposals/internal/health"
	"github.com/gmeppo/eppo-proposals/internal/lock"
	"github.com/gmeppo/eppo-proposals/internal/obs"
	"github.com/gmeppo/eppo-proposals/internal/proposal"
	"github.com/gmeppo/eppo-proposals/internal/ratelimit"
	"github.com/gmeppo/eppo-proposals/internal/resilience"
	"github.com/gmeppo/eppo-proposals/internal/security"
	"github.com/gmeppo/eppo-proposals/internal/stock"
)

const serviceName = "eppo-proposals"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	namespace := cfg.Obs.MetricsNamespace
	obs.MustRegisterDomainMetrics(namespace, nil)
	resilience.MustRegisterMetrics(namespace, nil)

	tracingEnabled := cfg.Obs.EnableTracing
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   serviceName,
			Endpoint:      cfg.Obs.OTLPEndpoint,
			Exporter:      cfg.Obs.TracingExporter,
			SamplingRatio: cfg.Obs.SamplingRatio,
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

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = serviceName

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if cfg.Obs.EnablePrometheus {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	catalogGateway := catalog.GuardedGateway{
		Next: catalog.NewPostgresGateway(pool, logger),
		Breaker: resilience.NewBreaker(resilience.BreakerConfig{
			Target:  "catalog",
			OpenFor: cfg.CatalogBreakerOpenFor,
			Logger:  logger,
		}),
		Retry: resilience.RetryPolicy{
			MaxAttempts: cfg.CatalogRetryAttempts,
			BaseBackoff: 50 * time.Millisecond,
			Jitter:      0.2,
		},
	}
	catalogService, err := catalog.NewService(catalog.ServiceConfig{
		Gateway:         catalogGateway,
		Cache:           catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
		Logger:          logger,
		DefaultLanguage: cfg.DefaultLanguage,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog service")
	}
	catalogHandler := catalog.NewHandler(catalog.HandlerConfig{Service: catalogService})

	cartService, err := cart.NewService(cart.Config{
		Store:    cart.NewRedisStore(redisClient, cfg.CartTTL),
		Products: catalogService,
		Stock:    stock.NewPostgresGateway(pool),
		Delivery: stock.Policy{
			InStockDays:   cfg.DeliveryInStockDays,
			BackorderDays: cfg.DeliveryBackorderDays,
		},
		TaxBps:   cfg.TaxRateBPS,
		Currency: cfg.CurrencyCode,
		Language: cfg.DefaultLanguage,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise cart service")
	}
	cartHandler := &cart.Handler{Svc: cartService}

	bus := &events.Bus{
		Store:     events.PostgresStore{DB: pool},
		Notifiers: []events.Notifier{events.LogNotifier{Logger: logger}},
	}
	proposalService, err := proposal.NewService(proposal.Config{
		Repository: proposal.NewPostgresRepository(pool),
		Carts:      cartService,
		Locker:     lock.Locker{Client: redisClient, Prefix: "proposal-lock:"},
		LockTTL:    cfg.ProposalLockTTL,
		Renderer:   proposal.NewHTMLRenderer("", cfg.DefaultLanguage),
		PDF: proposal.ChromePDF{
			ExecPath: proposal.DetectChrome(cfg.ChromePath),
			Timeout:  cfg.PDFTimeout,
			Logger:   logger,
		},
		Events: bus,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise proposal service")
	}
	proposalHandler := &proposal.Handler{Svc: proposalService}

	apiLimiter, err := ratelimit.NewFixed(redisClient, "rl:api:", cfg.APIRateLimit)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise api rate limiter")
	}
	onLimiterError := func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") }
	apiLimit := ratelimit.Handler{Limiter: apiLimiter, Key: ratelimit.ClientKey, OnError: onLimiterError}
	pdfLimit := ratelimit.Handler{
		Limiter: ratelimit.Sliding{Client: redisClient, Prefix: "rl:pdf:", Window: cfg.PDFRateWindow, Max: cfg.PDFRateLimit},
		Key:     ratelimit.ClientKey,
		OnError: onLimiterError,
	}
	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	var httpMetrics *obs.HTTPMetrics
	if cfg.Obs.EnablePrometheus {
		httpMetrics = obs.NewHTTPMetrics(namespace, obs.ParseBucketsCSV(cfg.Obs.MetricsBuckets), nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Location", "X-Total-Count", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.IsProduction(), HSTSMaxAge: 31536000}.Middleware)

	if cfg.Obs.EnablePrometheus {
		r.Handle("/metrics", promhttp.Handler())
	}
	if cfg.Obs.EnablePprof {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), cfg.Obs.PprofUser, cfg.Obs.PprofPass))
	}

	healthHandler := health.Handler{Checks: readinessChecks(cfg, pool, redisClient)}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(apiLimit.Middleware)
		v.Use(security.BodyLimit{Max: cfg.MaxBodyBytes}.Middleware)

		v.Get("/categories", catalogHandler.Categories)
		v.Get("/products", catalogHandler.Products)
		v.Get("/products/{id}", catalogHandler.Product)
		v.Get("/products/{id}/quote", catalogHandler.Quote)

		v.Route("/carts/{session}", func(c chi.Router) {
			c.Get("/", cartHandler.Get)
			c.Get("/editing", cartHandler.Editing)
			c.Group(func(g chi.Router) {
				g.Use(idem.Middleware)
				g.Delete("/", cartHandler.Clear)
				g.Post("/items", cartHandler.AddItem)
				g.Patch("/items/{itemId}", cartHandler.UpdateItem)
				g.Delete("/items/{itemId}", cartHandler.RemoveItem)
				g.Put("/editing", cartHandler.SetEditing)
				g.Delete("/editing", cartHandler.ClearEditing)
				g.Post("/proposal", proposalHandler.Save)
				g.Post("/proposal/{id}/open", proposalHandler.Open)
			})
		})

		v.Route("/proposals", func(p chi.Router) {
			p.Get("/", proposalHandler.List)
			p.Get("/{id}", proposalHandler.Get)
			p.Get("/{id}/html", proposalHandler.HTML)
			p.With(pdfLimit.Middleware).Get("/{id}/pdf", proposalHandler.PDF)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serve(srv, logger)
}

func serve(srv *http.Server, logger zerolog.Logger) {
	stop, release := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer release()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
		return
	case <-stop.Done():
	}

	health.SetReady(false)
	logger.Info().Msg("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func readinessChecks(cfg *config.Config, pool *pgxpool.Pool, client *redis.Client) map[string]health.Check {
	return map[string]health.Check{
		"db": {
			Probe:   func(ctx context.Context) error { return pool.Ping(ctx) },
			Timeout: cfg.HealthDBTimeout,
		},
		"redis": {
			Probe:   func(ctx context.Context) error { return client.Ping(ctx).Err() },
			Timeout: cfg.HealthRedisTimeout,
		},
	}
}
