package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"

	"github.com/noah-isme/backend-fieldsales/internal/admin"
	"github.com/noah-isme/backend-fieldsales/internal/app"
	"github.com/noah-isme/backend-fieldsales/internal/attendance"
	"github.com/noah-isme/backend-fieldsales/internal/common"
	"github.com/noah-isme/backend-fieldsales/internal/config"
	"github.com/noah-isme/backend-fieldsales/internal/demo"
	"github.com/noah-isme/backend-fieldsales/internal/health"
	"github.com/noah-isme/backend-fieldsales/internal/lookup"
	"github.com/noah-isme/backend-fieldsales/internal/obs"
	"github.com/noah-isme/backend-fieldsales/internal/ratelimit"
	"github.com/noah-isme/backend-fieldsales/internal/sales"
	"github.com/noah-isme/backend-fieldsales/internal/security"
	"github.com/noah-isme/backend-fieldsales/internal/ticket"
	"github.com/noah-isme/backend-fieldsales/internal/travel"
	"github.com/noah-isme/backend-fieldsales/internal/visit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Str("service", "fieldsales-api").Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "fieldsales")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", cfg.OTLPEndpoint != "")
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "fieldsales-api",
			Endpoint:      cfg.OTLPEndpoint,
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
			StoreBackend:  cfg.StoreBackend,
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

	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	deps, closeDeps, err := app.NewDependencies(startCtx, cfg, logger)
	if err != nil {
		closeDeps()
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer closeDeps()

	if deps.Redis != nil {
		if metricsEnabled {
			if err := redisotel.InstrumentMetrics(deps.Redis); err != nil {
				logger.Error().Err(err).Msg("instrument redis metrics")
			}
		}
		if err := deps.Redis.Ping(startCtx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("ping redis")
		}
	}

	svcs := app.NewServices(cfg, deps, logger)

	limiter, err := ratelimit.New(deps.Redis, cfg.RateLimitPerMinute)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise rate limiter")
	}
	limit := ratelimit.Handler{Limiter: limiter, OnError: func(err error) {
		logger.Warn().Err(err).Msg("rate limiter unavailable")
	}}
	idem := common.Idem{R: deps.Redis, TTL: cfg.IdempotencyTTL}

	adminHandler := &admin.Handler{Ledger: deps.Ledger, Tables: app.TableIndex(), Logger: logger}
	if cfg.RedisURL != "" {
		redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("parse asynq redis url")
		}
		queue := asynq.NewClient(redisOpt)
		defer queue.Close()
		adminHandler.Queue = queue
	}

	salesHandler := &sales.Handler{Svc: svcs.Sales}
	visitHandler := &visit.Handler{Svc: svcs.Visits}
	attendanceHandler := &attendance.Handler{Svc: svcs.Attendance}
	ticketHandler := &ticket.Handler{Svc: svcs.Tickets}
	travelHandler := &travel.Handler{Svc: svcs.Travel}
	demoHandler := &demo.Handler{Svc: svcs.Demos}
	lookupHandler := &lookup.Handler{Catalog: deps.Catalog}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
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
	r.Use(security.Headers{Enable: cfg.SecureHeaders, EnableHSTS: cfg.EnableHSTS}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", common.IdempotencyHeader, obs.EmployeeHeader, "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:         300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      health.Probe{Conn: deps.Conn, Redis: deps.Redis},
		StoreTimeout: envDurationMillis("HEALTH_READY_STORE_TIMEOUT_MS", 2000),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(limit.Middleware)
		v.Use(security.BodyLimit{Max: cfg.MaxBodyBytes}.Middleware)

		v.Get("/products", lookupHandler.Products)
		v.Get("/employees/{code}", lookupHandler.Employee)
		v.Get("/outlets", lookupHandler.Outlets)
		v.Get("/distributors", lookupHandler.Distributors)
		v.Get("/states", lookupHandler.States)
		v.Get("/states/{state}/cities", lookupHandler.Cities)

		v.Post("/quote", salesHandler.Quote)

		v.Route("/invoices", func(i chi.Router) {
			i.With(idem.Middleware).Post("/", salesHandler.Create)
			i.Get("/", salesHandler.List)
			i.Get("/{number}", salesHandler.Get)
			i.Patch("/{number}/delivery", salesHandler.UpdateDelivery)
			i.Patch("/{number}/payment", salesHandler.UpdatePayment)
		})

		v.Route("/visits", func(vr chi.Router) {
			vr.With(idem.Middleware).Post("/", visitHandler.Create)
			vr.Get("/", visitHandler.List)
		})

		v.Route("/attendance", func(a chi.Router) {
			a.With(idem.Middleware).Post("/", attendanceHandler.Mark)
			a.Get("/", attendanceHandler.List)
			a.Get("/{employeeCode}/today", attendanceHandler.Today)
		})

		v.Route("/tickets", func(tr chi.Router) {
			tr.With(idem.Middleware).Post("/", ticketHandler.Raise)
			tr.Get("/", ticketHandler.List)
			tr.Get("/{id}", ticketHandler.Get)
			tr.Post("/{id}/resolve", ticketHandler.Resolve)
		})

		v.Route("/travel", func(tr chi.Router) {
			tr.With(idem.Middleware).Post("/", travelHandler.Create)
			tr.Get("/", travelHandler.List)
			tr.Get("/{id}", travelHandler.Get)
			tr.Post("/{id}/decision", travelHandler.Decide)
		})

		v.Route("/demos", func(d chi.Router) {
			d.With(idem.Middleware).Post("/", demoHandler.Create)
			d.Get("/", demoHandler.List)
		})

		v.Route("/admin", func(a chi.Router) {
			a.Use(requireAdminToken(envOrDefault("ADMIN_TOKEN", "")))
			a.Get("/tables", adminHandler.ListTables)
			a.Post("/tables/{table}/backup", adminHandler.Backup)
			a.Post("/tables/{table}/restore", adminHandler.Restore)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Str("store", cfg.StoreBackend).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	health.SetReady(false)
	logger.Info().Msg("server shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

// requireAdminToken guards the maintenance routes. An empty token closes them.
func requireAdminToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "forbidden", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
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

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
