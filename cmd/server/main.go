package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ParadojaDevs/ClimaGuru/internal/handler"
	"github.com/ParadojaDevs/ClimaGuru/internal/infrastructure/logger"
	"github.com/ParadojaDevs/ClimaGuru/internal/infrastructure/redis"
	"github.com/ParadojaDevs/ClimaGuru/internal/observability/metrics"
	"github.com/ParadojaDevs/ClimaGuru/internal/observability/tracing"
	"github.com/ParadojaDevs/ClimaGuru/internal/repository"
	"github.com/ParadojaDevs/ClimaGuru/internal/security/audit"
	"github.com/ParadojaDevs/ClimaGuru/internal/security/auth"
	"github.com/ParadojaDevs/ClimaGuru/internal/security/middleware"
	"github.com/ParadojaDevs/ClimaGuru/internal/security/ratelimit"
	"github.com/ParadojaDevs/ClimaGuru/internal/security/secrets"
	"github.com/ParadojaDevs/ClimaGuru/internal/service"
	"github.com/ParadojaDevs/ClimaGuru/internal/worker"
	"github.com/ParadojaDevs/ClimaGuru/pkg/config"
	"github.com/ParadojaDevs/ClimaGuru/pkg/database"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting ClimaGuru server", slog.String("environment", cfg.Environment))

	// 3. Initialize tracing
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, log, "climaguru", cfg.Environment, cfg.OTLPEndpoint)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	// 4. Connect to Postgres and apply migrations
	pool, err := database.NewConnectionPool(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.RunMigrations(pool.GetDB(), cfg.MigrationsDir, log); err != nil {
		log.Error("failed to run migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 5. Connect to Redis (token denylist)
	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to Redis", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer redisClient.Close()

	// 6. Initialize repositories
	db := pool.GetDB()
	userRepo := repository.NewPostgresUserRepository(db, log)
	credentialRepo := repository.NewPostgresCredentialRepository(db, log)
	sessionRepo := repository.NewPostgresSessionRepository(db, log)
	queryRepo := repository.NewPostgresQueryRepository(db, log)
	activityRepo := repository.NewPostgresActivityRepository(db, log)

	// 7. Initialize security components
	cipher, err := secrets.NewCipher(cfg.EncryptionKey)
	if err != nil {
		log.Error("failed to initialize cipher", slog.String("error", err.Error()))
		os.Exit(1)
	}
	tokenManager := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	rateLimiter := ratelimit.NewLimiter(cfg.RateLimitPerMinute, time.Minute)
	auditor := audit.NewRecorder(activityRepo, log)

	// 8. Initialize services
	authService := service.NewAuthService(userRepo, sessionRepo, tokenManager, redisClient, auditor, log)
	credentialService := service.NewCredentialService(credentialRepo, cipher, auditor, log)
	providerHTTPClient := &http.Client{Timeout: 10 * time.Second}
	queryService := service.NewQueryService(queryRepo, credentialService, providerHTTPClient, auditor, log)

	// 9. Initialize handlers
	authHandler := handler.NewAuthHandler(authService, log)
	apiKeyHandler := handler.NewAPIKeyHandler(credentialService, log)
	queryHandler := handler.NewQueryHandler(queryService, log)
	healthHandler := handler.NewHealthHandler(db, redisClient, log)

	// 10. Setup HTTP routes
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/registro", authHandler.Register)
	mux.HandleFunc("POST /auth/login", authHandler.Login)
	mux.HandleFunc("POST /auth/refresh", authHandler.Refresh)
	mux.HandleFunc("POST /auth/logout", authHandler.Logout)
	mux.HandleFunc("GET /auth/me", authHandler.Me)

	mux.HandleFunc("POST /api-keys/", apiKeyHandler.Create)
	mux.HandleFunc("GET /api-keys/", apiKeyHandler.List)
	mux.HandleFunc("GET /api-keys/proveedores", apiKeyHandler.Providers)
	mux.HandleFunc("GET /api-keys/{id}", apiKeyHandler.Get)
	mux.HandleFunc("PUT /api-keys/{id}", apiKeyHandler.Update)
	mux.HandleFunc("DELETE /api-keys/{id}", apiKeyHandler.Delete)

	mux.HandleFunc("POST /queries/tiempo-real", queryHandler.CreateCurrent)
	mux.HandleFunc("POST /queries/historico", queryHandler.CreateHistorical)
	mux.HandleFunc("GET /queries/mis-consultas", queryHandler.List)
	mux.HandleFunc("GET /queries/{id}", queryHandler.Get)
	mux.HandleFunc("GET /queries/{id}/descargar", queryHandler.Download)

	mux.HandleFunc("GET /healthz", healthHandler.Live)
	mux.HandleFunc("GET /readyz", healthHandler.Ready)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Chain middleware: request ID -> metrics -> CORS -> content type -> JWT -> rate limit -> mux.
	// CORS sits in front of authentication so browser preflights are answered
	// without a bearer token.
	rootHandler := withRequestID(
		metrics.HTTPMetricsMiddleware(
			middleware.CORSMiddleware(cfg.CORSAllowedOrigins)(
				middleware.ValidateJSONContentType(log)(
					middleware.JWTMiddleware(tokenManager, redisClient, log)(
						middleware.RateLimitMiddleware(rateLimiter, log)(mux),
					),
				),
			),
		),
		log,
	)

	// 11. Start cleanup worker in background
	cleanupWorker := worker.NewCleanupWorker(
		sessionRepo,
		credentialRepo,
		log,
		time.Duration(cfg.CleanupIntervalMinutes)*time.Minute,
	)
	go cleanupWorker.Start(ctx)

	// 12. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      otelhttp.NewHandler(rootHandler, "climaguru-http"),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.Int("rate_limit", cfg.RateLimitPerMinute),
		slog.String("rate_limit_window", "1m"),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
		}
	}()

	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	cancel() // stop cleanup worker
	rateLimiter.Stop()
	log.Info("server stopped")
}

type requestIDKey struct{}

// withRequestID attaches a request ID to the context and response headers and
// logs one line per request.
func withRequestID(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := generateRequestID()
		w.Header().Set("X-Request-ID", reqID)

		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		start := time.Now()

		next.ServeHTTP(w, r.WithContext(ctx))

		log.Info("request handled",
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

func generateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
