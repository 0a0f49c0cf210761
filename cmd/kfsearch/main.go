package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/kfsearch/internal/config"
	"github.com/kailas-cloud/kfsearch/internal/db"
	"github.com/kailas-cloud/kfsearch/internal/db/memory"
	dbRedis "github.com/kailas-cloud/kfsearch/internal/db/redis"
	logpkg "github.com/kailas-cloud/kfsearch/internal/logger"
	"github.com/kailas-cloud/kfsearch/internal/metrics"
	"github.com/kailas-cloud/kfsearch/internal/repository/searchcache"
	selectionrepo "github.com/kailas-cloud/kfsearch/internal/repository/selection"
	"github.com/kailas-cloud/kfsearch/internal/transport/backend"
	chiTransport "github.com/kailas-cloud/kfsearch/internal/transport/chi"
	cataloguc "github.com/kailas-cloud/kfsearch/internal/usecase/catalog"
	exportuc "github.com/kailas-cloud/kfsearch/internal/usecase/export"
	healthuc "github.com/kailas-cloud/kfsearch/internal/usecase/health"
	searchuc "github.com/kailas-cloud/kfsearch/internal/usecase/search"
	selectionuc "github.com/kailas-cloud/kfsearch/internal/usecase/selection"
	sessionuc "github.com/kailas-cloud/kfsearch/internal/usecase/session"
	"github.com/kailas-cloud/kfsearch/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting kfsearch UI server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("backend", cfg.Backend.BaseURL),
		zap.String("storage_driver", cfg.Storage.Driver),
		zap.Strings("storage_addrs", cfg.Storage.Addrs),
	)

	// Selection storage
	var store db.Store
	switch cfg.Storage.Driver {
	case "memory":
		store = memory.NewStore()
	case "redis", "valkey":
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:      cfg.Storage.Addrs,
			Password:   cfg.Storage.Password,
			Standalone: cfg.Storage.Driver == "valkey" && len(cfg.Storage.Addrs) == 1,
		})
	default:
		logger.Fatal("Unknown storage driver", zap.String("driver", cfg.Storage.Driver))
	}
	if err != nil {
		logger.Fatal("Failed to create selection store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Storage.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Selection store not ready", zap.Error(err))
	}
	logger.Info("Connected to selection store")

	// Register search metrics explicitly (no init())
	metrics.RegisterSearchMetrics()

	api, err := backend.New(backend.Config{
		BaseURL:    cfg.Backend.BaseURL,
		Timeout:    time.Duration(cfg.Backend.TimeoutSec) * time.Second,
		RatePerSec: cfg.Backend.RatePerSec,
		Burst:      cfg.Backend.Burst,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal("Failed to create search API client", zap.Error(err))
	}

	sessionTTL := cfg.UI.SessionTTL()

	// Use case services
	catalogSvc := cataloguc.New(api, logger)
	searchSvc := searchuc.New(
		api,
		searchcache.New(metrics.SearchCacheTotal),
		catalogSvc,
		cfg.UI.PlaceholderResults,
		logger,
	)
	selectionSvc := selectionuc.New(
		selectionrepo.New(store, cfg.Storage.KeyPrefix, logger),
		catalogSvc,
		sessionTTL,
		logger,
	)
	exportSvc := exportuc.New(api, selectionSvc, cfg.Backend.DefaultFPS, logger)
	sessionSvc := sessionuc.New(catalogSvc, selectionSvc, sessionuc.Config{
		PageSize:   cfg.UI.PageSize,
		PageWindow: cfg.UI.PageWindow,
		IdleTTL:    sessionTTL,
	}, logger)
	sessionSvc.OnEnd(searchSvc.Forget)
	healthSvc := healthuc.New(store, api, catalogSvc)

	// Warm the catalogue so the first page does not wait on /api/image_paths.
	go catalogSvc.Load(ctx)

	server, err := chiTransport.NewServer(
		catalogSvc, searchSvc, selectionSvc, exportSvc, sessionSvc, healthSvc,
		chiTransport.Options{
			AssetBaseURL:   cfg.UI.AssetBaseURL,
			MapKeyframes:   cfg.Backend.MapKeyframes,
			DefaultK:       cfg.Backend.DefaultK,
			MaxUploadBytes: int64(cfg.HTTP.MaxUploadMB) << 20,
		},
		logger,
	)
	if err != nil {
		logger.Fatal("Failed to create UI server", zap.Error(err))
	}

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(chiTransport.SessionMiddleware(cfg.UI.CookieLifetime(), cfg.UI.SecureCookie))
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Register(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully",
		zap.Int("active_sessions", sessionSvc.Count()))
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(
				zap.String("request_id", requestID),
				zap.String("session", chiTransport.SessionID(r.Context())),
			)
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
