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
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/kailas-cloud/hintd/internal/config"
	"github.com/kailas-cloud/hintd/internal/domain/label"
	logpkg "github.com/kailas-cloud/hintd/internal/logger"
	"github.com/kailas-cloud/hintd/internal/metrics"
	"github.com/kailas-cloud/hintd/internal/report"
	reportRedis "github.com/kailas-cloud/hintd/internal/report/redis"
	chiTransport "github.com/kailas-cloud/hintd/internal/transport/chi"
	healthuc "github.com/kailas-cloud/hintd/internal/usecase/health"
	sessionuc "github.com/kailas-cloud/hintd/internal/usecase/session"
	"github.com/kailas-cloud/hintd/internal/version"
)

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg := config.MustLoad(env)

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting hintd API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("default_strategy", cfg.Hints.DefaultStrategy),
		zap.String("reports_driver", cfg.Reports.Driver),
	)

	metrics.RegisterHTTPMetrics()
	metrics.RegisterProtocolMetrics()

	publishers := []sessionuc.Publisher{report.NewLogPublisher(logger)}

	// Pass a nil interface, not a typed nil pointer, when reports are off.
	var pinger healthuc.ReportPinger
	if cfg.Reports.Driver == config.ReportsRedis {
		pub, err := reportRedis.NewPublisher(reportRedis.Config{
			Addrs:    cfg.Reports.Addrs,
			Password: cfg.Reports.Password,
			Channel:  cfg.Reports.Channel,
		})
		if err != nil {
			logger.Fatal("Failed to create report publisher", zap.Error(err))
		}
		defer pub.Close()

		timeout := time.Duration(cfg.Reports.ReadinessTimeout) * time.Second
		if err := pub.WaitForReady(context.Background(), timeout); err != nil {
			logger.Fatal("Report channel not ready", zap.Error(err))
		}
		logger.Info("Connected to report channel", zap.Strings("addrs", cfg.Reports.Addrs))

		publishers = append(publishers, pub)
		pinger = pub
	}

	sessions := sessionuc.New(sessionuc.Config{
		DefaultQuery:    cfg.Hints.DefaultQuery,
		DefaultStrategy: label.Strategy(cfg.Hints.DefaultStrategy),
		Alphabet:        cfg.Hints.Alphabet,
		ViewportWidth:   cfg.Hints.ViewportWidth,
		ViewportHeight:  cfg.Hints.ViewportHeight,
		MaxSessions:     cfg.Hints.MaxSessions,
		MaxFrameDepth:   cfg.Hints.MaxFrameDepth,
		SettleTimeout:   time.Duration(cfg.Hints.SettleTimeoutMs) * time.Millisecond,
	}, logger, publishers...)
	defer sessions.Close()

	healthSvc := healthuc.New(sessions, pinger)
	server := chiTransport.NewServer(sessions, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

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

	logger.Info("Server stopped gracefully", zap.Int("open_sessions", sessions.Count()))
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.String("path", r.URL.Path),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    string(chiTransport.CodeInternalError),
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits one log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
