// cmd/intake-server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"subscription-intake/internal/api"
	"subscription-intake/internal/app"
	"subscription-intake/internal/common/config"
	"subscription-intake/internal/common/logger"
	"subscription-intake/internal/common/observability"
	"subscription-intake/internal/intake/ratelimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", "json").Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog).With(map[string]interface{}{"service": "intake-server"})

	zapLog.Info("Starting intake server...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs := observability.New("intake-server", log)
	defer obs.Shutdown()

	a, err := app.New(ctx, cfg, log, obs)
	if err != nil {
		zapLog.Fatal("startup failed", zap.Error(err))
	}
	defer a.Close()

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(config.GetDuration(cfg.RateLimit.WindowMs), cfg.RateLimit.MaxRequests)
		sweepStop := make(chan struct{})
		defer close(sweepStop)
		go limiter.RunSweeper(config.GetDuration(cfg.RateLimit.WindowMs), sweepStop)
	}

	svc := a.Service(limiter)

	trusted, err := cfg.Server.TrustedProxyPrefixes()
	if err != nil {
		zapLog.Fatal("invalid trusted proxies", zap.Error(err))
	}

	var idp api.Identifier
	if a.Keycloak != nil {
		idp = a.Keycloak
	}

	srv := &http.Server{
		Addr: cfg.Server.Addr(),
		Handler: api.NewRouter(api.RouterConfig{
			Turns:          svc,
			Identifier:     idp,
			Checks:         a.Checks,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			MaxBodyBytes:   cfg.Server.MaxBodyBytes,
			Version:        cfg.App.Version,
			Stateless:      svc.Stateless(),
			TrustedProxies: trusted,
			Logger:         log,
		}),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", srv.Addr), zap.Bool("stateless", svc.Stateless()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, draining requests...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}
	svc.Wait()

	zapLog.Info("Intake server stopped gracefully")
}
