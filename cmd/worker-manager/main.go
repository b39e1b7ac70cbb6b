// cmd/worker-manager/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.uber.org/zap"

	"subscription-intake/internal/api"
	"subscription-intake/internal/app"
	"subscription-intake/internal/common/camunda"
	"subscription-intake/internal/common/config"
	"subscription-intake/internal/common/logger"
	"subscription-intake/internal/common/observability"

	ctp "subscription-intake/internal/workers/ai-conversation/classify-topic"
	dbm "subscription-intake/internal/workers/ai-conversation/discover-benchmark"
	eli "subscription-intake/internal/workers/ai-conversation/extract-line-items"
	gbr "subscription-intake/internal/workers/ai-conversation/generate-brief"
	pit "subscription-intake/internal/workers/ai-conversation/process-intake-turn"
	ebr "subscription-intake/internal/workers/communication/email-brief"
)

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}
	if !cfg.Camunda.Enabled {
		zapLog.Fatal("camunda is disabled in configuration, nothing to run")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs := observability.New("worker-manager", log)
	defer obs.Shutdown()

	// --- Init Zeebe Client with retry ---
	zb, err := camunda.Connect(ctx, camunda.ConfigFrom(cfg.Camunda), log)
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	defer zb.Close()
	zapLog.Info("Zeebe client connected successfully")

	// --- Init stores, benchmarks and generation ---
	a, err := app.New(ctx, cfg, log, obs)
	if err != nil {
		zapLog.Fatal("startup failed", zap.Error(err))
	}
	defer a.Close()

	// --- Register workers ---
	var workers []worker.JobWorker
	start := func(taskType string, handler camunda.JobHandler) {
		if w := camunda.StartWorker(zb.Zeebe(), taskType, config.GetWorkerConfig(cfg, taskType), handler, obs, log); w != nil {
			workers = append(workers, w)
		}
	}
	timeout := func(taskType string) time.Duration {
		return config.GetDuration(config.GetWorkerConfig(cfg, taskType).Timeout)
	}

	// Workflow jobs carry no client address, so the turn service runs without a limiter.
	svc := a.Service(nil)
	start(pit.TaskType, pit.NewHandler(&pit.Config{Timeout: timeout(pit.TaskType)}, svc, log).Handle)

	extractCfg := eli.LoadConfig()
	extractCfg.Timeout = timeout(eli.TaskType)
	start(eli.TaskType, eli.NewHandler(extractCfg, a.Generator, log).Handle)

	classifyCfg := ctp.LoadConfig()
	classifyCfg.Timeout = timeout(ctp.TaskType)
	start(ctp.TaskType, ctp.NewHandler(classifyCfg, a.Generator, log).Handle)

	briefCfg := gbr.LoadConfig()
	briefCfg.Timeout = timeout(gbr.TaskType)
	start(gbr.TaskType, gbr.NewHandler(briefCfg, a.Generator, a.Resolver, log).Handle)

	// discovery jobs store through the same Discoverer the resolver uses
	start(dbm.TaskType, a.Discovery.Handle)

	if a.Email != nil {
		start(ebr.TaskType, ebr.NewHandler(a.EmailCfg, a.Email, log).Handle)
	} else {
		zapLog.Info("email delivery disabled, skipping worker", zap.String("taskType", ebr.TaskType))
	}
	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.NewOpsRouter(a.Checks, cfg.App.Version),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping workers...")

	camunda.CloseWorkers(workers)
	svc.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Health/Metrics server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}
