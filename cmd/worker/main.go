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

	"github.com/kirillkom/hybrid-legal-search/internal/bootstrap"
	"github.com/kirillkom/hybrid-legal-search/internal/config"
	"github.com/kirillkom/hybrid-legal-search/internal/core/domain"
	"github.com/kirillkom/hybrid-legal-search/internal/core/usecase"
	"github.com/kirillkom/hybrid-legal-search/internal/observability/logging"
	"github.com/kirillkom/hybrid-legal-search/internal/observability/metrics"
)

const serviceName = "hybrid-search-worker"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker, err := bootstrap.NewWorker(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer worker.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	audit := usecase.NewSearchAuditUseCase(worker.Store)

	slog.Info("worker_subscribed", "subject", cfg.NATSSubject, "metrics_port", cfg.WorkerMetricsPort)
	err = worker.Events.SubscribeSearchCompleted(ctx, func(handlerCtx context.Context, event domain.SearchEvent) error {
		if !event.CreatedAt.IsZero() {
			workerMetrics.ObserveEventLag(serviceName, time.Since(event.CreatedAt))
		}
		workerMetrics.StartEvent()
		started := time.Now()

		persistCtx, cancel := context.WithTimeout(handlerCtx, 30*time.Second)
		defer cancel()
		err := audit.Record(persistCtx, event)

		workerMetrics.FinishEvent(serviceName, time.Since(started), err)
		return err
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
