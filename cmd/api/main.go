package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/hybrid-legal-search/internal/adapters/http"
	"github.com/kirillkom/hybrid-legal-search/internal/bootstrap"
	"github.com/kirillkom/hybrid-legal-search/internal/config"
	"github.com/kirillkom/hybrid-legal-search/internal/observability/logging"
	"github.com/kirillkom/hybrid-legal-search/internal/observability/metrics"
)

const serviceName = "hybrid-search-api"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service:       serviceName,
		Registerer:    httpMetrics.Registry(),
		PublishEvents: true,
		OpenAudit:     true,
	})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	deps := httpadapter.Dependencies{
		Search:    app.Search,
		Knowledge: app.Knowledge,
		Sessions:  app.Sessions,
		Audit:     app.Audit,
		Metrics:   httpMetrics,
	}
	router, err := httpadapter.NewRouter(httpadapter.Options{
		Service:        serviceName,
		RateLimitRPS:   cfg.APIRateLimitRPS,
		RateLimitBurst: cfg.APIRateLimitBurst,
		MaxInFlight:    cfg.APIMaxInFlight,
	}, deps)
	if err != nil {
		slog.Error("router_init_failed", "error", err)
		os.Exit(1)
	}

	// Knowledge calls may take up to RAGFLOW_TIMEOUT, so writes get headroom past it.
	writeTimeout := cfg.SearchQueryTimeout + 30*time.Second
	if cfg.RAGFlowTimeout+30*time.Second > writeTimeout {
		writeTimeout = cfg.RAGFlowTimeout + 30*time.Second
	}
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "port", cfg.APIPort, "web_provider", cfg.WebSearchProvider)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
}
