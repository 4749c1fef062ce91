package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/hybrid-legal-search/internal/adapters/mcp"
	"github.com/kirillkom/hybrid-legal-search/internal/bootstrap"
	"github.com/kirillkom/hybrid-legal-search/internal/config"
	"github.com/kirillkom/hybrid-legal-search/internal/observability/logging"
)

const (
	serviceName = "hybrid-search-mcp"
	version     = "1.0.0"
)

func main() {
	cfg := config.Load()
	// stdout is the MCP transport.
	slog.SetDefault(logging.NewStderrLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: serviceName, PublishEvents: true})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	srv := mcpadapter.New(app.Search, app.Knowledge).MCPServer(version)
	slog.Info("mcp_stdio_serving", "web_provider", cfg.WebSearchProvider)
	if err := server.ServeStdio(srv); err != nil {
		slog.Error("mcp_server_failed", "error", err)
	}
}
