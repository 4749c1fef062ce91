package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/hybrid-legal-search/internal/adapters/cli"
	"github.com/kirillkom/hybrid-legal-search/internal/bootstrap"
	"github.com/kirillkom/hybrid-legal-search/internal/config"
	"github.com/kirillkom/hybrid-legal-search/internal/observability/logging"
)

const serviceName = "hybridctl"

func main() {
	cfg := config.Load()
	// stdout carries command output; logs go to stderr.
	slog.SetDefault(logging.NewStderrLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	factory := func(ctx context.Context) (cli.Services, func(), error) {
		app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: serviceName})
		if err != nil {
			return cli.Services{}, nil, err
		}
		return cli.Services{Search: app.Search, Knowledge: app.Knowledge}, app.Close, nil
	}

	if err := cli.NewRootCommand(factory).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
