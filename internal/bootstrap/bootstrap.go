package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kirillkom/hybrid-legal-search/internal/config"
	"github.com/kirillkom/hybrid-legal-search/internal/core/domain"
	"github.com/kirillkom/hybrid-legal-search/internal/core/ports"
	"github.com/kirillkom/hybrid-legal-search/internal/core/rules"
	"github.com/kirillkom/hybrid-legal-search/internal/core/usecase"
	"github.com/kirillkom/hybrid-legal-search/internal/infrastructure/cache/redis"
	"github.com/kirillkom/hybrid-legal-search/internal/infrastructure/knowledgebase/ragflow"
	"github.com/kirillkom/hybrid-legal-search/internal/infrastructure/queue/nats"
	"github.com/kirillkom/hybrid-legal-search/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/hybrid-legal-search/internal/infrastructure/resilience"
	"github.com/kirillkom/hybrid-legal-search/internal/infrastructure/websearch"
	"github.com/kirillkom/hybrid-legal-search/internal/observability/metrics"
)

type Options struct {
	// Service names the binary in logs and metrics.
	Service string
	// Registerer receives the search metrics; nil disables them.
	Registerer prometheus.Registerer
	// PublishEvents connects to NATS (when configured) and emits search events.
	PublishEvents bool
	// OpenAudit connects to postgres (when configured) for the audit endpoints.
	OpenAudit bool
}

type App struct {
	Config config.Config

	Search    *usecase.HybridSearchUseCase
	Knowledge *usecase.KnowledgeAgent
	Sessions  ports.KnowledgeSessions
	Audit     ports.SearchAuditStore

	closeFns []func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	app := &App{Config: cfg}

	ruleSet, err := loadRules(cfg.RulesPath)
	if err != nil {
		return nil, err
	}

	execCfg := resilienceConfig(cfg)
	if opts.Registerer != nil {
		execCfg.OnStateChange = metrics.NewBreakerMetrics(opts.Service, opts.Registerer).OnStateChange
	}
	knowledgeExec := resilience.NewExecutor(execCfg)
	webExec := resilience.NewExecutor(execCfg.NoRetry())

	kb := ragflow.New(cfg.RAGFlowURL, ragflow.Options{
		APIKey:   cfg.RAGFlowAPIKey,
		Timeout:  cfg.RAGFlowTimeout,
		Executor: knowledgeExec,
	})
	app.Sessions = kb

	web, err := websearch.New(cfg.WebSearchProvider, websearch.Options{
		APIKey:   cfg.WebSearchAPIKey(),
		BaseURL:  cfg.WebSearchBaseURL,
		Timeout:  cfg.WebSearchTimeout,
		Executor: webExec,
	})
	if err != nil {
		slog.Warn("web_search_disabled", "provider", cfg.WebSearchProvider, "error", err)
		web = websearch.Disabled(err.Error())
	}

	var datasets ports.DatasetLister
	if cfg.RedisURL != "" {
		client, err := redis.Connect(ctx, cfg.RedisURL)
		if err != nil {
			slog.Warn("dataset_cache_disabled", "error", err)
		} else {
			datasets = redis.NewDatasetCache(kb, client, cfg.DatasetCacheTTL)
			app.onClose(closeRedis(client))
		}
	}

	app.Knowledge = usecase.NewKnowledgeAgent(kb, datasets, usecase.NewDatasetSelector(ruleSet), usecase.KnowledgeAgentOptions{
		DefaultDatasetID: cfg.KnowledgeDefaultDatasetID,
		DefaultStrategy:  domain.DatasetStrategy(cfg.KnowledgeSearchStrategy),
	})

	searchOpts := usecase.HybridSearchOptions{
		QueryTimeout:        cfg.SearchQueryTimeout,
		KnowledgeTimeout:    cfg.KnowledgeCallTimeout,
		WebTimeout:          cfg.WebSearchTimeout,
		ConfidenceThreshold: cfg.SearchConfidenceThreshold,
	}
	if opts.Registerer != nil {
		searchOpts.Observer = metrics.NewSearchMetrics(opts.Service, opts.Registerer)
	}
	if opts.PublishEvents && cfg.NATSURL != "" {
		bus, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{ResilienceExecutor: resilience.NewExecutor(execCfg)})
		if err != nil {
			slog.Warn("search_events_disabled", "error", err)
		} else {
			searchOpts.Events = bus
			app.onClose(bus.Close)
		}
	}

	app.Search = usecase.NewHybridSearchUseCase(web, app.Knowledge, kb, usecase.NewStrategyClassifier(ruleSet), searchOpts)

	if opts.OpenAudit && cfg.PostgresDSN != "" {
		repo, db, err := openAuditStore(ctx, cfg.PostgresDSN)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Audit = repo
		app.onClose(func() { _ = db.Close() })
	}

	return app, nil
}

// Worker consumes search events and persists them.
type Worker struct {
	Config config.Config
	Events ports.SearchEventSubscriber
	Store  ports.SearchAuditStore

	closeFn func()
}

func NewWorker(ctx context.Context, cfg config.Config) (*Worker, error) {
	if cfg.NATSURL == "" || cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("worker requires NATS_URL and POSTGRES_DSN")
	}
	repo, db, err := openAuditStore(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	bus, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{ResilienceExecutor: resilience.NewExecutor(resilienceConfig(cfg))})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init event bus: %w", err)
	}
	return &Worker{
		Config: cfg,
		Events: bus,
		Store:  repo,
		closeFn: func() {
			bus.Close()
			_ = db.Close()
		},
	}, nil
}

func (w *Worker) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}

func (a *App) onClose(fn func()) {
	a.closeFns = append(a.closeFns, fn)
}

func loadRules(path string) (*rules.RuleSet, error) {
	rs, err := rules.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	return rs, nil
}

func openAuditStore(ctx context.Context, dsn string) (*postgres.SearchEventRepository, *sql.DB, error) {
	db, err := postgres.OpenDB(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewSearchEventRepository(db)
	schemaCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := repo.EnsureSchema(schemaCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	return repo, db, nil
}

func resilienceConfig(cfg config.Config) resilience.Config {
	out := resilience.DefaultConfig()
	out.RetryMaxAttempts = cfg.RetryMaxAttempts
	out.RetryInitialBackoff = cfg.RetryInitialBackoff
	out.RetryMaxBackoff = cfg.RetryMaxBackoff
	out.BreakerEnabled = cfg.BreakerEnabled
	if cfg.BreakerMinRequests > 0 {
		out.BreakerMinRequests = uint32(cfg.BreakerMinRequests)
	}
	out.BreakerFailureRatio = cfg.BreakerFailureRatio
	out.BreakerOpenTimeout = cfg.BreakerOpenTimeout
	return out
}

func closeRedis(client *goredis.Client) func() {
	return func() { _ = client.Close() }
}
