package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	APIPort  string
	LogLevel string

	RAGFlowURL                string
	RAGFlowAPIKey             string
	RAGFlowTimeout            time.Duration
	KnowledgeDefaultDatasetID string
	KnowledgeCallTimeout      time.Duration
	KnowledgeSearchStrategy   string

	WebSearchProvider string
	TavilyAPIKey      string
	ExaAPIKey         string
	SerperAPIKey      string
	WebSearchBaseURL  string
	WebSearchTimeout  time.Duration

	SearchQueryTimeout        time.Duration
	SearchConfidenceThreshold float64
	RulesPath                 string

	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration

	BreakerEnabled      bool
	BreakerMinRequests  int
	BreakerFailureRatio float64
	BreakerOpenTimeout  time.Duration

	RedisURL        string
	DatasetCacheTTL time.Duration

	PostgresDSN string

	NATSURL     string
	NATSSubject string

	APIRateLimitRPS   float64
	APIRateLimitBurst int
	APIMaxInFlight    int

	WorkerMetricsPort string
}

func Load() Config {
	return Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		RAGFlowURL:                mustEnv("RAGFLOW_URL", "http://localhost:8000"),
		RAGFlowAPIKey:             mustEnv("RAGFLOW_API_KEY", ""),
		RAGFlowTimeout:            mustEnvDuration("RAGFLOW_TIMEOUT", 90*time.Second),
		KnowledgeDefaultDatasetID: mustEnv("KNOWLEDGE_DEFAULT_DATASET_ID", ""),
		KnowledgeCallTimeout:      mustEnvDuration("KNOWLEDGE_CALL_TIMEOUT", 90*time.Second),
		KnowledgeSearchStrategy:   mustEnv("KNOWLEDGE_SEARCH_STRATEGY", "intelligent"),

		WebSearchProvider: strings.ToLower(mustEnv("WEB_SEARCH_PROVIDER", "tavily")),
		TavilyAPIKey:      mustEnv("TAVILY_API_KEY", ""),
		ExaAPIKey:         mustEnv("EXA_API_KEY", ""),
		SerperAPIKey:      mustEnv("SERPER_API_KEY", ""),
		WebSearchBaseURL:  mustEnv("WEB_SEARCH_BASE_URL", ""),
		WebSearchTimeout:  mustEnvDuration("WEB_SEARCH_TIMEOUT", 30*time.Second),

		SearchQueryTimeout:        mustEnvDuration("SEARCH_QUERY_TIMEOUT", 60*time.Second),
		SearchConfidenceThreshold: mustEnvFloat("SEARCH_CONFIDENCE_THRESHOLD", 0.7),
		RulesPath:                 mustEnv("RULES_PATH", ""),

		RetryMaxAttempts:    mustEnvInt("RETRY_MAX_ATTEMPTS", 3),
		RetryInitialBackoff: mustEnvDuration("RETRY_INITIAL_BACKOFF", time.Second),
		RetryMaxBackoff:     mustEnvDuration("RETRY_MAX_BACKOFF", 4*time.Second),

		BreakerEnabled:      mustEnvBool("BREAKER_ENABLED", true),
		BreakerMinRequests:  mustEnvInt("BREAKER_MIN_REQUESTS", 10),
		BreakerFailureRatio: mustEnvFloat("BREAKER_FAILURE_RATIO", 0.5),
		BreakerOpenTimeout:  mustEnvDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second),

		RedisURL:        mustEnv("REDIS_URL", ""),
		DatasetCacheTTL: mustEnvDuration("DATASET_CACHE_TTL", 5*time.Minute),

		PostgresDSN: mustEnv("POSTGRES_DSN", ""),

		NATSURL:     mustEnv("NATS_URL", ""),
		NATSSubject: mustEnv("NATS_SUBJECT", "search.completed"),

		APIRateLimitRPS:   mustEnvFloat("API_RATE_LIMIT_RPS", 20),
		APIRateLimitBurst: mustEnvInt("API_RATE_LIMIT_BURST", 40),
		APIMaxInFlight:    mustEnvInt("API_MAX_IN_FLIGHT", 64),

		WorkerMetricsPort: mustEnv("WORKER_METRICS_PORT", "9090"),
	}
}

// WebSearchAPIKey returns the key of the selected provider.
func (c Config) WebSearchAPIKey() string {
	switch c.WebSearchProvider {
	case "exa":
		return c.ExaAPIKey
	case "serper":
		return c.SerperAPIKey
	default:
		return c.TavilyAPIKey
	}
}

func mustEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

// mustEnvDuration accepts Go durations ("90s") or a bare number of seconds.
func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
