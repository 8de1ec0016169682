package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppEnv   string
	LogLevel string

	DatabaseURL string

	ValkeyAddress  string
	ValkeyPassword string
	ValkeyTLS      bool

	KafkaBroker        string
	KafkaMentionsTopic string

	AWSEndpoint    string
	AWSRegion      string
	RunLedgerTable string

	Sentiment  SentimentConfig
	Supervisor SupervisorConfig
	Scoring    ScoringConfig
	Platforms  PlatformCredentials

	BrandsFile  string
	MetricsAddr string

	RunWindow       time.Duration
	SchedulerResync time.Duration
	RunLockTTL      time.Duration
}

type SentimentConfig struct {
	ServiceURL  string
	BatchSize   int
	Concurrency int
	MaxRetries  int
	Timeout     time.Duration
}

// SupervisorConfig controls the optional locally spawned scoring service. An
// empty Command means the service is managed elsewhere.
type SupervisorConfig struct {
	Command        string
	StartupTimeout time.Duration
	MaxRestarts    int
	RestartBackoff time.Duration
	ReadyPattern   string
}

// ScoringConfig configures the sentiment-service binary. Provider specific
// variables (OPENAI_API_KEY, DEEPSEEK_MODEL, ...) win over the generic LLM_
// ones.
type ScoringConfig struct {
	Backend     string
	Port        string
	LLMProvider string
	LLMAPIKey   string
	LLMBaseURL  string
	LLMModel    string
}

type PlatformCredentials struct {
	RedditClientID     string
	RedditClientSecret string
	RedditUserAgent    string

	TwitterBearerToken  string
	TwitterClientID     string
	TwitterClientSecret string

	YouTubeAPIKey string

	GoogleAPIKey         string
	GoogleSearchEngineID string

	FacebookAccessToken string
	FacebookPageIDs     []string

	InstagramAccessToken string
	InstagramUserID      string

	NewsAPIKey string
}

// Load reads the process environment. Call LoadEnv first to pull in a dotenv
// file.
func Load() Config {
	return Config{
		AppEnv:   getString("APP_ENV", "dev"),
		LogLevel: getString("LOG_LEVEL", "info"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		ValkeyAddress:  os.Getenv("VALKEY_INIT_ADDRESS"),
		ValkeyPassword: os.Getenv("VALKEY_PASSWORD"),
		ValkeyTLS:      os.Getenv("VALKEY_TLS") == "true",

		KafkaBroker:        os.Getenv("KAFKA_BROKER"),
		KafkaMentionsTopic: getString("KAFKA_TOPIC_MENTIONS", "brand.mentions"),

		AWSEndpoint:    os.Getenv("AWS_ENDPOINT"),
		AWSRegion:      getString("AWS_REGION", "us-west-2"),
		RunLedgerTable: os.Getenv("RUN_LEDGER_TABLE"),

		Sentiment: SentimentConfig{
			ServiceURL:  getString("SENTIMENT_SERVICE_URL", "http://localhost:8000"),
			BatchSize:   getInt("SENTIMENT_BATCH_SIZE", 20),
			Concurrency: getInt("SENTIMENT_CONCURRENCY", 5),
			MaxRetries:  getInt("SENTIMENT_MAX_RETRIES", 3),
			Timeout:     getDuration("SENTIMENT_TIMEOUT", 60*time.Second),
		},
		Supervisor: SupervisorConfig{
			Command:        os.Getenv("SENTIMENT_SERVICE_CMD"),
			StartupTimeout: getDuration("SENTIMENT_STARTUP_TIMEOUT", 60*time.Second),
			MaxRestarts:    getInt("SENTIMENT_MAX_RESTARTS", 3),
			RestartBackoff: getDuration("SENTIMENT_RESTART_BACKOFF", 5*time.Second),
			ReadyPattern:   getString("SENTIMENT_READY_PATTERN", `(?i)(application startup complete|uvicorn running|scoring service ready)`),
		},
		Scoring: loadScoring(),
		Platforms: PlatformCredentials{
			RedditClientID:     os.Getenv("REDDIT_CLIENT_ID"),
			RedditClientSecret: os.Getenv("REDDIT_CLIENT_SECRET"),
			RedditUserAgent:    getString("REDDIT_USER_AGENT", "brandpulse-bot/0.1"),

			TwitterBearerToken:  os.Getenv("TWITTER_BEARER_TOKEN"),
			TwitterClientID:     os.Getenv("TWITTER_CLIENT_ID"),
			TwitterClientSecret: os.Getenv("TWITTER_CLIENT_SECRET"),

			YouTubeAPIKey: os.Getenv("YOUTUBE_API_KEY"),

			GoogleAPIKey:         os.Getenv("GOOGLE_API_KEY"),
			GoogleSearchEngineID: os.Getenv("GOOGLE_SEARCH_ENGINE_ID"),

			FacebookAccessToken: os.Getenv("FACEBOOK_ACCESS_TOKEN"),
			FacebookPageIDs:     getList("FACEBOOK_PAGE_IDS"),

			InstagramAccessToken: os.Getenv("INSTAGRAM_ACCESS_TOKEN"),
			InstagramUserID:      os.Getenv("INSTAGRAM_USER_ID"),

			NewsAPIKey: os.Getenv("NEWSAPI_KEY"),
		},

		BrandsFile:  os.Getenv("BRANDS_FILE"),
		MetricsAddr: getString("METRICS_ADDR", ":9090"),

		RunWindow:       getDuration("RUN_WINDOW", time.Hour),
		SchedulerResync: getDuration("SCHEDULER_RESYNC", 5*time.Minute),
		RunLockTTL:      getDuration("RUN_LOCK_TTL", 15*time.Minute),
	}
}

func loadScoring() ScoringConfig {
	provider := strings.ToLower(getString("LLM_PROVIDER", "openai"))
	prefix := strings.ToUpper(provider)
	sc := ScoringConfig{
		Port:        getString("PORT", "8000"),
		LLMProvider: provider,
		LLMAPIKey:   firstEnv(prefix+"_API_KEY", "LLM_API_KEY"),
		LLMBaseURL:  firstEnv(prefix+"_API_BASE", "LLM_BASE_URL"),
		LLMModel:    firstEnv(prefix+"_MODEL", "LLM_MODEL_NAME"),
	}
	// without a key there is nothing the llm backend could do
	defaultBackend := "vader"
	if sc.LLMAPIKey != "" {
		defaultBackend = "llm"
	}
	sc.Backend = strings.ToLower(getString("SCORING_BACKEND", defaultBackend))
	return sc
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func getString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		slog.Warn("[Config] Invalid integer, using default",
			slog.String("key", key),
			slog.String("value", raw),
			slog.Int("default", fallback))
		return fallback
	}
	return v
}

// getDuration accepts Go duration strings ("90s") or bare seconds ("90").
func getDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	slog.Warn("[Config] Invalid duration, using default",
		slog.String("key", key),
		slog.String("value", raw),
		slog.Duration("default", fallback))
	return fallback
}

func getList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
