package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/LopeviaKochis/ai-virtual-assistant/common/paramstore"
	"github.com/LopeviaKochis/ai-virtual-assistant/core/db"
)

type Config struct {
	OTel          OTelConfig
	Webhook       WebhookConfig
	Pipeline      PipelineConfig
	Worker        WorkerConfig
	Conversation  ConversationConfig
	ClassifierLLM LLMConfig
	GeneratorLLM  LLMConfig
	RespondIO     RespondIOConfig
	Telegram      TelegramConfig
	Profiles      ProfileStoreConfig
	AWS           AWSConfig
	Timeouts      TimeoutConfig
	RecordsDB     db.Config
	Env           string
	Port          string
	AdminAPIKey   string
	NodeID        int64
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
	Environment    string
	SampleRatio    float64
}

// WebhookConfig holds one shared secret per webhook route.
type WebhookConfig struct {
	MessageSecret      string
	ConversationSecret string
	SignatureHeader    string
	MaxBodyBytes       int64
}

type PipelineConfig struct {
	RedisURL       string
	RedisStream    string
	RedisGroup     string
	RedisDLQStream string
	RedisConsumer  string
}

type WorkerConfig struct {
	Concurrency     int
	MaxAttempts     int
	PollTimeout     time.Duration
	ReclaimInterval time.Duration
	ReclaimMinIdle  time.Duration
}

type ConversationConfig struct {
	SessionTTL     time.Duration
	IdempotencyTTL time.Duration
	ClaimLease     time.Duration
	LockTTL        time.Duration
	LockWait       time.Duration
	// IntentStrategy is "auto", "heuristic" or "llm".
	IntentStrategy string
}

type LLMConfig struct {
	Provider    string // "openai" or "anthropic"
	APIKey      string
	BaseURL     string // Optional: for custom endpoints
	Model       string
	MaxTokens   int
	Temperature float64
}

type RespondIOConfig struct {
	BaseURL    string
	APIToken   string
	MaxRetries int
}

// TelegramConfig drives the assistant's own bot. The webhook secret is the
// secret_token registered with setWebhook.
type TelegramConfig struct {
	BaseURL       string
	BotToken      string
	WebhookSecret string
}

type ProfileStoreConfig struct {
	Table string
}

type AWSConfig struct {
	Region      string
	ParamPrefix string
}

type TimeoutConfig struct {
	Search   time.Duration
	Classify time.Duration
	Generate time.Duration
	Send     time.Duration
	MarkRead time.Duration
	Profile  time.Duration
}

type ServiceType string

const (
	ServiceTypeServer ServiceType = "server"
	ServiceTypeWorker ServiceType = "worker"
)

// Load loads configuration from environment variables.
// In development, it loads from service-specific .env files:
//   - .env.server for the API server
//   - .env.worker for the queue workers
//
// Falls back to .env if service-specific file doesn't exist.
func Load(serviceType ServiceType) (Config, error) {
	if getEnv("APP_ENV", "development") == "development" {
		envFile := fmt.Sprintf(".env.%s", serviceType)
		if err := godotenv.Load(envFile); err != nil {
			_ = godotenv.Load(".env")
		}
	}

	env := getEnv("APP_ENV", "development")
	cfg := Config{
		Env:         env,
		Port:        getEnv("PORT", "8000"),
		AdminAPIKey: getEnv("ADMIN_API_KEY", ""),
		NodeID:      int64(getEnvInt("NODE_ID", 1)),
		RecordsDB: db.Config{
			DSN:              getEnv("RECORDS_DATABASE_URL", ""),
			MaxConns:         getEnvInt32("RECORDS_DB_MAX_CONNS", 10),
			MinConns:         getEnvInt32("RECORDS_DB_MIN_CONNS", 1),
			StatementTimeout: getEnvDuration("SEARCH_TIMEOUT", 5*time.Second),
		},
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "ai-virtual-assistant-"+string(serviceType)),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
			Environment:    env,
			SampleRatio:    getEnvFloat("OTEL_TRACES_SAMPLE_RATIO", 1.0),
		},
		Webhook: WebhookConfig{
			MessageSecret:      getEnv("WEBHOOK_MESSAGE_SECRET", ""),
			ConversationSecret: getEnv("WEBHOOK_CONVERSATION_SECRET", ""),
			SignatureHeader:    getEnv("WEBHOOK_SIGNATURE_HEADER", "X-Webhook-Signature"),
			MaxBodyBytes:       int64(getEnvInt("WEBHOOK_MAX_BODY_BYTES", 1<<20)),
		},
		Pipeline: PipelineConfig{
			RedisURL:       getEnv("REDIS_URL", "redis://localhost:6379/0"),
			RedisStream:    getEnv("REDIS_STREAM", "assistant_events"),
			RedisGroup:     getEnv("REDIS_CONSUMER_GROUP", "assistant_workers"),
			RedisDLQStream: getEnv("REDIS_DLQ_STREAM", "assistant_events_dlq"),
			RedisConsumer:  getEnv("REDIS_CONSUMER_NAME", ""),
		},
		Worker: WorkerConfig{
			Concurrency:     getEnvInt("WORKER_CONCURRENCY", 4),
			MaxAttempts:     getEnvInt("WORKER_MAX_ATTEMPTS", 3),
			PollTimeout:     getEnvDuration("QUEUE_POLL_TIMEOUT", 5*time.Second),
			ReclaimInterval: getEnvDuration("RECLAIM_INTERVAL", 30*time.Second),
			ReclaimMinIdle:  getEnvDuration("RECLAIM_MIN_IDLE", 2*time.Minute),
		},
		Conversation: ConversationConfig{
			SessionTTL:     getEnvDuration("SESSION_TTL", 24*time.Hour),
			IdempotencyTTL: getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
			ClaimLease:     getEnvDuration("CLAIM_LEASE", 90*time.Second),
			LockTTL:        getEnvDuration("LOCK_TTL", 30*time.Second),
			LockWait:       getEnvDuration("LOCK_TIMEOUT", 10*time.Second),
			IntentStrategy: getEnv("INTENT_STRATEGY", "auto"),
		},
		ClassifierLLM: LLMConfig{
			Provider:    getEnv("CLASSIFIER_LLM_PROVIDER", "openai"),
			APIKey:      getEnv("CLASSIFIER_LLM_API_KEY", getEnv("OPENAI_API_KEY", "")),
			BaseURL:     getEnv("CLASSIFIER_LLM_BASE_URL", ""),
			Model:       getEnv("CLASSIFIER_LLM_MODEL", "gpt-4o-mini"),
			MaxTokens:   getEnvInt("CLASSIFIER_LLM_MAX_TOKENS", 300),
			Temperature: getEnvFloat("CLASSIFIER_LLM_TEMPERATURE", 0),
		},
		GeneratorLLM: LLMConfig{
			Provider:    getEnv("GENERATOR_LLM_PROVIDER", "openai"),
			APIKey:      getEnv("GENERATOR_LLM_API_KEY", getEnv("OPENAI_API_KEY", "")),
			BaseURL:     getEnv("GENERATOR_LLM_BASE_URL", ""),
			Model:       getEnv("GENERATOR_LLM_MODEL", "gpt-4o-mini"),
			MaxTokens:   getEnvInt("GENERATOR_LLM_MAX_TOKENS", 220),
			Temperature: getEnvFloat("GENERATOR_LLM_TEMPERATURE", 0.2),
		},
		RespondIO: RespondIOConfig{
			BaseURL:    getEnv("RESPONDIO_API_URL", "https://api.respond.io/v2"),
			APIToken:   getEnv("RESPONDIO_API_TOKEN", ""),
			MaxRetries: getEnvInt("RESPONDIO_MAX_RETRIES", 2),
		},
		Telegram: TelegramConfig{
			BaseURL:       getEnv("TELEGRAM_API_URL", "https://api.telegram.org"),
			BotToken:      getEnv("TELEGRAM_BOT_TOKEN", ""),
			WebhookSecret: getEnv("TELEGRAM_WEBHOOK_SECRET", ""),
		},
		Profiles: ProfileStoreConfig{
			Table: getEnv("PROFILE_TABLE", ""),
		},
		AWS: AWSConfig{
			Region:      getEnv("AWS_REGION", "us-east-1"),
			ParamPrefix: getEnv("PARAM_PREFIX", ""),
		},
		Timeouts: TimeoutConfig{
			Search:   getEnvDuration("SEARCH_TIMEOUT", 5*time.Second),
			Classify: getEnvDuration("CLASSIFIER_TIMEOUT", 8*time.Second),
			Generate: getEnvDuration("GENERATE_TIMEOUT", 10*time.Second),
			Send:     getEnvDuration("SEND_TIMEOUT", 10*time.Second),
			MarkRead: getEnvDuration("MARK_READ_TIMEOUT", 3*time.Second),
			Profile:  getEnvDuration("PROFILE_TIMEOUT", 3*time.Second),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
	}
	if c.Worker.MaxAttempts < 1 {
		return fmt.Errorf("WORKER_MAX_ATTEMPTS must be at least 1")
	}
	// A reclaimed delivery must find the previous claim already expired.
	if c.Conversation.ClaimLease >= c.Worker.ReclaimMinIdle {
		return fmt.Errorf("CLAIM_LEASE (%s) must be shorter than RECLAIM_MIN_IDLE (%s)",
			c.Conversation.ClaimLease, c.Worker.ReclaimMinIdle)
	}
	switch c.Conversation.IntentStrategy {
	case "auto", "heuristic", "llm":
	default:
		return fmt.Errorf("INTENT_STRATEGY must be one of auto, heuristic, llm (got %q)", c.Conversation.IntentStrategy)
	}
	if c.Conversation.IntentStrategy == "llm" && !c.ClassifierLLM.Enabled() {
		return fmt.Errorf("INTENT_STRATEGY=llm requires CLASSIFIER_LLM_API_KEY")
	}
	return nil
}

// ResolveSecrets overrides secrets with values from the parameter store when
// PARAM_PREFIX is configured. Parameters that do not exist keep their env value.
func (c *Config) ResolveSecrets(ctx context.Context, g paramstore.Getter) error {
	if c.AWS.ParamPrefix == "" || g == nil {
		return nil
	}
	return paramstore.Resolve(ctx, g, c.AWS.ParamPrefix, map[string]*string{
		"webhook/message-secret":      &c.Webhook.MessageSecret,
		"webhook/conversation-secret": &c.Webhook.ConversationSecret,
		"respondio/token":             &c.RespondIO.APIToken,
		"telegram/bot-token":          &c.Telegram.BotToken,
		"telegram/webhook-secret":     &c.Telegram.WebhookSecret,
		"llm/classifier-api-key":      &c.ClassifierLLM.APIKey,
		"llm/generator-api-key":       &c.GeneratorLLM.APIKey,
		"admin/api-key":               &c.AdminAPIKey,
		"records/database-url":        &c.RecordsDB.DSN,
	})
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func (c LLMConfig) Enabled() bool {
	return c.APIKey != "" && (c.Provider == "openai" || c.Provider == "anthropic")
}

func (c RespondIOConfig) Enabled() bool {
	return c.APIToken != ""
}

func (c TelegramConfig) Enabled() bool {
	return c.BotToken != ""
}

func (c ProfileStoreConfig) Enabled() bool {
	return c.Table != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt32(key string, fallback int32) int32 {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(i)
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("5s", "24h") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
