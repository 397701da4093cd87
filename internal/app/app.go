// Package app wires configuration into the stores, collaborators and
// services shared by the server and worker binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/redis/go-redis/v9"

	"github.com/LopeviaKochis/ai-virtual-assistant/common/llm"
	"github.com/LopeviaKochis/ai-virtual-assistant/common/paramstore"
	"github.com/LopeviaKochis/ai-virtual-assistant/core/config"
	"github.com/LopeviaKochis/ai-virtual-assistant/core/db"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/intent"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/mapper"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/model"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/queue"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/service"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/service/channel"
	"github.com/LopeviaKochis/ai-virtual-assistant/internal/store"
)

// App holds the process-wide dependencies. Close releases them.
type App struct {
	Config      config.Config
	Redis       *redis.Client
	Dispatcher  channel.Dispatcher
	Idempotency store.IdempotencyStore
	Services    *service.Services

	records *db.DB
}

// ResolveSecrets replaces secrets in cfg with SSM parameters when a
// parameter prefix is configured.
func ResolveSecrets(ctx context.Context, cfg *config.Config) error {
	if cfg.AWS.ParamPrefix == "" {
		return nil
	}
	awsCfg, err := loadAWS(ctx, cfg.AWS)
	if err != nil {
		return err
	}
	params, err := paramstore.New(ssm.NewFromConfig(awsCfg))
	if err != nil {
		return err
	}
	if err := cfg.ResolveSecrets(ctx, params); err != nil {
		return fmt.Errorf("resolving secrets: %w", err)
	}
	slog.InfoContext(ctx, "secrets resolved from parameter store", "prefix", cfg.AWS.ParamPrefix)
	return nil
}

// ConnectRedis parses url and verifies the connection.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return client, nil
}

// New builds the conversation stack on top of an open Redis client. producer
// may be nil in processes that never enqueue.
func New(ctx context.Context, cfg config.Config, client *redis.Client, producer queue.Producer) (*App, error) {
	a := &App{Config: cfg, Redis: client}

	var records store.RecordSearch
	if cfg.RecordsDB.Enabled() {
		database, err := db.New(ctx, cfg.RecordsDB)
		if err != nil {
			return nil, fmt.Errorf("connecting to records database: %w", err)
		}
		a.records = database
		records = store.NewRecordSearch(database)
		slog.InfoContext(ctx, "records database connected")
	} else {
		slog.WarnContext(ctx, "RECORDS_DATABASE_URL not set, lookups will answer with an apology")
	}

	profiles, err := newProfileStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	router, generator, err := newLLM(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	dispatcher, err := newDispatcher(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Dispatcher = dispatcher

	a.Idempotency = store.NewIdempotencyStore(client, cfg.Conversation.IdempotencyTTL, cfg.Conversation.ClaimLease)
	a.Services = service.NewServices(service.Deps{
		Conversation: service.ConversationDeps{
			Sessions: store.NewSessionStore(client, cfg.Conversation.SessionTTL),
			Locker: store.NewContactLocker(client, store.LockConfig{
				TTL:  cfg.Conversation.LockTTL,
				Wait: cfg.Conversation.LockWait,
			}),
			Records:  records,
			Profiles: profiles,
			Router:   router,
			Composer: service.NewComposer(generator, cfg.Timeouts.Generate),
		},
		Timeouts: service.ConversationTimeouts{
			Search:  cfg.Timeouts.Search,
			Profile: cfg.Timeouts.Profile,
		},
		Mapper:      mapper.NewRespondIOEventMapper(),
		Queue:       producer,
		Dispatcher:  dispatcher,
		SendTimeout: cfg.Timeouts.Send,
		Logger:      slog.Default(),
	})
	return a, nil
}

func (a *App) Close() {
	if a.records != nil {
		a.records.Close()
	}
}

func newProfileStore(ctx context.Context, cfg config.Config) (store.ProfileStore, error) {
	if !cfg.Profiles.Enabled() {
		return nil, nil
	}
	awsCfg, err := loadAWS(ctx, cfg.AWS)
	if err != nil {
		return nil, err
	}
	profiles, err := store.NewProfileStore(dynamodb.NewFromConfig(awsCfg), cfg.Profiles.Table)
	if err != nil {
		return nil, fmt.Errorf("creating profile store: %w", err)
	}
	slog.InfoContext(ctx, "profile store enabled", "table", cfg.Profiles.Table)
	return profiles, nil
}

func newLLM(cfg config.Config) (intent.Router, llm.Generator, error) {
	var classifier llm.Client
	if cfg.ClassifierLLM.Enabled() {
		c, err := llm.New(llmConfig(cfg.ClassifierLLM))
		if err != nil {
			return nil, nil, fmt.Errorf("creating classifier client: %w", err)
		}
		classifier = c
	}
	router, err := intent.New(cfg.Conversation.IntentStrategy, classifier, cfg.Timeouts.Classify)
	if err != nil {
		return nil, nil, err
	}

	var generator llm.Generator
	if cfg.GeneratorLLM.Enabled() {
		generator, err = llm.NewGenerator(llmConfig(cfg.GeneratorLLM))
		if err != nil {
			return nil, nil, fmt.Errorf("creating answer generator: %w", err)
		}
	}
	return router, generator, nil
}

func llmConfig(c config.LLMConfig) llm.Config {
	return llm.Config{
		Provider:    c.Provider,
		APIKey:      c.APIKey,
		BaseURL:     c.BaseURL,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: llm.Temp(c.Temperature),
	}
}

// newDispatcher answers Telegram bot events through the Bot API and
// everything else through Respond.io.
func newDispatcher(cfg config.Config) (channel.Dispatcher, error) {
	fallback, err := newRespondIO(cfg)
	if err != nil {
		return nil, err
	}

	routes := map[string]channel.Dispatcher{}
	if cfg.Telegram.Enabled() {
		tg, err := channel.NewTelegram(channel.TelegramConfig{
			BaseURL:    cfg.Telegram.BaseURL,
			Token:      cfg.Telegram.BotToken,
			Timeout:    cfg.Timeouts.Send,
			MaxRetries: cfg.RespondIO.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("creating telegram dispatcher: %w", err)
		}
		routes[model.SourceTelegramBot] = tg
	}
	return channel.NewMux(fallback, routes), nil
}

func newRespondIO(cfg config.Config) (channel.Dispatcher, error) {
	if cfg.RespondIO.Enabled() {
		return channel.NewRespondIO(channel.RespondIOConfig{
			BaseURL:    cfg.RespondIO.BaseURL,
			Token:      cfg.RespondIO.APIToken,
			Timeout:    cfg.Timeouts.Send,
			MaxRetries: cfg.RespondIO.MaxRetries,
		})
	}
	if cfg.IsProduction() {
		return nil, errors.New("RESPONDIO_API_TOKEN is required in production")
	}
	slog.Warn("RESPONDIO_API_TOKEN not set, replies are only logged")
	return channel.NewLogDispatcher(), nil
}

func loadAWS(ctx context.Context, c config.AWSConfig) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(c.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading aws config: %w", err)
	}
	return awsCfg, nil
}
