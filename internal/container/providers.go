package container

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/procurement-bot/internal/application/dispatcher"
	"github.com/garyjia/procurement-bot/internal/application/port"
	"github.com/garyjia/procurement-bot/internal/application/service"
	"github.com/garyjia/procurement-bot/internal/config"
	"github.com/garyjia/procurement-bot/internal/infrastructure/external/kafka"
	infraLark "github.com/garyjia/procurement-bot/internal/infrastructure/external/lark"
	"github.com/garyjia/procurement-bot/internal/infrastructure/persistence/memory"
	redisstore "github.com/garyjia/procurement-bot/internal/infrastructure/persistence/redis"
	"github.com/garyjia/procurement-bot/internal/infrastructure/persistence/repository"
	"github.com/garyjia/procurement-bot/internal/infrastructure/persistence/spreadsheet"
	"github.com/garyjia/procurement-bot/pkg/database"
	"github.com/garyjia/procurement-bot/pkg/utils"
)

// RepositoryBundle groups the sqlite-backed repositories.
type RepositoryBundle struct {
	Sequence   port.TicketIDGenerator
	Checkpoint port.CheckpointRepository
	History    port.HistoryRepository
}

// LarkBundle holds the Lark SDK client and the sender built on it.
type LarkBundle struct {
	Client    *infraLark.SDKClient
	Messenger port.MessageSender
}

// SessionBundle is the session store and, for redis, the client to close.
type SessionBundle struct {
	Store  port.SessionStore
	Client *goredis.Client
}

// ProvideDatabase opens the sqlite database and applies pending migrations.
func ProvideDatabase(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*database.DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.Migrate(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// ProvideTicketStore opens the workbook and makes sure the sheet header is
// in place.
func ProvideTicketStore(ctx context.Context, cfg *config.SpreadsheetConfig, logger *zap.Logger) (*spreadsheet.TicketStore, error) {
	store := spreadsheet.NewTicketStore(cfg.Path, cfg.Sheet, logger)
	if err := store.Bootstrap(ctx); err != nil {
		return nil, fmt.Errorf("failed to bootstrap ticket sheet: %w", err)
	}
	return store, nil
}

// ProvideRepositories creates the repositories on db.
func ProvideRepositories(db *database.DB, ticket *config.TicketConfig, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &RepositoryBundle{
		Sequence:   repository.NewSequenceRepository(db.DB, ticket.Prefix, ticket.SequenceStart, logger),
		Checkpoint: repository.NewCheckpointRepository(db.DB, logger),
		History:    repository.NewHistoryRepository(db.DB, logger),
	}, nil
}

// ProvideLarkClients creates the Lark SDK client and the outbound sender.
func ProvideLarkClients(lark *config.LarkConfig, transport *config.TransportConfig, logger *zap.Logger) (*LarkBundle, error) {
	if lark.AppID == "" || lark.AppSecret == "" {
		return nil, fmt.Errorf("lark app credentials are required")
	}

	client := infraLark.NewSDKClient(infraLark.Config{
		AppID:          lark.AppID,
		AppSecret:      lark.AppSecret,
		RequestTimeout: transport.SendTimeout,
	}, logger)

	return &LarkBundle{
		Client:    client,
		Messenger: infraLark.NewMessenger(client, transport.SendTimeout, logger),
	}, nil
}

// ProvideSessionStore picks the configured session backend.
func ProvideSessionStore(cfg *config.Config, logger *zap.Logger) *SessionBundle {
	if cfg.Session.Backend != "redis" {
		return &SessionBundle{Store: memory.NewSessionStore()}
	}

	client := redisstore.NewClient(redisstore.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)

	return &SessionBundle{
		Store:  redisstore.NewSessionStore(client, cfg.Redis.KeyPrefix, cfg.Session.TTL),
		Client: client,
	}
}

// ProvideDispatcher creates the event dispatcher and subscribes the
// history recorder and, when configured, the kafka mirror. The publisher
// is nil when kafka is disabled.
func ProvideDispatcher(cfg *config.KafkaConfig, history *service.HistoryService, logger *zap.Logger) (dispatcher.Dispatcher, port.EventPublisher) {
	d := dispatcher.NewDispatcher(dispatcher.WithLogger(utils.NewKVLogger(logger)))
	d.SubscribeAll("history", history.Record)

	if !cfg.Enabled() {
		return d, nil
	}

	pub := kafka.NewPublisher(cfg.Brokers, cfg.Topic)
	d.SubscribeAll("kafka", kafka.EventHandler(pub, logger))
	logger.Info("Ticket events mirrored to kafka",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic))
	return d, pub
}
