// Package container wires the procurement bot together with ordered
// initialization and reverse-order teardown.
package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/procurement-bot/internal/application/conversation"
	"github.com/garyjia/procurement-bot/internal/application/dispatcher"
	"github.com/garyjia/procurement-bot/internal/application/port"
	"github.com/garyjia/procurement-bot/internal/application/service"
	"github.com/garyjia/procurement-bot/internal/config"
	infraLark "github.com/garyjia/procurement-bot/internal/infrastructure/external/lark"
	"github.com/garyjia/procurement-bot/internal/infrastructure/persistence/spreadsheet"
	"github.com/garyjia/procurement-bot/internal/interfaces/websocket"
	"github.com/garyjia/procurement-bot/internal/worker"
	"github.com/garyjia/procurement-bot/pkg/database"
	"github.com/garyjia/procurement-bot/pkg/utils"
)

// Container manages all application dependencies and lifecycle.
type Container struct {
	config *config.Config
	logger *zap.Logger

	// Infrastructure - Data
	db           *database.DB
	store        *spreadsheet.TicketStore
	repositories *RepositoryBundle
	sessions     port.SessionStore
	redisClient  *goredis.Client

	// Infrastructure - External
	larkClient *infraLark.SDKClient
	sender     port.MessageSender
	publisher  port.EventPublisher

	// Application
	dispatcher dispatcher.Dispatcher
	history    *service.HistoryService
	lifecycle  service.LifecycleService
	bot        *conversation.Bot

	// Workers
	poller  *worker.ChangePoller
	workers *worker.Manager

	mu     sync.Mutex
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components in dependency order:
// 1. Database, repositories and the ticket sheet
// 2. External clients (Lark)
// 3. Application services and the event dispatcher
// 4. Workers (registered, not started; see StartWorkers)
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	if err := c.initData(ctx); err != nil {
		c.closeData()
		return fmt.Errorf("failed to initialize data layer: %w", err)
	}
	c.logger.Info("Data layer initialized")

	if err := c.initExternalClients(); err != nil {
		c.closeData()
		return fmt.Errorf("failed to initialize external clients: %w", err)
	}
	c.logger.Info("External clients initialized")

	c.initServices()
	c.logger.Info("Application services initialized")

	c.initWorkers()

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// StartWorkers starts the inbound chat adapter and, when enabled, the
// change poller.
func (c *Container) StartWorkers(ctx context.Context) error {
	if !c.ready.Load() {
		return fmt.Errorf("container not started")
	}
	return c.workers.StartAll(ctx)
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	if c.workers != nil {
		c.workers.StopAll()
		c.logger.Info("Workers stopped")
	}

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}

	if c.publisher != nil {
		if err := c.publisher.Close(); err != nil {
			c.logger.Error("Failed to close event publisher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}

	errs = append(errs, c.closeData()...)

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// closeData releases the session backend and the database.
func (c *Container) closeData() []error {
	var errs []error
	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
		c.redisClient = nil
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
		c.db = nil
	}
	return errs
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	set := func(name string, err error) {
		if err != nil {
			status.Components[name] = ComponentHealth{Healthy: false, Message: err.Error()}
			status.Overall = false
			return
		}
		status.Components[name] = ComponentHealth{Healthy: true}
	}

	if c.db == nil {
		set("database", fmt.Errorf("not initialized"))
	} else {
		set("database", c.db.PingContext(ctx))
	}

	if c.store == nil {
		set("spreadsheet", fmt.Errorf("not initialized"))
	} else {
		_, err := c.store.List(ctx)
		set("spreadsheet", err)
	}

	if c.redisClient != nil {
		set("redis", c.redisClient.Ping(ctx).Err())
	}

	if c.workers != nil {
		for name, running := range c.workers.Status() {
			if running {
				set("worker:"+name, nil)
			} else {
				set("worker:"+name, fmt.Errorf("stopped"))
			}
		}
	}

	return status
}

func (c *Container) initData(ctx context.Context) error {
	db, err := ProvideDatabase(ctx, &c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.db = db

	repos, err := ProvideRepositories(db, &c.config.Ticket, c.logger)
	if err != nil {
		return err
	}
	c.repositories = repos

	store, err := ProvideTicketStore(ctx, &c.config.Spreadsheet, c.logger)
	if err != nil {
		return err
	}
	c.store = store

	sessions := ProvideSessionStore(c.config, c.logger)
	c.sessions = sessions.Store
	c.redisClient = sessions.Client
	return nil
}

func (c *Container) initExternalClients() error {
	bundle, err := ProvideLarkClients(&c.config.Lark, &c.config.Transport, c.logger)
	if err != nil {
		return err
	}
	c.larkClient = bundle.Client
	c.sender = bundle.Messenger
	return nil
}

func (c *Container) initServices() {
	kv := utils.NewKVLogger(c.logger)

	c.history = service.NewHistoryService(c.repositories.History, kv)
	c.dispatcher, c.publisher = ProvideDispatcher(&c.config.Kafka, c.history, c.logger)

	roles := c.Roles()
	notifier := service.NewNotificationService(c.sender, roles, c.config.Transport.SendTimeout, kv)

	c.lifecycle = service.NewLifecycleService(c.store, c.repositories.Sequence, notifier, kv,
		service.WithCASRetries(c.config.Poller.CASRetries),
		service.WithEventDispatcher(c.dispatcher),
	)

	manager := conversation.NewManager(c.lifecycle, c.sessions, roles, kv)
	c.bot = conversation.NewBot(manager, c.sender, kv)
}

func (c *Container) initWorkers() {
	c.poller = worker.NewChangePoller(c.store, c.lifecycle, c.repositories.Checkpoint, c.logger,
		worker.WithPollInterval(c.config.Poller.Interval),
		worker.WithCycleTimeout(c.config.Poller.Timeout),
		worker.WithSettleGrace(c.config.Poller.SettleGrace),
	)

	c.workers = worker.NewManager(c.logger)
	c.workers.Register(websocket.NewLarkAdapter(websocket.LarkAdapterConfig{
		AppID:     c.config.Lark.AppID,
		AppSecret: c.config.Lark.AppSecret,
	}, c.bot.Handler(), c.logger))
	if c.config.Poller.Enabled {
		c.workers.Register(c.poller)
	}
}

// Roles returns the configured secretary and treasurer.
func (c *Container) Roles() service.Roles {
	return service.Roles{Secretary: c.config.Roles.Secretary, Treasurer: c.config.Roles.Treasurer}
}

// Lifecycle returns the ticket lifecycle service.
func (c *Container) Lifecycle() service.LifecycleService {
	return c.lifecycle
}

// History returns the audit trail service.
func (c *Container) History() *service.HistoryService {
	return c.history
}

// Bot returns the conversation facade.
func (c *Container) Bot() *conversation.Bot {
	return c.bot
}

// Poller returns the change poller.
func (c *Container) Poller() *worker.ChangePoller {
	return c.poller
}

// Sender returns the outbound chat sender.
func (c *Container) Sender() port.MessageSender {
	return c.sender
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.Manager {
	return c.workers
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *config.Config {
	return c.config
}
