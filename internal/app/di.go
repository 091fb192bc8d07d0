// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	redis "github.com/go-redis/redis/v8"

	bookingHTTP "github.com/pdh/booking/internal/booking/http"
	bookingRepository "github.com/pdh/booking/internal/booking/repository"
	bookingUsecase "github.com/pdh/booking/internal/booking/usecase"
	"github.com/pdh/booking/internal/cdc"
	"github.com/pdh/booking/internal/config"
	"github.com/pdh/booking/internal/database"
	dedupRepository "github.com/pdh/booking/internal/dedup/repository"
	"github.com/pdh/booking/internal/http"
	"github.com/pdh/booking/internal/kafka"
	"github.com/pdh/booking/internal/metrics"
	notificationUsecase "github.com/pdh/booking/internal/notification/usecase"
	outboxRepository "github.com/pdh/booking/internal/outbox/repository"
	outboxUsecase "github.com/pdh/booking/internal/outbox/usecase"
	sagaRepository "github.com/pdh/booking/internal/saga/repository"
	sagaUsecase "github.com/pdh/booking/internal/saga/usecase"
	selfeventUsecase "github.com/pdh/booking/internal/selfevent/usecase"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger      *slog.Logger
	db          *sql.DB
	redisClient *redis.Client

	// Managers
	txManager database.TxManager

	// Metrics
	metricsProvider     *metrics.Provider
	businessMetrics     metrics.BusinessMetrics
	coordinationMetrics *metrics.CoordinationMetrics

	// Repositories
	repositories *repositorySet

	// Messaging
	kafkaProducer *kafka.Producer

	// Use cases and workers
	outboxWriter      *outboxUsecase.Writer
	outboxRelay       *outboxUsecase.Relay
	orchestrator      *sagaUsecase.Orchestrator
	sweeper           *sagaUsecase.Sweeper
	selfEventConsumer *selfeventUsecase.Consumer
	notifier          *notificationUsecase.Notifier
	bookingUseCase    bookingUsecase.BookingUseCase
	changeLogConsumer *cdc.Consumer

	// Servers
	httpServer    *http.Server
	metricsServer *http.MetricsServer

	// Initialization flags and mutex for thread-safety
	mu                    sync.Mutex
	loggerInit            sync.Once
	dbInit                sync.Once
	redisInit             sync.Once
	txManagerInit         sync.Once
	metricsInit           sync.Once
	repositoriesInit      sync.Once
	producerInit          sync.Once
	outboxWriterInit      sync.Once
	outboxRelayInit       sync.Once
	orchestratorInit      sync.Once
	sweeperInit           sync.Once
	selfEventConsumerInit sync.Once
	changeLogConsumerInit sync.Once
	notifierInit          sync.Once
	bookingUseCaseInit    sync.Once
	httpServerInit        sync.Once
	metricsServerInit     sync.Once
	initErrors            map[string]error
}

// repositorySet groups the driver-specific repositories selected at startup.
// The booking and saga entries are stored once per consumer-facing interface
// so no caller needs a type assertion.
type repositorySet struct {
	booking     bookingUsecase.BookingRepository
	sagaBooking sagaUsecase.BookingRepository
	selfBooking selfeventUsecase.BookingReader
	saga        sagaUsecase.InstanceRepository
	selfSaga    selfeventUsecase.SagaReader
	stateLog    sagaUsecase.StateLogRepository
	outbox      outboxUsecase.EventRepository
	outboxMark  selfeventUsecase.OutboxMarker
	dedup       selfeventUsecase.DeduplicationStore
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
// It creates and configures the database connection on first access.
func (c *Container) DB() (*sql.DB, error) {
	c.dbInit.Do(func() {
		db, err := c.initDB()
		if err != nil {
			c.initErrors["db"] = err
			return
		}
		c.db = db
	})
	if storedErr, exists := c.initErrors["db"]; exists {
		return nil, storedErr
	}
	return c.db, nil
}

// RedisClient returns the Redis client used by the redis deduplication backend.
func (c *Container) RedisClient() (*redis.Client, error) {
	c.redisInit.Do(func() {
		client := redis.NewClient(&redis.Options{
			Addr: c.config.RedisAddr,
			DB:   c.config.RedisDB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			c.initErrors["redis"] = fmt.Errorf("failed to connect to redis: %w", err)
			return
		}
		c.redisClient = client
	})
	if storedErr, exists := c.initErrors["redis"]; exists {
		return nil, storedErr
	}
	return c.redisClient, nil
}

// TxManager returns the transaction manager.
// It requires a database connection to be initialized first.
func (c *Container) TxManager() (database.TxManager, error) {
	c.txManagerInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["txManager"] = fmt.Errorf("failed to get database for tx manager: %w", err)
			return
		}
		c.txManager = database.NewTxManager(db)
	})
	if storedErr, exists := c.initErrors["txManager"]; exists {
		return nil, storedErr
	}
	return c.txManager, nil
}

// MetricsProvider returns the metrics provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	if err := c.initMetrics(); err != nil {
		return nil, err
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business metrics recorder. When metrics are
// disabled it returns a no-op implementation.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	if err := c.initMetrics(); err != nil {
		return nil, err
	}
	return c.businessMetrics, nil
}

// CoordinationMetrics returns the adapter that exposes business metrics to the
// saga, outbox and self-event use cases.
func (c *Container) CoordinationMetrics() (*metrics.CoordinationMetrics, error) {
	if err := c.initMetrics(); err != nil {
		return nil, err
	}
	return c.coordinationMetrics, nil
}

func (c *Container) initMetrics() error {
	c.metricsInit.Do(func() {
		if !c.config.MetricsEnabled {
			c.businessMetrics = metrics.NewNoOpBusinessMetrics()
			c.coordinationMetrics = metrics.NewCoordinationMetrics(c.businessMetrics)
			return
		}

		provider, err := metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["metrics"] = fmt.Errorf("failed to create metrics provider: %w", err)
			return
		}

		business, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["metrics"] = fmt.Errorf("failed to create business metrics: %w", err)
			return
		}

		c.metricsProvider = provider
		c.businessMetrics = business
		c.coordinationMetrics = metrics.NewCoordinationMetrics(business)
	})
	if storedErr, exists := c.initErrors["metrics"]; exists {
		return storedErr
	}
	return nil
}

// Repositories returns the driver-specific repository set.
func (c *Container) Repositories() (*repositorySet, error) {
	c.repositoriesInit.Do(func() {
		repos, err := c.initRepositories()
		if err != nil {
			c.initErrors["repositories"] = err
			return
		}
		c.repositories = repos
	})
	if storedErr, exists := c.initErrors["repositories"]; exists {
		return nil, storedErr
	}
	return c.repositories, nil
}

// KafkaProducer returns the shared Kafka producer.
func (c *Container) KafkaProducer() (*kafka.Producer, error) {
	c.producerInit.Do(func() {
		producer, err := kafka.NewProducer(c.config.KafkaBrokers, c.config.KafkaClientID, c.Logger())
		if err != nil {
			c.initErrors["kafkaProducer"] = fmt.Errorf("failed to create kafka producer: %w", err)
			return
		}
		c.kafkaProducer = producer
	})
	if storedErr, exists := c.initErrors["kafkaProducer"]; exists {
		return nil, storedErr
	}
	return c.kafkaProducer, nil
}

// SagaConsumer creates a Kafka consumer for the saga event listener.
// Consumers are per-command, so this is not cached.
func (c *Container) SagaConsumer() (*kafka.Consumer, error) {
	return kafka.NewConsumer(c.config.KafkaBrokers, c.config.SagaConsumerGroup, c.config.KafkaClientID, c.Logger())
}

// SelfEventKafkaConsumer creates a Kafka consumer for the listen-to-yourself loop.
func (c *Container) SelfEventKafkaConsumer() (*kafka.Consumer, error) {
	return kafka.NewConsumer(c.config.KafkaBrokers, c.config.SelfEventConsumerGroup, c.config.KafkaClientID, c.Logger())
}

// NotificationConsumer creates a Kafka consumer for the webhook fan-out loop.
func (c *Container) NotificationConsumer() (*kafka.Consumer, error) {
	return kafka.NewConsumer(c.config.KafkaBrokers, c.config.NotificationConsumerGroup, c.config.KafkaClientID, c.Logger())
}

// ChangeLogKafkaConsumer creates a Kafka consumer for the booking change-log applier.
func (c *Container) ChangeLogKafkaConsumer() (*kafka.Consumer, error) {
	return kafka.NewConsumer(c.config.KafkaBrokers, c.config.ChangeLogConsumerGroup, c.config.KafkaClientID, c.Logger())
}

// ChangeLogConsumer returns the CDC consumer that mirrors booking change-log
// records into the local store.
func (c *Container) ChangeLogConsumer() (*cdc.Consumer, error) {
	c.changeLogConsumerInit.Do(func() {
		txManager, err := c.TxManager()
		if err != nil {
			c.initErrors["changeLogConsumer"] = err
			return
		}
		repos, err := c.Repositories()
		if err != nil {
			c.initErrors["changeLogConsumer"] = err
			return
		}
		applier := bookingUsecase.NewChangeLogApplier(txManager, repos.booking, c.Logger())
		c.changeLogConsumer = cdc.NewConsumer(applier, c.Logger())
	})
	if storedErr, exists := c.initErrors["changeLogConsumer"]; exists {
		return nil, storedErr
	}
	return c.changeLogConsumer, nil
}

// OutboxWriter returns the transactional outbox writer.
func (c *Container) OutboxWriter() (*outboxUsecase.Writer, error) {
	c.outboxWriterInit.Do(func() {
		repos, err := c.Repositories()
		if err != nil {
			c.initErrors["outboxWriter"] = err
			return
		}
		c.outboxWriter = outboxUsecase.NewWriter(repos.outbox, c.config.RelayMaxRetries)
	})
	if storedErr, exists := c.initErrors["outboxWriter"]; exists {
		return nil, storedErr
	}
	return c.outboxWriter, nil
}

// OutboxRelay returns the polling relay that moves outbox rows to Kafka.
func (c *Container) OutboxRelay() (*outboxUsecase.Relay, error) {
	c.outboxRelayInit.Do(func() {
		txManager, err := c.TxManager()
		if err != nil {
			c.initErrors["outboxRelay"] = err
			return
		}
		repos, err := c.Repositories()
		if err != nil {
			c.initErrors["outboxRelay"] = err
			return
		}
		producer, err := c.KafkaProducer()
		if err != nil {
			c.initErrors["outboxRelay"] = err
			return
		}
		coordMetrics, err := c.CoordinationMetrics()
		if err != nil {
			c.initErrors["outboxRelay"] = err
			return
		}

		relayConfig := outboxUsecase.Config{
			PollInterval: c.config.RelayPollInterval,
			BatchSize:    c.config.RelayBatchSize,
		}
		c.outboxRelay = outboxUsecase.NewRelay(relayConfig, txManager, repos.outbox, producer, coordMetrics, c.Logger())
	})
	if storedErr, exists := c.initErrors["outboxRelay"]; exists {
		return nil, storedErr
	}
	return c.outboxRelay, nil
}

// Orchestrator returns the saga orchestrator.
func (c *Container) Orchestrator() (*sagaUsecase.Orchestrator, error) {
	c.orchestratorInit.Do(func() {
		txManager, err := c.TxManager()
		if err != nil {
			c.initErrors["orchestrator"] = err
			return
		}
		repos, err := c.Repositories()
		if err != nil {
			c.initErrors["orchestrator"] = err
			return
		}
		outboxWriter, err := c.OutboxWriter()
		if err != nil {
			c.initErrors["orchestrator"] = err
			return
		}
		coordMetrics, err := c.CoordinationMetrics()
		if err != nil {
			c.initErrors["orchestrator"] = err
			return
		}

		orchestratorConfig := sagaUsecase.Config{
			SagaCommandTopic:    c.config.SagaCommandTopic,
			PaymentCommandTopic: c.config.PaymentCommandTopic,
			BookingEventsTopic:  c.config.BookingEventsTopic,
		}
		c.orchestrator = sagaUsecase.NewOrchestrator(
			orchestratorConfig,
			txManager,
			repos.saga,
			repos.stateLog,
			repos.sagaBooking,
			outboxWriter,
			coordMetrics,
			c.Logger(),
		)
	})
	if storedErr, exists := c.initErrors["orchestrator"]; exists {
		return nil, storedErr
	}
	return c.orchestrator, nil
}

// Sweeper returns the saga recovery sweeper.
func (c *Container) Sweeper() (*sagaUsecase.Sweeper, error) {
	c.sweeperInit.Do(func() {
		repos, err := c.Repositories()
		if err != nil {
			c.initErrors["sweeper"] = err
			return
		}
		orchestrator, err := c.Orchestrator()
		if err != nil {
			c.initErrors["sweeper"] = err
			return
		}

		sweepConfig := sagaUsecase.SweepConfig{
			Interval:   c.config.SagaSweepInterval,
			StaleAfter: c.config.SagaStaleAfter,
			MaxElapsed: c.config.SagaMaxElapsed,
			BatchSize:  c.config.RelayBatchSize,
		}
		c.sweeper = sagaUsecase.NewSweeper(sweepConfig, repos.saga, orchestrator, c.Logger())
	})
	if storedErr, exists := c.initErrors["sweeper"]; exists {
		return nil, storedErr
	}
	return c.sweeper, nil
}

// SelfEventConsumer returns the listen-to-yourself verification consumer.
func (c *Container) SelfEventConsumer() (*selfeventUsecase.Consumer, error) {
	c.selfEventConsumerInit.Do(func() {
		txManager, err := c.TxManager()
		if err != nil {
			c.initErrors["selfEventConsumer"] = err
			return
		}
		repos, err := c.Repositories()
		if err != nil {
			c.initErrors["selfEventConsumer"] = err
			return
		}
		coordMetrics, err := c.CoordinationMetrics()
		if err != nil {
			c.initErrors["selfEventConsumer"] = err
			return
		}

		consumerConfig := selfeventUsecase.Config{
			ServiceName: c.config.ServiceName,
			MaxAttempts: c.config.SelfEventMaxAttempts,
		}
		c.selfEventConsumer = selfeventUsecase.NewConsumer(
			consumerConfig,
			txManager,
			repos.dedup,
			repos.selfBooking,
			repos.selfSaga,
			repos.outboxMark,
			coordMetrics,
			c.Logger(),
		)
	})
	if storedErr, exists := c.initErrors["selfEventConsumer"]; exists {
		return nil, storedErr
	}
	return c.selfEventConsumer, nil
}

// Notifier returns the webhook fan-out notifier.
func (c *Container) Notifier() (*notificationUsecase.Notifier, error) {
	c.notifierInit.Do(func() {
		notifierConfig := notificationUsecase.Config{
			Endpoints:      c.config.WebhookEndpoints,
			Workers:        c.config.WebhookWorkers,
			RequestTimeout: c.config.WebhookTimeout,
			RatePerSecond:  c.config.WebhookRatePerSecond,
			RateBurst:      c.config.WebhookRateBurst,
		}
		c.notifier = notificationUsecase.NewNotifier(notifierConfig, c.Logger())
	})
	return c.notifier, nil
}

// BookingUseCase returns the booking use case, wrapped with metrics when enabled.
func (c *Container) BookingUseCase() (bookingUsecase.BookingUseCase, error) {
	c.bookingUseCaseInit.Do(func() {
		txManager, err := c.TxManager()
		if err != nil {
			c.initErrors["bookingUseCase"] = err
			return
		}
		repos, err := c.Repositories()
		if err != nil {
			c.initErrors["bookingUseCase"] = err
			return
		}
		orchestrator, err := c.Orchestrator()
		if err != nil {
			c.initErrors["bookingUseCase"] = err
			return
		}
		outboxWriter, err := c.OutboxWriter()
		if err != nil {
			c.initErrors["bookingUseCase"] = err
			return
		}
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			c.initErrors["bookingUseCase"] = err
			return
		}

		useCaseConfig := bookingUsecase.Config{
			BookingEventsTopic: c.config.BookingEventsTopic,
		}
		useCase := bookingUsecase.NewBookingUseCase(
			useCaseConfig,
			txManager,
			repos.booking,
			orchestrator,
			outboxWriter,
			c.Logger(),
		)
		c.bookingUseCase = bookingUsecase.NewBookingUseCaseWithMetrics(useCase, businessMetrics)
	})
	if storedErr, exists := c.initErrors["bookingUseCase"]; exists {
		return nil, storedErr
	}
	return c.bookingUseCase, nil
}

// HTTPServer returns the HTTP server instance.
func (c *Container) HTTPServer() (*http.Server, error) {
	c.httpServerInit.Do(func() {
		useCase, err := c.BookingUseCase()
		if err != nil {
			c.initErrors["httpServer"] = err
			return
		}

		handler := bookingHTTP.NewBookingHandler(useCase, c.Logger())
		serverConfig := http.ServerConfig{
			Host:             c.config.ServerHost,
			Port:             c.config.ServerPort,
			CORSEnabled:      c.config.CORSEnabled,
			CORSAllowOrigins: c.config.CORSAllowOrigins,
			RateLimitEnabled: c.config.RateLimitEnabled,
			RateLimitRPS:     c.config.RateLimitRequestsPerSec,
			RateLimitBurst:   c.config.RateLimitBurst,
		}
		c.httpServer = http.NewServer(serverConfig, c.Logger(), handler)
	})
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the metrics server, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	c.metricsServerInit.Do(func() {
		if !c.config.MetricsEnabled {
			return
		}
		provider, err := c.MetricsProvider()
		if err != nil {
			c.initErrors["metricsServer"] = err
			return
		}
		c.metricsServer = http.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider)
	})
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	if c.kafkaProducer != nil {
		if err := c.kafkaProducer.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("kafka producer close: %w", err))
		}
	}

	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("redis close: %w", err))
		}
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initDB creates and configures the database connection.
func (c *Container) initDB() (*sql.DB, error) {
	db, err := database.Connect(database.Config{
		Driver:             c.config.DBDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// initRepositories selects the repository implementations for the configured
// database driver and deduplication backend.
func (c *Container) initRepositories() (*repositorySet, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for repositories: %w", err)
	}

	repos := &repositorySet{}

	switch c.config.DBDriver {
	case "mysql":
		bookingRepo := bookingRepository.NewMySQLBookingRepository(db)
		sagaRepo := sagaRepository.NewMySQLSagaInstanceRepository(db)
		outboxRepo := outboxRepository.NewMySQLOutboxEventRepository(db)
		repos.booking = bookingRepo
		repos.sagaBooking = bookingRepo
		repos.selfBooking = bookingRepo
		repos.saga = sagaRepo
		repos.selfSaga = sagaRepo
		repos.stateLog = sagaRepository.NewMySQLStateLogRepository(db)
		repos.outbox = outboxRepo
		repos.outboxMark = outboxRepo
	case "postgres":
		bookingRepo := bookingRepository.NewPostgreSQLBookingRepository(db)
		sagaRepo := sagaRepository.NewPostgreSQLSagaInstanceRepository(db)
		outboxRepo := outboxRepository.NewPostgreSQLOutboxEventRepository(db)
		repos.booking = bookingRepo
		repos.sagaBooking = bookingRepo
		repos.selfBooking = bookingRepo
		repos.saga = sagaRepo
		repos.selfSaga = sagaRepo
		repos.stateLog = sagaRepository.NewPostgreSQLStateLogRepository(db)
		repos.outbox = outboxRepo
		repos.outboxMark = outboxRepo
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}

	switch c.config.DedupBackend {
	case "mysql":
		repos.dedup = dedupRepository.NewMySQLDedupRepository(db)
	case "postgres":
		repos.dedup = dedupRepository.NewPostgreSQLDedupRepository(db)
	case "redis":
		client, err := c.RedisClient()
		if err != nil {
			return nil, err
		}
		repos.dedup = dedupRepository.NewRedisDedupRepository(client, c.config.DedupTTL)
	default:
		return nil, fmt.Errorf("unsupported deduplication backend: %s", c.config.DedupBackend)
	}

	return repos, nil
}
