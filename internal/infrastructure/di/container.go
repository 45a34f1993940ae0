package di

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/YoshitsuguKoike/loanstage/internal/adapter/presenter"
	appconfig "github.com/YoshitsuguKoike/loanstage/internal/app/config"
	"github.com/YoshitsuguKoike/loanstage/internal/application/port/input"
	"github.com/YoshitsuguKoike/loanstage/internal/application/port/output"
	"github.com/YoshitsuguKoike/loanstage/internal/application/service"
	"github.com/YoshitsuguKoike/loanstage/internal/application/usecase/loan"
	"github.com/YoshitsuguKoike/loanstage/internal/domain/repository"
	domainservice "github.com/YoshitsuguKoike/loanstage/internal/domain/service"
	"github.com/YoshitsuguKoike/loanstage/internal/infrastructure/identity"
	"github.com/YoshitsuguKoike/loanstage/internal/infrastructure/metrics"
	"github.com/YoshitsuguKoike/loanstage/internal/infrastructure/notification"
	"github.com/YoshitsuguKoike/loanstage/internal/infrastructure/persistence/file"
	sqliterepo "github.com/YoshitsuguKoike/loanstage/internal/infrastructure/persistence/sqlite"
	"github.com/YoshitsuguKoike/loanstage/internal/infrastructure/redislock"
	"github.com/YoshitsuguKoike/loanstage/internal/infrastructure/transaction"
)

// Backend names accepted by the settings file
const (
	StoreSQLite       = "sqlite"
	StoreFile         = "file"
	LockBackendSQLite = "sqlite"
	LockBackendRedis  = "redis"
)

const notifierDrainTimeout = 5 * time.Second

// Container is the DI container that holds all dependencies
// This implements manual dependency injection for Clean Architecture
type Container struct {
	// Infrastructure Layer - Database
	db *sql.DB

	// Infrastructure Layer - Repositories
	applications repository.ApplicationRepository
	overrides    repository.ScoreOverrideRepository
	lockRepo     repository.ApplicationLockRepository

	// Infrastructure Layer - Transaction Manager
	txManager output.TransactionManager

	// Infrastructure Layer - Locking
	lockService *service.LockService
	redisLocker *redislock.Locker
	redisClient *redis.Client
	locker      output.Locker

	// Infrastructure Layer - Notification and metrics
	kafkaNotifier *notification.KafkaNotifier
	notifier      *notification.AsyncNotifier
	metrics       *metrics.Recorder
	actors        *identity.ContextProvider

	// Domain Layer - Services
	machine *domainservice.ApplicationStatusMachine

	// Application Layer - Use Cases
	loanUseCase input.LoanUseCase

	// Adapter Layer - Presenters
	presenter output.ApplicationPresenter

	logger *zap.Logger
	config Config
}

// Config holds configuration for the container
type Config struct {
	Settings     appconfig.Config
	Logger       *zap.Logger
	OutputWriter io.Writer
	OutputFormat string // Overrides Settings.Output() when set

	// Optional overrides, mainly for tests
	Fs          afero.Fs                   // Filesystem for the file store (default: OS)
	RedisClient redislock.Client           // Used instead of dialing Settings.RedisAddr()
	KafkaWriter notification.MessageWriter // Used instead of building a producer from Settings.KafkaBrokers()
}

// NewContainer creates and initializes the DI container
func NewContainer(config Config) (*Container, error) {
	if config.Settings == nil {
		return nil, errors.New("settings are required")
	}
	c := &Container{
		config: config,
		logger: config.Logger,
	}

	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.config.OutputWriter == nil {
		c.config.OutputWriter = os.Stdout
	}
	if c.config.Fs == nil {
		c.config.Fs = afero.NewOsFs()
	}

	// Initialize dependencies in dependency order
	if err := c.initializeInfrastructure(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize infrastructure: %w", err)
	}

	c.initializeDomain()
	c.initializeApplication()

	if err := c.initializeAdapters(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize adapters: %w", err)
	}

	return c, nil
}

// initializeInfrastructure initializes infrastructure layer components
func (c *Container) initializeInfrastructure() error {
	s := c.config.Settings

	// 1. Open SQLite when either the store or the lock table lives there
	if s.Store() == StoreSQLite || s.LockBackend() == LockBackendSQLite {
		if err := os.MkdirAll(filepath.Dir(s.DBPath()), 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
		db, err := sqliterepo.Open(s.DBPath())
		if err != nil {
			return err
		}
		c.db = db
	}

	// 2. Repositories and transaction manager
	switch s.Store() {
	case StoreSQLite:
		c.applications = sqliterepo.NewApplicationRepository(c.db)
		c.overrides = sqliterepo.NewScoreOverrideRepository(c.db)
		c.txManager = transaction.NewSQLiteTransactionManager(c.db, c.logger.Named("tx"))
	case StoreFile:
		store := file.NewStore(c.config.Fs, s.DataDir())
		c.applications = store
		c.overrides = store
		c.txManager = transaction.NewPassthroughTransactionManager()
	default:
		return fmt.Errorf("unknown store %q", s.Store())
	}

	// 3. Locking
	switch s.LockBackend() {
	case LockBackendSQLite:
		c.lockRepo = sqliterepo.NewApplicationLockRepository(c.db)
		c.lockService = service.NewLockService(c.lockRepo, service.LockServiceConfig{
			TTL:               s.LockTTL(),
			WaitTimeout:       s.LockWait(),
			HeartbeatInterval: s.LockTTL() / 3,
			CleanupSchedule:   s.LockCleanupSchedule(),
		}, c.logger.Named("lock"))
		c.locker = c.lockService
	case LockBackendRedis:
		client := c.config.RedisClient
		if client == nil {
			c.redisClient = redis.NewClient(&redis.Options{
				Addr:     s.RedisAddr(),
				Password: s.RedisPassword(),
				DB:       s.RedisDB(),
			})
			client = c.redisClient
		}
		cfg := redislock.DefaultConfig()
		cfg.TTL = s.LockTTL()
		cfg.WaitTimeout = s.LockWait()
		cfg.RefreshInterval = s.LockTTL() / 3
		c.redisLocker = redislock.NewLocker(client, cfg, c.logger.Named("lock"))
		c.locker = c.redisLocker
	default:
		return fmt.Errorf("unknown lock backend %q", s.LockBackend())
	}

	// 4. Notification sinks
	sinks := []output.Notifier{notification.NewLogNotifier(c.logger)}
	writer := c.config.KafkaWriter
	if writer == nil && len(s.KafkaBrokers()) > 0 {
		writer = notification.NewKafkaWriter(notification.KafkaConfig{
			Brokers:     s.KafkaBrokers(),
			Topic:       s.KafkaTopic(),
			MaxAttempts: 3,
		})
	}
	if writer != nil {
		c.kafkaNotifier = notification.NewKafkaNotifier(writer, c.logger.Named("kafka"))
		sinks = append(sinks, c.kafkaNotifier)
	}
	if path := s.JournalPath(); path != "" {
		sinks = append(sinks, notification.NewJournalNotifier(path, c.logger.Named("journal")))
	}
	c.notifier = notification.NewAsyncNotifier(notification.NewMultiNotifier(sinks...), s.NotifyBuffer(), c.logger)

	// 5. Metrics and identity
	c.metrics = metrics.NewRecorder()
	c.actors = identity.NewContextProvider(identity.NewEnvProvider(s.Actor()))

	return nil
}

// initializeDomain initializes domain layer components
func (c *Container) initializeDomain() {
	c.machine = domainservice.NewApplicationStatusMachine()
}

// initializeApplication initializes application layer components
func (c *Container) initializeApplication() {
	c.loanUseCase = loan.NewLoanUseCaseImpl(loan.Dependencies{
		Applications:       c.applications,
		Overrides:          c.overrides,
		TxManager:          c.txManager,
		Locker:             c.locker,
		Notifier:           c.notifier,
		Actors:             c.actors,
		Metrics:            c.metrics,
		Machine:            c.machine,
		Logger:             c.logger.Named("loan"),
		MaxConflictRetries: c.config.Settings.MaxConflictRetries(),
	})
}

// initializeAdapters initializes adapter layer components
func (c *Container) initializeAdapters() error {
	format := c.config.OutputFormat
	if format == "" {
		format = c.config.Settings.Output()
	}

	switch format {
	case "text":
		c.presenter = presenter.NewTextPresenter(c.config.OutputWriter)
	case "json":
		c.presenter = presenter.NewJSONPresenter(c.config.OutputWriter)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
	return nil
}

// GetLoanUseCase returns the loan use case
func (c *Container) GetLoanUseCase() input.LoanUseCase {
	return c.loanUseCase
}

// GetPresenter returns the presenter
func (c *Container) GetPresenter() output.ApplicationPresenter {
	return c.presenter
}

// GetLockService returns the SQLite lock service, or nil under the Redis backend
func (c *Container) GetLockService() *service.LockService {
	return c.lockService
}

// GetStatusMachine returns the status machine
func (c *Container) GetStatusMachine() *domainservice.ApplicationStatusMachine {
	return c.machine
}

// GetMetrics returns the Prometheus recorder
func (c *Container) GetMetrics() *metrics.Recorder {
	return c.metrics
}

// GetSettings returns the resolved settings
func (c *Container) GetSettings() appconfig.Config {
	return c.config.Settings
}

// GetLogger returns the root logger
func (c *Container) GetLogger() *zap.Logger {
	return c.logger
}

// Start starts background services (lock cleanup)
func (c *Container) Start(ctx context.Context) error {
	if c.lockService != nil {
		if err := c.lockService.Start(ctx); err != nil {
			return fmt.Errorf("failed to start lock service: %w", err)
		}
	}
	return nil
}

// Close drains pending notifications and closes all resources held by the container
func (c *Container) Close() error {
	var errs []error

	if c.notifier != nil {
		ctx, cancel := context.WithTimeout(context.Background(), notifierDrainTimeout)
		if err := c.notifier.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("notifier: %w", err))
		}
		cancel()
	}
	if c.kafkaNotifier != nil {
		if err := c.kafkaNotifier.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka: %w", err))
		}
	}
	if c.lockService != nil {
		if err := c.lockService.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("lock service: %w", err))
		}
	}
	if c.redisLocker != nil {
		c.redisLocker.Wait()
	}
	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	return errors.Join(errs...)
}
