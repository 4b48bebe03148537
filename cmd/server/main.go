package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"carpool/internal/app"
	"carpool/internal/config"
	"carpool/internal/handler"
	"carpool/internal/rabbitmq"
	internalRedis "carpool/internal/redis"
	"carpool/internal/repository"
	"carpool/internal/repository/memory"
	"carpool/internal/repository/postgres"
	"carpool/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := app.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

// infra holds the external connections a server may use. Any of them may be nil.
type infra struct {
	db          *sql.DB
	redisClient *redis.Client
	amqp        *rabbitmq.Connection
	nrApp       *newrelic.Application
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deps, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close(logger)

	server, carpoolService, worker := wireServer(deps, cfg, logger)

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	worker.Start(workerCtx)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-serverErr:
		return err
	}
	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	worker.Stop()
	carpoolService.WaitNotifications()

	logger.Info("Server exited")
	return nil
}

// connect opens every connection the configuration asks for.
func connect(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*infra, error) {
	deps := &infra{}

	// Initialize New Relic first so the database and Redis are instrumented.
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err := newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Warn("Failed to initialize New Relic", zap.Error(err))
		} else {
			deps.nrApp = nrApp
			logger.Info("New Relic enabled", zap.String("app", cfg.NewRelic.AppName))
		}
	}

	if cfg.Store.Driver == config.StoreDriverPostgres {
		db, err := app.NewDatabase(ctx, cfg.Database, deps.nrApp)
		if err != nil {
			return nil, err
		}
		deps.db = db
		logger.Info("Connected to PostgreSQL")

		if cfg.Database.Migrate {
			migrator, err := app.NewMigrator(db, logger)
			if err != nil {
				deps.close(logger)
				return nil, err
			}
			if err := migrator.Run(ctx); err != nil {
				deps.close(logger)
				return nil, err
			}
		}
	}

	if cfg.Redis.Enabled {
		client, err := app.NewRedisClient(ctx, cfg.Redis, deps.nrApp)
		if err != nil {
			deps.close(logger)
			return nil, err
		}
		deps.redisClient = client
		logger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	if cfg.Notifier.Driver == config.NotifierDriverAMQP {
		conn, err := app.NewRabbitMQ(ctx, cfg.Notifier, logger)
		if err != nil {
			deps.close(logger)
			return nil, err
		}
		deps.amqp = conn
	}

	return deps, nil
}

func (d *infra) close(logger *zap.Logger) {
	if d.amqp != nil {
		d.amqp.Close()
	}
	if d.redisClient != nil {
		if err := d.redisClient.Close(); err != nil {
			logger.Warn("Failed to close Redis client", zap.Error(err))
		}
	}
	if d.db != nil {
		if err := d.db.Close(); err != nil {
			logger.Warn("Failed to close database", zap.Error(err))
		}
	}
	if d.nrApp != nil {
		d.nrApp.Shutdown(5 * time.Second)
	}
}

// wireServer wires all dependencies and returns the HTTP server, the
// lifecycle service and the payout worker.
func wireServer(deps *infra, cfg *config.Config, logger *zap.Logger) (*http.Server, *service.CarpoolService, *app.PayoutWorker) {
	var store repository.Store
	checks := make(map[string]handler.HealthCheck)

	if deps.db != nil {
		store = postgres.NewStore(deps.db)
		checks["postgres"] = app.DatabaseHealthCheck(deps.db)
	} else {
		logger.Warn("Using in-memory store, data is lost on restart")
		store = memory.NewStore()
	}

	// Optional Redis-backed cache and lock.
	var (
		cache  service.CarpoolCache
		locker app.Locker
	)
	if deps.redisClient != nil {
		cache = internalRedis.NewCacheStore(deps.redisClient)
		locker = internalRedis.NewLockStore(deps.redisClient)
		checks["redis"] = func(ctx context.Context) error {
			return internalRedis.HealthCheck(ctx, deps.redisClient)
		}
	}

	var notifier service.Notifier = service.NewLogNotifier(logger)
	if deps.amqp != nil {
		notifier = rabbitmq.NewNotifier(deps.amqp, cfg.Notifier.Exchange)
		checks["rabbitmq"] = deps.amqp.HealthCheck
	}

	// Initialize services.
	ledger := service.NewLedger()
	carpoolService := service.NewCarpoolService(store, ledger, notifier, cache, logger, cfg.Ledger.PlatformCommission)
	userService := service.NewUserService(store, ledger, logger, cfg.Ledger.SignupCredits)
	payoutService := service.NewPayoutService(store, ledger, logger, cfg.Payout.MaxAttempts)

	worker := app.NewPayoutWorker(payoutService, locker, cfg.Payout.RetryInterval, logger)

	// Initialize handlers.
	router := app.NewRouter(app.RouterDeps{
		CarpoolHandler: handler.NewCarpoolHandler(carpoolService, logger),
		UserHandler:    handler.NewUserHandler(userService, logger),
		HealthHandler:  handler.NewHealthHandler(checks),
		RedisClient:    deps.redisClient,
		NewRelicApp:    deps.nrApp,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return server, carpoolService, worker
}
