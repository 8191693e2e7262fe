package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"firmup/internal/application/firmware/usecases"
	"firmup/internal/infrastructure/config"
	"firmup/internal/infrastructure/connection"
	"firmup/internal/infrastructure/database"
	"firmup/internal/infrastructure/locks"
	"firmup/internal/infrastructure/repository"
	"firmup/internal/infrastructure/scheduler"
	"firmup/internal/infrastructure/storage"
	"firmup/internal/infrastructure/tasks"
	"firmup/internal/shared/db"
	"firmup/internal/shared/logger"
)

// The worker runs the upgrade dispatcher and the stalled-operation sweep
// without the HTTP surface. Deployments that want upgrade execution
// isolated from the API run one (or more) of these next to an API-only
// server; the per-device redis lock keeps the processes from flashing
// the same device twice.
func main() {
	env := "development"
	if len(os.Args) > 1 {
		env = os.Args[1]
	}
	if envVar := os.Getenv("ENV"); envVar != "" {
		env = envVar
	}

	cfg, err := config.Load(env)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(&cfg.Logger); err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewLogger()
	log.Infow("starting upgrade worker", "environment", env)

	if err := database.Init(&cfg.Database); err != nil {
		log.Errorw("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	var locker usecases.DeviceLocker
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Errorw("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		log.Infow("redis connection established", "address", cfg.Redis.GetAddr())
		locker = locks.NewRedisLocker(redisClient, 0)
	} else {
		log.Warnw("redis disabled, device locks are process-local; do not run multiple workers")
		locker = locks.NewMemoryLocker()
	}

	buildRepo := repository.NewBuildRepository(database.Get(), log)
	imageRepo := repository.NewImageRepository(database.Get(), log)
	deviceRepo := repository.NewDeviceRepository(database.Get(), log)
	connectionRepo := repository.NewDeviceConnectionRepository(database.Get(), log)
	deviceFirmRepo := repository.NewDeviceFirmwareRepository(database.Get(), log)
	operationRepo := repository.NewUpgradeOperationRepository(database.Get(), log)
	batchRepo := repository.NewBatchUpgradeRepository(database.Get(), log)

	store, err := storage.NewFileStore(cfg.Storage.Path)
	if err != nil {
		log.Errorw("failed to initialize image store", "error", err)
		os.Exit(1)
	}
	provider := connection.NewProvider(connectionRepo, cfg.Connection, log)
	txManager := db.NewTransactionManager(database.Get())

	executeUpgradeUC := usecases.NewExecuteUpgradeUseCase(
		operationRepo,
		batchRepo,
		deviceFirmRepo,
		imageRepo,
		buildRepo,
		deviceRepo,
		connectionRepo,
		provider,
		locker,
		store,
		txManager,
		cfg.Upgrader,
		log,
	)
	dispatcher := tasks.NewDispatcher(cfg.Tasks, executeUpgradeUC, log)

	schedManager, err := scheduler.NewManager(log)
	if err != nil {
		log.Errorw("failed to initialize scheduler", "error", err)
		os.Exit(1)
	}
	sweepUC := usecases.NewSweepStalledOperationsUseCase(operationRepo, dispatcher, cfg.Sweep.StaleAge, log)
	if err := schedManager.RegisterSweepJob(cfg.Sweep, sweepUC); err != nil {
		log.Errorw("failed to register sweep job", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dispatcher.Start(ctx)
	schedManager.Start()
	log.Infow("upgrade worker running", "workers", cfg.Tasks.Workers)

	<-ctx.Done()
	log.Infow("shutting down upgrade worker...")
	if err := schedManager.Stop(); err != nil {
		log.Warnw("scheduler shutdown failed", "error", err)
	}
	dispatcher.Stop()
	log.Infow("upgrade worker exited gracefully")
}
