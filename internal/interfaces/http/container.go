// Package http wires the application together and serves the REST API.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"firmup/internal/application/firmware/usecases"
	"firmup/internal/infrastructure/config"
	"firmup/internal/infrastructure/connection"
	"firmup/internal/infrastructure/locks"
	"firmup/internal/infrastructure/repository"
	"firmup/internal/infrastructure/scheduler"
	"firmup/internal/infrastructure/storage"
	"firmup/internal/infrastructure/tasks"
	"firmup/internal/interfaces/http/handlers"
	"firmup/internal/interfaces/http/routes"
	"firmup/internal/shared/db"
	"firmup/internal/shared/logger"
)

// Container wires repositories, use cases, handlers and background
// services, and owns their lifecycle.
type Container struct {
	engine *gin.Engine
	cfg    *config.Config
	log    logger.Interface

	redisClient *redis.Client
	dispatcher  *tasks.Dispatcher
	scheduler   *scheduler.Manager
	server      *http.Server
}

// NewContainer builds the full application graph on top of an already
// initialized database connection.
func NewContainer(cfg *config.Config, database *gorm.DB, log logger.Interface) (*Container, error) {
	// Repositories
	categoryRepo := repository.NewCategoryRepository(database, log)
	buildRepo := repository.NewBuildRepository(database, log)
	imageRepo := repository.NewImageRepository(database, log)
	deviceRepo := repository.NewDeviceRepository(database, log)
	connectionRepo := repository.NewDeviceConnectionRepository(database, log)
	deviceFirmRepo := repository.NewDeviceFirmwareRepository(database, log)
	operationRepo := repository.NewUpgradeOperationRepository(database, log)
	batchRepo := repository.NewBatchUpgradeRepository(database, log)

	// Infrastructure services
	var redisClient *redis.Client
	var locker usecases.DeviceLocker
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		locker = locks.NewRedisLocker(redisClient, 0)
		log.Infow("using redis device locks", "addr", cfg.Redis.GetAddr())
	} else {
		locker = locks.NewMemoryLocker()
	}

	store, err := storage.NewFileStore(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize image store: %w", err)
	}
	provider := connection.NewProvider(connectionRepo, cfg.Connection, log)
	txManager := db.NewTransactionManager(database)

	// Use cases. The upgrade executor is built first so the dispatcher
	// can carry it; everything spawning operations then submits through
	// the dispatcher.
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

	createCategoryUC := usecases.NewCreateCategoryUseCase(categoryRepo, log)
	createBuildUC := usecases.NewCreateBuildUseCase(buildRepo, categoryRepo, log)
	createImageUC := usecases.NewCreateImageUseCase(imageRepo, buildRepo, store, log)
	createDeviceFirmwareUC := usecases.NewCreateDeviceFirmwareUseCase(deviceRepo, imageRepo, deviceFirmRepo, log)
	registerDeviceUC := usecases.NewRegisterDeviceUseCase(deviceRepo, createDeviceFirmwareUC, log)
	createConnectionUC := usecases.NewCreateConnectionUseCase(deviceRepo, connectionRepo, log)
	assignFirmwareUC := usecases.NewAssignFirmwareUseCase(
		deviceRepo, connectionRepo, imageRepo, deviceFirmRepo, operationRepo, dispatcher, log)
	batchUpgradeUC := usecases.NewBatchUpgradeUseCase(
		buildRepo, categoryRepo, imageRepo, deviceFirmRepo, operationRepo, batchRepo, deviceRepo, dispatcher, log)
	catalogQueries := usecases.NewCatalogQueries(
		categoryRepo, buildRepo, imageRepo, deviceRepo, connectionRepo, deviceFirmRepo)
	operationQueries := usecases.NewOperationQueries(operationRepo, batchRepo)

	// Background scheduler
	schedManager, err := scheduler.NewManager(log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize scheduler: %w", err)
	}
	sweepUC := usecases.NewSweepStalledOperationsUseCase(operationRepo, dispatcher, cfg.Sweep.StaleAge, log)
	if err := schedManager.RegisterSweepJob(cfg.Sweep, sweepUC); err != nil {
		return nil, fmt.Errorf("failed to register sweep job: %w", err)
	}

	// HTTP surface
	firmwareHandler := handlers.NewFirmwareHandler(
		createCategoryUC, createBuildUC, createImageUC, batchUpgradeUC, catalogQueries)
	deviceHandler := handlers.NewDeviceHandler(
		registerDeviceUC, createConnectionUC, assignFirmwareUC, catalogQueries)
	operationHandler := handlers.NewOperationHandler(operationQueries)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	routes.SetupFirmwareRoutes(engine, &routes.FirmwareRouteConfig{FirmwareHandler: firmwareHandler})
	routes.SetupDeviceRoutes(engine, &routes.DeviceRouteConfig{DeviceHandler: deviceHandler})
	routes.SetupOperationRoutes(engine, &routes.OperationRouteConfig{OperationHandler: operationHandler})

	return &Container{
		engine:      engine,
		cfg:         cfg,
		log:         log,
		redisClient: redisClient,
		dispatcher:  dispatcher,
		scheduler:   schedManager,
	}, nil
}

// Engine exposes the gin engine, mainly for tests.
func (c *Container) Engine() *gin.Engine {
	return c.engine
}

// StartBackground launches the upgrade dispatcher and the sweep
// scheduler. ctx cancellation stops the dispatcher workers.
func (c *Container) StartBackground(ctx context.Context) {
	c.dispatcher.Start(ctx)
	c.scheduler.Start()
}

// Serve runs the HTTP server until ctx is cancelled.
func (c *Container) Serve(ctx context.Context) error {
	c.server = &http.Server{
		Addr:    c.cfg.Server.GetAddr(),
		Handler: c.engine,
	}
	errCh := make(chan error, 1)
	go func() {
		c.log.Infow("http server listening", "addr", c.server.Addr)
		errCh <- c.server.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return c.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

// Shutdown stops background services and releases shared clients.
func (c *Container) Shutdown() {
	if err := c.scheduler.Stop(); err != nil {
		c.log.Warnw("scheduler shutdown failed", "error", err)
	}
	c.dispatcher.Stop()
	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			c.log.Warnw("redis close failed", "error", err)
		}
	}
}
