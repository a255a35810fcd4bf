package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/devicegate/devicegate/internal/config"
	"github.com/devicegate/devicegate/internal/handlers"
	"github.com/devicegate/devicegate/internal/metrics"
	"github.com/devicegate/devicegate/internal/middleware"
	"github.com/devicegate/devicegate/internal/services"
	"github.com/devicegate/devicegate/internal/store"
	"github.com/devicegate/devicegate/internal/token"

	"github.com/appleboy/graceful"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Application holds all initialized components
type Application struct {
	Config *config.Config

	// Core infrastructure
	DB                   *store.Store
	MetricsRecorder      metrics.Recorder
	RateLimitRedisClient *redis.Client

	// Services
	TokenService  *token.Service
	DeviceService *services.DeviceService
	FlowService   *services.FlowService
	Sweeper       *services.Sweeper

	// HTTP
	HandlerSet handlerSet
	Router     *gin.Engine
	Server     *http.Server
}

type handlerSet struct {
	device    *handlers.DeviceHandler
	token     *handlers.TokenHandler
	discovery *handlers.DiscoveryHandler
	health    *handlers.HealthHandler
}

// Run initializes and starts the application
func Run(cfg *config.Config) error {
	app := &Application{Config: cfg}

	// Phase 1: Initialize infrastructure
	if err := app.initializeInfrastructure(); err != nil {
		return err
	}

	// Phase 2: Initialize business layer
	if err := app.initializeBusinessLayer(); err != nil {
		return err
	}

	// Phase 3: Initialize HTTP layer
	app.initializeHTTPLayer()

	// Phase 4: Start server with graceful shutdown
	app.startWithGracefulShutdown()

	return nil
}

// initializeInfrastructure sets up database, metrics, and Redis
func (app *Application) initializeInfrastructure() error {
	var err error

	app.DB, err = store.New(app.Config.DatabaseDriver, app.Config.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	app.MetricsRecorder = metrics.Init(app.Config.EnableMetrics)

	// Redis (for distributed rate limiting)
	if app.Config.RateLimitEnabled && app.Config.RateLimitRedisAddr != "" {
		app.RateLimitRedisClient = redis.NewClient(&redis.Options{
			Addr:     app.Config.RateLimitRedisAddr,
			Password: app.Config.RateLimitRedisPassword,
			DB:       app.Config.RateLimitRedisDB,
		})
	}

	return nil
}

// initializeBusinessLayer sets up services
func (app *Application) initializeBusinessLayer() error {
	var err error
	app.TokenService, err = token.NewService(app.Config)
	if err != nil {
		return fmt.Errorf("failed to initialize token service: %w", err)
	}

	app.DeviceService = services.NewDeviceService(app.DB, app.Config, app.MetricsRecorder)
	app.FlowService = services.NewFlowService(
		app.DeviceService,
		app.TokenService,
		app.MetricsRecorder,
		func(ctx context.Context) (string, error) {
			return middleware.IdentityFromContext(ctx), nil
		},
	)
	app.Sweeper = services.NewSweeper(app.DeviceService, app.Config.SweepInterval)
	return nil
}

// initializeHTTPLayer sets up handlers, router, and server
func (app *Application) initializeHTTPLayer() {
	app.HandlerSet = handlerSet{
		device:    handlers.NewDeviceHandler(app.FlowService, app.Config),
		token:     handlers.NewTokenHandler(app.FlowService),
		discovery: handlers.NewDiscoveryHandler(app.Config),
		health:    handlers.NewHealthHandler(app.DB),
	}

	app.Router = setupRouter(
		app.Config,
		app.HandlerSet,
		app.TokenService,
		app.MetricsRecorder,
		app.RateLimitRedisClient,
	)

	app.Server = createHTTPServer(app.Config, app.Router)
}

// startWithGracefulShutdown starts the server and handles graceful shutdown
func (app *Application) startWithGracefulShutdown() {
	m := graceful.NewManager()

	addServerRunningJob(m, app.Server)
	addServerShutdownJob(m, app.Server)
	addSweeperJob(m, app.Sweeper)
	addRedisClientShutdownJob(m, app.RateLimitRedisClient)
	addMetricsGaugeUpdateJob(m, app.Config, app.DB, app.MetricsRecorder)

	<-m.Done()
}
