// Package server initializes and runs the gatekeeper server: it opens
// PostgreSQL and Redis, applies migrations, wires the services and serves
// them over gRPC until a termination signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/auth"
	"github.com/dmitrijs2005/gatekeeper/internal/server/config"
	"github.com/dmitrijs2005/gatekeeper/internal/server/denylist"
	"github.com/dmitrijs2005/gatekeeper/internal/server/health"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gatekeeper/internal/server/services"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/gatekeeper/internal/server/grpc"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	rdb     redis.UniversalClient
	server  *gs.GRPCServer
	sweeper *services.Sweeper
	checker *health.Checker
}

// NewApp connects to the backing stores, migrates the schema and wires
// every component.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(c.LogLevel, c.LogFormat, os.Stdout)
	if err != nil {
		return nil, err
	}

	db, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	rdb, err := denylist.NewRedisClient(ctx, denylist.Options{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("redis init error: %w", err)
	}

	return assemble(c, logger, db, rdb, rm), nil
}

func assemble(c *config.Config, logger logging.Logger, db *sql.DB, rdb redis.UniversalClient, rm repomanager.RepositoryManager) *App {
	codec := auth.NewTokenCodec([]byte(c.SecretKey), c.AccessTokenValidityDuration, c.RefreshTokenValidityDuration)
	hasher := auth.NewBcryptHasher(c.BcryptCost)

	as := services.NewAuthService(db, rm, codec, hasher, denylist.NewRedisDenylist(rdb), logger)
	us := services.NewUserService(db, rm, hasher, c, logger)

	return &App{
		config:  c,
		logger:  logger,
		db:      db,
		rdb:     rdb,
		server:  gs.NewGRPCServer(c.EndpointAddrGRPC, logger, as, us),
		sweeper: services.NewSweeper(db, rm, c.SweepInterval, logger),
		checker: health.NewChecker(db, rdb, 0, logger),
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a termination signal arrives, then
// closes the database and Redis connections.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "environment", app.config.Environment)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.sweeper.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		app.checker.Watch(ctx, app.config.HealthCheckInterval, app.server)
	}()

	wg.Wait()
	app.close(ctx)
}

func (app *App) close(ctx context.Context) {
	if err := app.rdb.Close(); err != nil {
		app.logger.Error(ctx, "closing redis", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "closing database", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
