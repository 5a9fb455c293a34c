// Package server initializes and runs the auth server: it opens the
// database, applies migrations, wires the auth service to its collaborators
// and serves gRPC until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/trackkeeper/internal/dbx"
	"github.com/dmitrijs2005/trackkeeper/internal/logging"
	"github.com/dmitrijs2005/trackkeeper/internal/server/auth"
	"github.com/dmitrijs2005/trackkeeper/internal/server/config"
	"github.com/dmitrijs2005/trackkeeper/internal/server/hasher"
	"github.com/dmitrijs2005/trackkeeper/internal/server/mailer"
	"github.com/dmitrijs2005/trackkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/trackkeeper/internal/server/services"
	"github.com/dmitrijs2005/trackkeeper/internal/server/throttle"
	_ "github.com/jackc/pgx/v5/stdlib"

	gs "github.com/dmitrijs2005/trackkeeper/internal/server/grpc"
)

type App struct {
	config *config.Config
	logger logging.Logger

	db          *sql.DB
	authService *services.AuthService
	pruner      *services.Pruner
	closeRedis  func() error
}

// NewApp connects to Postgres and builds the application.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	app, err := newApp(ctx, c, db, repomanager.NewPostgresRepositoryManager(), logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return app, nil
}

func newApp(ctx context.Context, c *config.Config, db *sql.DB, rm repomanager.RepositoryManager, logger logging.Logger) (*App, error) {
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	m, err := mailer.New(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("mailer init error: %w", err)
	}

	limiter, closeRedis := throttle.New(c.RedisAddr, c.ResetCooldown, logger)

	as := services.NewAuthService(db, dbx.NewTransactor(db, nil), rm, c, services.AuthDeps{
		Hasher:  hasher.NewBcrypt(c.HashCost, c.HashConcurrency),
		Issuer:  auth.NewIssuer([]byte(c.SecretKey), c.AccessTokenValidityDuration),
		Mailer:  m,
		Limiter: limiter,
		Logger:  logger,
	})

	return &App{
		config:      c,
		logger:      logger,
		db:          db,
		authService: as,
		pruner:      services.NewPruner(db, rm, c.PruneInterval, logger),
		closeRedis:  closeRedis,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.authService)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled, a signal arrives or the gRPC server
// fails, then waits for in-flight reset mails and releases resources.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.pruner.Run(ctx)
	}()

	wg.Wait()

	app.authService.Wait()

	if err := app.closeRedis(); err != nil {
		app.logger.Warn(ctx, "redis close", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Warn(ctx, "db close", "error", err)
	}

	app.logger.Info(ctx, "App stopped")
}
