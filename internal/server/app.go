// Package server wires the accounts service together: storage, migrations,
// business services, the HTTP API and the gRPC health endpoint.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/fitaccounts/internal/cryptox"
	"github.com/dmitrijs2005/fitaccounts/internal/logging"
	"github.com/dmitrijs2005/fitaccounts/internal/server/config"
	"github.com/dmitrijs2005/fitaccounts/internal/server/httpapi"
	"github.com/dmitrijs2005/fitaccounts/internal/server/notify"
	"github.com/dmitrijs2005/fitaccounts/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/fitaccounts/internal/server/services"
	"github.com/gin-gonic/gin"

	gs "github.com/dmitrijs2005/fitaccounts/internal/server/grpc"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config         *config.Config
	logger         logging.Logger
	db             *sql.DB
	accountService *services.AccountService
	profileService *services.ProfileService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := repomanager.OpenPostgres(c.DatabaseDSN, c.MaxOpenConns)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	as := services.NewAccountService(db, rm, cryptox.NewArgon2Hasher(cryptox.DefaultParams), newNotifier(c, logger), logger, c)
	ps := services.NewProfileService(db, rm, logger)

	return &App{config: c, logger: logger, db: db, accountService: as, profileService: ps}, nil
}

// newNotifier falls back to logging the mail when no SMTP server is configured.
func newNotifier(c *config.Config, l logging.Logger) notify.Notifier {
	if c.SMTPServer == "" {
		return notify.NewLogNotifier(l)
	}
	return notify.NewSMTPNotifier(c.SMTPServer, c.SMTPUser, c.SMTPPassword, c.MailFrom)
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
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.db)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "grpc server failed", "error", err)
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	gin.SetMode(gin.ReleaseMode)

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Accounts:       app.accountService,
		Profiles:       app.profileService,
		Logger:         app.logger,
		SecretKey:      []byte(app.config.SecretKey),
		RequestTimeout: app.config.RequestTimeout,
	})

	srv := &http.Server{
		Addr:              app.config.EndpointAddrHTTP,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "http shutdown", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", app.config.EndpointAddrHTTP)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, "http server failed", "error", err)
		cancelFunc()
	}
}

// Run serves until a termination signal arrives or either server fails.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
