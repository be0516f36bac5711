// Package server wires configuration, storage, services and the HTTP API
// together and runs them until the process is signalled.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/gophvault/internal/cryptox"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/dmitrijs2005/gophvault/internal/server/auth"
	"github.com/dmitrijs2005/gophvault/internal/server/config"
	"github.com/dmitrijs2005/gophvault/internal/server/httpapi"
	"github.com/dmitrijs2005/gophvault/internal/server/payloads"
	"github.com/dmitrijs2005/gophvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophvault/internal/server/services"
)

type App struct {
	config         *config.Config
	logger         logging.Logger
	repos          repomanager.RepositoryManager
	ledger         *services.AuditLedger
	sessionService *services.SessionService
	objectService  *services.ObjectService
}

// openRepositories picks the storage backend named in the config.
func openRepositories(ctx context.Context, c *config.Config) (repomanager.RepositoryManager, error) {
	switch c.StorageBackend {
	case config.StorageBackendBolt:
		return repomanager.NewBoltRepositoryManager(c.BoltPath)
	case config.StorageBackendPostgres:
		db, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		return repomanager.NewPostgresRepositoryManager(db)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
}

func openPayloadStore(ctx context.Context, c *config.Config) (payloads.Store, error) {
	if c.PayloadBackend != config.PayloadBackendS3 {
		return nil, nil
	}
	return payloads.NewS3Store(ctx, payloads.S3Config{
		AccessKey:    c.S3RootUser,
		SecretKey:    c.S3RootPassword,
		Bucket:       c.S3Bucket,
		Region:       c.S3Region,
		BaseEndpoint: c.S3BaseEndpoint,
	})
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	cipher, err := cryptox.NewCipherBoxFromSecret(c.EncryptionSecret)
	if err != nil {
		return nil, fmt.Errorf("cipher init error: %w", err)
	}

	hasher, err := auth.NewBcryptHasher(c.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("password hasher init error: %w", err)
	}

	store, err := openPayloadStore(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("payload store init error: %w", err)
	}

	rm, err := openRepositories(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	if err := rm.RunMigrations(ctx); err != nil {
		_ = rm.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	ledger := services.NewAuditLedger(rm.Audit(), logger, c.AuditQueueSize)
	factor := auth.NewTOTP(c.TOTPIssuer, c.TOTPSkew)

	ss := services.NewSessionService(rm.Principals(), hasher, factor, ledger, logger, c)
	objs := services.NewObjectService(rm.Objects(), rm.Principals(), cipher, store, ledger, logger)

	return &App{
		config:         c,
		logger:         logger,
		repos:          rm,
		ledger:         ledger,
		sessionService: ss,
		objectService:  objs,
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

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config, app.logger, app.sessionService, app.objectService)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until a signal arrives or the HTTP server fails, then flushes
// the audit ledger and closes storage.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "storage", app.config.StorageBackend, "payloads", app.config.PayloadBackend)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.shutdown(context.WithoutCancel(ctx))
}

func (app *App) shutdown(ctx context.Context) {
	app.ledger.Close()
	if err := app.repos.Close(); err != nil {
		app.logger.Error(ctx, "storage close error", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
