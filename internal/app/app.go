// Package app initializes and runs the shop document service.
// It configures logging, storage and routing, and handles graceful shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/patric-chuzhbe/shopdoc/internal/config"
	"github.com/patric-chuzhbe/shopdoc/internal/db/jsondb"
	"github.com/patric-chuzhbe/shopdoc/internal/db/memorystorage"
	"github.com/patric-chuzhbe/shopdoc/internal/db/postgresdb"
	"github.com/patric-chuzhbe/shopdoc/internal/db/redisdb"
	"github.com/patric-chuzhbe/shopdoc/internal/db/storage"
	"github.com/patric-chuzhbe/shopdoc/internal/docstore"
	"github.com/patric-chuzhbe/shopdoc/internal/logger"
	"github.com/patric-chuzhbe/shopdoc/internal/models"
	"github.com/patric-chuzhbe/shopdoc/internal/router"
)

// App holds the configuration, the document store and the HTTP handler.
type App struct {
	cfg         *config.Config
	store       *docstore.Store
	httpHandler http.Handler
}

// New initializes a new instance of App by:
// - loading configuration
// - initializing logger
// - selecting and setting up storage
// - setting up the router and middleware
func New(optionsProto ...config.InitOption) (*App, error) {
	var err error
	app := &App{}

	app.cfg, err = config.New(optionsProto...)
	if err != nil {
		return nil, err
	}

	err = logger.Init(app.cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	backend, err := getStorageByType(app.cfg)
	if err != nil {
		return nil, err
	}

	app.store = docstore.New(backend)
	app.httpHandler = router.New(app.store, app.cfg.CORSAllowedOrigins)

	return app, nil
}

// Handler returns the HTTP handler serving the document routes.
func (a *App) Handler() http.Handler {
	return a.httpHandler
}

// Run starts the HTTP server and blocks until a termination signal arrives
// or the server fails. On a signal the server drains in-flight requests and
// the store is closed after the last write has finished.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return a.serve(ctx)
}

func (a *App) serve(ctx context.Context) error {
	logger.Log.Infow("server running", "RunAddr", a.cfg.RunAddr)

	server := &http.Server{
		Addr:    a.cfg.RunAddr,
		Handler: a.httpHandler,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Log.Infoln("Received shutdown signal. Finishing requests and exiting...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		return a.store.Close()

	case err := <-serverErrCh:
		closeErr := a.store.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return closeErr
		}
		return errors.Join(fmt.Errorf("server error: %w", err), closeErr)
	}
}

// Close finalizes resources used by App such as logging.
func (a *App) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Println("Logger sync error:", err)
	}
}

func getAvailableStorageType(cfg *config.Config) int {
	if cfg.DatabaseDSN != "" {
		return models.StorageTypePostgresql
	}

	if cfg.RedisAddr != "" {
		return models.StorageTypeRedis
	}

	if cfg.MemoryStorage || cfg.DBFileName == "" {
		return models.StorageTypeMemory
	}

	return models.StorageTypeFile
}

func getStorageByType(cfg *config.Config) (storage.Backend, error) {
	switch getAvailableStorageType(cfg) {
	case models.StorageTypeUnknown:
		return nil, errors.New("unknown storage type")

	case models.StorageTypePostgresql:
		return postgresdb.New(
			context.Background(),
			cfg.DatabaseDSN,
			cfg.DBConnectionTimeout,
			cfg.MigrationsDir,
		)

	case models.StorageTypeRedis:
		return redisdb.New(
			context.Background(),
			cfg.RedisAddr,
			cfg.RedisKey,
			cfg.DBConnectionTimeout,
		)

	case models.StorageTypeFile:
		return jsondb.New(cfg.DBFileName)
	}

	return memorystorage.New()
}
