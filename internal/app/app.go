package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mwantia/fabric/pkg/container"
	"github.com/mwantia/snaptag/internal/config"
	"github.com/mwantia/snaptag/pkg/db/store"
	"github.com/mwantia/snaptag/pkg/log"
)

// App owns the process-wide services: the logger and the lazily opened store.
type App struct {
	mutex  sync.Mutex
	closed bool

	cfg *config.BaseConfig
	sc  *container.ServiceContainer
	log log.LoggerService
	db  store.PhotoStore
}

func New(cfg *config.BaseConfig) (*App, error) {
	return NewWithLogger(cfg, log.NewLoggerService("snaptag", cfg.Log))
}

func NewWithLogger(cfg *config.BaseConfig, logger log.LoggerService) (*App, error) {
	app := &App{
		cfg: cfg,
		sc:  container.NewServiceContainer(),
		log: logger,
	}

	if err := app.setupServices(); err != nil {
		return nil, fmt.Errorf("failed to setup services: %w", err)
	}

	db, err := container.Resolve[store.PhotoStore](context.Background(), app.sc)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve 'PhotoStore': %w", err)
	}
	app.db = db

	return app, nil
}

func (app *App) setupServices() error {
	errs := container.Errors{}

	app.sc.AddTagProcessor(log.NewLoggerTagProcessor())

	app.log.Debug("Registering 'LoggerService'...")
	errs.Add(container.Register[log.LoggerServiceImpl](app.sc,
		container.With[log.LoggerService](),
		container.WithInstance(app.log)))

	app.log.Debug("Registering 'MetadataConfig'...")
	errs.Add(container.Register[*config.MetadataConfig](app.sc,
		container.WithInstance(&app.cfg.Metadata)))

	app.log.Debug("Registering 'PhotoStore'...")
	errs.Add(container.Register[store.Database](app.sc,
		container.AsSingleton(),
		container.With[store.PhotoStore]()))

	return errs.Errors()
}

func (app *App) Store() store.PhotoStore {
	return app.db
}

func (app *App) Logger() log.LoggerService {
	return app.log
}

func (app *App) Container() *container.ServiceContainer {
	return app.sc
}

// Close runs the container cleanup and closes the store within the
// configured shutdown timeout.
func (app *App) Close(ctx context.Context) error {
	app.mutex.Lock()
	defer app.mutex.Unlock()

	if app.closed {
		return nil
	}
	app.closed = true

	timeout, err := time.ParseDuration(app.cfg.ShutdownTimeout)
	if err != nil {
		// Set default of 10 seconds if error
		timeout = 10 * time.Second
	}

	shutdown, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := app.sc.Cleanup(shutdown); err != nil {
		return fmt.Errorf("failed to complete service container cleanup: %w", err)
	}

	return nil
}
