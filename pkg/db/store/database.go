package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mwantia/fabric/pkg/container"
	"github.com/mwantia/snaptag/internal/config"
	"github.com/mwantia/snaptag/pkg/db/engine"
	"github.com/mwantia/snaptag/pkg/db/migrations"
	"github.com/mwantia/snaptag/pkg/db/query"
	"github.com/mwantia/snaptag/pkg/db/schema"
	"github.com/mwantia/snaptag/pkg/log"
)

// Database implements PhotoStore on top of a single engine connection that is
// opened on first use and shared by every later call.
//
// Registered with a service container, Metadata and Log are injected and Init
// prepares the database before it is handed out.
type Database struct {
	Metadata *config.MetadataConfig `fabric:"inject"`
	Log      log.LoggerService      `fabric:"logger:store"`

	mutex  sync.Mutex
	cfg    engine.Config
	schema schema.Schema
	engine *engine.Engine
	closed bool
}

var (
	_ PhotoStore                 = (*Database)(nil)
	_ container.LifecycleService = (*Database)(nil)
)

// Status summarizes the opened database
type Status struct {
	Name        string
	Path        string
	Versions    []migrations.VersionStatus
	Collections map[string]int64
}

// NewDatabase prepares a database for cfg without touching the disk
func NewDatabase(cfg config.MetadataConfig, logger log.LoggerService) *Database {
	d := &Database{
		Metadata: &cfg,
		Log:      logger,
	}
	d.prepare()
	return d
}

func (d *Database) prepare() {
	d.cfg = engine.Config{Path: d.Metadata.SQLite.Path}
	d.schema = schema.Default(d.Metadata.Name).WithVersion(d.Metadata.Version)
}

// Init prepares an injected database. The file is still opened lazily.
func (d *Database) Init(ctx context.Context) error {
	if d.Metadata == nil {
		return fmt.Errorf("missing metadata configuration")
	}
	if d.Log == nil {
		return fmt.Errorf("missing logger")
	}
	if err := d.Metadata.Validate(); err != nil {
		return fmt.Errorf("invalid metadata configuration: %w", err)
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.prepare()
	return nil
}

// Cleanup closes the database when its container shuts down.
func (d *Database) Cleanup(ctx context.Context) error {
	return d.Close()
}

// conn returns the shared engine, opening and upgrading the database if this
// is the first call. Callers arriving during the open wait for it to finish.
// A failed open is not cached.
func (d *Database) conn(ctx context.Context) (*engine.Engine, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.closed {
		return nil, fmt.Errorf("%w: database '%s' is closed", engine.ErrStorageUnavailable, d.schema.Name)
	}
	if d.engine != nil {
		return d.engine, nil
	}

	if dir := filepath.Dir(d.cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: failed to create data directory: %w", engine.ErrStorageUnavailable, err)
		}
	}

	e, err := engine.Open(ctx, d.cfg, d.schema, d.Log.Named("engine"))
	if err != nil {
		d.Log.Error("Failed to open database '%s': %v", d.schema.Name, err)
		return nil, err
	}

	d.engine = e
	return e, nil
}

// Connect opens the database eagerly
func (d *Database) Connect(ctx context.Context) error {
	_, err := d.conn(ctx)
	return err
}

// Close closes the shared connection. Later calls fail with
// engine.ErrStorageUnavailable.
func (d *Database) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.closed = true
	if d.engine == nil {
		return nil
	}

	err := d.engine.Close()
	d.engine = nil
	return err
}

// Status reports the upgrade history and record counts
func (d *Database) Status(ctx context.Context) (*Status, error) {
	e, err := d.conn(ctx)
	if err != nil {
		return nil, err
	}

	versions, err := query.Await(ctx, e.Versions())
	if err != nil {
		return nil, err
	}

	status := &Status{
		Name:        d.schema.Name,
		Path:        d.cfg.Path,
		Versions:    versions,
		Collections: make(map[string]int64),
	}

	for _, c := range d.schema.Collections {
		count, err := query.Await(ctx, e.Count(c.Name))
		if err != nil {
			return nil, err
		}
		status.Collections[c.Name] = count
	}

	return status, nil
}
