// Package engine provides the durable object store underneath the photo and
// tag repositories.
//
// Every collection is a SQLite table of {key, data} rows where key is assigned
// by the engine and data is the JSON encoded record. Secondary indexes are
// SQLite expression indexes over fields of data, so index lookups never scan
// the collection.
//
// Operations do not block their caller: each one is queued and returns a
// Request that resolves once its transaction has committed. A single worker
// executes the queue in order, which serializes writes on the connection.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/mwantia/snaptag/pkg/db/migrations"
	"github.com/mwantia/snaptag/pkg/db/schema"
	"github.com/mwantia/snaptag/pkg/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Key is the engine-assigned primary key of a record.
type Key int64

// Record is one entry of a collection as the engine stores it.
type Record struct {
	Key  Key
	Data json.RawMessage
}

type row struct {
	Key  int64  `gorm:"column:key;primaryKey;autoIncrement"`
	Data string `gorm:"column:data;type:text;not null"`
}

func (r row) record() Record {
	return Record{
		Key:  Key(r.Key),
		Data: json.RawMessage(r.Data),
	}
}

// Config holds the SQLite file backing an engine
type Config struct {
	Path     string
	LogLevel logger.LogLevel
}

// Engine owns the connection, the declared schema and the request worker.
type Engine struct {
	db     *gorm.DB
	schema schema.Schema
	queue  *jobQueue
	done   chan struct{}
	once   sync.Once
	log    log.LoggerService
}

// Open opens or creates the database at cfg.Path and upgrades it to s.Version
// before any request is accepted. Every failure to provide durable storage is
// reported as ErrStorageUnavailable.
func Open(ctx context.Context, cfg Config, s schema.Schema, logger log.LoggerService) (*Engine, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: sqlite path is required", ErrStorageUnavailable)
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	upgraded, err := migrations.NewMigrator(db, logger.Named("migrations")).Upgrade(ctx, s)
	if err != nil {
		closeDatabase(db)
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	e := &Engine{
		db:     db,
		schema: s,
		queue:  newJobQueue(),
		done:   make(chan struct{}),
		log:    logger,
	}

	logger.Debug("Opened '%s' at '%s' (version %d, upgraded: %t)", s.Name, cfg.Path, s.Version, upgraded)

	go e.run()
	return e, nil
}

func openDatabase(ctx context.Context, cfg Config) (*gorm.DB, error) {
	// Default to silent logging
	if cfg.LogLevel == 0 {
		cfg.LogLevel = logger.Silent
	}

	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: logger.Default.LogMode(cfg.LogLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// SQLite only supports 1 writer
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if err := db.WithContext(ctx).Exec(pragma).Error; err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return db, nil
}

func closeDatabase(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}

// Schema returns the declaration the engine was opened with.
func (e *Engine) Schema() schema.Schema {
	return e.schema
}

// Close stops accepting requests, waits for queued ones to resolve and closes
// the database. Requests issued afterwards fail with ErrStorageUnavailable.
func (e *Engine) Close() error {
	var err error
	e.once.Do(func() {
		e.queue.close()
		<-e.done

		err = closeDatabase(e.db)
		e.log.Debug("Closed '%s'", e.schema.Name)
	})
	return err
}

func (e *Engine) run() {
	defer close(e.done)

	for {
		job, ok := e.queue.next()
		if !ok {
			return
		}
		job()
	}
}

// schedule queues fn to run inside its own transaction. Database and commit
// errors abort it with ErrTransactionAborted. Errors fn reports as a
// recordError roll it back and are returned as they are. A panic in fn rolls
// the transaction back and fails only this request.
func schedule[T any](e *Engine, op string, fn func(tx *gorm.DB) (T, error)) *Request[T] {
	req := newRequest[T]()

	queued := e.queue.push(func() {
		var zero T
		defer func() {
			if r := recover(); r != nil {
				e.log.Error("Transaction '%s' panicked: %v", op, r)
				req.resolve(zero, fmt.Errorf("%s: panic: %v", op, r))
			}
		}()

		var result T
		err := e.db.Transaction(func(tx *gorm.DB) error {
			var err error
			result, err = fn(tx)
			return err
		})

		var recErr *recordError
		switch {
		case err == nil:
			req.resolve(result, nil)
		case errors.As(err, &recErr):
			e.log.Debug("Transaction '%s' rolled back: %v", op, recErr.err)
			req.resolve(zero, fmt.Errorf("%s: %w", op, recErr.err))
		default:
			e.log.Warn("Transaction '%s' aborted: %v", op, err)
			req.resolve(zero, fmt.Errorf("%w: %s: %w", ErrTransactionAborted, op, err))
		}
	})
	if !queued {
		var zero T
		req.resolve(zero, fmt.Errorf("%w: engine for '%s' is closed", ErrStorageUnavailable, e.schema.Name))
	}

	return req
}

func (e *Engine) collection(name string) (schema.Collection, error) {
	c, ok := e.schema.Collection(name)
	if !ok {
		return schema.Collection{}, fmt.Errorf("%w: '%s'", ErrCollectionNotFound, name)
	}
	return c, nil
}

// Put inserts rec when rec.Key is zero and otherwise inserts or replaces the
// record under rec.Key. The request resolves with the assigned or kept key.
func (e *Engine) Put(collection string, rec Record) *Request[Key] {
	c, err := e.collection(collection)
	if err != nil {
		return failedRequest[Key](err)
	}
	if !json.Valid(rec.Data) {
		return failedRequest[Key](fmt.Errorf("%w: data for '%s' is not valid JSON", ErrInvalidRecord, c.Name))
	}

	r := row{Key: int64(rec.Key), Data: string(rec.Data)}

	return schedule(e, "put "+c.Name, func(tx *gorm.DB) (Key, error) {
		query := tx.Table(c.Name)
		if r.Key != 0 {
			query = query.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				DoUpdates: clause.AssignmentColumns([]string{"data"}),
			})
		}

		if err := query.Create(&r).Error; err != nil {
			return 0, err
		}
		return Key(r.Key), nil
	})
}

// Get resolves with the record stored under key, or nil if there is none.
func (e *Engine) Get(collection string, key Key) *Request[*Record] {
	c, err := e.collection(collection)
	if err != nil {
		return failedRequest[*Record](err)
	}

	return schedule(e, "get "+c.Name, func(tx *gorm.DB) (*Record, error) {
		return find(tx, c, key)
	})
}

// Update reads the record under key, passes its data through mutate and
// writes the result back within one transaction. It resolves with false and
// writes nothing when key does not exist.
func (e *Engine) Update(collection string, key Key, mutate func(json.RawMessage) (json.RawMessage, error)) *Request[bool] {
	c, err := e.collection(collection)
	if err != nil {
		return failedRequest[bool](err)
	}

	return schedule(e, "update "+c.Name, func(tx *gorm.DB) (bool, error) {
		rec, err := find(tx, c, key)
		if err != nil || rec == nil {
			return false, err
		}

		data, err := mutate(rec.Data)
		if err != nil {
			return false, &recordError{err: err}
		}
		if !json.Valid(data) {
			return false, &recordError{err: fmt.Errorf("%w: updated data for key %d is not valid JSON", ErrInvalidRecord, key)}
		}

		err = tx.Table(c.Name).Where(`"key" = ?`, int64(key)).Update("data", string(data)).Error
		return err == nil, err
	})
}

// GetAll resolves with every record of the collection in key order, which is
// insertion order for engine-assigned keys.
func (e *Engine) GetAll(collection string) *Request[[]Record] {
	c, err := e.collection(collection)
	if err != nil {
		return failedRequest[[]Record](err)
	}

	return schedule(e, "getAll "+c.Name, func(tx *gorm.DB) ([]Record, error) {
		var rows []row
		if err := tx.Table(c.Name).Order(`"key" ASC`).Find(&rows).Error; err != nil {
			return nil, err
		}
		return records(rows), nil
	})
}

// GetByIndex resolves with the records whose indexed field equals value, in
// key order. The lookup goes through the declared expression index.
func (e *Engine) GetByIndex(collection, index string, value any) *Request[[]Record] {
	c, err := e.collection(collection)
	if err != nil {
		return failedRequest[[]Record](err)
	}

	idx, ok := c.Index(index)
	if !ok {
		return failedRequest[[]Record](fmt.Errorf("%w: '%s' on collection '%s'", ErrIndexNotFound, index, c.Name))
	}

	v := indexValue(value)

	return schedule(e, "getByIndex "+c.Name+"."+idx.Name, func(tx *gorm.DB) ([]Record, error) {
		var rows []row
		err := tx.Table(c.Name).
			Where(idx.Expression()+" = ?", v).
			Order(`"key" ASC`).
			Find(&rows).Error
		if err != nil {
			return nil, err
		}
		return records(rows), nil
	})
}

// Delete removes the record under key. Deleting a missing key succeeds.
func (e *Engine) Delete(collection string, key Key) *Request[struct{}] {
	c, err := e.collection(collection)
	if err != nil {
		return failedRequest[struct{}](err)
	}

	return schedule(e, "delete "+c.Name, func(tx *gorm.DB) (struct{}, error) {
		return struct{}{}, tx.Table(c.Name).Where(`"key" = ?`, int64(key)).Delete(&row{}).Error
	})
}

// Count resolves with the number of records in the collection.
func (e *Engine) Count(collection string) *Request[int64] {
	c, err := e.collection(collection)
	if err != nil {
		return failedRequest[int64](err)
	}

	return schedule(e, "count "+c.Name, func(tx *gorm.DB) (int64, error) {
		var count int64
		err := tx.Table(c.Name).Count(&count).Error
		return count, err
	})
}

// Versions resolves with the schema upgrade history of the database.
func (e *Engine) Versions() *Request[[]migrations.VersionStatus] {
	return schedule(e, "versions", func(tx *gorm.DB) ([]migrations.VersionStatus, error) {
		return migrations.NewMigrator(tx, e.log.Named("migrations")).Status(context.Background())
	})
}

func find(tx *gorm.DB, c schema.Collection, key Key) (*Record, error) {
	var rows []row
	if err := tx.Table(c.Name).Where(`"key" = ?`, int64(key)).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	rec := rows[0].record()
	return &rec, nil
}

func records(rows []row) []Record {
	result := make([]Record, 0, len(rows))
	for _, r := range rows {
		result = append(result, r.record())
	}
	return result
}

// indexValue converts lookup values into what json_extract yields for the
// stored field, so that keys compare as integers.
func indexValue(value any) any {
	switch v := value.(type) {
	case Key:
		return int64(v)
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case uint:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return int64(v)
	default:
		return v
	}
}
