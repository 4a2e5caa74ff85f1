// Package storage adapts the consensus persistence store to a SQL backend,
// server (Postgres) or embedded (SQLite), hiding the two behind one
// transaction interface.
package storage

import (
	"context"
	"embed"
	"fmt"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFS embed.FS

// Backend identifies which SQL dialect a storage URI resolves to.
type Backend int

const (
	BackendPostgres Backend = iota
	BackendSQLite
)

// Engine is the connection-pooled handle consensus persistence reads and
// writes through. It hides the Postgres/SQLite split behind one interface
// (spec.md §4.B).
type Engine interface {
	Backend() Backend
	Read(ctx context.Context) ReadTx
	Write(ctx context.Context) (WriteTx, error)
	// TableUsageBytes reports the on-disk size of a table, using
	// pg_table_size on Postgres and dbstat on SQLite.
	TableUsageBytes(ctx context.Context, table string) (int64, error)
	Close() error
}

// ReadTx is a read-only snapshot transaction.
type ReadTx interface {
	FetchOptional(ctx context.Context, dest any, query string, args ...any) (bool, error)
	FetchAll(ctx context.Context, dest any, query string, args ...any) error
}

// WriteTx is a single-connection read-write transaction. All multi-row
// writes belonging to one logical operation happen inside one WriteTx
// (spec.md §4.B).
type WriteTx interface {
	ReadTx
	Upsert(ctx context.Context, table string, pkCols []string, cols []string, rows []map[string]any) error
	Execute(ctx context.Context, query string, args ...any) error
	Commit() error
	Rollback() error
}

type gormEngine struct {
	db      *gorm.DB
	backend Backend
	usage   usageQuerier
}

type usageQuerier interface {
	tableUsageBytes(ctx context.Context, db *gorm.DB, table string) (int64, error)
}

// Open connects to the storage URI, applying embedded migrations under an
// exclusive schema lock on first connect. uri is either "postgres://..." or
// "sqlite://path".
func Open(ctx context.Context, uri string, poolSize int, gormLogger logger.Interface) (Engine, error) {
	dialector, backend, err := dialectorForURI(uri)
	if err != nil {
		return nil, errors.Wrap(err, "storage: resolve dialector")
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger, SkipDefaultTransaction: true})
	if err != nil {
		return nil, errors.Wrap(err, "storage: open database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "storage: unwrap sql.DB")
	}
	if backend == BackendSQLite {
		// A single connection avoids SQLite's "database is locked" errors
		// when a read and a write transaction overlap on the same file.
		sqlDB.SetMaxOpenConns(1)
	} else if poolSize > 0 {
		sqlDB.SetMaxOpenConns(poolSize)
	}

	e := &gormEngine{db: db, backend: backend}
	switch backend {
	case BackendPostgres:
		e.usage = postgresUsage{}
	case BackendSQLite:
		e.usage = sqliteUsage{}
	}

	if err := runMigrations(ctx, db, backend); err != nil {
		return nil, errors.Wrap(err, "storage: run migrations")
	}
	return e, nil
}

func (e *gormEngine) Backend() Backend { return e.backend }

func (e *gormEngine) Read(ctx context.Context) ReadTx {
	return &gormTx{db: e.db.WithContext(ctx)}
}

func (e *gormEngine) Write(ctx context.Context) (WriteTx, error) {
	tx := e.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, errors.Wrap(tx.Error, "storage: begin write tx")
	}
	return &gormTx{db: tx, tx: tx}, nil
}

func (e *gormEngine) TableUsageBytes(ctx context.Context, table string) (int64, error) {
	return e.usage.tableUsageBytes(ctx, e.db.WithContext(ctx), table)
}

func (e *gormEngine) Close() error {
	sqlDB, err := e.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type gormTx struct {
	db *gorm.DB
	tx *gorm.DB
}

func (t *gormTx) FetchOptional(ctx context.Context, dest any, query string, args ...any) (bool, error) {
	res := t.db.WithContext(ctx).Raw(query, args...).Scan(dest)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (t *gormTx) FetchAll(ctx context.Context, dest any, query string, args ...any) error {
	return t.db.WithContext(ctx).Raw(query, args...).Scan(dest).Error
}

func (t *gormTx) Upsert(ctx context.Context, table string, pkCols []string, cols []string, rows []map[string]any) error {
	if len(rows) == 0 {
		return nil
	}
	conflictCols := make([]clause.Column, len(pkCols))
	for i, c := range pkCols {
		conflictCols[i] = clause.Column{Name: c}
	}
	assignments := make([]string, 0, len(cols))
	for _, c := range cols {
		assignments = append(assignments, c)
	}
	return t.db.WithContext(ctx).Table(table).Clauses(clause.OnConflict{
		Columns:   conflictCols,
		DoUpdates: clause.AssignmentColumns(assignments),
	}).Create(rows).Error
}

func (t *gormTx) Execute(ctx context.Context, query string, args ...any) error {
	return t.db.WithContext(ctx).Exec(query, args...).Error
}

func (t *gormTx) Commit() error {
	if t.tx == nil {
		return fmt.Errorf("storage: commit called on a read-only transaction")
	}
	return t.tx.Commit().Error
}

func (t *gormTx) Rollback() error {
	if t.tx == nil {
		return nil
	}
	return t.tx.Rollback().Error
}

func dialectorForURI(uri string) (gorm.Dialector, Backend, error) {
	switch {
	case hasPrefix(uri, "postgres://"), hasPrefix(uri, "postgresql://"):
		return newPostgresDialector(uri), BackendPostgres, nil
	case hasPrefix(uri, "sqlite://"):
		return newSQLiteDialector(uri[len("sqlite://"):]), BackendSQLite, nil
	default:
		return nil, 0, fmt.Errorf("storage: unrecognized storage URI scheme: %q", uri)
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
