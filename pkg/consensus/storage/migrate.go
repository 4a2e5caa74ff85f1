package storage

import (
	"context"
	"io/fs"
	"sort"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

const schemaMigrationsTable = "schema_migrations"

// runMigrations applies every embedded SQL file for backend, in filename
// order, under an exclusive lock so concurrent processes starting up
// against the same database never race.
func runMigrations(ctx context.Context, db *gorm.DB, backend Backend) error {
	dir := "migrations/postgres"
	if backend == BackendSQLite {
		dir = "migrations/sqlite"
	}

	entries, err := fs.ReadDir(migrationFS, dir)
	if err != nil {
		return errors.Wrap(err, "read embedded migrations")
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockSchema(tx, backend); err != nil {
			return errors.Wrap(err, "acquire schema lock")
		}
		if err := tx.Exec(
			"CREATE TABLE IF NOT EXISTS " + schemaMigrationsTable + " (name TEXT PRIMARY KEY)",
		).Error; err != nil {
			return errors.Wrap(err, "create schema_migrations table")
		}

		var applied []string
		if err := tx.Raw("SELECT name FROM " + schemaMigrationsTable).Scan(&applied).Error; err != nil {
			return errors.Wrap(err, "read applied migrations")
		}
		appliedSet := make(map[string]bool, len(applied))
		for _, n := range applied {
			appliedSet[n] = true
		}

		for _, name := range names {
			if appliedSet[name] {
				continue
			}
			content, err := migrationFS.ReadFile(dir + "/" + name)
			if err != nil {
				return errors.Wrapf(err, "read migration %s", name)
			}
			if err := tx.Exec(string(content)).Error; err != nil {
				return errors.Wrapf(err, "apply migration %s", name)
			}
			if err := tx.Exec(
				"INSERT INTO "+schemaMigrationsTable+" (name) VALUES (?)", name,
			).Error; err != nil {
				return errors.Wrapf(err, "record migration %s", name)
			}
		}
		return nil
	})
}

// lockSchema takes an exclusive advisory lock for the duration of the
// migration transaction. Postgres uses pg_advisory_xact_lock; SQLite's
// single-writer semantics make the BEGIN IMMEDIATE implicit in the
// transaction sufficient, so there's nothing further to do there.
func lockSchema(tx *gorm.DB, backend Backend) error {
	if backend != BackendPostgres {
		return nil
	}
	const lockKey = 0x65737072 // "espr" as an int32, arbitrary but stable
	return tx.Exec("SELECT pg_advisory_xact_lock(?)", lockKey).Error
}
