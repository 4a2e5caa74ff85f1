package storage

import (
	"context"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newSQLiteDialector(path string) gorm.Dialector {
	return sqlite.Open(path)
}

type sqliteUsage struct{}

// tableUsageBytes sums dbstat's payload/unused/overflow pages for all
// pages belonging to table, the embedded-backend equivalent of
// pg_table_size. dbstat is a virtual table built into SQLite.
func (sqliteUsage) tableUsageBytes(ctx context.Context, db *gorm.DB, table string) (int64, error) {
	var size int64
	err := db.WithContext(ctx).
		Raw("SELECT COALESCE(SUM(pgsize), 0) FROM dbstat WHERE name = ?", table).
		Scan(&size).Error
	return size, err
}
