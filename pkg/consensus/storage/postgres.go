package storage

import (
	"context"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newPostgresDialector(dsn string) gorm.Dialector {
	return postgres.New(postgres.Config{DSN: dsn, PreferSimpleProtocol: false})
}

type postgresUsage struct{}

func (postgresUsage) tableUsageBytes(ctx context.Context, db *gorm.DB, table string) (int64, error) {
	var size int64
	err := db.WithContext(ctx).Raw("SELECT pg_table_size(?)", table).Scan(&size).Error
	return size, err
}
