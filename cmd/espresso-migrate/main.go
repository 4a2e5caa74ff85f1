// Command espresso-migrate is a standalone runner for the legacy-to-v2
// schema migration (component F), separate from the espresso-persistence
// service binary so it can be invoked as a one-shot job ahead of a
// rolling deploy. Flags follow the teacher's flag.FlagSet + ff.Parse
// idiom (op-geth-proxy/geth-proxy.go).
package main

import (
	"context"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"gorm.io/gorm/logger"

	"github.com/Himess/espresso-network/internal/config"
	"github.com/Himess/espresso-network/internal/logging"
	"github.com/Himess/espresso-network/internal/metrics"
	"github.com/Himess/espresso-network/pkg/consensus/persistence"
	"github.com/Himess/espresso-network/pkg/consensus/storage"
)

func main() {
	logging.Init(log.LevelInfo)

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Crit("failed to load configuration", "err", err)
	}

	ctx := context.Background()
	engine, err := storage.Open(ctx, cfg.StorageURI, cfg.PoolSize, logger.Default.LogMode(logger.Warn))
	if err != nil {
		log.Crit("failed to open storage engine", "err", err)
	}
	defer engine.Close()

	store := persistence.New(engine, log.Root(), metrics.New(nil))

	start := time.Now()
	log.Info("starting migration", "storage_uri", cfg.StorageURI, "batch_size", cfg.MigrationBatchSize)
	if err := store.MigrateAll(ctx, cfg.MigrationBatchSize); err != nil {
		log.Crit("migration failed", "err", err)
	}
	log.Info("migration complete", "elapsed", time.Since(start))
}
