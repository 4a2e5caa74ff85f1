// Package config centralizes flag/env/file configuration loading for the
// espresso-persistence binaries (component K). The standalone migration
// tool parses flags and environment variables via peterbourgon/ff; the
// main service binary additionally exposes urfave/cli/v2 flag
// definitions, and pruning thresholds may be overridden at runtime from
// a hot-reloaded TOML file.
package config

import (
	"flag"

	"github.com/peterbourgon/ff/v3"

	"github.com/Himess/espresso-network/pkg/consensus/persistence"
	"github.com/Himess/espresso-network/pkg/consensus/types"
)

// EnvPrefix mirrors the teacher's OP_GETH_PROXY convention: every flag
// below can also be set as ESPRESSO_PERSISTENCE_<FLAG_NAME>.
const EnvPrefix = "ESPRESSO_PERSISTENCE"

// Config holds everything needed to stand up a Store and its ambient
// services: storage location, pool sizing, and default pruning budget.
type Config struct {
	StorageURI         string
	PoolSize           int
	MigrationBatchSize int
	PruneOverridePath  string
	Prune              persistence.PruneConfig
}

// Default returns the out-of-the-box configuration: an embedded SQLite
// store at the given path and spec.md §4.E's default pruning budget.
func Default(sqlitePath string) Config {
	return Config{
		StorageURI:         "sqlite://" + sqlitePath,
		PoolSize:           1,
		MigrationBatchSize: 10_000,
		Prune:              persistence.DefaultPruneConfig(),
	}
}

// Load parses flags from args (and ESPRESSO_PERSISTENCE_-prefixed
// environment variables) into a Config, following the teacher's
// flag.FlagSet + ff.Parse idiom (op-geth-proxy/geth-proxy.go).
func Load(args []string) (Config, error) {
	cfg := Default("espresso-persistence.db")

	fs := flag.NewFlagSet("espresso-persistence", flag.ContinueOnError)
	storageURI := fs.String("storage-uri", cfg.StorageURI, "storage backend URI (sqlite://path or postgres://dsn)")
	poolSize := fs.Int("pool-size", cfg.PoolSize, "database connection pool size")
	batchSize := fs.Int("migration-batch-size", cfg.MigrationBatchSize, "rows migrated per batch")
	overridePath := fs.String("prune-config", "", "optional TOML file overriding pruning thresholds, hot-reloaded")
	targetRetention := fs.Uint64("prune-target-retention", uint64(cfg.Prune.TargetRetention), "views always retained")
	minRetention := fs.Uint64("prune-minimum-retention", uint64(cfg.Prune.MinimumRetention), "views retained under storage pressure")
	targetUsage := fs.Int64("prune-target-usage-bytes", cfg.Prune.TargetUsageBytes, "storage usage budget before the minimum-retention pass runs")

	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix(EnvPrefix)); err != nil {
		return Config{}, err
	}

	cfg.StorageURI = *storageURI
	cfg.PoolSize = *poolSize
	cfg.MigrationBatchSize = *batchSize
	cfg.PruneOverridePath = *overridePath
	cfg.Prune.TargetRetention = types.View(*targetRetention)
	cfg.Prune.MinimumRetention = types.View(*minRetention)
	cfg.Prune.TargetUsageBytes = *targetUsage

	return cfg, nil
}
