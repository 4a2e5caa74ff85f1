package config

import (
	"github.com/urfave/cli/v2"

	"github.com/Himess/espresso-network/pkg/consensus/persistence"
	"github.com/Himess/espresso-network/pkg/consensus/types"
)

// Flag names shared between the urfave/cli app and FromCLIContext below.
const (
	FlagStorageURI           = "storage-uri"
	FlagPoolSize             = "pool-size"
	FlagMigrationBatchSize   = "migration-batch-size"
	FlagPruneConfigPath      = "prune-config"
	FlagPruneTargetRetention = "prune-target-retention"
	FlagPruneMinRetention    = "prune-minimum-retention"
	FlagPruneTargetUsage     = "prune-target-usage-bytes"
)

// CLIFlags returns the urfave/cli/v2 flag set shared by every subcommand
// of the espresso-persistence service binary.
func CLIFlags() []cli.Flag {
	def := persistence.DefaultPruneConfig()
	return []cli.Flag{
		&cli.StringFlag{Name: FlagStorageURI, Value: "sqlite://espresso-persistence.db", EnvVars: []string{EnvPrefix + "_STORAGE_URI"}, Usage: "storage backend URI"},
		&cli.IntFlag{Name: FlagPoolSize, Value: 1, EnvVars: []string{EnvPrefix + "_POOL_SIZE"}, Usage: "database connection pool size"},
		&cli.IntFlag{Name: FlagMigrationBatchSize, Value: 10_000, EnvVars: []string{EnvPrefix + "_MIGRATION_BATCH_SIZE"}, Usage: "rows migrated per batch"},
		&cli.StringFlag{Name: FlagPruneConfigPath, EnvVars: []string{EnvPrefix + "_PRUNE_CONFIG"}, Usage: "optional TOML file overriding pruning thresholds, hot-reloaded"},
		&cli.Uint64Flag{Name: FlagPruneTargetRetention, Value: uint64(def.TargetRetention), EnvVars: []string{EnvPrefix + "_PRUNE_TARGET_RETENTION"}},
		&cli.Uint64Flag{Name: FlagPruneMinRetention, Value: uint64(def.MinimumRetention), EnvVars: []string{EnvPrefix + "_PRUNE_MINIMUM_RETENTION"}},
		&cli.Int64Flag{Name: FlagPruneTargetUsage, Value: def.TargetUsageBytes, EnvVars: []string{EnvPrefix + "_PRUNE_TARGET_USAGE_BYTES"}},
	}
}

// FromCLIContext builds a Config from a parsed urfave/cli context.
func FromCLIContext(c *cli.Context) Config {
	return Config{
		StorageURI:         c.String(FlagStorageURI),
		PoolSize:           c.Int(FlagPoolSize),
		MigrationBatchSize: c.Int(FlagMigrationBatchSize),
		PruneOverridePath:  c.String(FlagPruneConfigPath),
		Prune: persistence.PruneConfig{
			TargetRetention:  types.View(c.Uint64(FlagPruneTargetRetention)),
			MinimumRetention: types.View(c.Uint64(FlagPruneMinRetention)),
			TargetUsageBytes: c.Int64(FlagPruneTargetUsage),
		},
	}
}
