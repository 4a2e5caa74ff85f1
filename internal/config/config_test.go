package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Himess/espresso-network/pkg/consensus/persistence"
)

func TestLoadAppliesFlags(t *testing.T) {
	cfg, err := Load([]string{"-storage-uri", "postgres://x", "-pool-size", "7"})
	require.NoError(t, err)
	require.Equal(t, "postgres://x", cfg.StorageURI)
	require.Equal(t, 7, cfg.PoolSize)
	require.Equal(t, persistence.DefaultPruneConfig().TargetRetention, cfg.Prune.TargetRetention)
}

func TestWatchPruneConfigAppliesOverrideAndReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prune.toml")
	require.NoError(t, os.WriteFile(path, []byte("target_retention = 100\n"), 0o644))

	base := persistence.DefaultPruneConfig()
	reloaded := make(chan persistence.PruneConfig, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	current, stop, err := WatchPruneConfig(ctx, path, base, func(c persistence.PruneConfig) { reloaded <- c }, nil)
	require.NoError(t, err)
	defer stop()
	require.Equal(t, uint64(100), uint64(current.TargetRetention))

	require.NoError(t, os.WriteFile(path, []byte("target_retention = 200\n"), 0o644))

	select {
	case c := <-reloaded:
		require.Equal(t, uint64(200), uint64(c.TargetRetention))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatchPruneConfigNoPathReturnsBase(t *testing.T) {
	base := persistence.DefaultPruneConfig()
	current, stop, err := WatchPruneConfig(context.Background(), "", base, nil, nil)
	require.NoError(t, err)
	defer stop()
	require.Equal(t, base, current)
}
