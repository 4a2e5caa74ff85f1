package config

import (
	"context"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/log"
	"github.com/fsnotify/fsnotify"

	"github.com/Himess/espresso-network/pkg/consensus/persistence"
	"github.com/Himess/espresso-network/pkg/consensus/types"
)

// pruneOverrideFile is the on-disk TOML shape for runtime pruning
// overrides; absent fields leave the corresponding default in place,
// while a field set explicitly (even to zero) replaces it.
type pruneOverrideFile struct {
	TargetRetention  *uint64 `toml:"target_retention"`
	MinimumRetention *uint64 `toml:"minimum_retention"`
	TargetUsageBytes *int64  `toml:"target_usage_bytes"`
}

func (f pruneOverrideFile) apply(base persistence.PruneConfig) persistence.PruneConfig {
	if f.TargetRetention != nil {
		base.TargetRetention = types.View(*f.TargetRetention)
	}
	if f.MinimumRetention != nil {
		base.MinimumRetention = types.View(*f.MinimumRetention)
	}
	if f.TargetUsageBytes != nil {
		base.TargetUsageBytes = *f.TargetUsageBytes
	}
	return base
}

func loadPruneOverride(path string, base persistence.PruneConfig) (persistence.PruneConfig, error) {
	var f pruneOverrideFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return base, err
	}
	return f.apply(base), nil
}

// WatchPruneConfig reads path once for an initial PruneConfig, then
// watches it with fsnotify and invokes onChange with the re-parsed
// config whenever it's written. The returned stop function closes the
// watcher; call it on shutdown. If path is empty, base is returned
// unchanged and no watcher is started.
func WatchPruneConfig(ctx context.Context, path string, base persistence.PruneConfig, onChange func(persistence.PruneConfig), logger log.Logger) (persistence.PruneConfig, func(), error) {
	if path == "" {
		return base, func() {}, nil
	}
	if logger == nil {
		logger = log.Root()
	}

	current, err := loadPruneOverride(path, base)
	if err != nil {
		return base, func() {}, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return current, func() {}, err
	}
	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return current, func() {}, err
	}

	stop := make(chan struct{})
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				updated, err := loadPruneOverride(path, base)
				if err != nil {
					logger.Warn("failed to reload prune config override", "path", path, "err", err)
					continue
				}
				logger.Info("reloaded prune config override", "path", path)
				onChange(updated)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("prune config watcher error", "err", err)
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()

	return current, func() {
		close(stop)
		_ = watcher.Close()
	}, nil
}
