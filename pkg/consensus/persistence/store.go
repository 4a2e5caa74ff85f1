// Package persistence implements the consensus persistence store: typed
// append/load of leaves, proposals, VID, DA, QCs, state certs, DRB
// results, and configs, plus the decide-event generator, pruner, and
// schema migrator built on top of the storage engine.
package persistence

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"github.com/Himess/espresso-network/internal/metrics"
	"github.com/Himess/espresso-network/pkg/consensus/storage"
	"github.com/Himess/espresso-network/pkg/consensus/types"
)

// Store is the consensus persistence store (component C). It is safe for
// concurrent use; all operations acquire their own storage transaction.
type Store struct {
	engine  storage.Engine
	log     log.Logger
	metrics *metrics.Metrics

	pruneMu  sync.RWMutex
	pruneCfg PruneConfig
}

// New wraps a storage engine as a Store.
func New(engine storage.Engine, logger log.Logger, m *metrics.Metrics) *Store {
	if logger == nil {
		logger = log.Root()
	}
	return &Store{engine: engine, log: logger, metrics: m, pruneCfg: DefaultPruneConfig()}
}

// SetPruneConfig installs cfg as the GC budget that AppendDecidedLeaves
// applies on its post-decide prune pass. Safe to call concurrently with
// in-flight operations; takes effect starting with the next append.
func (s *Store) SetPruneConfig(cfg PruneConfig) {
	s.pruneMu.Lock()
	defer s.pruneMu.Unlock()
	s.pruneCfg = cfg
}

// PruneConfig returns the GC budget currently installed.
func (s *Store) PruneConfig() PruneConfig {
	s.pruneMu.RLock()
	defer s.pruneMu.RUnlock()
	return s.pruneCfg
}

// LoadConfig returns the most recently saved NetworkConfig, if any.
func (s *Store) LoadConfig(ctx context.Context) (*types.NetworkConfig, bool, error) {
	var row struct {
		Config []byte
	}
	found, err := s.engine.Read(ctx).FetchOptional(ctx, &row,
		"SELECT config FROM network_config ORDER BY id DESC LIMIT 1")
	if err != nil {
		return nil, false, errors.Wrap(err, "persistence: load config")
	}
	if !found {
		return nil, false, nil
	}
	cfg := &types.NetworkConfig{}
	if err := cfg.Scan(row.Config); err != nil {
		return nil, false, errors.Wrap(err, "persistence: scan config")
	}
	return cfg, true, nil
}

// SaveConfig inserts cfg as the newest network_config row.
func (s *Store) SaveConfig(ctx context.Context, cfg types.NetworkConfig) error {
	tx, err := s.engine.Write(ctx)
	if err != nil {
		return errors.Wrap(err, "persistence: begin save config")
	}
	defer tx.Rollback()

	val, err := cfg.Value()
	if err != nil {
		return errors.Wrap(err, "persistence: encode config")
	}
	if err := tx.Execute(ctx, "INSERT INTO network_config (config) VALUES (?)", val); err != nil {
		return errors.Wrap(err, "persistence: insert config")
	}
	return errors.Wrap(tx.Commit(), "persistence: commit save config")
}
