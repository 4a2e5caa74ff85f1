package persistence

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/Himess/espresso-network/pkg/consensus/types"
)

// PruneConfig holds the dual-threshold GC budget (spec.md §4.E).
type PruneConfig struct {
	TargetRetention  types.View // views to always keep
	MinimumRetention types.View // views to keep even under storage pressure
	TargetUsageBytes int64
}

// DefaultPruneConfig matches spec.md §4.E's defaults.
func DefaultPruneConfig() PruneConfig {
	return PruneConfig{
		TargetRetention:  302_000,
		MinimumRetention: 130_000,
		TargetUsageBytes: 1 << 30,
	}
}

var prunedTables = []string{"anchor_leaf2", "vid_share2", "da_proposal2", "quorum_proposals2", "quorum_certificate2"}

// Prune runs the consensus pruner for current view v (spec.md §4.E): first
// a retention-only pass, then (if measured usage still exceeds budget) a
// tighter pass down to the minimum retention floor.
func (s *Store) Prune(ctx context.Context, v types.View, cfg PruneConfig) error {
	if err := s.deleteBelow(ctx, saturatingSub(v, cfg.TargetRetention)); err != nil {
		return errors.Wrap(err, "persistence: prune target-retention pass")
	}

	usage, err := s.measureUsage(ctx)
	if err != nil {
		return errors.Wrap(err, "persistence: measure storage usage")
	}
	if usage <= cfg.TargetUsageBytes {
		return nil
	}
	return errors.Wrap(s.deleteBelow(ctx, saturatingSub(v, cfg.MinimumRetention)), "persistence: prune minimum-retention pass")
}

func saturatingSub(v, n types.View) types.View {
	if n > v {
		return 0
	}
	return v - n
}

func (s *Store) deleteBelow(ctx context.Context, threshold types.View) error {
	var result *multierror.Error
	for _, table := range prunedTables {
		tx, err := s.engine.Write(ctx)
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "begin delete from %s", table))
			continue
		}
		if err := tx.Execute(ctx, "DELETE FROM "+table+" WHERE view < ?", int64(threshold)); err != nil {
			tx.Rollback()
			result = multierror.Append(result, errors.Wrapf(err, "delete from %s", table))
			continue
		}
		if err := tx.Commit(); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "commit delete from %s", table))
			continue
		}
		if s.metrics != nil {
			s.metrics.GCRowsDeletedTotal.WithLabelValues(table).Inc()
		}
	}
	return result.ErrorOrNil()
}

func (s *Store) measureUsage(ctx context.Context) (int64, error) {
	var total int64
	for _, table := range prunedTables {
		size, err := s.engine.TableUsageBytes(ctx, table)
		if err != nil {
			return 0, errors.Wrapf(err, "measure usage of %s", table)
		}
		if s.metrics != nil {
			s.metrics.StorageUsageBytes.WithLabelValues(table).Set(float64(size))
		}
		total += size
	}
	return total, nil
}
