package persistence

import (
	"context"

	"github.com/pkg/errors"

	"github.com/Himess/espresso-network/pkg/consensus/events"
	"github.com/Himess/espresso-network/pkg/consensus/types"
)

type anchorLeafRow struct {
	View int64
	Leaf []byte
	QC   []byte
}

// AppendDecidedLeaves durably writes chain (an ascending, already-decided
// leaf chain) along with its justify-QCs, then drives the decide-event
// generator (D) and the pruner (E) at view, in that order (spec.md §4.C
// append_decided_leaves). A consumer or GC failure is logged and
// swallowed: the leaves are already durable by the time either runs.
func (s *Store) AppendDecidedLeaves(ctx context.Context, view types.View, chain []types.LeafInfo, consumer events.Consumer) error {
	if len(chain) > 0 {
		tx, err := s.engine.Write(ctx)
		if err != nil {
			return errors.Wrap(err, "persistence: begin append_decided_leaves")
		}

		rows := make([]map[string]any, 0, len(chain))
		for _, info := range chain {
			leaf := info.Leaf
			leaf.UnfillBlockPayload()
			leafBytes, err := leaf.MarshalBinary()
			if err != nil {
				tx.Rollback()
				return errors.Wrap(err, "persistence: encode leaf")
			}
			qcBytes, err := leaf.JustifyQC.MarshalBinary()
			if err != nil {
				tx.Rollback()
				return errors.Wrap(err, "persistence: encode qc")
			}
			rows = append(rows, map[string]any{
				"view": int64(info.Leaf.View),
				"leaf": leafBytes,
				"qc":   qcBytes,
			})
		}
		if err := tx.Upsert(ctx, "anchor_leaf2", []string{"view"}, []string{"leaf", "qc"}, rows); err != nil {
			tx.Rollback()
			return errors.Wrap(err, "persistence: upsert anchor_leaf2")
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrap(err, "persistence: commit append_decided_leaves")
		}
	}

	if err := s.runDecideLoop(ctx, consumer); err != nil {
		s.log.Warn("decide-event generation failed, will retry on next append", "err", err)
	}

	if err := s.Prune(ctx, view, s.PruneConfig()); err != nil {
		s.log.Warn("pruner pass failed, will retry on next append", "view", view, "err", err)
	}
	return nil
}

// LoadAnchorLeaf returns the leaf and QC at the maximum stored view, if any.
func (s *Store) LoadAnchorLeaf(ctx context.Context) (*types.Leaf, *types.QuorumCertificate, error) {
	var row anchorLeafRow
	found, err := s.engine.Read(ctx).FetchOptional(ctx, &row,
		"SELECT view, leaf, qc FROM anchor_leaf2 ORDER BY view DESC LIMIT 1")
	if err != nil {
		return nil, nil, errors.Wrap(err, "persistence: load anchor leaf")
	}
	if !found {
		return nil, nil, nil
	}
	leaf := &types.Leaf{}
	if err := leaf.UnmarshalBinary(row.Leaf); err != nil {
		return nil, nil, errors.Wrap(err, "persistence: decode anchor leaf")
	}
	qc := &types.QuorumCertificate{}
	if err := qc.UnmarshalBinary(row.QC); err != nil {
		return nil, nil, errors.Wrap(err, "persistence: decode anchor qc")
	}
	return leaf, qc, nil
}

// LoadAnchorView returns the maximum stored view, or genesis if the table
// is empty.
func (s *Store) LoadAnchorView(ctx context.Context) (types.View, error) {
	var row struct{ View int64 }
	found, err := s.engine.Read(ctx).FetchOptional(ctx, &row, "SELECT MAX(view) AS view FROM anchor_leaf2")
	if err != nil {
		return types.GenesisView, errors.Wrap(err, "persistence: load anchor view")
	}
	if !found {
		return types.GenesisView, nil
	}
	return types.View(row.View), nil
}
