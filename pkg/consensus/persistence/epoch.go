package persistence

import (
	"context"

	"github.com/pkg/errors"

	"github.com/Himess/espresso-network/pkg/consensus/types"
)

// AddDRBResult upserts a DRB result for epoch into its epoch_drb_and_root
// row, leaving any previously-stored root/stake columns untouched.
func (s *Store) AddDRBResult(ctx context.Context, epoch types.Epoch, drb types.DrbResult) error {
	tx, err := s.engine.Write(ctx)
	if err != nil {
		return errors.Wrap(err, "persistence: begin add_drb_result")
	}
	defer tx.Rollback()

	if err := tx.Execute(ctx, `
		INSERT INTO epoch_drb_and_root (epoch, drb_result) VALUES (?, ?)
		ON CONFLICT (epoch) DO UPDATE SET drb_result = excluded.drb_result
	`, int64(epoch), drb[:]); err != nil {
		return errors.Wrap(err, "persistence: upsert drb_result")
	}
	return errors.Wrap(tx.Commit(), "persistence: commit add_drb_result")
}

// AddEpochRoot upserts the root block header for epoch into its
// epoch_drb_and_root row.
func (s *Store) AddEpochRoot(ctx context.Context, epoch types.Epoch, header types.BlockHeader) error {
	data, err := header.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "persistence: encode root header")
	}
	tx, err := s.engine.Write(ctx)
	if err != nil {
		return errors.Wrap(err, "persistence: begin add_epoch_root")
	}
	defer tx.Rollback()

	if err := tx.Execute(ctx, `
		INSERT INTO epoch_drb_and_root (epoch, block_header) VALUES (?, ?)
		ON CONFLICT (epoch) DO UPDATE SET block_header = excluded.block_header
	`, int64(epoch), data); err != nil {
		return errors.Wrap(err, "persistence: upsert block_header")
	}
	return errors.Wrap(tx.Commit(), "persistence: commit add_epoch_root")
}

// LoadStartEpochInfo returns the most recent limit epochs that have a DRB
// result present, ascending by epoch. Rows with no DRB result are
// silently skipped — see DESIGN.md for why this preserves rather than
// "fixes" the source behavior (spec.md §9 Open Question).
func (s *Store) LoadStartEpochInfo(ctx context.Context, limit int) ([]types.EpochInfo, error) {
	var rows []struct {
		Epoch       int64
		DrbResult   []byte
		BlockHeader []byte
	}
	if err := s.engine.Read(ctx).FetchAll(ctx, &rows, `
		SELECT epoch, drb_result, block_header FROM epoch_drb_and_root
		WHERE drb_result IS NOT NULL
		ORDER BY epoch DESC LIMIT ?
	`, limit); err != nil {
		return nil, errors.Wrap(err, "persistence: load_start_epoch_info")
	}

	out := make([]types.EpochInfo, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		var drb types.DrbResult
		copy(drb[:], row.DrbResult)
		info := types.EpochInfo{Epoch: types.Epoch(row.Epoch), DrbResult: drb}
		if row.BlockHeader != nil {
			h := &types.BlockHeader{}
			if err := h.UnmarshalBinary(row.BlockHeader); err != nil {
				return nil, errors.Wrap(err, "persistence: decode root header")
			}
			info.BlockHeader = h
		}
		out = append(out, info)
	}
	return out, nil
}
