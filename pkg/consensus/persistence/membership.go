package persistence

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/Himess/espresso-network/pkg/consensus/types"
)

// StoreStake persists table alongside epoch's DRB/root row.
func (s *Store) StoreStake(ctx context.Context, epoch types.Epoch, table types.StakeTable) error {
	data, err := table.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "persistence: encode stake table")
	}
	tx, err := s.engine.Write(ctx)
	if err != nil {
		return errors.Wrap(err, "persistence: begin store_stake")
	}
	defer tx.Rollback()

	if err := tx.Execute(ctx, `
		INSERT INTO epoch_drb_and_root (epoch, stake) VALUES (?, ?)
		ON CONFLICT (epoch) DO UPDATE SET stake = excluded.stake
	`, int64(epoch), data); err != nil {
		return errors.Wrap(err, "persistence: upsert stake")
	}
	return errors.Wrap(tx.Commit(), "persistence: commit store_stake")
}

// LoadStake returns the stake table stored for epoch, if any.
func (s *Store) LoadStake(ctx context.Context, epoch types.Epoch) (*types.StakeTable, error) {
	var row struct{ Stake []byte }
	found, err := s.engine.Read(ctx).FetchOptional(ctx, &row,
		"SELECT stake FROM epoch_drb_and_root WHERE epoch = ? AND stake IS NOT NULL", int64(epoch))
	if err != nil || !found {
		return nil, err
	}
	table := &types.StakeTable{}
	if err := table.UnmarshalBinary(row.Stake); err != nil {
		return nil, errors.Wrap(err, "persistence: decode stake table")
	}
	return table, nil
}

// LoadLatestStake returns the most recent limit stake tables, epoch
// descending.
func (s *Store) LoadLatestStake(ctx context.Context, limit int) ([]types.StakeTable, error) {
	var rows []struct {
		Epoch int64
		Stake []byte
	}
	if err := s.engine.Read(ctx).FetchAll(ctx, &rows, `
		SELECT epoch, stake FROM epoch_drb_and_root
		WHERE stake IS NOT NULL ORDER BY epoch DESC LIMIT ?
	`, limit); err != nil {
		return nil, errors.Wrap(err, "persistence: load_latest_stake")
	}
	out := make([]types.StakeTable, 0, len(rows))
	for _, row := range rows {
		var table types.StakeTable
		if err := table.UnmarshalBinary(row.Stake); err != nil {
			return nil, errors.Wrap(err, "persistence: decode stake table")
		}
		table.Epoch = types.Epoch(row.Epoch)
		out = append(out, table)
	}
	return out, nil
}

// StoreEvents replaces the single stake-table-event-log row.
func (s *Store) StoreEvents(ctx context.Context, l1Block uint64, eventLog types.StakeTableEventLog) error {
	eventLog.L1Block = l1Block
	data, err := json.Marshal(eventLog.Events)
	if err != nil {
		return errors.Wrap(err, "persistence: encode stake events")
	}
	tx, err := s.engine.Write(ctx)
	if err != nil {
		return errors.Wrap(err, "persistence: begin store_events")
	}
	defer tx.Rollback()

	if err := tx.Upsert(ctx, "stake_table_events", []string{"id"}, []string{"l1_block", "data"},
		[]map[string]any{{"id": 0, "l1_block": int64(l1Block), "data": data}}); err != nil {
		return errors.Wrap(err, "persistence: upsert stake_table_events")
	}
	return errors.Wrap(tx.Commit(), "persistence: commit store_events")
}

// LoadEvents returns the stored stake-table event log, if any.
func (s *Store) LoadEvents(ctx context.Context) (*types.StakeTableEventLog, error) {
	var row struct {
		L1Block int64
		Data    []byte
	}
	found, err := s.engine.Read(ctx).FetchOptional(ctx, &row,
		"SELECT l1_block, data FROM stake_table_events WHERE id = 0")
	if err != nil || !found {
		return nil, err
	}
	log := &types.StakeTableEventLog{L1Block: uint64(row.L1Block)}
	if err := json.Unmarshal(row.Data, &log.Events); err != nil {
		return nil, errors.Wrap(err, "persistence: decode stake events")
	}
	return log, nil
}
