package persistence

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/Himess/espresso-network/pkg/consensus/storage"
	"github.com/Himess/espresso-network/pkg/consensus/types"
)

const defaultMigrationBatchSize = 10_000

// legacyTable describes one v1→v2 migration: the legacy table to read in
// batches, and how to convert one of its rows and upsert the v2 result.
type legacyTable struct {
	name       string
	migrateOne func(ctx context.Context, tx storage.WriteTx, view int64, data []byte) error
}

// MigrateAll runs every legacy-table migration. The five tables are
// independent of one another, so they run concurrently via errgroup; the
// leaf_hash backfill (which reads quorum_proposals2) only starts once all
// five have finished (spec.md §4.F, §9).
func (s *Store) MigrateAll(ctx context.Context, batchSize int) error {
	if batchSize <= 0 {
		batchSize = defaultMigrationBatchSize
	}
	tables := []legacyTable{
		{"anchor_leaf", s.migrateAnchorLeafRow},
		{"da_proposal", s.migrateDAProposalRow},
		{"vid_share", s.migrateVIDShareRow},
		{"quorum_proposals", s.migrateQuorumProposalRow},
		{"quorum_certificate", s.migrateQuorumCertificateRow},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range tables {
		t := t
		g.Go(func() error {
			return s.migrateTable(gctx, t, batchSize)
		})
	}
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "persistence: migrate legacy tables")
	}
	return errors.Wrap(s.backfillLeafHashes(ctx), "persistence: backfill leaf_hash")
}

func (s *Store) migrateTable(ctx context.Context, t legacyTable, batchSize int) error {
	completed, offset, err := s.loadMigrationMarker(ctx, t.name)
	if err != nil {
		return errors.Wrapf(err, "load migration marker for %s", t.name)
	}
	if completed {
		return nil
	}

	for {
		rows, err := s.fetchLegacyBatch(ctx, t.name, offset, batchSize)
		if err != nil {
			return errors.Wrapf(err, "fetch legacy batch from %s", t.name)
		}

		tx, err := s.engine.Write(ctx)
		if err != nil {
			return errors.Wrapf(err, "begin migrate batch for %s", t.name)
		}
		for _, row := range rows {
			if err := t.migrateOne(ctx, tx, row.view, row.data); err != nil {
				tx.Rollback()
				return errors.Wrapf(err, "convert row view=%d in %s", row.view, t.name)
			}
		}
		newOffset := offset
		if len(rows) > 0 {
			newOffset = rows[len(rows)-1].view + 1
		}
		done := len(rows) < batchSize
		if err := upsertMigrationMarker(ctx, tx, t.name, done, newOffset); err != nil {
			tx.Rollback()
			return errors.Wrapf(err, "update migration marker for %s", t.name)
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrapf(err, "commit migrate batch for %s", t.name)
		}
		if s.metrics != nil {
			s.metrics.MigrationRowsTotal.WithLabelValues(t.name).Add(float64(len(rows)))
		}

		offset = newOffset
		if done {
			if s.metrics != nil {
				s.metrics.MigrationTablesComplete.Inc()
			}
			return nil
		}
	}
}

type legacyRow struct {
	view int64
	data []byte
}

func (s *Store) fetchLegacyBatch(ctx context.Context, table string, offset int64, batchSize int) ([]legacyRow, error) {
	var raw []struct {
		View int64
		Data []byte
	}
	if err := s.engine.Read(ctx).FetchAll(ctx, &raw,
		"SELECT view, data FROM "+table+" WHERE view >= ? ORDER BY view ASC LIMIT ?", offset, batchSize); err != nil {
		return nil, err
	}
	out := make([]legacyRow, len(raw))
	for i, r := range raw {
		out[i] = legacyRow{view: r.View, data: r.Data}
	}
	return out, nil
}

func (s *Store) loadMigrationMarker(ctx context.Context, table string) (completed bool, offset int64, err error) {
	var row struct {
		Completed    bool
		MigratedRows int64
	}
	found, err := s.engine.Read(ctx).FetchOptional(ctx, &row,
		"SELECT completed, migrated_rows FROM epoch_migration WHERE table_name = ?", table)
	if err != nil || !found {
		return false, 0, err
	}
	return row.Completed, row.MigratedRows, nil
}

func upsertMigrationMarker(ctx context.Context, tx storage.WriteTx, table string, completed bool, offset int64) error {
	return tx.Upsert(ctx, "epoch_migration", []string{"table_name"}, []string{"completed", "migrated_rows"},
		[]map[string]any{{"table_name": table, "completed": completed, "migrated_rows": offset}})
}

func (s *Store) migrateAnchorLeafRow(ctx context.Context, tx storage.WriteTx, view int64, data []byte) error {
	var v1 types.LeafV1
	if err := v1.UnmarshalBinary(data); err != nil {
		return errors.Wrap(err, "decode legacy leaf")
	}
	v2 := v1.ToV2()
	leafBytes, err := v2.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "encode v2 leaf")
	}
	qcBytes, err := v2.JustifyQC.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "encode v2 qc")
	}
	return tx.Upsert(ctx, "anchor_leaf2", []string{"view"}, []string{"leaf", "qc"},
		[]map[string]any{{"view": view, "leaf": leafBytes, "qc": qcBytes}})
}

func (s *Store) migrateDAProposalRow(ctx context.Context, tx storage.WriteTx, view int64, data []byte) error {
	var v1 types.DAProposalV1
	if err := v1.UnmarshalBinary(data); err != nil {
		return errors.Wrap(err, "decode legacy da proposal")
	}
	v2 := v1.ToV2()
	v2Bytes, err := v2.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "encode v2 da proposal")
	}
	payload := types.PayloadFromBytes(v2.EncodedTxns, v2.Metadata)
	return tx.Upsert(ctx, "da_proposal2", []string{"view"}, []string{"data", "payload_hash"},
		[]map[string]any{{"view": view, "data": v2Bytes, "payload_hash": payload.Commit().String()}})
}

func (s *Store) migrateVIDShareRow(ctx context.Context, tx storage.WriteTx, view int64, data []byte) error {
	var share types.VIDShareData
	if err := share.UnmarshalBinary(data); err != nil {
		return errors.Wrap(err, "decode legacy vid share")
	}
	shareBytes, err := share.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "encode v2 vid share")
	}
	return tx.Upsert(ctx, "vid_share2", []string{"view"}, []string{"data", "payload_hash"},
		[]map[string]any{{"view": view, "data": shareBytes, "payload_hash": share.PayloadCommit.String()}})
}

func (s *Store) migrateQuorumProposalRow(ctx context.Context, tx storage.WriteTx, view int64, data []byte) error {
	var p types.QuorumProposal
	if err := p.UnmarshalBinary(data); err != nil {
		return errors.Wrap(err, "decode legacy quorum proposal")
	}
	pBytes, err := p.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "encode v2 quorum proposal")
	}
	return tx.Upsert(ctx, "quorum_proposals2", []string{"view"}, []string{"leaf_hash", "data"},
		[]map[string]any{{"view": view, "leaf_hash": p.LeafHash().String(), "data": pBytes}})
}

func (s *Store) migrateQuorumCertificateRow(ctx context.Context, tx storage.WriteTx, view int64, data []byte) error {
	var v1 types.QuorumCertificateV1
	if err := v1.UnmarshalBinary(data); err != nil {
		return errors.Wrap(err, "decode legacy qc")
	}
	v2 := v1.ToV2()
	qcBytes, err := v2.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "encode v2 qc")
	}
	return tx.Upsert(ctx, "quorum_certificate2", []string{"view"}, []string{"leaf_hash", "data"},
		[]map[string]any{{"view": view, "leaf_hash": v2.LeafCommit.String(), "data": qcBytes}})
}

// backfillLeafHashes populates quorum_proposals2.leaf_hash for any row
// left null by a migration that predates the leaf_hash column (spec.md
// §4.F).
func (s *Store) backfillLeafHashes(ctx context.Context) error {
	var rows []struct {
		View int64
		Data []byte
	}
	if err := s.engine.Read(ctx).FetchAll(ctx, &rows,
		"SELECT view, data FROM quorum_proposals2 WHERE leaf_hash IS NULL"); err != nil {
		return errors.Wrap(err, "fetch rows needing leaf_hash backfill")
	}
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.engine.Write(ctx)
	if err != nil {
		return errors.Wrap(err, "begin leaf_hash backfill")
	}
	defer tx.Rollback()

	for _, row := range rows {
		var p types.QuorumProposal
		if err := p.UnmarshalBinary(row.Data); err != nil {
			return errors.Wrapf(err, "decode proposal view=%d", row.View)
		}
		if err := tx.Execute(ctx, "UPDATE quorum_proposals2 SET leaf_hash = ? WHERE view = ?",
			p.LeafHash().String(), row.View); err != nil {
			return errors.Wrapf(err, "update leaf_hash view=%d", row.View)
		}
	}
	return errors.Wrap(tx.Commit(), "commit leaf_hash backfill")
}
