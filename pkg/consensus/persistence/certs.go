package persistence

import (
	"context"

	"github.com/pkg/errors"

	"github.com/Himess/espresso-network/pkg/consensus/types"
)

// StoreUpgradeCertificate replaces the singleton upgrade-certificate row.
// A nil cert is a no-op: there is no "clear" operation, only replacement
// (spec.md §4.C).
func (s *Store) StoreUpgradeCertificate(ctx context.Context, cert *[]byte) error {
	if cert == nil {
		return nil
	}
	return s.upsertSingleton(ctx, "upgrade_certificate", *cert)
}

// LoadUpgradeCertificate returns the stored upgrade certificate bytes, if any.
func (s *Store) LoadUpgradeCertificate(ctx context.Context) ([]byte, bool, error) {
	return s.loadSingleton(ctx, "upgrade_certificate")
}

// StoreNextEpochQuorumCertificate replaces the singleton next-epoch-QC row.
func (s *Store) StoreNextEpochQuorumCertificate(ctx context.Context, qc types.NextEpochQuorumCertificate) error {
	data, err := qc.QC.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "persistence: encode next-epoch qc")
	}
	return s.upsertSingleton(ctx, "next_epoch_quorum_certificate", data)
}

// LoadNextEpochQuorumCertificate returns the stored next-epoch QC, if any.
func (s *Store) LoadNextEpochQuorumCertificate(ctx context.Context) (*types.NextEpochQuorumCertificate, error) {
	data, found, err := s.loadSingleton(ctx, "next_epoch_quorum_certificate")
	if err != nil || !found {
		return nil, err
	}
	qc := types.QuorumCertificate{}
	if err := qc.UnmarshalBinary(data); err != nil {
		return nil, errors.Wrap(err, "persistence: decode next-epoch qc")
	}
	return &types.NextEpochQuorumCertificate{QC: qc}, nil
}

// AddStateCert upserts a state-update certificate keyed by view.
func (s *Store) AddStateCert(ctx context.Context, view types.View, cert types.LightClientStateUpdateCertificate) error {
	data, err := cert.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "persistence: encode state cert")
	}
	tx, err := s.engine.Write(ctx)
	if err != nil {
		return errors.Wrap(err, "persistence: begin add_state_cert")
	}
	defer tx.Rollback()

	if err := tx.Upsert(ctx, "state_cert", []string{"view"}, []string{"state_cert"},
		[]map[string]any{{"view": int64(view), "state_cert": data}}); err != nil {
		return errors.Wrap(err, "persistence: upsert state_cert")
	}
	return errors.Wrap(tx.Commit(), "persistence: commit add_state_cert")
}

// LoadStateCert returns the stored state-update certificate with the
// highest view, if any.
func (s *Store) LoadStateCert(ctx context.Context) (*types.LightClientStateUpdateCertificate, error) {
	var row struct{ StateCert []byte }
	found, err := s.engine.Read(ctx).FetchOptional(ctx, &row,
		"SELECT state_cert FROM state_cert ORDER BY view DESC LIMIT 1")
	if err != nil || !found {
		return nil, err
	}
	cert := &types.LightClientStateUpdateCertificate{}
	if err := cert.UnmarshalBinary(row.StateCert); err != nil {
		return nil, errors.Wrap(err, "persistence: decode state cert")
	}
	return cert, nil
}

func (s *Store) upsertSingleton(ctx context.Context, table string, data []byte) error {
	tx, err := s.engine.Write(ctx)
	if err != nil {
		return errors.Wrapf(err, "persistence: begin upsert %s", table)
	}
	defer tx.Rollback()

	if err := tx.Upsert(ctx, table, []string{"id"}, []string{"data"},
		[]map[string]any{{"id": true, "data": data}}); err != nil {
		return errors.Wrapf(err, "persistence: upsert %s", table)
	}
	return errors.Wrapf(tx.Commit(), "persistence: commit upsert %s", table)
}

func (s *Store) loadSingleton(ctx context.Context, table string) ([]byte, bool, error) {
	var row struct{ Data []byte }
	found, err := s.engine.Read(ctx).FetchOptional(ctx, &row, "SELECT data FROM "+table+" WHERE id = ?", true)
	if err != nil {
		return nil, false, errors.Wrapf(err, "persistence: load %s", table)
	}
	return row.Data, found, nil
}
