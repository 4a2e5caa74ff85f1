package persistence

import (
	"context"

	"github.com/pkg/errors"

	"github.com/Himess/espresso-network/pkg/consensus/types"
)

// AppendQuorumProposal2 upserts a signed proposal, keyed by view, computing
// and storing its leaf hash alongside it (spec.md §4.C).
func (s *Store) AppendQuorumProposal2(ctx context.Context, p types.QuorumProposal) error {
	data, err := p.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "persistence: encode quorum proposal")
	}
	leafHash := p.LeafHash().String()

	tx, err := s.engine.Write(ctx)
	if err != nil {
		return errors.Wrap(err, "persistence: begin append_quorum_proposal2")
	}
	defer tx.Rollback()

	if err := tx.Upsert(ctx, "quorum_proposals2", []string{"view"}, []string{"leaf_hash", "data"},
		[]map[string]any{{"view": int64(p.View), "leaf_hash": leafHash, "data": data}}); err != nil {
		return errors.Wrap(err, "persistence: upsert quorum_proposals2")
	}
	qcData, err := p.JustifyQC.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "persistence: encode justify qc")
	}
	if err := tx.Upsert(ctx, "quorum_certificate2", []string{"view"}, []string{"leaf_hash", "data"},
		[]map[string]any{{"view": int64(p.JustifyQC.View), "leaf_hash": p.JustifyQC.LeafCommit.String(), "data": qcData}}); err != nil {
		return errors.Wrap(err, "persistence: upsert quorum_certificate2")
	}
	return errors.Wrap(tx.Commit(), "persistence: commit append_quorum_proposal2")
}

// LoadQuorumProposals returns every stored quorum proposal, keyed by view.
func (s *Store) LoadQuorumProposals(ctx context.Context) (map[types.View]types.QuorumProposal, error) {
	var rows []struct {
		View int64
		Data []byte
	}
	if err := s.engine.Read(ctx).FetchAll(ctx, &rows, "SELECT view, data FROM quorum_proposals2"); err != nil {
		return nil, errors.Wrap(err, "persistence: load quorum proposals")
	}
	out := make(map[types.View]types.QuorumProposal, len(rows))
	for _, row := range rows {
		var p types.QuorumProposal
		if err := p.UnmarshalBinary(row.Data); err != nil {
			return nil, errors.Wrap(err, "persistence: decode quorum proposal")
		}
		out[types.View(row.View)] = p
	}
	return out, nil
}

// LoadQuorumProposal returns the stored proposal for view, if any.
func (s *Store) LoadQuorumProposal(ctx context.Context, view types.View) (*types.QuorumProposal, error) {
	var row struct{ Data []byte }
	found, err := s.engine.Read(ctx).FetchOptional(ctx, &row,
		"SELECT data FROM quorum_proposals2 WHERE view = ?", int64(view))
	if err != nil || !found {
		return nil, err
	}
	p := &types.QuorumProposal{}
	if err := p.UnmarshalBinary(row.Data); err != nil {
		return nil, errors.Wrap(err, "persistence: decode quorum proposal")
	}
	return p, nil
}

// AppendDA2 upserts a DA proposal keyed by view, indexed by the VID
// payload commitment it was dispersed alongside.
func (s *Store) AppendDA2(ctx context.Context, p types.DAProposal, vidCommit types.Commitment) error {
	data, err := p.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "persistence: encode da proposal")
	}
	tx, err := s.engine.Write(ctx)
	if err != nil {
		return errors.Wrap(err, "persistence: begin append_da2")
	}
	defer tx.Rollback()

	if err := tx.Upsert(ctx, "da_proposal2", []string{"view"}, []string{"data", "payload_hash"},
		[]map[string]any{{"view": int64(p.View), "data": data, "payload_hash": vidCommit.String()}}); err != nil {
		return errors.Wrap(err, "persistence: upsert da_proposal2")
	}
	return errors.Wrap(tx.Commit(), "persistence: commit append_da2")
}

// LoadDAProposal returns the stored DA proposal for view, if any.
func (s *Store) LoadDAProposal(ctx context.Context, view types.View) (*types.DAProposal, error) {
	var row struct{ Data []byte }
	found, err := s.engine.Read(ctx).FetchOptional(ctx, &row,
		"SELECT data FROM da_proposal2 WHERE view = ?", int64(view))
	if err != nil || !found {
		return nil, err
	}
	p := &types.DAProposal{}
	if err := p.UnmarshalBinary(row.Data); err != nil {
		return nil, errors.Wrap(err, "persistence: decode da proposal")
	}
	return p, nil
}

// AppendVID2 upserts a VID share, keyed by view.
func (s *Store) AppendVID2(ctx context.Context, share types.VIDShareData) error {
	data, err := share.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "persistence: encode vid share")
	}
	tx, err := s.engine.Write(ctx)
	if err != nil {
		return errors.Wrap(err, "persistence: begin append_vid2")
	}
	defer tx.Rollback()

	if err := tx.Upsert(ctx, "vid_share2", []string{"view"}, []string{"data", "payload_hash"},
		[]map[string]any{{"view": int64(share.View), "data": data, "payload_hash": share.PayloadCommit.String()}}); err != nil {
		return errors.Wrap(err, "persistence: upsert vid_share2")
	}
	return errors.Wrap(tx.Commit(), "persistence: commit append_vid2")
}

// LoadVIDShare returns the stored VID share for view, if any.
func (s *Store) LoadVIDShare(ctx context.Context, view types.View) (*types.VIDShareData, error) {
	var row struct{ Data []byte }
	found, err := s.engine.Read(ctx).FetchOptional(ctx, &row,
		"SELECT data FROM vid_share2 WHERE view = ?", int64(view))
	if err != nil || !found {
		return nil, err
	}
	share := &types.VIDShareData{}
	if err := share.UnmarshalBinary(row.Data); err != nil {
		return nil, errors.Wrap(err, "persistence: decode vid share")
	}
	return share, nil
}

// LoadVIDShareByPayloadHash returns the first stored VID share with the
// given payload commitment, used by the fetch provider to serve VidCommon
// lookups by content hash (spec.md §4.H).
func (s *Store) LoadVIDShareByPayloadHash(ctx context.Context, commit types.Commitment) (*types.VIDShareData, error) {
	var row struct{ Data []byte }
	found, err := s.engine.Read(ctx).FetchOptional(ctx, &row,
		"SELECT data FROM vid_share2 WHERE payload_hash = ? LIMIT 1", commit.String())
	if err != nil || !found {
		return nil, err
	}
	share := &types.VIDShareData{}
	if err := share.UnmarshalBinary(row.Data); err != nil {
		return nil, errors.Wrap(err, "persistence: decode vid share")
	}
	return share, nil
}

// LoadDAProposalByPayloadHash returns the stored DA proposal dispersed
// alongside the given payload commitment.
func (s *Store) LoadDAProposalByPayloadHash(ctx context.Context, commit types.Commitment) (*types.DAProposal, error) {
	var row struct{ Data []byte }
	found, err := s.engine.Read(ctx).FetchOptional(ctx, &row,
		"SELECT data FROM da_proposal2 WHERE payload_hash = ? LIMIT 1", commit.String())
	if err != nil || !found {
		return nil, err
	}
	p := &types.DAProposal{}
	if err := p.UnmarshalBinary(row.Data); err != nil {
		return nil, errors.Wrap(err, "persistence: decode da proposal")
	}
	return p, nil
}

// LoadQuorumProposalByLeafHash and LoadQuorumCertificateByLeafHash serve
// the fetch provider's Leaf-by-hash lookup (spec.md §4.H).
func (s *Store) LoadQuorumProposalByLeafHash(ctx context.Context, leafHash string) (*types.QuorumProposal, error) {
	var row struct{ Data []byte }
	found, err := s.engine.Read(ctx).FetchOptional(ctx, &row,
		"SELECT data FROM quorum_proposals2 WHERE leaf_hash = ?", leafHash)
	if err != nil || !found {
		return nil, err
	}
	p := &types.QuorumProposal{}
	if err := p.UnmarshalBinary(row.Data); err != nil {
		return nil, errors.Wrap(err, "persistence: decode quorum proposal")
	}
	return p, nil
}

func (s *Store) LoadQuorumCertificateByLeafHash(ctx context.Context, leafHash string) (*types.QuorumCertificate, error) {
	var row struct{ Data []byte }
	found, err := s.engine.Read(ctx).FetchOptional(ctx, &row,
		"SELECT data FROM quorum_certificate2 WHERE leaf_hash = ?", leafHash)
	if err != nil || !found {
		return nil, err
	}
	qc := &types.QuorumCertificate{}
	if err := qc.UnmarshalBinary(row.Data); err != nil {
		return nil, errors.Wrap(err, "persistence: decode quorum certificate")
	}
	return qc, nil
}

func (s *Store) loadVIDSharesInRange(ctx context.Context, from, to types.View) (map[types.View]types.VIDShareData, error) {
	var rows []struct {
		View int64
		Data []byte
	}
	if err := s.engine.Read(ctx).FetchAll(ctx, &rows,
		"SELECT view, data FROM vid_share2 WHERE view >= ? AND view <= ?", int64(from), int64(to)); err != nil {
		return nil, errors.Wrap(err, "persistence: load vid shares in range")
	}
	out := make(map[types.View]types.VIDShareData, len(rows))
	for _, row := range rows {
		var share types.VIDShareData
		if err := share.UnmarshalBinary(row.Data); err != nil {
			return nil, errors.Wrap(err, "persistence: decode vid share")
		}
		out[types.View(row.View)] = share
	}
	return out, nil
}

func (s *Store) loadDAProposalsInRange(ctx context.Context, from, to types.View) (map[types.View]types.DAProposal, error) {
	var rows []struct {
		View int64
		Data []byte
	}
	if err := s.engine.Read(ctx).FetchAll(ctx, &rows,
		"SELECT view, data FROM da_proposal2 WHERE view >= ? AND view <= ?", int64(from), int64(to)); err != nil {
		return nil, errors.Wrap(err, "persistence: load da proposals in range")
	}
	out := make(map[types.View]types.DAProposal, len(rows))
	for _, row := range rows {
		var p types.DAProposal
		if err := p.UnmarshalBinary(row.Data); err != nil {
			return nil, errors.Wrap(err, "persistence: decode da proposal")
		}
		out[types.View(row.View)] = p
	}
	return out, nil
}

func (s *Store) loadStateCertsInRange(ctx context.Context, from, to types.View) (map[types.View]types.LightClientStateUpdateCertificate, error) {
	var rows []struct {
		View      int64
		StateCert []byte
	}
	if err := s.engine.Read(ctx).FetchAll(ctx, &rows,
		"SELECT view, state_cert FROM state_cert WHERE view >= ? AND view <= ?", int64(from), int64(to)); err != nil {
		return nil, errors.Wrap(err, "persistence: load state certs in range")
	}
	out := make(map[types.View]types.LightClientStateUpdateCertificate, len(rows))
	for _, row := range rows {
		var cert types.LightClientStateUpdateCertificate
		if err := cert.UnmarshalBinary(row.StateCert); err != nil {
			return nil, errors.Wrap(err, "persistence: decode state cert")
		}
		out[types.View(row.View)] = cert
	}
	return out, nil
}
