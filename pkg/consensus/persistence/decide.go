package persistence

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/Himess/espresso-network/pkg/consensus/events"
	"github.com/Himess/espresso-network/pkg/consensus/types"
)

// WatchDecide polls for newly decided leaf chains every pollInterval,
// draining every available chain on each tick, until ctx is cancelled.
func (s *Store) WatchDecide(ctx context.Context, consumer events.Consumer, pollInterval time.Duration) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if err := s.runDecideLoop(ctx, consumer); err != nil {
			s.log.Warn("decide loop pass failed, will retry", "err", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// runDecideLoop implements the decide-event generator (component D,
// spec.md §4.D). It loops, building the maximal consecutive-by-height
// chain from the last processed view, emitting one event per chain, until
// a pass yields nothing.
func (s *Store) runDecideLoop(ctx context.Context, consumer events.Consumer) error {
	for {
		emitted, err := s.runDecideOnce(ctx, consumer)
		if err != nil {
			return err
		}
		if !emitted {
			return nil
		}
	}
}

func (s *Store) runDecideOnce(ctx context.Context, consumer events.Consumer) (bool, error) {
	lastProcessed, err := s.loadLastProcessedView(ctx)
	if err != nil {
		return false, errors.Wrap(err, "persistence: load last_processed_view")
	}

	var rows []anchorLeafRow
	if err := s.engine.Read(ctx).FetchAll(ctx, &rows,
		"SELECT view, leaf, qc FROM anchor_leaf2 WHERE view >= ? ORDER BY view ASC", lastProcessed,
	); err != nil {
		return false, errors.Wrap(err, "persistence: read decided leaves")
	}

	chain, finalQC, err := consecutiveChain(rows)
	if err != nil {
		return false, err
	}
	// The leaf at lastProcessed (kept as the previous pass's anchor) only
	// seeds the height check, so a gap right after it ends the chain instead
	// of starting a new one; it is not emitted again.
	if len(rows) > 0 && rows[0].View == lastProcessed && len(chain) > 0 {
		chain = chain[1:]
	}
	if len(chain) == 0 {
		return false, nil
	}

	fromView := chain[0].Leaf.View
	toView := chain[len(chain)-1].Leaf.View

	leafInfos, err := s.attachArtifacts(ctx, chain, fromView, toView)
	if err != nil {
		return false, err
	}

	// Reverse to chronological-descending order per spec.md §4.D step 6.
	reversed := make([]types.LeafInfo, len(leafInfos))
	for i, info := range leafInfos {
		reversed[len(leafInfos)-1-i] = info
	}

	decide := types.Decide{LeafChain: reversed, QC: finalQC}
	event := types.Event{ViewNumber: toView, Type: types.EventDecide, Decide: &decide}

	if err := consumer.HandleEvent(ctx, event); err != nil {
		return false, errors.Wrap(err, "persistence: consumer rejected decide event")
	}
	if s.metrics != nil {
		s.metrics.DecideEventsTotal.Inc()
		s.metrics.DecideChainLength.Observe(float64(len(chain)))
	}

	if err := s.finalizeDecideRange(ctx, fromView, toView, reversed); err != nil {
		// The consumer has already seen the event; a failure here is
		// logged and retried on the next decide pass since every
		// deletion and upsert in this phase is idempotent.
		s.log.Warn("post-decide cleanup failed, will retry", "from", fromView, "to", toView, "err", err)
	}
	return true, nil
}

// loadLastProcessedView returns the last processed view as a signed marker,
// or -1 if no decide has ever been finalized. -1 (rather than 0) is the
// "missing" sentinel so that on the very first pass a decided leaf at the
// genesis view (view 0) is read and emitted rather than taken for the
// previous pass's last leaf.
func (s *Store) loadLastProcessedView(ctx context.Context) (int64, error) {
	var row struct {
		LastProcessedView *int64
	}
	found, err := s.engine.Read(ctx).FetchOptional(ctx, &row,
		"SELECT last_processed_view FROM event_stream WHERE id = 1")
	if err != nil || !found || row.LastProcessedView == nil {
		return -1, err
	}
	return *row.LastProcessedView, nil
}

// consecutiveChain walks rows (ascending by view) accumulating leaves
// whose block height is exactly one greater than the previous leaf's,
// stopping at the first gap.
func consecutiveChain(rows []anchorLeafRow) ([]types.LeafInfo, types.QuorumCertificate, error) {
	var chain []types.LeafInfo
	var finalQC types.QuorumCertificate
	var prevHeight uint64
	first := true

	for _, row := range rows {
		leaf := types.Leaf{}
		if err := leaf.UnmarshalBinary(row.Leaf); err != nil {
			return nil, finalQC, errors.Wrap(err, "persistence: decode decided leaf")
		}
		qc := types.QuorumCertificate{}
		if err := qc.UnmarshalBinary(row.QC); err != nil {
			return nil, finalQC, errors.Wrap(err, "persistence: decode decided qc")
		}
		height := leaf.BlockHeight()
		if !first && height != prevHeight+1 {
			break
		}
		chain = append(chain, types.LeafInfo{Leaf: leaf})
		finalQC = qc
		prevHeight = height
		first = false
	}
	return chain, finalQC, nil
}

// attachArtifacts fills in VID shares, reconstructed payloads, and state
// certs for each leaf in chain (spec.md §4.D step 6).
func (s *Store) attachArtifacts(ctx context.Context, chain []types.LeafInfo, fromView, toView types.View) ([]types.LeafInfo, error) {
	vidByView, err := s.loadVIDSharesInRange(ctx, fromView, toView)
	if err != nil {
		return nil, err
	}
	daByView, err := s.loadDAProposalsInRange(ctx, fromView, toView)
	if err != nil {
		return nil, err
	}
	stateCertByView, err := s.loadStateCertsInRange(ctx, fromView, toView)
	if err != nil {
		return nil, err
	}

	out := make([]types.LeafInfo, len(chain))
	for i, info := range chain {
		view := info.Leaf.View
		if vid, ok := vidByView[view]; ok {
			v := vid
			info.VIDShare = &v
		}
		if da, ok := daByView[view]; ok {
			info.Leaf.FillBlockPayload(types.PayloadFromBytes(da.EncodedTxns, da.Metadata))
		} else if view == types.GenesisView {
			info.Leaf.FillBlockPayload(types.EmptyPayload())
		}
		if cert, ok := stateCertByView[view]; ok {
			c := cert
			info.StateCert = &c
		}
		out[i] = info
	}
	return out, nil
}

// finalizeDecideRange performs the write-side half of a decide: marker
// bump, finalized-state-cert upsert, and deletion of processed rows
// (spec.md §4.D step 8). It runs in its own transaction, deliberately
// separate from the consumer invocation (spec.md §9 design note).
func (s *Store) finalizeDecideRange(ctx context.Context, fromView, toView types.View, chain []types.LeafInfo) error {
	tx, err := s.engine.Write(ctx)
	if err != nil {
		return errors.Wrap(err, "begin finalize")
	}
	defer tx.Rollback()

	if err := tx.Upsert(ctx, "event_stream", []string{"id"}, []string{"last_processed_view"},
		[]map[string]any{{"id": 1, "last_processed_view": int64(toView)}}); err != nil {
		return errors.Wrap(err, "upsert last_processed_view")
	}

	for _, info := range chain {
		if info.StateCert == nil {
			continue
		}
		certBytes, err := info.StateCert.MarshalBinary()
		if err != nil {
			return errors.Wrap(err, "encode finalized state cert")
		}
		if err := tx.Upsert(ctx, "finalized_state_cert", []string{"epoch"}, []string{"state_cert"},
			[]map[string]any{{"epoch": int64(info.StateCert.Epoch), "state_cert": certBytes}}); err != nil {
			return errors.Wrap(err, "upsert finalized_state_cert")
		}
	}

	deletes := []struct {
		table string
		query string
	}{
		{"vid_share2", "DELETE FROM vid_share2 WHERE view >= ? AND view <= ?"},
		{"da_proposal2", "DELETE FROM da_proposal2 WHERE view >= ? AND view <= ?"},
		{"quorum_proposals2", "DELETE FROM quorum_proposals2 WHERE view >= ? AND view <= ?"},
		{"quorum_certificate2", "DELETE FROM quorum_certificate2 WHERE view >= ? AND view <= ?"},
		{"state_cert", "DELETE FROM state_cert WHERE view >= ? AND view <= ?"},
		{"anchor_leaf2", "DELETE FROM anchor_leaf2 WHERE view >= ? AND view < ?"},
	}
	// anchor_leaf2's query has an exclusive upper bound: the anchor (max
	// view) is preserved even within the decided range (invariant §3-4).
	var result *multierror.Error
	for _, d := range deletes {
		if err := tx.Execute(ctx, d.query, int64(fromView), int64(toView)); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "delete from %s", d.table))
			continue
		}
		if s.metrics != nil {
			s.metrics.GCRowsDeletedTotal.WithLabelValues(d.table).Inc()
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "commit finalize")
}
