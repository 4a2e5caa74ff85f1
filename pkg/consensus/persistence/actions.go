package persistence

import (
	"context"

	"github.com/pkg/errors"

	"github.com/Himess/espresso-network/pkg/consensus/storage"
	"github.com/Himess/espresso-network/pkg/consensus/types"
)

// RecordAction records a consensus action for crash-recovery purposes. For
// Propose/Vote it MAX-upserts highest_voted_view so concurrent writers
// never decrease it (spec.md §4.C, §5 ordering guarantees); other actions
// are observed but otherwise ignored.
func (s *Store) RecordAction(ctx context.Context, view types.View, action types.Action) error {
	if !action.AdvancesHighestVotedView() {
		return nil
	}
	tx, err := s.engine.Write(ctx)
	if err != nil {
		return errors.Wrap(err, "persistence: begin record_action")
	}
	defer tx.Rollback()

	// A MAX-upsert: insert if absent, otherwise only raise the stored
	// view, never lower it (invariant: highest_voted_view is monotonic).
	// Postgres has no scalar two-argument MAX, so it needs GREATEST;
	// SQLite's MAX() is the scalar form when given more than one argument.
	maxExpr := "MAX(highest_voted_view.view, excluded.view)"
	if s.engine.Backend() == storage.BackendPostgres {
		maxExpr = "GREATEST(highest_voted_view.view, excluded.view)"
	}
	if err := tx.Execute(ctx, `
		INSERT INTO highest_voted_view (id, view) VALUES (0, ?)
		ON CONFLICT (id) DO UPDATE SET view = `+maxExpr, int64(view)); err != nil {
		return errors.Wrap(err, "persistence: upsert highest_voted_view")
	}
	return errors.Wrap(tx.Commit(), "persistence: commit record_action")
}

// LoadLatestActedView returns the highest recorded Propose/Vote view, if any.
func (s *Store) LoadLatestActedView(ctx context.Context) (*types.View, error) {
	var row struct{ View int64 }
	found, err := s.engine.Read(ctx).FetchOptional(ctx, &row, "SELECT view FROM highest_voted_view WHERE id = 0")
	if err != nil || !found {
		return nil, err
	}
	v := types.View(row.View)
	return &v, nil
}
