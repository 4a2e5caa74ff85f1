package types

// Action is a consensus-protocol action worth recording for crash recovery,
// e.g. to avoid double-voting after a restart.
type Action int

const (
	ActionPropose Action = iota
	ActionVote
	ActionTimeout
	ActionDAPropose
	ActionDAVote
	ActionViewSyncVote
)

// AdvancesHighestVotedView reports whether this action should advance the
// highest_voted_view marker (spec.md §4.C record_action: "For
// Propose/Vote, advances monotonically the highest-voted-view; other
// actions ignored").
func (a Action) AdvancesHighestVotedView() bool {
	return a == ActionPropose || a == ActionVote
}
