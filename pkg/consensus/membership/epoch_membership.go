package membership

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/Himess/espresso-network/pkg/consensus/types"
)

// EpochMembership wraps a coordinator together with a specific (possibly
// absent) epoch, delegating committee/leader queries to the underlying
// Membership. A nil epoch represents the pre-epoch chain, matching
// whatever the Membership implementation does for {epoch: None} (spec.md
// §4.G).
type EpochMembership struct {
	coord *Coordinator
	epoch *types.Epoch
}

// Epoch returns the wrapped epoch, or nil if this membership predates
// epochs.
func (m *EpochMembership) Epoch() *types.Epoch {
	return m.epoch
}

// Committee returns the eligible committee for view in this membership's
// epoch.
func (m *EpochMembership) Committee(view types.View) ([]common.Address, error) {
	var e types.Epoch
	if m.epoch != nil {
		e = *m.epoch
	}
	return m.coord.membership.Committee(view, e)
}

// Leader returns the leader for view in this membership's epoch.
func (m *EpochMembership) Leader(view types.View) (common.Address, error) {
	var e types.Epoch
	if m.epoch != nil {
		e = *m.epoch
	}
	return m.coord.membership.Leader(view, e)
}
