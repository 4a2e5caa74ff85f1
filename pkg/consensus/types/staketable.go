package types

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Validator is one stake-table entry: a committee member's signing keys,
// stake weight, and whether they also participate in the DA committee.
type Validator struct {
	Address       common.Address
	BLSPubKey     []byte
	SchnorrPubKey []byte
	Stake         *uint256.Int
	IsDA          bool
}

// StakeTable is the ordered-by-insertion map from validator address to
// record, for a single epoch.
type StakeTable struct {
	Epoch      Epoch
	Validators []Validator // insertion order preserved, matching IndexMap semantics
}

// ByAddress looks up a validator's record in the stake table.
func (t *StakeTable) ByAddress(addr common.Address) (Validator, bool) {
	for _, v := range t.Validators {
		if v.Address == addr {
			return v, true
		}
	}
	return Validator{}, false
}

// EventKey identifies one observed L1 stake-table event, used to dedupe the
// event log across restarts.
type EventKey struct {
	BlockNumber uint64
	LogIndex    uint64
}

// StakeTableEvent is one observed L1 staking-contract event (registration,
// deregistration, delegation change, ...). The concrete event payload is
// opaque here: the L1 bridge component (external collaborator, spec.md §1)
// defines and decodes it; this module only durably logs and replays it.
type StakeTableEvent struct {
	Kind    string
	Payload []byte
}

// StakeTableEventLog is the single persisted row capturing all observed L1
// stake events up to a given L1 block.
type StakeTableEventLog struct {
	L1Block uint64
	Events  []struct {
		Key   EventKey
		Event StakeTableEvent
	}
}
