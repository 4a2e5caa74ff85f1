// Package membership implements the epoch membership coordinator: a
// dedup'd, recursive per-epoch catchup scheduler that populates stake
// tables and DRB results on demand (spec.md §4.G).
package membership

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Himess/espresso-network/pkg/consensus/types"
)

// Updater is returned by AddEpochRoot when the caller must apply a root
// header under the membership's write lock.
type Updater interface {
	Apply()
}

// UpdaterFunc adapts a function to Updater.
type UpdaterFunc func()

func (f UpdaterFunc) Apply() { f() }

// Membership is the external collaborator the coordinator drives:
// stake-table storage, committee/leader queries, and root-block/DRB
// fetch (spec.md §6 "Membership interface").
type Membership interface {
	HasStakeTable(epoch types.Epoch) bool
	HasRandomizedStakeTable(epoch types.Epoch) bool
	AddEpochRoot(epoch types.Epoch, header types.BlockHeader) Updater
	AddDRBResult(epoch types.Epoch, drb types.DrbResult)

	GetEpochRoot(ctx context.Context, blockHeight uint64, epoch types.Epoch) (types.Leaf, error)
	GetEpochDRB(ctx context.Context, blockHeight uint64, epoch types.Epoch) (types.DrbResult, error)

	Committee(view types.View, epoch types.Epoch) ([]common.Address, error)
	Leader(view types.View, epoch types.Epoch) (common.Address, error)
}

// DRBCompute is the CPU-bound distributed-randomness-beacon function,
// offloaded to a blocking worker by the coordinator rather than called
// from the async path (spec.md §4.G step 7, §9).
type DRBCompute func(seed [32]byte) types.DrbResult
