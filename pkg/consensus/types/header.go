package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// NmtRoot is the root of the namespaced Merkle tree committing to a block's
// transactions, split by rollup namespace.
type NmtRoot struct {
	Root Bytes `json:"root"`
}

// Commit returns the NmtRoot's commitment.
func (r *NmtRoot) Commit() Commitment {
	return NewRawCommitmentBuilder("NMTROOT").
		VarSizeField("root", r.Root).
		Finalize()
}

// L1BlockInfo is the L1 block a header references for timestamp/finality
// purposes.
type L1BlockInfo struct {
	Number    uint64      `json:"number"`
	Timestamp big.Int     `json:"timestamp"`
	Hash      common.Hash `json:"hash"`
}

// Commit returns the L1BlockInfo's commitment.
func (i *L1BlockInfo) Commit() Commitment {
	return NewRawCommitmentBuilder("L1BLOCK").
		Uint64Field("number", i.Number).
		Uint256Field("timestamp", &i.Timestamp).
		FixedSizeBytes(i.Hash[:]).
		Finalize()
}

// BlockHeader is the header of a decided block: the unit stored inside a
// Leaf and the unit root-block information is fetched for during epoch
// catchup (spec.md §4.G step 4).
//
// Adapted from the teacher's op-service/espresso.Header and
// op-node/espresso.Header (merged into a single definition; this module has
// no reason to split header representations across an L1 and L2 node).
type BlockHeader struct {
	Timestamp        uint64       `json:"timestamp"`
	L1Head           uint64       `json:"l1_head"`
	L1Finalized      *L1BlockInfo `json:"l1_finalized,omitempty"`
	TransactionsRoot NmtRoot      `json:"transactions_root"`
	BlockNumber      uint64       `json:"block_number"`
	PayloadCommit    Commitment   `json:"payload_commitment"`
}

// Commit returns the header's commitment, used as the leaf's
// block-header-commitment field in the leaf hash.
func (h *BlockHeader) Commit() Commitment {
	var l1FinalizedComm *Commitment
	if h.L1Finalized != nil {
		c := h.L1Finalized.Commit()
		l1FinalizedComm = &c
	}
	return NewRawCommitmentBuilder("BLOCK").
		Uint64Field("timestamp", h.Timestamp).
		Uint64Field("l1_head", h.L1Head).
		OptionalField("l1_finalized", l1FinalizedComm).
		Field("transactions_root", h.TransactionsRoot.Commit()).
		Uint64Field("block_number", h.BlockNumber).
		Field("payload_commitment", h.PayloadCommit).
		Finalize()
}
