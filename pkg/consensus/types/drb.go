package types

// DrbResult is the 32-byte distributed-randomness-beacon output associated
// with an epoch.
type DrbResult [32]byte

// EpochInfo is one row of "most recent epochs with a DRB result", returned
// by load_start_epoch_info (spec.md §4.C, §9 Open Question: rows with no
// DRB result are silently dropped, preserved as-is — see DESIGN.md).
type EpochInfo struct {
	Epoch       Epoch
	DrbResult   DrbResult
	BlockHeader *BlockHeader
}
