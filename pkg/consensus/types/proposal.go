package types

// QuorumProposal is the signed proposal a leader broadcasts for a view: a
// block header, its justify-QC, and optional upgrade/view-change/DRB/state
// evidence.
type QuorumProposal struct {
	View               View
	BlockHeader        BlockHeader
	JustifyQC          QuorumCertificate
	UpgradeCertificate []byte // opaque, optional (nil if absent)
	ViewChangeEvidence []byte // opaque, optional (nil if absent)
	NextDRBResult      *DrbResult
	StateCert          *LightClientStateUpdateCertificate
	Signature          []byte
}

// LeafHash is the commitment the proposal's leaf would have; populated
// lazily at store startup for rows migrated before the leaf_hash column
// existed (spec.md §4.F).
func (p *QuorumProposal) LeafHash() Commitment {
	leaf := Leaf{
		View:      p.View,
		Header:    p.BlockHeader,
		JustifyQC: p.JustifyQC,
	}
	return leaf.Hash()
}

// DAProposal is a data-availability proposal: the encoded transactions for
// a view plus the namespace metadata needed to split them back out.
type DAProposal struct {
	View            View
	Epoch           Epoch
	EpochTransition bool
	EncodedTxns     Bytes
	Metadata        NamespaceTable
	Signature       []byte
}

// DAProposalV1 is the legacy (pre-epoch) DA proposal layout.
type DAProposalV1 struct {
	View        View
	EncodedTxns Bytes
	Metadata    NamespaceTable
	Signature   []byte
}

// ToV2 converts a legacy DA proposal to the v2 layout, defaulting the epoch
// field to none and epoch-transition to false.
func (p DAProposalV1) ToV2() DAProposal {
	return DAProposal{
		View:        p.View,
		Epoch:       0,
		EncodedTxns: p.EncodedTxns,
		Metadata:    p.Metadata,
		Signature:   p.Signature,
	}
}
