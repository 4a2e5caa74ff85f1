package types

// Leaf is a committed block plus metadata: the unit of decided history.
// A leaf may be stored without its payload (see UnfillBlockPayload) since
// the payload is reconstructible from the DA proposal at the same view.
type Leaf struct {
	View       View
	Epoch      Epoch
	Header     BlockHeader
	JustifyQC  QuorumCertificate
	payload    *Payload
	payloadSet bool
}

// LeafV1 is the legacy (pre-epoch) leaf layout: identical to Leaf except it
// carries no epoch field. Kept only as the migration source type.
type LeafV1 struct {
	View      View
	Header    BlockHeader
	JustifyQC QuorumCertificateV1
	payload   *Payload
}

// ToV2 converts a legacy leaf to the v2 layout, defaulting the epoch field
// to none (epoch 0 is used as the "no epoch" sentinel for pre-epoch chains,
// matching the Rust source's Option<Epoch>::None default).
func (l LeafV1) ToV2() Leaf {
	v2 := Leaf{
		View:      l.View,
		Epoch:     0,
		Header:    l.Header,
		JustifyQC: l.JustifyQC.ToV2(),
	}
	if l.payload != nil {
		v2.payload = l.payload
		v2.payloadSet = true
	}
	return v2
}

// FillBlockPayload attaches a reconstructed payload to the leaf, e.g. when
// rebuilding a LeafInfo from a DA proposal at decide time.
func (l *Leaf) FillBlockPayload(p Payload) {
	l.payload = &p
	l.payloadSet = true
}

// UnfillBlockPayload detaches the leaf's payload, so it isn't redundantly
// persisted alongside the DA proposal that already carries it (spec.md
// §4.C append_decided_leaves).
func (l *Leaf) UnfillBlockPayload() {
	l.payload = nil
	l.payloadSet = false
}

// Payload returns the leaf's embedded payload, if any.
func (l *Leaf) Payload() (Payload, bool) {
	if l.payload == nil {
		return Payload{}, false
	}
	return *l.payload, true
}

// BlockHeight is the leaf's block height, used to detect gaps in a decided
// chain (spec.md §4.D step 3).
func (l *Leaf) BlockHeight() uint64 {
	return l.Header.BlockNumber
}

// Hash returns the leaf's stable commitment (invariant §3-7 of the original
// spec: quorum_proposals.leaf_hash must match this value).
func (l *Leaf) Hash() Commitment {
	return NewRawCommitmentBuilder("LEAF").
		Uint64Field("view", uint64(l.View)).
		Uint64Field("epoch", uint64(l.Epoch)).
		Field("block_header", l.Header.Commit()).
		Field("justify_qc", l.JustifyQC.LeafCommit).
		Finalize()
}

// LeafInfo pairs a leaf with the artifacts a Decide event attaches to it:
// the VID share (if available) and the finalized state cert (if any).
type LeafInfo struct {
	Leaf      Leaf
	VIDShare  *VIDShareData
	StateCert *LightClientStateUpdateCertificate
}
