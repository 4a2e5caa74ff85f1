package types

// VIDShareData is one recipient's erasure-coded share of a block's
// verifiable-information-dispersal (VID) payload, plus the common
// reconstruction data shared by all recipients.
type VIDShareData struct {
	View          View
	PayloadCommit Commitment
	Recipient     []byte // recipient public key, opaque
	Share         []byte // this recipient's erasure-coded share
	Common        []byte // VID common reconstruction data
}

// VIDCommon is the reconstruction-common portion of a VID share, served to
// peers by the fetch provider (spec.md §4.H).
type VIDCommon []byte
