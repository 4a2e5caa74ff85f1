package types

// QuorumCertificate (QC) is an aggregated signature certifying a leaf at a
// view. Signatures are an opaque blob: the cryptographic aggregation scheme
// is an external collaborator (spec.md §1) this module never inspects.
type QuorumCertificate struct {
	View       View
	LeafCommit Commitment
	Signatures []byte
}

// NextEpochQuorumCertificate is a QC guaranteed to be from the epoch after
// the one it lives in; stored and loaded as a distinct singleton so
// consensus can distinguish "the QC for this view" from "the QC that also
// proves the next epoch's committee agrees."
type NextEpochQuorumCertificate struct {
	QC QuorumCertificate
}

// QuorumCertificateV1 is the legacy (pre-epoch) QC layout: identical to
// QuorumCertificate except it carries no epoch-transition semantics. Kept
// only as the migration source type for Leaf1QC2 (spec.md §4.F).
type QuorumCertificateV1 struct {
	View       View
	LeafCommit Commitment
	Signatures []byte
}

// ToV2 converts a legacy QC to the v2 layout. The conversion is total: no
// QC1 value fails to convert.
func (qc QuorumCertificateV1) ToV2() QuorumCertificate {
	return QuorumCertificate{
		View:       qc.View,
		LeafCommit: qc.LeafCommit,
		Signatures: qc.Signatures,
	}
}
