package types

// NamespaceTable records which byte ranges of an encoded payload belong to
// which rollup namespace; opaque beyond what the codec needs to round-trip
// it, since the actual transaction parsing is handled by the VM layer
// (external collaborator, spec.md §1).
type NamespaceTable []byte

// Payload is a reconstructed block payload: the encoded transactions plus
// the namespace table needed to split them back out by namespace.
type Payload struct {
	EncodedTransactions Bytes
	Metadata            NamespaceTable
}

// EmptyPayload is the well-known payload for the genesis view, used when
// reconstructing the genesis leaf's payload at decide time (spec.md §4.D
// step 6) since there is no DA proposal for view 0.
func EmptyPayload() Payload {
	return Payload{EncodedTransactions: Bytes{}, Metadata: NamespaceTable{}}
}

// PayloadFromBytes reconstructs a Payload from a DA proposal's encoded
// transactions and metadata.
func PayloadFromBytes(encoded Bytes, metadata NamespaceTable) Payload {
	return Payload{EncodedTransactions: encoded, Metadata: metadata}
}

// Commit returns the payload's commitment, matched against a header's
// TransactionsRoot.Root per invariant §3-1 of the original spec.
func (p Payload) Commit() Commitment {
	return NewRawCommitmentBuilder("PAYLOAD").
		VarSizeField("encoded_transactions", p.EncodedTransactions).
		VarSizeField("metadata", p.Metadata).
		Finalize()
}
