package types

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRawCommitmentBuilderDeterministic(t *testing.T) {
	build := func() Commitment {
		return NewRawCommitmentBuilder("TEST").
			Uint64Field("a", 42).
			VarSizeField("b", []byte("hello")).
			Finalize()
	}
	require.Equal(t, build(), build())
}

func TestRawCommitmentBuilderDomainSeparation(t *testing.T) {
	a := NewRawCommitmentBuilder("TYPE_A").Uint64Field("x", 1).Finalize()
	b := NewRawCommitmentBuilder("TYPE_B").Uint64Field("x", 1).Finalize()
	require.NotEqual(t, a, b)
}

func TestRawCommitmentBuilderVarSizeLengthPrefix(t *testing.T) {
	// Two different splits of the same concatenated bytes must not collide,
	// since VarSizeBytes commits to each field's length.
	a := NewRawCommitmentBuilder("T").VarSizeBytes([]byte("ab")).VarSizeBytes([]byte("c")).Finalize()
	b := NewRawCommitmentBuilder("T").VarSizeBytes([]byte("a")).VarSizeBytes([]byte("bc")).Finalize()
	require.NotEqual(t, a, b)
}

func TestRawCommitmentBuilderOptionalFieldPresenceMatters(t *testing.T) {
	some := NewRawCommitmentBuilder("T").OptionalField("f", &Commitment{1, 2, 3}).Finalize()
	none := NewRawCommitmentBuilder("T").OptionalField("f", nil).Finalize()
	require.NotEqual(t, some, none)
}

func TestUint256FieldDeterministic(t *testing.T) {
	n := big.NewInt(0x0102030405)
	c1 := NewRawCommitmentBuilder("T").Uint256Field("n", n).Finalize()
	c2 := NewRawCommitmentBuilder("T").Uint256Field("n", big.NewInt(0x0102030405)).Finalize()
	require.Equal(t, c1, c2)
}

func TestLeafHashStableAcrossRebuilds(t *testing.T) {
	leaf := Leaf{
		View:      1,
		Epoch:     0,
		Header:    sampleHeader(),
		JustifyQC: QuorumCertificate{View: 0, LeafCommit: Commitment{1}},
	}
	h1 := leaf.Hash()
	h2 := leaf.Hash()
	require.Equal(t, h1, h2)
}

func TestPayloadFromBytesCommitMatchesLiteral(t *testing.T) {
	p := Payload{EncodedTransactions: Bytes{1, 2, 3}, Metadata: NamespaceTable{4}}
	c1 := p.Commit()
	c2 := PayloadFromBytes(Bytes{1, 2, 3}, NamespaceTable{4}).Commit()
	require.Equal(t, c1, c2)
}
