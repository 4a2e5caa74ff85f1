package types

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func sampleHeader() BlockHeader {
	return BlockHeader{
		Timestamp: 100,
		L1Head:    42,
		L1Finalized: &L1BlockInfo{
			Number:    7,
			Timestamp: *big.NewInt(12345),
			Hash:      common.HexToHash("0xdeadbeef"),
		},
		TransactionsRoot: NmtRoot{Root: Bytes{1, 2, 3}},
		BlockNumber:      99,
		PayloadCommit:    Commitment{9, 9, 9},
	}
}

func TestBlockHeaderRoundTrip(t *testing.T) {
	h := sampleHeader()
	data, err := h.MarshalBinary()
	require.NoError(t, err)

	var got BlockHeader
	require.NoError(t, got.UnmarshalBinary(data))
	require.Equal(t, h, got)
}

func TestQuorumCertificateRoundTrip(t *testing.T) {
	qc := QuorumCertificate{View: 5, LeafCommit: Commitment{1, 2, 3}, Signatures: []byte("sig")}
	data, err := qc.MarshalBinary()
	require.NoError(t, err)

	var got QuorumCertificate
	require.NoError(t, got.UnmarshalBinary(data))
	require.Equal(t, qc, got)
}

func TestLeafRoundTripWithPayload(t *testing.T) {
	leaf := Leaf{
		View:      3,
		Epoch:     1,
		Header:    sampleHeader(),
		JustifyQC: QuorumCertificate{View: 2, LeafCommit: Commitment{4, 5, 6}, Signatures: []byte("x")},
	}
	leaf.FillBlockPayload(Payload{EncodedTransactions: Bytes{10, 20}, Metadata: NamespaceTable{1}})

	data, err := leaf.MarshalBinary()
	require.NoError(t, err)

	var got Leaf
	require.NoError(t, got.UnmarshalBinary(data))

	p1, ok1 := leaf.Payload()
	p2, ok2 := got.Payload()
	require.True(t, ok1)
	require.True(t, ok2)
	require.Equal(t, p1, p2)
	require.Equal(t, leaf.View, got.View)
	require.Equal(t, leaf.Epoch, got.Epoch)
	require.Equal(t, leaf.JustifyQC, got.JustifyQC)
}

func TestLeafRoundTripWithoutPayload(t *testing.T) {
	leaf := Leaf{
		View:      3,
		Epoch:     1,
		Header:    sampleHeader(),
		JustifyQC: QuorumCertificate{View: 2, LeafCommit: Commitment{4, 5, 6}},
	}
	leaf.UnfillBlockPayload()

	data, err := leaf.MarshalBinary()
	require.NoError(t, err)

	var got Leaf
	require.NoError(t, got.UnmarshalBinary(data))
	_, ok := got.Payload()
	require.False(t, ok)
}

func TestLeafV1ToV2RoundTrip(t *testing.T) {
	v1 := LeafV1{
		View:      8,
		Header:    sampleHeader(),
		JustifyQC: QuorumCertificateV1{View: 7, LeafCommit: Commitment{1}, Signatures: []byte("sig")},
	}
	data, err := v1.MarshalBinary()
	require.NoError(t, err)

	var got LeafV1
	require.NoError(t, got.UnmarshalBinary(data))
	require.Equal(t, v1.View, got.View)
	require.Equal(t, v1.JustifyQC, got.JustifyQC)

	v2 := got.ToV2()
	require.Equal(t, Epoch(0), v2.Epoch)
}

func TestDAProposalRoundTrip(t *testing.T) {
	p := DAProposal{
		View:            11,
		Epoch:           2,
		EpochTransition: true,
		EncodedTxns:     Bytes{1, 2, 3, 4},
		Metadata:        NamespaceTable{5, 6},
		Signature:       []byte("sig"),
	}
	data, err := p.MarshalBinary()
	require.NoError(t, err)

	var got DAProposal
	require.NoError(t, got.UnmarshalBinary(data))
	require.Equal(t, p, got)
}

func TestDAProposalV1RoundTrip(t *testing.T) {
	p := DAProposalV1{View: 11, EncodedTxns: Bytes{1, 2}, Metadata: NamespaceTable{3}, Signature: []byte("s")}
	data, err := p.MarshalBinary()
	require.NoError(t, err)

	var got DAProposalV1
	require.NoError(t, got.UnmarshalBinary(data))
	require.Equal(t, p, got)

	v2 := got.ToV2()
	require.Equal(t, Epoch(0), v2.Epoch)
	require.False(t, v2.EpochTransition)
}

func TestVIDShareDataRoundTrip(t *testing.T) {
	v := VIDShareData{
		View:          4,
		PayloadCommit: Commitment{1, 1, 1},
		Recipient:     []byte("r"),
		Share:         []byte("s"),
		Common:        []byte("c"),
	}
	data, err := v.MarshalBinary()
	require.NoError(t, err)

	var got VIDShareData
	require.NoError(t, got.UnmarshalBinary(data))
	require.Equal(t, v, got)
}

func TestQuorumProposalRoundTrip(t *testing.T) {
	drb := DrbResult{1, 2, 3}
	sc := &LightClientStateUpdateCertificate{
		Epoch:               3,
		LightClientState:    LightClientState{ViewNumber: 1, BlockHeight: 2, ThresholdStake: []byte{1}},
		NextStakeTableState: LightClientState{ViewNumber: 2, BlockHeight: 3, ThresholdStake: []byte{2}},
		Signatures:          []byte("agg"),
	}
	p := QuorumProposal{
		View:               9,
		BlockHeader:        sampleHeader(),
		JustifyQC:          QuorumCertificate{View: 8, LeafCommit: Commitment{2}},
		UpgradeCertificate: []byte("upgrade"),
		ViewChangeEvidence: nil,
		NextDRBResult:      &drb,
		StateCert:          sc,
		Signature:          []byte("sig"),
	}
	data, err := p.MarshalBinary()
	require.NoError(t, err)

	var got QuorumProposal
	require.NoError(t, got.UnmarshalBinary(data))
	require.Equal(t, p.View, got.View)
	require.Equal(t, p.UpgradeCertificate, got.UpgradeCertificate)
	require.Nil(t, got.ViewChangeEvidence)
	require.Equal(t, *p.NextDRBResult, *got.NextDRBResult)
	require.Equal(t, *p.StateCert, *got.StateCert)
}

func TestLightClientStateUpdateCertificateRoundTrip(t *testing.T) {
	c := LightClientStateUpdateCertificate{
		Epoch:               5,
		LightClientState:    LightClientState{ViewNumber: 1, BlockHeight: 2, ThresholdStake: []byte{9, 9}},
		NextStakeTableState: LightClientState{ViewNumber: 3, BlockHeight: 4, ThresholdStake: []byte{8}},
		Signatures:          []byte("sig"),
	}
	data, err := c.MarshalBinary()
	require.NoError(t, err)

	var got LightClientStateUpdateCertificate
	require.NoError(t, got.UnmarshalBinary(data))
	require.Equal(t, c, got)
}

func TestStakeTableRoundTrip(t *testing.T) {
	st := StakeTable{
		Epoch: 4,
		Validators: []Validator{
			{Address: common.HexToAddress("0x1"), BLSPubKey: []byte("bls1"), SchnorrPubKey: []byte("sch1"), Stake: uint256.NewInt(100), IsDA: true},
			{Address: common.HexToAddress("0x2"), BLSPubKey: []byte("bls2"), SchnorrPubKey: []byte("sch2"), Stake: uint256.NewInt(0), IsDA: false},
		},
	}
	data, err := st.MarshalBinary()
	require.NoError(t, err)

	var got StakeTable
	require.NoError(t, got.UnmarshalBinary(data))
	require.Equal(t, st.Epoch, got.Epoch)
	require.Len(t, got.Validators, 2)
	for i := range st.Validators {
		require.Equal(t, st.Validators[i].Address, got.Validators[i].Address)
		require.Equal(t, st.Validators[i].BLSPubKey, got.Validators[i].BLSPubKey)
		require.Equal(t, st.Validators[i].SchnorrPubKey, got.Validators[i].SchnorrPubKey)
		require.True(t, st.Validators[i].Stake.Eq(got.Validators[i].Stake))
		require.Equal(t, st.Validators[i].IsDA, got.Validators[i].IsDA)
	}
}

func TestReaderRejectsTrailingBytes(t *testing.T) {
	qc := QuorumCertificate{View: 1}
	data, err := qc.MarshalBinary()
	require.NoError(t, err)

	var got QuorumCertificate
	err = got.UnmarshalBinary(append(data, 0xFF))
	require.Error(t, err)
}

func TestReaderRejectsShortBuffer(t *testing.T) {
	r := NewReader([]byte{1, 2, 3})
	r.ReadUint64()
	require.Error(t, r.Err())
}

func TestCompressBlobRoundTrip(t *testing.T) {
	cases := [][]byte{
		nil,
		{},
		[]byte("short"),
		make([]byte, 4096),
	}
	for _, c := range cases {
		compressed := CompressBlob(c)
		got, err := DecompressBlob(compressed)
		require.NoError(t, err)
		require.Equal(t, len(c), len(got))
	}
}
