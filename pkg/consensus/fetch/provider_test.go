package fetch_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Himess/espresso-network/pkg/consensus/fetch"
	"github.com/Himess/espresso-network/pkg/consensus/persistence"
	"github.com/Himess/espresso-network/pkg/consensus/storage"
	"github.com/Himess/espresso-network/pkg/consensus/types"
)

func newTestStore(t *testing.T) *persistence.Store {
	t.Helper()
	dir := t.TempDir()
	uri := "sqlite://" + filepath.Join(dir, "test.db")
	engine, err := storage.Open(context.Background(), uri, 1, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	return persistence.New(engine, nil, nil)
}

func TestProviderVidCommonRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	commit := types.Commitment{1, 2, 3}
	share := types.VIDShareData{View: 1, PayloadCommit: commit, Common: []byte("common-data")}
	require.NoError(t, store.AppendVID2(ctx, share))

	p := fetch.New(store, nil, 1000, 1000, nil)
	common, found := p.VidCommon(ctx, commit)
	require.True(t, found)
	require.Equal(t, []byte("common-data"), []byte(common))
}

func TestProviderVidCommonNotFoundIsNonFatal(t *testing.T) {
	store := newTestStore(t)
	p := fetch.New(store, nil, 1000, 1000, nil)

	_, found := p.VidCommon(context.Background(), types.Commitment{9, 9, 9})
	require.False(t, found)
}

func TestProviderPayloadRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	commit := types.Commitment{4, 5, 6}
	da := types.DAProposal{View: 2, EncodedTxns: []byte("txns"), Metadata: []byte("meta")}
	require.NoError(t, store.AppendDA2(ctx, da, commit))

	p := fetch.New(store, nil, 1000, 1000, nil)
	payload, found := p.Payload(ctx, commit)
	require.True(t, found)
	require.Equal(t, types.Bytes("txns"), payload.EncodedTransactions)
}

func TestProviderLeafRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	proposal := types.QuorumProposal{View: 5, BlockHeader: types.BlockHeader{BlockNumber: 5}, JustifyQC: types.QuorumCertificate{View: 4}}
	require.NoError(t, store.AppendQuorumProposal2(ctx, proposal))

	leafHash := proposal.LeafHash()
	nextProposal := types.QuorumProposal{
		View:        6,
		BlockHeader: types.BlockHeader{BlockNumber: 6},
		JustifyQC:   types.QuorumCertificate{View: 5, LeafCommit: leafHash},
	}
	require.NoError(t, store.AppendQuorumProposal2(ctx, nextProposal))

	p := fetch.New(store, nil, 1000, 1000, nil)
	leaf, found := p.Leaf(ctx, leafHash)
	require.True(t, found)
	require.Equal(t, types.View(5), leaf.View)
	require.Equal(t, types.View(5), leaf.JustifyQC.View)
}
