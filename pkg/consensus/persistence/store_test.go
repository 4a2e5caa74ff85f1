package persistence_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Himess/espresso-network/pkg/consensus/events"
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

func testLeaf(view types.View, height uint64) types.Leaf {
	return types.Leaf{
		View:   view,
		Header: types.BlockHeader{BlockNumber: height},
	}
}

func TestAppendDecidedLeavesHappyPath(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	chain := []types.LeafInfo{
		{Leaf: testLeaf(10, 10)},
		{Leaf: testLeaf(11, 11)},
		{Leaf: testLeaf(12, 12)},
	}

	var received []types.Event
	consumer := events.ConsumerFunc(func(_ context.Context, e types.Event) error {
		received = append(received, e)
		return nil
	})

	require.NoError(t, store.AppendDecidedLeaves(ctx, 13, chain, consumer))
	require.Len(t, received, 1)
	require.Len(t, received[0].Decide.LeafChain, 3)
	require.Equal(t, types.View(12), received[0].Decide.LeafChain[0].Leaf.View)
	require.Equal(t, types.View(10), received[0].Decide.LeafChain[2].Leaf.View)

	anchor, _, err := store.LoadAnchorLeaf(ctx)
	require.NoError(t, err)
	require.Equal(t, types.View(12), anchor.View)
}

func TestAppendDecidedLeavesGap(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	chain := []types.LeafInfo{
		{Leaf: testLeaf(10, 10)},
		{Leaf: testLeaf(11, 11)},
		{Leaf: testLeaf(13, 13)}, // height 13 breaks the 10,11,12 chain
	}

	var received []types.Event
	consumer := events.ConsumerFunc(func(_ context.Context, e types.Event) error {
		received = append(received, e)
		return nil
	})

	require.NoError(t, store.AppendDecidedLeaves(ctx, 14, chain, consumer))
	require.Len(t, received, 1)
	require.Len(t, received[0].Decide.LeafChain, 2)
	require.Equal(t, types.View(11), received[0].Decide.LeafChain[0].Leaf.View)
}

func TestAppendDecidedLeavesConsumerFailureLeavesMarkerUnchanged(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	chain := []types.LeafInfo{{Leaf: testLeaf(10, 10)}, {Leaf: testLeaf(11, 11)}}
	failing := events.ConsumerFunc(func(_ context.Context, _ types.Event) error {
		return os.ErrInvalid
	})
	require.NoError(t, store.AppendDecidedLeaves(ctx, 12, chain, failing))

	var calls int
	succeeding := events.ConsumerFunc(func(_ context.Context, e types.Event) error {
		calls++
		require.Equal(t, types.View(11), e.ViewNumber)
		return nil
	})
	require.NoError(t, store.AppendDecidedLeaves(ctx, 12, nil, succeeding))
	require.Equal(t, 1, calls)
}

func TestRecordActionMaxMonotonic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordAction(ctx, 5, types.ActionPropose))
	require.NoError(t, store.RecordAction(ctx, 3, types.ActionVote))
	require.NoError(t, store.RecordAction(ctx, 9, types.ActionVote))
	require.NoError(t, store.RecordAction(ctx, 2, types.ActionTimeout)) // ignored

	v, err := store.LoadLatestActedView(ctx)
	require.NoError(t, err)
	require.Equal(t, types.View(9), *v)
}

func TestAppendQuorumProposalRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := types.QuorumProposal{View: 4, JustifyQC: types.QuorumCertificate{View: 3}}
	require.NoError(t, store.AppendQuorumProposal2(ctx, p))

	got, err := store.LoadQuorumProposal(ctx, 4)
	require.NoError(t, err)
	require.Equal(t, p.View, got.View)
}

func TestPruneRetainsWithinTargetRetention(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	chain := []types.LeafInfo{{Leaf: testLeaf(1, 1)}}
	consumer := events.ConsumerFunc(func(context.Context, types.Event) error { return nil })
	require.NoError(t, store.AppendDecidedLeaves(ctx, 2, chain, consumer))

	cfg := persistence.PruneConfig{TargetRetention: 1000, MinimumRetention: 100, TargetUsageBytes: 1 << 30}
	require.NoError(t, store.Prune(ctx, 3, cfg))

	anchor, _, err := store.LoadAnchorLeaf(ctx)
	require.NoError(t, err)
	require.NotNil(t, anchor)
}

func TestLoadStartEpochInfoSkipsMissingDRB(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddEpochRoot(ctx, 2, types.BlockHeader{BlockNumber: 1}))
	require.NoError(t, store.AddDRBResult(ctx, 3, types.DrbResult{1}))

	infos, err := store.LoadStartEpochInfo(ctx, 10)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, types.Epoch(3), infos[0].Epoch)
}
