package membership_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	. "github.com/onsi/gomega"

	"github.com/Himess/espresso-network/pkg/consensus/membership"
	"github.com/Himess/espresso-network/pkg/consensus/types"
)

// fakeMembership is an in-memory Membership used to exercise the
// coordinator without a real stake-table implementation.
type fakeMembership struct {
	mu          sync.Mutex
	roots       map[types.Epoch]types.BlockHeader
	drbs        map[types.Epoch]types.DrbResult
	rootCalls   int32
	drbCalls    int32
	rootDelay   time.Duration
	failDRBOnce bool
}

func newFakeMembership() *fakeMembership {
	return &fakeMembership{
		roots: map[types.Epoch]types.BlockHeader{0: {}, 1: {}},
		drbs:  map[types.Epoch]types.DrbResult{0: {}, 1: {1}},
	}
}

func (f *fakeMembership) HasStakeTable(e types.Epoch) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.roots[e]
	return ok
}

func (f *fakeMembership) HasRandomizedStakeTable(e types.Epoch) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.drbs[e]
	return ok
}

func (f *fakeMembership) AddEpochRoot(e types.Epoch, header types.BlockHeader) membership.Updater {
	return membership.UpdaterFunc(func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.roots[e] = header
	})
}

func (f *fakeMembership) AddDRBResult(e types.Epoch, drb types.DrbResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drbs[e] = drb
}

func (f *fakeMembership) GetEpochRoot(ctx context.Context, blockHeight uint64, epoch types.Epoch) (types.Leaf, error) {
	atomic.AddInt32(&f.rootCalls, 1)
	if f.rootDelay > 0 {
		time.Sleep(f.rootDelay)
	}
	return types.Leaf{View: types.View(blockHeight), Header: types.BlockHeader{BlockNumber: blockHeight}}, nil
}

func (f *fakeMembership) GetEpochDRB(ctx context.Context, blockHeight uint64, epoch types.Epoch) (types.DrbResult, error) {
	atomic.AddInt32(&f.drbCalls, 1)
	if f.failDRBOnce {
		f.failDRBOnce = false
		return types.DrbResult{}, fmt.Errorf("drb not available yet")
	}
	var d types.DrbResult
	d[0] = byte(epoch)
	return d, nil
}

func (f *fakeMembership) Committee(view types.View, epoch types.Epoch) ([]common.Address, error) {
	return nil, nil
}

func (f *fakeMembership) Leader(view types.View, epoch types.Epoch) (common.Address, error) {
	return common.Address{}, nil
}

func TestCatchupRejectsEpochZeroAndOne(t *testing.T) {
	g := NewWithT(t)
	fm := newFakeMembership()
	// Catchup only runs for epochs the membership lacks, so drop the genesis
	// entries to send epochs 0 and 1 down the catchup path.
	delete(fm.drbs, 0)
	delete(fm.drbs, 1)
	coord := membership.New(fm, 100, dummyDRB, nil, nil, nil)

	_, err := coord.WaitForCatchup(context.Background(), 0)
	g.Expect(err).To(HaveOccurred())
	_, err = coord.WaitForCatchup(context.Background(), 1)
	g.Expect(err).To(HaveOccurred())
}

func TestCatchupRecursesThroughAncestors(t *testing.T) {
	g := NewWithT(t)
	fm := newFakeMembership()
	coord := membership.New(fm, 100, dummyDRB, nil, nil, nil)

	target := types.Epoch(6)
	_, err := coord.WaitForCatchup(context.Background(), target)
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(fm.HasRandomizedStakeTable(6)).To(BeTrue())
	g.Expect(fm.HasRandomizedStakeTable(4)).To(BeTrue())
	g.Expect(fm.HasRandomizedStakeTable(2)).To(BeTrue())
}

func TestCatchupConcurrentCallsDedup(t *testing.T) {
	g := NewWithT(t)
	fm := newFakeMembership()
	fm.rootDelay = 50 * time.Millisecond
	coord := membership.New(fm, 100, dummyDRB, nil, nil, nil)

	e := types.Epoch(2)
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = coord.WaitForCatchup(context.Background(), e)
		}()
	}
	wg.Wait()

	g.Expect(fm.HasRandomizedStakeTable(e)).To(BeTrue())
	g.Expect(atomic.LoadInt32(&fm.rootCalls)).To(BeNumerically("==", 1))
}

func TestCatchupAlreadyInProgressReturnsError(t *testing.T) {
	g := NewWithT(t)
	fm := newFakeMembership()
	fm.rootDelay = 100 * time.Millisecond
	coord := membership.New(fm, 100, dummyDRB, nil, nil, nil)

	e := types.Epoch(2)
	_, err := coord.MembershipForEpoch(context.Background(), &e)
	g.Expect(err).To(HaveOccurred())

	g.Eventually(func() bool {
		_, err := coord.MembershipForEpoch(context.Background(), &e)
		return err == nil
	}, time.Second, 5*time.Millisecond).Should(BeTrue())
}

func TestCatchupFallsBackWhenDRBUnavailable(t *testing.T) {
	g := NewWithT(t)
	fm := newFakeMembership()
	fm.failDRBOnce = true
	var computed int32
	compute := func(seed [32]byte) types.DrbResult {
		atomic.AddInt32(&computed, 1)
		return types.DrbResult{9}
	}
	coord := membership.New(fm, 100, compute, nil, nil, nil)

	_, err := coord.WaitForCatchup(context.Background(), 2)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(atomic.LoadInt32(&computed)).To(BeNumerically("==", 1))
}

func dummyDRB(seed [32]byte) types.DrbResult {
	var d types.DrbResult
	copy(d[:], seed[:])
	return d
}
