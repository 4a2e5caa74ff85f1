package membership

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Himess/espresso-network/internal/metrics"
	"github.com/Himess/espresso-network/pkg/consensus/types"
)

// DRBWorkers is the default size of the DRB compute worker pool.
const DRBWorkers = 4

// RecentStakeTablesLimit bounds how many epochs the coordinator remembers
// as "confirmed present" before re-querying the Membership (spec.md §3
// lifecycle).
const RecentStakeTablesLimit = 100

// StorageAddDRBResultFunc optionally persists a DRB result computed during
// catchup. Failures are logged and otherwise ignored (spec.md §4.G step 8).
type StorageAddDRBResultFunc func(ctx context.Context, epoch types.Epoch, drb types.DrbResult) error

// Coordinator is the epoch membership coordinator (component G). It
// guarantees at-most-one in-flight catchup per epoch and recursively
// (iteratively, internally) fills missing ancestor epochs.
type Coordinator struct {
	membership  Membership
	epochHeight uint64
	drbPool     *drbWorkerPool
	onDRBResult StorageAddDRBResultFunc

	log     log.Logger
	metrics *metrics.Metrics

	// catchupMu guards inFlight, the synchronous "is epoch e currently
	// being filled" check that membership_for_epoch/stake_table_for_epoch
	// need without blocking.
	catchupMu sync.Mutex
	inFlight  map[types.Epoch]struct{}
	sf        singleflight.Group

	// writeMu serializes the brief, exclusive membership mutations
	// (add_epoch_root, add_drb_result); Has* queries need no lock since
	// the Membership implementation is expected to allow concurrent reads.
	writeMu sync.Mutex

	// confirmedPresent short-circuits repeated HasRandomizedStakeTable
	// calls for epochs already known to be caught up.
	confirmedPresent *lru.Cache[types.Epoch, struct{}]
}

// New constructs a Coordinator. drbCompute runs on a dedicated worker
// pool whenever a DRB result can't be fetched directly, never on the
// caller's goroutine (spec.md §4.G step 7).
func New(m Membership, epochHeight uint64, drbCompute DRBCompute, onDRBResult StorageAddDRBResultFunc, logger log.Logger, met *metrics.Metrics) *Coordinator {
	if logger == nil {
		logger = log.Root()
	}
	cache, _ := lru.New[types.Epoch, struct{}](RecentStakeTablesLimit)
	return &Coordinator{
		membership:       m,
		epochHeight:      epochHeight,
		drbPool:          newDRBWorkerPool(DRBWorkers, drbCompute),
		onDRBResult:      onDRBResult,
		log:              logger,
		metrics:          met,
		inFlight:         make(map[types.Epoch]struct{}),
		confirmedPresent: cache,
	}
}

// MembershipForEpoch resolves the randomized-stake-table membership for
// maybeEpoch. A nil epoch always resolves immediately (spec.md §4.G).
func (c *Coordinator) MembershipForEpoch(ctx context.Context, maybeEpoch *types.Epoch) (*EpochMembership, error) {
	if maybeEpoch == nil {
		return &EpochMembership{coord: c}, nil
	}
	e := *maybeEpoch
	if c.isRandomizedPresent(e) {
		return &EpochMembership{coord: c, epoch: &e}, nil
	}

	c.catchupMu.Lock()
	_, inProgress := c.inFlight[e]
	if inProgress {
		c.catchupMu.Unlock()
		return nil, fmt.Errorf("membership: catchup already in progress for epoch %d", e)
	}
	c.inFlight[e] = struct{}{}
	c.catchupMu.Unlock()

	c.spawnCatchup(ctx, e)
	return nil, fmt.Errorf("membership: starting catchup for epoch %d", e)
}

// StakeTableForEpoch is identical to MembershipForEpoch but gated on the
// (non-randomized) stake table's presence.
func (c *Coordinator) StakeTableForEpoch(ctx context.Context, maybeEpoch *types.Epoch) (*EpochMembership, error) {
	if maybeEpoch == nil {
		return &EpochMembership{coord: c}, nil
	}
	e := *maybeEpoch
	if c.membership.HasStakeTable(e) {
		return &EpochMembership{coord: c, epoch: &e}, nil
	}

	c.catchupMu.Lock()
	_, inProgress := c.inFlight[e]
	if inProgress {
		c.catchupMu.Unlock()
		return nil, fmt.Errorf("membership: catchup already in progress for epoch %d", e)
	}
	c.inFlight[e] = struct{}{}
	c.catchupMu.Unlock()

	c.spawnCatchup(ctx, e)
	return nil, fmt.Errorf("membership: starting catchup for epoch %d", e)
}

// spawnCatchup registers the singleflight call for e (dispatching the
// actual work on its own goroutine) and, separately, a small goroutine
// that clears the inFlight marker once that work settles, whether or not
// anyone ever calls WaitForCatchup to observe the result.
func (c *Coordinator) spawnCatchup(ctx context.Context, e types.Epoch) {
	ch := c.sf.DoChan(catchupKey(e), func() (interface{}, error) {
		return nil, c.runCatchup(ctx, e)
	})
	go func() {
		<-ch
		c.catchupMu.Lock()
		delete(c.inFlight, e)
		c.catchupMu.Unlock()
	}()
}

// WaitForCatchup blocks until epoch e's membership is present, joining an
// in-flight catchup if one exists, or running one inline otherwise
// (spec.md §4.G "wait_for_catchup").
func (c *Coordinator) WaitForCatchup(ctx context.Context, e types.Epoch) (*EpochMembership, error) {
	if c.isRandomizedPresent(e) {
		return &EpochMembership{coord: c, epoch: &e}, nil
	}

	res := <-c.sf.DoChan(catchupKey(e), func() (interface{}, error) {
		return nil, c.runCatchup(ctx, e)
	})
	if res.Err == nil {
		return &EpochMembership{coord: c, epoch: &e}, nil
	}

	// The shared execution failed; fall back to running catchup inline,
	// bypassing dedup, as a fresh attempt (spec.md §4.G "wait_for_catchup").
	if err := c.runCatchup(ctx, e); err != nil {
		return nil, err
	}
	return &EpochMembership{coord: c, epoch: &e}, nil
}

func catchupKey(e types.Epoch) string {
	return fmt.Sprintf("epoch-catchup:%d", e)
}

// isRandomizedPresent checks the confirmed-present cache before falling
// back to the Membership; a positive result from either is cached, since
// "has a randomized stake table" never becomes false again for an epoch.
func (c *Coordinator) isRandomizedPresent(e types.Epoch) bool {
	if _, ok := c.confirmedPresent.Get(e); ok {
		return true
	}
	if c.membership.HasRandomizedStakeTable(e) {
		c.confirmedPresent.Add(e, struct{}{})
		return true
	}
	return false
}

// runCatchup implements the catchup algorithm for epoch e (spec.md §4.G
// steps 1-10). Ancestor epochs are resolved by an explicit work-list
// rather than recursion, bounding stack usage (spec.md §9).
func (c *Coordinator) runCatchup(ctx context.Context, target types.Epoch) error {
	start := time.Now()
	correlationID := uuid.NewString()
	c.log.Info("starting epoch catchup", "epoch", target, "correlation_id", correlationID)
	err := c.ensureEpoch(ctx, target, correlationID)
	if c.metrics != nil {
		outcome := metrics.OutcomeSuccess
		if err != nil {
			outcome = metrics.OutcomeFailure
		}
		c.metrics.CatchupDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}
	return err
}

// ensureEpoch walks the dependency chain for target (root = e-2, and
// root+1 for the DRB) using an explicit stack, filling each epoch once
// its own prerequisites are satisfied.
func (c *Coordinator) ensureEpoch(ctx context.Context, target types.Epoch, correlationID string) error {
	stack := []types.Epoch{target}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		if c.isRandomizedPresent(e) {
			stack = stack[:len(stack)-1]
			continue
		}
		if !e.Validate() {
			return fmt.Errorf("membership: initial stake table is missing for epoch %d", e)
		}
		root := e - 2
		if !c.isRandomizedPresent(root) {
			stack = append(stack, root)
			continue
		}
		drbEpoch := root + 1
		if !c.isRandomizedPresent(drbEpoch) {
			stack = append(stack, drbEpoch)
			continue
		}
		if c.metrics != nil {
			c.metrics.CatchupInFlight.Inc()
		}
		err := c.fillEpoch(ctx, e, root, drbEpoch, correlationID)
		if c.metrics != nil {
			c.metrics.CatchupInFlight.Dec()
		}
		if err != nil {
			c.log.Warn("epoch catchup failed", "epoch", e, "correlation_id", correlationID, "err", err)
			return err
		}
		stack = stack[:len(stack)-1]
	}
	return nil
}

// fillEpoch executes one catchup step: fetch (or derive) the root header
// and DRB result for e, then apply both under the membership write lock.
func (c *Coordinator) fillEpoch(ctx context.Context, e, root, drbEpoch types.Epoch, correlationID string) error {
	rootBlock := types.RootBlockInEpoch(root, c.epochHeight)
	rootLeaf, err := c.membership.GetEpochRoot(ctx, rootBlock, root)
	if err != nil {
		return fmt.Errorf("membership: fetch root block for epoch %d: %w", e, err)
	}

	c.writeMu.Lock()
	updater := c.membership.AddEpochRoot(e, rootLeaf.Header)
	if updater != nil {
		updater.Apply()
	}
	c.writeMu.Unlock()

	transitionBlock := types.TransitionBlockForEpoch(drbEpoch, c.epochHeight)
	drb, err := c.membership.GetEpochDRB(ctx, transitionBlock, drbEpoch)
	if err != nil {
		drb, err = c.computeDRB(ctx, rootLeaf)
		if err != nil {
			return fmt.Errorf("membership: compute drb for epoch %d: %w", e, err)
		}
	}

	if c.onDRBResult != nil {
		if err := c.onDRBResult(ctx, e, drb); err != nil {
			c.log.Warn("failed to persist drb result during catchup", "epoch", e, "correlation_id", correlationID, "err", err)
		}
	}

	c.writeMu.Lock()
	c.membership.AddDRBResult(e, drb)
	c.writeMu.Unlock()

	return nil
}

// computeDRB derives a fixed seed from rootLeaf's justify-QC signatures
// and submits it to the DRB worker pool, so the caller's async path is
// never blocked by the CPU-bound computation (spec.md §4.G step 7, §9).
func (c *Coordinator) computeDRB(ctx context.Context, rootLeaf types.Leaf) (types.DrbResult, error) {
	var seed [32]byte
	copy(seed[:], rootLeaf.JustifyQC.Signatures)

	select {
	case drb := <-c.drbPool.Submit(seed):
		return drb, nil
	case <-ctx.Done():
		return types.DrbResult{}, ctx.Err()
	}
}
