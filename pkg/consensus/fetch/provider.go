package fetch

import (
	"context"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/time/rate"

	"github.com/Himess/espresso-network/pkg/consensus/persistence"
	"github.com/Himess/espresso-network/pkg/consensus/types"
)

// Provider serves the three content-addressed peer lookups backed by the
// persistence store. Every method is non-fatal: failures are logged and
// reported as "not found", never returned as an error to the caller
// (spec.md §4.H).
type Provider struct {
	store   *persistence.Store
	cache   *Cache
	limiter *rate.Limiter
	log     log.Logger
}

// New constructs a Provider. ratePerSecond/burst bound how often the
// persistence store is queried on a cache miss; a nil cache is replaced by
// an in-memory cache.
func New(store *persistence.Store, cache *Cache, ratePerSecond float64, burst int, logger log.Logger) *Provider {
	if logger == nil {
		logger = log.Root()
	}
	if cache == nil {
		cache = NewMemCache()
	}
	return &Provider{
		store:   store,
		cache:   cache,
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		log:     logger,
	}
}

// VidCommon returns the VID-common reconstruction data for the share
// dispersed with payload commitment commit.
func (p *Provider) VidCommon(ctx context.Context, commit types.Commitment) (types.VIDCommon, bool) {
	key := commit.String()
	if cached, ok := p.cache.get(ctx, "vid_common", key); ok {
		return types.VIDCommon(cached), true
	}
	if !p.limiter.Allow() {
		p.log.Warn("fetch: rate limited vid_common lookup", "commit", key)
		return nil, false
	}

	share, err := p.store.LoadVIDShareByPayloadHash(ctx, commit)
	if err != nil || share == nil {
		p.log.Info("fetch: vid_common not found", "commit", key, "err", err)
		return nil, false
	}
	p.cache.put(ctx, "vid_common", key, share.Common)
	return types.VIDCommon(share.Common), true
}

// Payload reconstructs the block payload dispersed with payload
// commitment commit, from the matching DA proposal.
func (p *Provider) Payload(ctx context.Context, commit types.Commitment) (types.Payload, bool) {
	if !p.limiter.Allow() {
		p.log.Warn("fetch: rate limited payload lookup", "commit", commit.String())
		return types.Payload{}, false
	}

	da, err := p.store.LoadDAProposalByPayloadHash(ctx, commit)
	if err != nil || da == nil {
		p.log.Info("fetch: payload not found", "commit", commit.String(), "err", err)
		return types.Payload{}, false
	}
	return types.PayloadFromBytes(da.EncodedTxns, da.Metadata), true
}

// Leaf reconstructs the leaf with the given hash from its quorum proposal
// and the QC that certifies it.
func (p *Provider) Leaf(ctx context.Context, leafHash types.Commitment) (types.Leaf, bool) {
	if !p.limiter.Allow() {
		p.log.Warn("fetch: rate limited leaf lookup", "leaf_hash", leafHash.String())
		return types.Leaf{}, false
	}

	proposal, err := p.store.LoadQuorumProposalByLeafHash(ctx, leafHash.String())
	if err != nil || proposal == nil {
		p.log.Info("fetch: leaf proposal not found", "leaf_hash", leafHash.String(), "err", err)
		return types.Leaf{}, false
	}
	qc, err := p.store.LoadQuorumCertificateByLeafHash(ctx, leafHash.String())
	if err != nil || qc == nil {
		p.log.Info("fetch: leaf qc not found", "leaf_hash", leafHash.String(), "err", err)
		return types.Leaf{}, false
	}

	return types.Leaf{
		View:      proposal.View,
		Header:    proposal.BlockHeader,
		JustifyQC: *qc,
	}, true
}
