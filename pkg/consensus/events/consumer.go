// Package events defines the sink the persistence store notifies when a
// leaf chain is finalized.
package events

import (
	"context"

	"github.com/Himess/espresso-network/pkg/consensus/types"
)

// Consumer is the external collaborator invoked once per Decide event
// (spec.md §6 "Event consumer interface"). Implementations must be
// idempotent: the decide-event generator may, after a crash between
// emission and marker update, invoke HandleEvent again with an identical
// payload (invariant §3-3).
type Consumer interface {
	HandleEvent(ctx context.Context, event types.Event) error
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc func(ctx context.Context, event types.Event) error

func (f ConsumerFunc) HandleEvent(ctx context.Context, event types.Event) error {
	return f(ctx, event)
}
