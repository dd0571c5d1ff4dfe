package outbox

import (
	"context"
)

// OutboxRepository - interface for outbox_events table
type OutboxRepository interface {
	Create(ctx context.Context, event Event) error
	// ListPending returns pending events and failed events whose retry time has passed, oldest first.
	ListPending(ctx context.Context, limit int) ([]Event, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, reason string) error
}
