package kafka

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cmlabs-hris/hris-retropay/internal/domain/outbox"
)

const DefaultBatchSize = 50

type EventPublisher interface {
	Publish(ctx context.Context, event outbox.Event) error
}

// Relay moves pending outbox events to the broker.
type Relay struct {
	repo      outbox.OutboxRepository
	publisher EventPublisher
	batchSize int
}

func NewRelay(repo outbox.OutboxRepository, publisher EventPublisher, batchSize int) *Relay {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Relay{repo: repo, publisher: publisher, batchSize: batchSize}
}

// ProcessPending publishes one batch and returns how many events were sent.
// A publish failure marks that event for retry. Later events of the same
// aggregate stay pending so they are never published ahead of it.
func (r *Relay) ProcessPending(ctx context.Context) (int, error) {
	events, err := r.repo.ListPending(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending outbox events: %w", err)
	}

	if len(events) == 0 {
		return 0, nil
	}

	slog.Info("Processing pending outbox events", "count", len(events))

	sent := 0
	blocked := make(map[string]struct{})
	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		if _, ok := blocked[event.AggregateID]; ok {
			continue
		}

		if err := r.publisher.Publish(ctx, event); err != nil {
			slog.Error("Publish outbox event failed",
				"outbox_id", event.ID,
				"event_type", event.EventType,
				"topic", event.Topic,
				"retry_count", event.RetryCount,
				"error", err,
			)
			if markErr := r.repo.MarkFailed(ctx, event.ID, err.Error()); markErr != nil {
				slog.Error("Mark outbox failed failed", "outbox_id", event.ID, "error", markErr)
			}
			blocked[event.AggregateID] = struct{}{}
			continue
		}

		if err := r.repo.MarkSent(ctx, event.ID); err != nil {
			slog.Error("Mark outbox sent failed", "outbox_id", event.ID, "error", err)
			blocked[event.AggregateID] = struct{}{}
			continue
		}

		sent++
		slog.Info("Outbox event sent",
			"outbox_id", event.ID,
			"event_type", event.EventType,
			"topic", event.Topic,
		)
	}

	return sent, nil
}
