package postgresql

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/hris-retropay/internal/domain/outbox"
	"github.com/cmlabs-hris/hris-retropay/internal/pkg/database"
)

type outboxRepositoryImpl struct {
	db *database.DB
}

func NewOutboxRepository(db *database.DB) outbox.OutboxRepository {
	return &outboxRepositoryImpl{db: db}
}

// Create implements outbox.OutboxRepository.
func (r *outboxRepositoryImpl) Create(ctx context.Context, event outbox.Event) error {
	if err := event.Validate(); err != nil {
		return err
	}

	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO outbox_events (
			id, company_id, aggregate_type, aggregate_id, event_type, topic, payload, status,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`

	_, err := q.Exec(ctx, query,
		event.ID, event.CompanyID, event.AggregateType, event.AggregateID,
		event.EventType, event.Topic, event.Payload, event.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}

	return nil
}

// ListPending implements outbox.OutboxRepository.
// An event is withheld while an older event of its aggregate is still unsent.
func (r *outboxRepositoryImpl) ListPending(ctx context.Context, limit int) ([]outbox.Event, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT e.id, e.company_id, e.aggregate_type, e.aggregate_id, e.event_type, e.topic, e.payload, e.status,
			e.retry_count, e.last_error, e.next_retry_at, e.processed_at, e.created_at, e.updated_at
		FROM outbox_events e
		WHERE e.status IN ($1, $2)
			AND (e.next_retry_at IS NULL OR e.next_retry_at <= NOW())
			AND NOT EXISTS (
				SELECT 1 FROM outbox_events prev
				WHERE prev.aggregate_id = e.aggregate_id
					AND prev.status IN ($1, $2)
					AND (prev.created_at, prev.id) < (e.created_at, e.id)
			)
		ORDER BY e.created_at ASC, e.id ASC
		LIMIT $3
	`

	rows, err := q.Query(ctx, query, outbox.StatusPending, outbox.StatusFailed, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending outbox events: %w", err)
	}
	defer rows.Close()

	events := make([]outbox.Event, 0, limit)
	for rows.Next() {
		var e outbox.Event
		if err := rows.Scan(
			&e.ID, &e.CompanyID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Topic, &e.Payload, &e.Status,
			&e.RetryCount, &e.LastError, &e.NextRetryAt, &e.ProcessedAt, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outbox events: %w", err)
	}

	return events, nil
}

// MarkSent implements outbox.OutboxRepository.
func (r *outboxRepositoryImpl) MarkSent(ctx context.Context, id string) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE outbox_events
		SET status = $2, processed_at = NOW(), last_error = NULL, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := q.Exec(ctx, query, id, outbox.StatusSent)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return outbox.ErrEventNotFound
	}

	return nil
}

// MarkFailed implements outbox.OutboxRepository.
// Retries back off linearly, 15 seconds per attempt, capped at 10 attempts' worth.
func (r *outboxRepositoryImpl) MarkFailed(ctx context.Context, id string, reason string) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE outbox_events
		SET status = $2,
			retry_count = retry_count + 1,
			last_error = LEFT($3, $4),
			next_retry_at = NOW() + (LEAST(retry_count + 1, 10) * INTERVAL '15 seconds'),
			updated_at = NOW()
		WHERE id = $1
	`

	tag, err := q.Exec(ctx, query, id, outbox.StatusFailed, reason, outbox.MaxErrorLength)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return outbox.ErrEventNotFound
	}

	return nil
}
