package cron

import (
	"context"
	"log/slog"
	"time"
)

// OutboxRelay publishes a batch of pending outbox events.
type OutboxRelay interface {
	ProcessPending(ctx context.Context) (int, error)
}

type OutboxJobs struct {
	relay    OutboxRelay
	interval time.Duration
}

func NewOutboxJobs(relay OutboxRelay, interval time.Duration) *OutboxJobs {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &OutboxJobs{relay: relay, interval: interval}
}

func (j *OutboxJobs) RegisterJobs(scheduler *Scheduler) {
	scheduler.AddJob("relay_retro_pay_events", j.interval, j.RelayEvents)
}

func (j *OutboxJobs) RelayEvents(ctx context.Context) error {
	sent, err := j.relay.ProcessPending(ctx)
	if err != nil {
		return err
	}
	if sent > 0 {
		slog.Info("Cron: Relayed outbox events", "count", sent)
	}
	return nil
}
