package retropay

import (
	"context"
)

// RetroPayRepository - interface for retro_pays table
type RetroPayRepository interface {
	// CreateGroup inserts every entry; callers run it inside a transaction so a
	// failure leaves no partial group behind.
	CreateGroup(ctx context.Context, entries []RetroPayEntry) ([]RetroPayEntry, error)
	GetByID(ctx context.Context, id string, companyID string) (RetroPayEntry, error)
	List(ctx context.Context, companyID string, filter RetroPayFilter) ([]RetroPayEntry, error)
	ListByEmployee(ctx context.Context, employeeID string, companyID string) ([]RetroPayEntry, error)
	ListByGroupID(ctx context.Context, groupID string, companyID string) ([]RetroPayEntry, error)

	// TransitionStatus updates the entry only while its status is one of from.
	// A status mismatch returns the entry as currently stored together with
	// ErrStatusConflict.
	TransitionStatus(ctx context.Context, companyID, id string, from []Status, update StatusUpdate) (RetroPayEntry, error)
	TransitionGroupStatus(ctx context.Context, companyID, groupID string, from []Status, update StatusUpdate) ([]RetroPayEntry, error)
	TransitionPeriodStatus(ctx context.Context, companyID string, month, year int, from []Status, update StatusUpdate) ([]RetroPayEntry, error)

	GetStatusSummary(ctx context.Context, companyID string, year *int) ([]StatusSummary, error)
}
