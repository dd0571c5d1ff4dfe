package retropay

import (
	"context"
)

type RetroPayService interface {
	Create(ctx context.Context, companyID, actorID string, req CreateRetroPayRequest) (CreateRetroPayResponse, error)

	// Lifecycle
	Approve(ctx context.Context, companyID, id, approverID string) (RetroPayEntryResponse, error)
	ApproveGroup(ctx context.Context, companyID, groupID, approverID string) (GroupActionResponse, error)
	MarkPaid(ctx context.Context, companyID, id, actorID string) (RetroPayEntryResponse, error)
	Cancel(ctx context.Context, companyID, id, actorID string, req CancelRetroPayRequest) (RetroPayEntryResponse, error)
	CancelGroup(ctx context.Context, companyID, groupID, actorID string, req CancelRetroPayRequest) (GroupActionResponse, error)
	PayPeriod(ctx context.Context, companyID, actorID string, req PayPeriodRequest) (GroupActionResponse, error)

	// Reads
	FindAll(ctx context.Context, companyID string, filter RetroPayFilter) ([]RetroPayEntryResponse, error)
	FindByID(ctx context.Context, companyID, id string) (RetroPayEntryResponse, error)
	FindByEmployee(ctx context.Context, companyID, employeeID string) ([]RetroPayEntryResponse, error)
	FindByGroup(ctx context.Context, companyID, groupID string) ([]RetroPayEntryResponse, error)
	GetStats(ctx context.Context, companyID string, year *int) (RetroPayStatsResponse, error)
}
