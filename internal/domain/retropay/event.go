package retropay

import (
	"time"

	"github.com/shopspring/decimal"
)

const AggregateType = "retro_pay"

// EventType enum
type EventType string

const (
	EventCreated   EventType = "retro_pay.created"
	EventApproved  EventType = "retro_pay.approved"
	EventPaid      EventType = "retro_pay.paid"
	EventCancelled EventType = "retro_pay.cancelled"
)

// LifecycleEvent - payload published for every state change
type LifecycleEvent struct {
	EventType    EventType       `json:"event_type"`
	CompanyID    string          `json:"company_id"`
	ActorID      string          `json:"actor_id"`
	EntryIDs     []string        `json:"entry_ids"`
	GroupID      *string         `json:"group_id,omitempty"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Reason       *string         `json:"reason,omitempty"`
	PaymentMonth *int            `json:"payment_month,omitempty"`
	PaymentYear  *int            `json:"payment_year,omitempty"`
	OccurredAt   time.Time       `json:"occurred_at"`
}
