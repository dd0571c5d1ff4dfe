package outbox

import (
	"time"
)

// Status enum
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// MaxErrorLength bounds the stored publish error.
const MaxErrorLength = 500

// Event - a message recorded in the same transaction as the state change it describes
type Event struct {
	ID            string
	CompanyID     string
	AggregateType string
	AggregateID   string
	EventType     string
	Topic         string
	Payload       []byte
	Status        Status
	RetryCount    int
	LastError     *string
	NextRetryAt   *time.Time
	ProcessedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate checks the fields required to relay the event.
func (e Event) Validate() error {
	if e.ID == "" {
		return ErrMissingID
	}
	if e.Topic == "" {
		return ErrMissingTopic
	}
	if len(e.Payload) == 0 {
		return ErrMissingPayload
	}
	switch e.Status {
	case StatusPending, StatusSent, StatusFailed:
		return nil
	}
	return ErrInvalidStatus
}
