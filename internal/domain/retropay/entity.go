package retropay

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enum
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusPaid      Status = "PAID"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusPaid, StatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
// PAID and CANCELLED are terminal.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusApproved || next == StatusCancelled
	case StatusApproved:
		return next == StatusPaid || next == StatusCancelled
	}
	return false
}

// DistributionMode enum
type DistributionMode string

const (
	DistributionSingle        DistributionMode = "SINGLE"
	DistributionEqualSplit    DistributionMode = "EQUAL_SPLIT"
	DistributionCustomAmounts DistributionMode = "CUSTOM_AMOUNTS"
)

func (m DistributionMode) IsValid() bool {
	switch m {
	case DistributionSingle, DistributionEqualSplit, DistributionCustomAmounts:
		return true
	}
	return false
}

// IsSplit reports whether the mode produces a group of installments.
func (m DistributionMode) IsSplit() bool {
	return m == DistributionEqualSplit || m == DistributionCustomAmounts
}

const (
	MinInstallments  = 2
	MaxInstallments  = 24
	MinPaymentYear   = 2000
	MaxPaymentYear   = 2100
	AmountScale      = 2
	DateLayout       = "2006-01-02"
	CancelNoteMarker = " | cancelled: "
)

// CustomAmountTolerance is the accepted gap between the sum of caller supplied
// installments and the expected total.
var CustomAmountTolerance = decimal.New(1, -2)

// MaxAmount is the largest magnitude a NUMERIC(15,2) amount column holds.
var MaxAmount = decimal.RequireFromString("9999999999999.99")

// RetroPayEntry - One installment (or single payment) of a retroactive pay differential
type RetroPayEntry struct {
	ID                string
	CompanyID         string
	EmployeeID        string
	Reason            string
	EffectiveFrom     time.Time
	EffectiveTo       time.Time
	OldAmount         decimal.Decimal
	NewAmount         decimal.Decimal
	Difference        decimal.Decimal
	MonthsCount       int
	TotalAmount       decimal.Decimal
	PaymentMonth      int
	PaymentYear       int
	DistributionMode  DistributionMode
	InstallmentNumber int
	InstallmentCount  int
	Status            Status
	GroupID           *string
	Notes             *string
	CreatedByID       *string
	ApprovedByID      *string
	ApprovedAt        *time.Time
	PaidAt            *time.Time
	CancelledAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time

	// Joined fields
	EmployeeName *string
	EmployeeCode *string
}

// Installment - One dated slice of a distribution
type Installment struct {
	Month  int
	Year   int
	Amount decimal.Decimal
}

// Distribution - Calculator output
type Distribution struct {
	Mode         DistributionMode
	Difference   decimal.Decimal
	MonthsCount  int
	TotalAmount  decimal.Decimal
	Installments []Installment
}

// StatusUpdate - Fields written together with a status transition
type StatusUpdate struct {
	Status       Status
	ApprovedByID *string
	ApprovedAt   *time.Time
	PaidAt       *time.Time
	CancelledAt  *time.Time
	AppendNote   *string
}

// StatusSummary - Aggregate of entries sharing a status
type StatusSummary struct {
	Status      Status
	Count       int
	TotalAmount decimal.Decimal
}
