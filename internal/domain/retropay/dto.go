package retropay

import (
	"strings"
	"time"

	"github.com/cmlabs-hris/hris-retropay/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

// ========== CREATE DTOs ==========

type InstallmentRequest struct {
	Month  int             `json:"month"`
	Year   int             `json:"year"`
	Amount decimal.Decimal `json:"amount"`
}

type CreateRetroPayRequest struct {
	EmployeeID       string               `json:"employee_id"`
	Reason           string               `json:"reason"`
	EffectiveFrom    string               `json:"effective_from"`
	EffectiveTo      string               `json:"effective_to"`
	OldAmount        decimal.Decimal      `json:"old_amount"`
	NewAmount        decimal.Decimal      `json:"new_amount"`
	Notes            *string              `json:"notes,omitempty"`
	DistributionMode string               `json:"distribution_mode,omitempty"` // Empty = SINGLE
	PaymentMonth     *int                 `json:"payment_month,omitempty"`
	PaymentYear      *int                 `json:"payment_year,omitempty"`
	InstallmentCount *int                 `json:"installment_count,omitempty"`
	Installments     []InstallmentRequest `json:"installments,omitempty"`
}

// Mode returns the requested distribution mode, defaulting to SINGLE.
func (r *CreateRetroPayRequest) Mode() DistributionMode {
	if strings.TrimSpace(r.DistributionMode) == "" {
		return DistributionSingle
	}
	return DistributionMode(strings.ToUpper(strings.TrimSpace(r.DistributionMode)))
}

func (r *CreateRetroPayRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.EmployeeID) {
		errs = append(errs, validator.ValidationError{Field: "employee_id", Message: "is required"})
	} else if !validator.IsValidID(r.EmployeeID) {
		errs = append(errs, validator.ValidationError{Field: "employee_id", Message: "must be a valid UUID"})
	}
	if validator.IsEmpty(r.Reason) {
		errs = append(errs, validator.ValidationError{Field: "reason", Message: "is required"})
	}
	if _, ok := ParseDate(r.EffectiveFrom); !ok {
		errs = append(errs, validator.ValidationError{Field: "effective_from", Message: "must be a valid date (YYYY-MM-DD)"})
	}
	if _, ok := ParseDate(r.EffectiveTo); !ok {
		errs = append(errs, validator.ValidationError{Field: "effective_to", Message: "must be a valid date (YYYY-MM-DD)"})
	}
	if r.OldAmount.IsNegative() {
		errs = append(errs, validator.ValidationError{Field: "old_amount", Message: "must be non-negative"})
	} else if r.OldAmount.GreaterThan(MaxAmount) {
		errs = append(errs, validator.ValidationError{Field: "old_amount", Message: "must not exceed " + MaxAmount.StringFixed(AmountScale)})
	}
	if r.NewAmount.IsNegative() {
		errs = append(errs, validator.ValidationError{Field: "new_amount", Message: "must be non-negative"})
	} else if r.NewAmount.GreaterThan(MaxAmount) {
		errs = append(errs, validator.ValidationError{Field: "new_amount", Message: "must not exceed " + MaxAmount.StringFixed(AmountScale)})
	}
	if !r.Mode().IsValid() {
		errs = append(errs, validator.ValidationError{Field: "distribution_mode", Message: "must be one of SINGLE, EQUAL_SPLIT, CUSTOM_AMOUNTS"})
	}
	if r.PaymentMonth != nil && !isValidMonth(*r.PaymentMonth) {
		errs = append(errs, validator.ValidationError{Field: "payment_month", Message: "must be between 1 and 12"})
	}
	if r.PaymentYear != nil && !isValidYear(*r.PaymentYear) {
		errs = append(errs, validator.ValidationError{Field: "payment_year", Message: "must be between 2000 and 2100"})
	}
	if r.Mode() == DistributionEqualSplit && r.InstallmentCount == nil {
		errs = append(errs, validator.ValidationError{Field: "installment_count", Message: "is required for EQUAL_SPLIT"})
	}
	for i, inst := range r.Installments {
		if !isValidMonth(inst.Month) {
			errs = append(errs, validator.ValidationError{Field: "installments[" + validator.Itoa(i) + "].month", Message: "must be between 1 and 12"})
		}
		if !isValidYear(inst.Year) {
			errs = append(errs, validator.ValidationError{Field: "installments[" + validator.Itoa(i) + "].year", Message: "must be between 2000 and 2100"})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type CreateRetroPayResponse struct {
	GroupID          *string                 `json:"group_id,omitempty"`
	DistributionMode string                  `json:"distribution_mode"`
	Difference       decimal.Decimal         `json:"difference"`
	MonthsCount      int                     `json:"months_count"`
	TotalAmount      decimal.Decimal         `json:"total_amount"`
	Entries          []RetroPayEntryResponse `json:"entries"`
}

// ========== LIFECYCLE DTOs ==========

type CancelRetroPayRequest struct {
	Reason *string `json:"reason,omitempty"`
}

type PayPeriodRequest struct {
	PaymentMonth int `json:"payment_month"`
	PaymentYear  int `json:"payment_year"`
}

func (r *PayPeriodRequest) Validate() error {
	var errs validator.ValidationErrors

	if !isValidMonth(r.PaymentMonth) {
		errs = append(errs, validator.ValidationError{Field: "payment_month", Message: "must be between 1 and 12"})
	}
	if !isValidYear(r.PaymentYear) {
		errs = append(errs, validator.ValidationError{Field: "payment_year", Message: "must be between 2000 and 2100"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type GroupActionResponse struct {
	GroupID      string `json:"group_id,omitempty"`
	UpdatedCount int    `json:"updated_count"`
}

// ========== READ DTOs ==========

type RetroPayEntryResponse struct {
	ID                string          `json:"id"`
	EmployeeID        string          `json:"employee_id"`
	EmployeeName      *string         `json:"employee_name,omitempty"`
	EmployeeCode      *string         `json:"employee_code,omitempty"`
	Reason            string          `json:"reason"`
	EffectiveFrom     string          `json:"effective_from"`
	EffectiveTo       string          `json:"effective_to"`
	OldAmount         decimal.Decimal `json:"old_amount"`
	NewAmount         decimal.Decimal `json:"new_amount"`
	Difference        decimal.Decimal `json:"difference"`
	MonthsCount       int             `json:"months_count"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	PaymentMonth      int             `json:"payment_month"`
	PaymentYear       int             `json:"payment_year"`
	DistributionMode  string          `json:"distribution_mode"`
	InstallmentNumber int             `json:"installment_number"`
	InstallmentCount  int             `json:"installment_count"`
	Status            string          `json:"status"`
	GroupID           *string         `json:"group_id,omitempty"`
	Notes             *string         `json:"notes,omitempty"`
	CreatedByID       *string         `json:"created_by_id,omitempty"`
	ApprovedByID      *string         `json:"approved_by_id,omitempty"`
	ApprovedAt        *string         `json:"approved_at,omitempty"`
	PaidAt            *string         `json:"paid_at,omitempty"`
	CancelledAt       *string         `json:"cancelled_at,omitempty"`
	CreatedAt         string          `json:"created_at"`
}

type RetroPayFilter struct {
	Status       *Status `json:"status,omitempty"`
	EmployeeID   *string `json:"employee_id,omitempty"`
	GroupID      *string `json:"group_id,omitempty"`
	PaymentMonth *int    `json:"payment_month,omitempty"`
	PaymentYear  *int    `json:"payment_year,omitempty"`
}

func (f *RetroPayFilter) Validate() error {
	var errs validator.ValidationErrors

	if f.Status != nil && !f.Status.IsValid() {
		errs = append(errs, validator.ValidationError{Field: "status", Message: "must be one of PENDING, APPROVED, PAID, CANCELLED"})
	}
	if f.PaymentMonth != nil && !isValidMonth(*f.PaymentMonth) {
		errs = append(errs, validator.ValidationError{Field: "payment_month", Message: "must be between 1 and 12"})
	}
	if f.PaymentYear != nil && !isValidYear(*f.PaymentYear) {
		errs = append(errs, validator.ValidationError{Field: "payment_year", Message: "must be between 2000 and 2100"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type RetroPayStatsResponse struct {
	Year                   *int            `json:"year,omitempty"`
	PendingCount           int             `json:"pending_count"`
	ApprovedCount          int             `json:"approved_count"`
	PaidCount              int             `json:"paid_count"`
	CancelledCount         int             `json:"cancelled_count"`
	TotalPendingAmount     decimal.Decimal `json:"total_pending_amount"`
	TotalApprovedAmount    decimal.Decimal `json:"total_approved_amount"`
	TotalPaidAmount        decimal.Decimal `json:"total_paid_amount"`
	AveragePaidPerEmployee decimal.Decimal `json:"average_paid_per_employee"`
}

// ========== HELPERS ==========

// ParseDate accepts a calendar date (YYYY-MM-DD) or an RFC3339 timestamp.
func ParseDate(s string) (time.Time, bool) {
	if t, ok := validator.IsValidDate(strings.TrimSpace(s)); ok {
		return t, true
	}
	if t, ok := validator.IsValidDateTime(strings.TrimSpace(s)); ok {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

func isValidMonth(m int) bool {
	return m >= 1 && m <= 12
}

func isValidYear(y int) bool {
	return y >= MinPaymentYear && y <= MaxPaymentYear
}
