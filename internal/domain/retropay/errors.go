package retropay

import "errors"

var (
	ErrRetroPayNotFound        = errors.New("retro pay entry not found")
	ErrGroupNotFound           = errors.New("no entries found for this group")
	ErrEmployeeNotFound        = errors.New("employee not found")
	ErrInvalidDateRange        = errors.New("effective_from must not be after effective_to")
	ErrInvalidInstallmentCount = errors.New("installment count must be between 2 and 24")
	ErrTooFewInstallments      = errors.New("custom distribution requires at least 2 installments")
	ErrTooManyInstallments     = errors.New("custom distribution allows at most 24 installments")
	ErrAmountOutOfRange        = errors.New("retro pay amount exceeds the supported range")
	ErrInvalidInstallment      = errors.New("installment has an invalid payment period")
	ErrAmountMismatch          = errors.New("installment amounts do not match the total retro pay amount")
	ErrInvalidDistributionMode = errors.New("invalid distribution mode")
	ErrAlreadyDecided          = errors.New("a decision has already been made on this entry")
	ErrNotApproved             = errors.New("retro pay entry must be approved first")
	ErrCannotCancel            = errors.New("retro pay entry is already paid or cancelled, cannot cancel")

	// ErrStatusConflict is returned by the repository when a conditional
	// transition finds the entry outside the allowed statuses.
	ErrStatusConflict = errors.New("retro pay entry status conflict")
)
