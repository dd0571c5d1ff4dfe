package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/hris-retropay/internal/domain/auth"
	"github.com/cmlabs-hris/hris-retropay/internal/domain/retropay"
	"github.com/cmlabs-hris/hris-retropay/internal/domain/user"
	"github.com/cmlabs-hris/hris-retropay/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	// Auth domain errors
	case errors.Is(err, auth.ErrTokenExpired):
		Unauthorized(w, "Token expired")
	case errors.Is(err, auth.ErrInvalidToken):
		Unauthorized(w, err.Error())
	case errors.Is(err, user.ErrUserIDRequired):
		Unauthorized(w, err.Error())
	case errors.Is(err, user.ErrCompanyIDRequired):
		Forbidden(w, "Company registration is required to access this resource")
	case errors.Is(err, user.ErrInsufficientPermissions):
		Forbidden(w, err.Error())

	// Retro pay not found
	case errors.Is(err, retropay.ErrRetroPayNotFound),
		errors.Is(err, retropay.ErrGroupNotFound),
		errors.Is(err, retropay.ErrEmployeeNotFound):
		NotFound(w, err.Error())

	case errors.Is(err, retropay.ErrAmountOutOfRange):
		ValidationError(w, map[string]string{"total_amount": err.Error()})

	// Distribution errors
	case errors.Is(err, retropay.ErrInvalidDateRange),
		errors.Is(err, retropay.ErrInvalidInstallmentCount),
		errors.Is(err, retropay.ErrTooFewInstallments),
		errors.Is(err, retropay.ErrTooManyInstallments),
		errors.Is(err, retropay.ErrInvalidInstallment),
		errors.Is(err, retropay.ErrAmountMismatch),
		errors.Is(err, retropay.ErrInvalidDistributionMode):
		BadRequest(w, err.Error(), nil)

	// Lifecycle state conflicts
	case errors.Is(err, retropay.ErrAlreadyDecided),
		errors.Is(err, retropay.ErrNotApproved),
		errors.Is(err, retropay.ErrCannotCancel):
		BadRequest(w, err.Error(), nil)

	// Default
	default:
		slog.Error("Unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
