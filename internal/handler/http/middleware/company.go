package middleware

import (
	"net/http"

	"github.com/cmlabs-hris/hris-retropay/internal/domain/user"
	"github.com/cmlabs-hris/hris-retropay/internal/handler/http/response"
	"github.com/cmlabs-hris/hris-retropay/internal/pkg/jwt"
)

// RequireCompany rejects tokens that are not scoped to a company, which
// includes users still in onboarding.
func RequireCompany(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := jwt.ClaimsFromContext(r.Context())
		if err != nil {
			response.HandleError(w, err)
			return
		}

		if claims.CompanyID == "" || claims.Role == user.RolePending {
			response.HandleError(w, user.ErrCompanyIDRequired)
			return
		}

		next.ServeHTTP(w, r)
	})
}
