// Command token signs an access token with the service's JWT secret, for
// automation such as the payroll run that calls POST /retro-pay/pay-period.
//
//	token -user <uuid> -company <uuid> [-role owner] [-email ops@example.com]
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cmlabs-hris/hris-retropay/internal/config"
	"github.com/cmlabs-hris/hris-retropay/internal/domain/user"
	"github.com/cmlabs-hris/hris-retropay/internal/pkg/jwt"
	"github.com/cmlabs-hris/hris-retropay/internal/pkg/validator"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "token:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	userID := fs.String("user", "", "user id (UUID) the token acts as")
	companyID := fs.String("company", "", "company id (UUID)")
	role := fs.String("role", string(user.RoleOwner), "role carried by the token")
	email := fs.String("email", "", "email claim")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if !validator.IsValidID(*userID) {
		return fmt.Errorf("-user must be a valid UUID")
	}
	if !validator.IsValidID(*companyID) {
		return fmt.Errorf("-company must be a valid UUID")
	}
	if _, ok := user.RolePermissions[user.Role(*role)]; !ok {
		return fmt.Errorf("unknown role %q", *role)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	svc := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)
	token, expiresAt, err := svc.GenerateAccessToken(user.Claims{
		UserID:    *userID,
		Email:     *email,
		CompanyID: *companyID,
		Role:      user.Role(*role),
	})
	if err != nil {
		return fmt.Errorf("failed to sign token: %w", err)
	}

	fmt.Fprintln(out, token)
	fmt.Fprintln(os.Stderr, "expires at", time.Unix(expiresAt, 0).UTC().Format(time.RFC3339))
	return nil
}
