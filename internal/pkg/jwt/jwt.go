package jwt

import (
	"context"
	"time"

	"github.com/cmlabs-hris/hris-retropay/internal/domain/auth"
	"github.com/cmlabs-hris/hris-retropay/internal/domain/user"
	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const TokenTypeAccess = "access"

type Service interface {
	GenerateAccessToken(claims user.Claims) (token string, expiresAt int64, err error)
	JWTAuth() *jwtauth.JWTAuth
}

type JWTService struct {
	secretKey                 string
	accessTokenExpirationTime string
	tokenAuth                 *jwtauth.JWTAuth
}

func (j *JWTService) JWTAuth() *jwtauth.JWTAuth {
	return j.tokenAuth
}

func NewJWTService(secretKey string, accessTokenExpirationTime string) Service {
	return &JWTService{
		secretKey:                 secretKey,
		accessTokenExpirationTime: accessTokenExpirationTime,
		tokenAuth:                 jwtauth.New("HS256", []byte(secretKey), nil, jwt.WithAcceptableSkew(30*time.Second)),
	}
}

// GenerateAccessToken issues a token with the same claim set the HRIS auth
// service signs. cmd/token uses it for service callers; end users log in upstream.
func (j *JWTService) GenerateAccessToken(claims user.Claims) (token string, expiresAt int64, err error) {
	expDuration, err := time.ParseDuration(j.accessTokenExpirationTime)
	if err != nil {
		return "", 0, err
	}
	expiresAt = time.Now().Add(expDuration).Unix()

	_, tokenString, err := j.tokenAuth.Encode(map[string]interface{}{
		"user_id":     claims.UserID,
		"email":       claims.Email,
		"employee_id": returnValueOrNil(claims.EmployeeID),
		"company_id":  claims.CompanyID,
		"role":        string(claims.Role),
		"type":        TokenTypeAccess,
		"exp":         expiresAt,
	})
	return tokenString, expiresAt, err
}

func returnValueOrNil(value *string) interface{} {
	if value == nil {
		return nil
	}
	return *value
}

// ClaimsFromContext reads the verified access token claims placed in ctx by jwtauth.Verifier.
func ClaimsFromContext(ctx context.Context) (user.Claims, error) {
	token, raw, err := jwtauth.FromContext(ctx)
	if err != nil || token == nil {
		return user.Claims{}, auth.ErrInvalidToken
	}

	if tokenType, _ := raw["type"].(string); tokenType != TokenTypeAccess {
		return user.Claims{}, auth.ErrInvalidToken
	}

	claims := user.Claims{}
	claims.UserID, _ = raw["user_id"].(string)
	claims.Email, _ = raw["email"].(string)
	claims.CompanyID, _ = raw["company_id"].(string)
	if role, ok := raw["role"].(string); ok {
		claims.Role = user.Role(role)
	}
	if employeeID, ok := raw["employee_id"].(string); ok && employeeID != "" {
		claims.EmployeeID = &employeeID
	}

	if claims.UserID == "" {
		return user.Claims{}, user.ErrUserIDRequired
	}

	return claims, nil
}
