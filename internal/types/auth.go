package types

import (
	"fmt"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the JWT payload. The subject holds the user id in decimal.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid subject %q", c.Subject)
	}
	return id, nil
}

// IdentityClaims are the extra facts embedded next to the subject.
type IdentityClaims struct {
	Email string
	Name  string
}

type LoginRequest struct {
	Email    string `json:"email" example:"jane@example.com"`
	Password string `json:"password" example:"s3cret-passw0rd"`
}

func (r LoginRequest) Validate() error {
	err := validation.Errors{
		"email":    validation.Validate(r.Email, validation.Required),
		"password": validation.Validate(r.Password, validation.Required),
	}.Filter()
	return NewValidationError(err)
}

type LoginResult struct {
	Token     string      `json:"token" example:"eyJhbGciOiJIUzI1NiIs..."`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      UserSummary `json:"user"`
}
