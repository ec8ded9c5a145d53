package types

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const (
	maxNameLength     = 255
	maxEmailLength    = 255
	maxPhoneLength    = 20
	maxPasswordLength = 72 // bcrypt ignores anything past 72 bytes
)

type UserStatus string

const (
	UserStatusActive   UserStatus = "Active"
	UserStatusInactive UserStatus = "Inactive"
)

// ParseUserStatus maps an absent status to Active. A present value must be
// exactly Active or Inactive; an empty string is rejected.
func ParseUserStatus(s *string) (UserStatus, error) {
	if s == nil {
		return UserStatusActive, nil
	}
	switch status := UserStatus(*s); status {
	case UserStatusActive, UserStatusInactive:
		return status, nil
	default:
		return "", ErrInvalidStatus
	}
}

// User is the stored user record.
type User struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PhoneNumber  *string    `json:"phoneNumber"`
	PasswordHash string     `json:"-"`
	Status       UserStatus `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    *time.Time `json:"updatedAt"`
}

// UserDetail is the public projection of a User.
type UserDetail struct {
	ID          int64      `json:"id" example:"42"`
	Name        string     `json:"name" example:"Jane Doe"`
	Email       string     `json:"email" example:"jane@example.com"`
	PhoneNumber *string    `json:"phoneNumber" example:"+351910000000"`
	Status      UserStatus `json:"status" example:"Active"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt"`
}

// UserSummary is the reduced view returned alongside a login token.
type UserSummary struct {
	ID     int64      `json:"id" example:"42"`
	Name   string     `json:"name" example:"Jane Doe"`
	Email  string     `json:"email" example:"jane@example.com"`
	Status UserStatus `json:"status" example:"Active"`
}

func (u *User) Detail() UserDetail {
	return UserDetail{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		PhoneNumber: u.PhoneNumber,
		Status:      u.Status,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Status: u.Status,
	}
}

// CreateUserRequest is the registration payload. PasswordHash is accepted as
// an alias for Password and carries the plaintext, never a hash.
type CreateUserRequest struct {
	Name         string  `json:"name" example:"Jane Doe"`
	Email        string  `json:"email" example:"jane@example.com"`
	PhoneNumber  *string `json:"phoneNumber,omitempty" example:"+351910000000"`
	Status       *string `json:"status,omitempty" example:"Active"`
	Password     string  `json:"password,omitempty" example:"s3cret-passw0rd"`
	PasswordHash string  `json:"passwordHash,omitempty"`
}

// PlaintextPassword returns the supplied password, preferring Password over the alias.
func (r CreateUserRequest) PlaintextPassword() string {
	if r.Password != "" {
		return r.Password
	}
	return r.PasswordHash
}

func (r CreateUserRequest) Validate() error {
	password := r.PlaintextPassword()
	err := validation.Errors{
		"name":        validation.Validate(r.Name, validation.Required, validation.Length(1, maxNameLength)),
		"email":       validation.Validate(r.Email, validation.Required, validation.Length(1, maxEmailLength), is.Email),
		"phoneNumber": validation.Validate(r.PhoneNumber, validation.Length(0, maxPhoneLength)),
		"password":    validation.Validate(password, validation.Required, validation.By(maxBytes(maxPasswordLength))),
	}.Filter()
	return NewValidationError(err)
}

// UpdateUserRequest fully replaces the mutable profile fields. The password
// is not changed through this payload.
type UpdateUserRequest struct {
	Name        string  `json:"name" example:"Jane Doe"`
	Email       string  `json:"email" example:"jane@example.com"`
	PhoneNumber *string `json:"phoneNumber,omitempty" example:"+351910000000"`
	Status      *string `json:"status" example:"Inactive"`
}

func (r UpdateUserRequest) Validate() error {
	err := validation.Errors{
		"name":        validation.Validate(r.Name, validation.Required, validation.Length(1, maxNameLength)),
		"email":       validation.Validate(r.Email, validation.Required, validation.Length(1, maxEmailLength), is.Email),
		"phoneNumber": validation.Validate(r.PhoneNumber, validation.Length(0, maxPhoneLength)),
	}.Filter()
	return NewValidationError(err)
}

// CreateUserParams is what the service hands to the store.
type CreateUserParams struct {
	Name         string
	Email        string
	PhoneNumber  *string
	PasswordHash string
	Status       UserStatus
	CreatedAt    time.Time
}

type UpdateUserParams struct {
	Name        string
	Email       string
	PhoneNumber *string
	Status      UserStatus
	UpdatedAt   time.Time
}

func maxBytes(limit int) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if len(s) > limit {
			return fmt.Errorf("must be no more than %d bytes long", limit)
		}
		return nil
	}
}
