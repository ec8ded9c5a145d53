package types

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
)

var (
	ErrNotFound           = errors.New("requested item not found")
	ErrDuplicateEmail     = errors.New("email already exists")
	ErrInvalidStatus      = errors.New("status must be either 'Active' or 'Inactive'")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthenticated    = errors.New("authentication required or invalid credentials")
	ErrValidation         = errors.New("validation failed")
)

// ValidationError carries per-field messages from a failed Validate call.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return ErrValidation.Error()
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError flattens ozzo-validation errors into field messages.
// Errors that are not validation.Errors are returned unchanged.
func NewValidationError(err error) error {
	if err == nil {
		return nil
	}
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return err
	}
	fields := make(map[string]string, len(errs))
	for field, fieldErr := range errs {
		if fieldErr != nil {
			fields[field] = fieldErr.Error()
		}
	}
	return &ValidationError{Fields: fields}
}
