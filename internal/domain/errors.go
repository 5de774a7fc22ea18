package domain

import "errors"

var (
	ErrUserNotFound            = errors.New("user not found")
	ErrPostNotFound            = errors.New("post not found")
	ErrEmailAlreadyExists      = errors.New("email already exists")
	ErrNoFieldsToUpdate        = errors.New("no fields to update")
	ErrUsersServiceUnavailable = errors.New("users service unavailable")
)

// ValidationError reports client input that failed validation.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(msg string) error {
	return &ValidationError{Message: msg}
}
