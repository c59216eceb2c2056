// Package common defines shared constants and errors used across the
// account service layers. Callers should use errors.Is / errors.As to
// match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Storage failures. A failed query is never reported as "absent".
	ErrLookup      = errors.New("account lookup failed")
	ErrPersistence = errors.New("account insert failed")

	// Login errors.
	ErrUnsupportedIdentifier = errors.New("unsupported identifier kind")
	ErrAccountNotFound       = errors.New("account not found")
	ErrMethodMismatch        = errors.New("authentication method not allowed for this account")
	ErrInvalidCredential     = errors.New("invalid credential")

	// ErrHashing is fatal to the registration attempt.
	ErrHashing = errors.New("password hashing failed")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Validation failure reasons.
const (
	ReasonPhoneFormat                  = "PhoneFormat"
	ReasonEmailFormat                  = "EmailFormat"
	ReasonNicknameEmpty                = "NicknameEmpty"
	ReasonNicknameLength               = "NicknameLength"
	ReasonNicknameFormat               = "NicknameFormat"
	ReasonPasswordTooShort             = "PasswordTooShort"
	ReasonPasswordMissingDigitOrLetter = "PasswordMissingDigitOrLetter"
	ReasonExternalIDEmpty              = "ExternalIdEmpty"
	ReasonUnknownAuthMethod            = "UnknownAuthMethod"
	ReasonInvalidValue                 = "InvalidValue"
)

// ValidationError reports a field rejected before any storage access.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

// NewValidationError is a shorthand used by the validators.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// ConflictError reports a uniqueness collision on a single field
// (email, phone, nickname, external_id or user_id).
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists", e.Field)
}
