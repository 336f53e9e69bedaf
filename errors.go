package shopauth

import (
	"errors"
	"fmt"
	"time"
)

// Authentication errors - these are safe to show to users.
var (
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrUserNotFound         = errors.New("user not found")
	ErrEmailAlreadyExists   = errors.New("email already registered")
	ErrInvalidOTP           = errors.New("invalid OTP")
	ErrOTPExpired           = errors.New("OTP has expired, please request a new one")
	ErrInvalidResetToken    = errors.New("invalid or expired reset token")
	ErrNotPasswordAccount   = errors.New("account has no password; use OTP login")
	ErrLinkResetUnsupported = errors.New("account uses OTP login only; link reset unavailable")
	ErrRateLimited          = errors.New("too many requests, please try again later")
	ErrWeakPassword         = errors.New("password does not meet security requirements")
)

// Internal errors - logged, never shown verbatim to users.
var (
	ErrDeliveryFailed = errors.New("failed to deliver email")
	ErrRepository     = errors.New("repository error")
)

// LockedError is returned when the login lockout is active. Until is the
// lock expiry, exposed so callers can tell the user when to retry.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return "account temporarily locked due to too many failed login attempts"
}

// OTPLockedError is returned when the OTP lockout is active.
type OTPLockedError struct {
	Until time.Time
}

func (e *OTPLockedError) Error() string {
	return "too many OTP attempts, please try again later"
}

// AuthError wraps an error with a machine-readable code for API responses.
// Every JSON error body written by the HTTP surface is one of these.
type AuthError struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`
	// Message is a human-readable message safe for users.
	Message string `json:"message"`
	// LockedUntil is set on lockout responses so clients can tell the user
	// when to retry.
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	// Internal is the underlying error (not included in JSON).
	Internal error `json:"-"`
}

func (e *AuthError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Internal
}

// Error codes for API responses.
const (
	CodeInvalidCredentials   = "INVALID_CREDENTIALS"
	CodeAccountLocked        = "ACCOUNT_LOCKED"
	CodeOTPLocked            = "OTP_LOCKED"
	CodeOTPExpired           = "OTP_EXPIRED"
	CodeInvalidOTP           = "INVALID_OTP"
	CodeInvalidResetToken    = "INVALID_RESET_TOKEN"
	CodeNotPasswordAccount   = "NOT_PASSWORD_ACCOUNT"
	CodeLinkResetUnsupported = "LINK_RESET_UNSUPPORTED"
	CodeUserNotFound         = "USER_NOT_FOUND"
	CodeEmailExists          = "EMAIL_EXISTS"
	CodeDeliveryFailed       = "DELIVERY_FAILED"
	CodeRateLimited          = "RATE_LIMITED"
	CodeWeakPassword         = "WEAK_PASSWORD"
	CodeValidationFailed     = "VALIDATION_FAILED"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeInternalError        = "INTERNAL_ERROR"
	CodeBadRequest           = "BAD_REQUEST"
)

func newAuthError(code string, message string, internal error) *AuthError {
	return &AuthError{Code: code, Message: message, Internal: internal}
}
