package shopauth

import (
	"context"
	"time"
)

// ==================== CORE INTERFACES ====================

// UserRepository is the persistence boundary for account records. The core
// never talks to a database directly; implementations live under stores/.
type UserRepository interface {
	// FindByEmail returns the account for a normalized email, or
	// ErrUserNotFound.
	FindByEmail(ctx context.Context, email string) (*User, error)
	// FindByID returns the account by its identifier, or ErrUserNotFound.
	FindByID(ctx context.Context, id string) (*User, error)
	// FindByResetTokenHash returns the account whose stored reset-token hash
	// matches AND whose reset expiry is still in the future, or
	// ErrUserNotFound. The expiry filter belongs to the query, not the caller.
	FindByResetTokenHash(ctx context.Context, tokenHash string) (*User, error)
	// Save persists every mutable field of an existing account.
	Save(ctx context.Context, user *User) error
	// Create inserts a new account and fills in its ID.
	Create(ctx context.Context, user *User) error
}

// Mailer delivers out-of-band secrets. Implementations live under mailers/.
// A non-nil error from any send is surfaced by the core as ErrDeliveryFailed.
// The reset link is built by the core from Config.AppBaseURL; implementations
// embed it as-is.
type Mailer interface {
	SendOTP(ctx context.Context, to, otp, name string) error
	SendPasswordResetLink(ctx context.Context, to, link, name string) error
	SendPasswordResetOTP(ctx context.Context, to, otp, name string) error
	SendWelcome(ctx context.Context, to, name string) error
}

// RateLimiter provides fixed-window rate limiting for the HTTP surface.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, remaining int, err error)
}

// ==================== MODELS ====================

// Roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the account record. PasswordHash is empty for OTP-only accounts
// (IsOTPUser true); everything secret is stored as an irreversible hash.
type User struct {
	ID            string
	Name          string
	Email         string
	Role          string
	PasswordHash  string
	IsOTPUser     bool
	EmailVerified bool

	// Login OTP state.
	OTPHash        string
	OTPExpiresAt   *time.Time
	OTPAttempts    int
	OTPLockedUntil *time.Time

	// Password reset state. The slot is shared by the link and OTP reset
	// flows; starting either flow overwrites the other.
	ResetTokenHash      string
	ResetTokenExpiresAt *time.Time

	// Login security state.
	LoginAttempts int
	LockedUntil   *time.Time
	LastLoginAt   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasPassword reports whether the account can authenticate by password.
func (u *User) HasPassword() bool {
	return !u.IsOTPUser && u.PasswordHash != ""
}

// loginLockout views the account's login-attempt counters as a LockoutState.
func (u *User) loginLockout() LockoutState {
	return LockoutState{Attempts: u.LoginAttempts, LockedUntil: u.LockedUntil}
}

func (u *User) setLoginLockout(s LockoutState) {
	u.LoginAttempts = s.Attempts
	u.LockedUntil = s.LockedUntil
}

// otpLockout views the account's OTP-attempt counters as a LockoutState.
func (u *User) otpLockout() LockoutState {
	return LockoutState{Attempts: u.OTPAttempts, LockedUntil: u.OTPLockedUntil}
}

func (u *User) setOTPLockout(s LockoutState) {
	u.OTPAttempts = s.Attempts
	u.OTPLockedUntil = s.LockedUntil
}

// Session is the payload issued after successful authentication. It carries
// no secret material.
type Session struct {
	Token         string `json:"token"`
	AccountID     string `json:"account_id"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	EmailVerified bool   `json:"email_verified"`
}
