// Package shopauth is the authentication and account-security core of the
// storefront backend.
//
// It covers dual-mode login (password and emailed one-time password),
// password reset by link and by OTP, progressive per-account lockout, and
// all hashing of secret material - independent of any web framework or
// database. Persistence and email delivery are pluggable collaborators
// behind the UserRepository and Mailer interfaces; implementations ship
// under stores/ and mailers/.
//
// Quick start:
//
//	auth, _ := shopauth.New(
//	    shopauth.WithRepository(repo),
//	    shopauth.WithMailer(mailer),
//	    shopauth.WithJWTSecret(secret),
//	)
//	r.Mount("/auth", auth.Handler())
package shopauth

import (
	"errors"
	"time"

	"go.uber.org/zap"
)

// AuthService is the main entry point for the authentication core.
type AuthService struct {
	repo    UserRepository
	mailer  Mailer
	limiter RateLimiter
	logger  *zap.Logger

	jwtSecret []byte
	config    Config

	// now is the clock; swapped out in tests.
	now func() time.Time
}

// Config holds the authentication core configuration.
type Config struct {
	AppName    string
	AppBaseURL string

	// SessionTTL bounds the signed session payload.
	SessionTTL time.Duration

	// OTPTTL is the lifetime of a login OTP and of an OTP-based reset code.
	OTPTTL time.Duration
	// ResetTokenTTL is the lifetime of a link-based reset token.
	ResetTokenTTL time.Duration

	// LoginLockout locks the account after repeated failed password logins.
	LoginLockout LockoutPolicy
	// OTPLockout locks OTP verification after repeated wrong codes.
	OTPLockout LockoutPolicy

	RateLimits RateLimitConfig
}

// RateLimitConfig holds the per-route fixed-window limits applied by the
// HTTP surface.
type RateLimitConfig struct {
	AuthLimit  int
	AuthWindow time.Duration

	LoginLimit  int
	LoginWindow time.Duration

	OTPLimit  int
	OTPWindow time.Duration

	PasswordResetLimit  int
	PasswordResetWindow time.Duration

	RegisterLimit  int
	RegisterWindow time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		AppName:    "Storefront",
		SessionTTL: 24 * time.Hour,

		OTPTTL:        10 * time.Minute,
		ResetTokenTTL: 60 * time.Minute,

		LoginLockout: LockoutPolicy{Threshold: 5, Duration: 2 * time.Hour},
		OTPLockout:   LockoutPolicy{Threshold: 3, Duration: 15 * time.Minute},

		RateLimits: RateLimitConfig{
			AuthLimit:           20,
			AuthWindow:          15 * time.Minute,
			LoginLimit:          5,
			LoginWindow:         15 * time.Minute,
			OTPLimit:            3,
			OTPWindow:           5 * time.Minute,
			PasswordResetLimit:  3,
			PasswordResetWindow: time.Hour,
			RegisterLimit:       5,
			RegisterWindow:      time.Hour,
		},
	}
}

// New creates a new AuthService.
func New(opts ...Option) (*AuthService, error) {
	svc := &AuthService{
		config: DefaultConfig(),
		now:    time.Now,
	}

	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}

	if svc.repo == nil {
		return nil, errors.New("shopauth: repository is required (use WithRepository)")
	}
	if len(svc.jwtSecret) == 0 {
		return nil, errors.New("shopauth: JWT secret is required (use WithJWTSecret)")
	}

	if svc.logger == nil {
		svc.logger, _ = zap.NewProduction()
	}
	if svc.mailer == nil {
		svc.mailer = &noopMailer{logger: svc.logger}
	}

	return svc, nil
}

// Config returns a copy of the active configuration.
func (s *AuthService) Config() Config {
	return s.config
}
