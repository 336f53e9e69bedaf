package shopauth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Option configures the AuthService.
type Option func(*AuthService) error

// ==================== REQUIRED ====================

// WithRepository sets the account store.
func WithRepository(repo UserRepository) Option {
	return func(s *AuthService) error {
		s.repo = repo
		return nil
	}
}

// WithJWTSecret sets the session signing secret. Must be at least 32 bytes.
func WithJWTSecret(secret []byte) Option {
	return func(s *AuthService) error {
		if len(secret) < 32 {
			return errors.New("shopauth: JWT secret must be at least 32 bytes")
		}
		s.jwtSecret = secret
		return nil
	}
}

// ==================== OPTIONAL PROVIDERS ====================

// WithMailer sets the notification sender. Without one, outbound mail is
// logged and dropped.
func WithMailer(mailer Mailer) Option {
	return func(s *AuthService) error {
		s.mailer = mailer
		return nil
	}
}

// WithRateLimiter sets the rate limiter used by the HTTP surface.
func WithRateLimiter(limiter RateLimiter) Option {
	return func(s *AuthService) error {
		s.limiter = limiter
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *AuthService) error {
		s.logger = logger
		return nil
	}
}

// ==================== CONFIGURATION ====================

// WithAppName sets the application name used in outbound mail.
func WithAppName(name string) Option {
	return func(s *AuthService) error {
		s.config.AppName = name
		return nil
	}
}

// WithAppURL sets the base URL embedded in reset links.
func WithAppURL(url string) Option {
	return func(s *AuthService) error {
		s.config.AppBaseURL = url
		return nil
	}
}

// WithSessionTTL sets the session payload lifetime.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *AuthService) error {
		s.config.SessionTTL = ttl
		return nil
	}
}

// WithLoginLockout overrides the login lockout policy.
func WithLoginLockout(threshold int, duration time.Duration) Option {
	return func(s *AuthService) error {
		s.config.LoginLockout = LockoutPolicy{Threshold: threshold, Duration: duration}
		return nil
	}
}

// WithOTPLockout overrides the OTP lockout policy.
func WithOTPLockout(threshold int, duration time.Duration) Option {
	return func(s *AuthService) error {
		s.config.OTPLockout = LockoutPolicy{Threshold: threshold, Duration: duration}
		return nil
	}
}

// WithRateLimits overrides the HTTP-surface rate limits.
func WithRateLimits(limits RateLimitConfig) Option {
	return func(s *AuthService) error {
		s.config.RateLimits = limits
		return nil
	}
}

// WithClock overrides the service clock. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) error {
		s.now = now
		return nil
	}
}

// noopMailer logs outbound mail instead of sending it.
type noopMailer struct {
	logger *zap.Logger
}

func (m *noopMailer) SendOTP(ctx context.Context, to, otp, name string) error {
	m.logger.Info("mailer not configured, dropping OTP email", zap.String("to", to))
	return nil
}

func (m *noopMailer) SendPasswordResetLink(ctx context.Context, to, link, name string) error {
	m.logger.Info("mailer not configured, dropping reset link email", zap.String("to", to))
	return nil
}

func (m *noopMailer) SendPasswordResetOTP(ctx context.Context, to, otp, name string) error {
	m.logger.Info("mailer not configured, dropping reset OTP email", zap.String("to", to))
	return nil
}

func (m *noopMailer) SendWelcome(ctx context.Context, to, name string) error {
	m.logger.Info("mailer not configured, dropping welcome email", zap.String("to", to))
	return nil
}
