package shopauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/URK23CS1233/shopauth/crypto"
)

// RequestOTP generates a login OTP for the email, creating an OTP-only shell
// account for unseen addresses, and delivers it via the Mailer.
//
// The hashed OTP and expiry are persisted before delivery is attempted: if
// delivery fails the state is kept, so a retry reuses the same code until it
// expires or a fresh request overwrites it.
func (s *AuthService) RequestOTP(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	now := s.now()

	user, err := s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
	case errors.Is(err, ErrUserNotFound):
		// First OTP request for an unseen email creates an OTP-only shell.
		// The email local part serves as the default display name.
		user = &User{
			Name:      strings.SplitN(email, "@", 2)[0],
			Email:     email,
			Role:      RoleUser,
			IsOTPUser: true,
		}
		if err := s.repo.Create(ctx, user); err != nil {
			return fmt.Errorf("%w: %v", ErrRepository, err)
		}
	default:
		return fmt.Errorf("%w: %v", ErrRepository, err)
	}

	if st := user.otpLockout(); st.Locked(now) {
		return &OTPLockedError{Until: *st.LockedUntil}
	}

	otp, err := crypto.GenerateOTP()
	if err != nil {
		return err
	}

	expires := now.Add(s.config.OTPTTL)
	user.OTPHash = crypto.HashToken(otp)
	user.OTPExpiresAt = &expires
	user.OTPAttempts = 0
	if err := s.repo.Save(ctx, user); err != nil {
		return fmt.Errorf("%w: %v", ErrRepository, err)
	}

	if err := s.mailer.SendOTP(ctx, email, otp, user.Name); err != nil {
		s.logger.Error("OTP delivery failed",
			zap.String("email", crypto.MaskEmail(email)), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	s.logger.Info("OTP issued", zap.String("account_id", user.ID))
	return nil
}

// VerifyOTP checks a submitted login OTP and issues a session on success.
func (s *AuthService) VerifyOTP(ctx context.Context, email, otp string) (*Session, error) {
	email = normalizeEmail(email)
	now := s.now()

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRepository, err)
	}

	if st := user.otpLockout(); st.Locked(now) {
		return nil, &OTPLockedError{Until: *st.LockedUntil}
	}

	if user.OTPHash == "" || user.OTPExpiresAt == nil || !user.OTPExpiresAt.After(now) {
		return nil, ErrOTPExpired
	}

	if !crypto.ConstantTimeEquals(crypto.HashToken(otp), user.OTPHash) {
		user.setOTPLockout(s.config.OTPLockout.RecordFailure(user.otpLockout(), now))
		if err := s.repo.Save(ctx, user); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRepository, err)
		}
		s.logger.Info("OTP verification failed",
			zap.String("account_id", user.ID),
			zap.Int("attempts", user.OTPAttempts))
		return nil, ErrInvalidOTP
	}

	user.OTPHash = ""
	user.OTPExpiresAt = nil
	user.setOTPLockout(s.config.OTPLockout.RecordSuccess(user.otpLockout()))
	// Receiving the code proves control of the mailbox.
	if user.IsOTPUser {
		user.EmailVerified = true
	}
	user.LastLoginAt = &now
	if err := s.repo.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRepository, err)
	}

	s.logger.Info("OTP login succeeded", zap.String("account_id", user.ID))
	return s.issueSession(user)
}
