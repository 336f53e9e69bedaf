package shopauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/URK23CS1233/shopauth/crypto"
)

// RequestResetLink starts a link-based password reset.
//
// Unknown emails return nil so the response cannot be used to enumerate
// accounts. OTP-only accounts get a distinct error: the link flow requires a
// password account, and a silent ack would strand those users.
func (s *AuthService) RequestResetLink(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	now := s.now()

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRepository, err)
	}

	if user.IsOTPUser {
		return ErrLinkResetUnsupported
	}

	token, err := crypto.GenerateResetToken()
	if err != nil {
		return err
	}

	expires := now.Add(s.config.ResetTokenTTL)
	user.ResetTokenHash = crypto.HashToken(token)
	user.ResetTokenExpiresAt = &expires
	if err := s.repo.Save(ctx, user); err != nil {
		return fmt.Errorf("%w: %v", ErrRepository, err)
	}

	link := strings.TrimRight(s.config.AppBaseURL, "/") + "/reset-password/" + token
	if err := s.mailer.SendPasswordResetLink(ctx, email, link, user.Name); err != nil {
		// Clear the slot: a stored token nobody received would block the
		// account on a credential it can never learn.
		user.ResetTokenHash = ""
		user.ResetTokenExpiresAt = nil
		if saveErr := s.repo.Save(ctx, user); saveErr != nil {
			s.logger.Error("reset state rollback failed",
				zap.String("account_id", user.ID), zap.Error(saveErr))
		}
		s.logger.Error("reset link delivery failed",
			zap.String("email", crypto.MaskEmail(email)), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	s.logger.Info("reset link issued", zap.String("account_id", user.ID))
	return nil
}

// RequestResetOTP starts an OTP-based password reset. The code shares the
// reset-token slot with the link flow, so starting either overwrites the
// other.
func (s *AuthService) RequestResetOTP(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	now := s.now()

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil
		}
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
	user.ResetTokenHash = crypto.HashToken(otp)
	user.ResetTokenExpiresAt = &expires
	user.OTPAttempts = 0
	if err := s.repo.Save(ctx, user); err != nil {
		return fmt.Errorf("%w: %v", ErrRepository, err)
	}

	if err := s.mailer.SendPasswordResetOTP(ctx, email, otp, user.Name); err != nil {
		user.ResetTokenHash = ""
		user.ResetTokenExpiresAt = nil
		if saveErr := s.repo.Save(ctx, user); saveErr != nil {
			s.logger.Error("reset state rollback failed",
				zap.String("account_id", user.ID), zap.Error(saveErr))
		}
		s.logger.Error("reset OTP delivery failed",
			zap.String("email", crypto.MaskEmail(email)), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	s.logger.Info("reset OTP issued", zap.String("account_id", user.ID))
	return nil
}

// ResetWithToken completes a link-based reset. The lookup matches the token
// hash and the expiry in a single repository query; a successful reset
// clears the slot and the login lockout - proving control of the mailbox
// overrides a prior lock.
func (s *AuthService) ResetWithToken(ctx context.Context, token, newPassword string) error {
	user, err := s.repo.FindByResetTokenHash(ctx, crypto.HashToken(token))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("%w: %v", ErrRepository, err)
	}

	hash, err := crypto.HashPassword(newPassword)
	if err != nil {
		return err
	}

	user.PasswordHash = hash
	user.ResetTokenHash = ""
	user.ResetTokenExpiresAt = nil
	user.setLoginLockout(LockoutState{})
	if err := s.repo.Save(ctx, user); err != nil {
		return fmt.Errorf("%w: %v", ErrRepository, err)
	}

	s.logger.Info("password reset by link", zap.String("account_id", user.ID))
	return nil
}

// ResetWithOTP completes an OTP-based reset, authenticated by the email+OTP
// pair rather than a hash lookup.
//
// The hash comparison runs before the expiry check: a wrong guess counts
// toward the OTP lock even when the stored code has already expired, and an
// expired code that matches fails with ErrOTPExpired without touching the
// counter. reset_test.go pins this ordering.
func (s *AuthService) ResetWithOTP(ctx context.Context, email, otp, newPassword string) error {
	email = normalizeEmail(email)
	now := s.now()

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("%w: %v", ErrRepository, err)
	}

	if st := user.otpLockout(); st.Locked(now) {
		return &OTPLockedError{Until: *st.LockedUntil}
	}

	if user.ResetTokenHash == "" || !crypto.ConstantTimeEquals(crypto.HashToken(otp), user.ResetTokenHash) {
		user.setOTPLockout(s.config.OTPLockout.RecordFailure(user.otpLockout(), now))
		if err := s.repo.Save(ctx, user); err != nil {
			return fmt.Errorf("%w: %v", ErrRepository, err)
		}
		s.logger.Info("reset OTP verification failed",
			zap.String("account_id", user.ID),
			zap.Int("attempts", user.OTPAttempts))
		return ErrInvalidOTP
	}

	if user.ResetTokenExpiresAt == nil || !user.ResetTokenExpiresAt.After(now) {
		return ErrOTPExpired
	}

	hash, err := crypto.HashPassword(newPassword)
	if err != nil {
		return err
	}

	user.PasswordHash = hash
	user.ResetTokenHash = ""
	user.ResetTokenExpiresAt = nil
	user.setLoginLockout(LockoutState{})
	user.setOTPLockout(s.config.OTPLockout.RecordSuccess(user.otpLockout()))
	// The account now has a password, so it is no longer OTP-only.
	user.IsOTPUser = false
	if err := s.repo.Save(ctx, user); err != nil {
		return fmt.Errorf("%w: %v", ErrRepository, err)
	}

	s.logger.Info("password reset by OTP", zap.String("account_id", user.ID))
	return nil
}
