package shopauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/URK23CS1233/shopauth/crypto"
)

// dummyHash is a bcrypt digest of random input, compared against when the
// account does not exist so that lookups and mismatches take the same time.
const dummyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a password account, sends the welcome email, and issues a
// session.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*Session, error) {
	email = normalizeEmail(email)

	_, err := s.repo.FindByEmail(ctx, email)
	if err == nil {
		return nil, ErrEmailAlreadyExists
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrRepository, err)
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &User{
		Name:         name,
		Email:        email,
		Role:         RoleUser,
		PasswordHash: hash,
		IsOTPUser:    false,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRepository, err)
	}

	// Welcome mail is best-effort; registration already succeeded.
	if err := s.mailer.SendWelcome(ctx, email, name); err != nil {
		s.logger.Warn("welcome email failed", zap.String("email", crypto.MaskEmail(email)), zap.Error(err))
	}

	s.logger.Info("account registered", zap.String("account_id", user.ID))
	return s.issueSession(user)
}

// LoginWithPassword authenticates by email and password.
//
// The lockout state is checked before any comparison, and every failed
// comparison is persisted before the error is returned, so a crash between
// persistence and response still counts the attempt.
func (s *AuthService) LoginWithPassword(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	now := s.now()

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Equalize timing with the password-mismatch path; absence must
			// look identical to a wrong password.
			crypto.VerifyPassword(password, dummyHash)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", ErrRepository, err)
	}

	if st := user.loginLockout(); st.Locked(now) {
		return nil, &LockedError{Until: *st.LockedUntil}
	}

	if !user.HasPassword() || !crypto.VerifyPassword(password, user.PasswordHash) {
		user.setLoginLockout(s.config.LoginLockout.RecordFailure(user.loginLockout(), now))
		if err := s.repo.Save(ctx, user); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRepository, err)
		}
		s.logger.Info("login failed",
			zap.String("account_id", user.ID),
			zap.Int("attempts", user.LoginAttempts))
		return nil, ErrInvalidCredentials
	}

	user.setLoginLockout(s.config.LoginLockout.RecordSuccess(user.loginLockout()))
	user.LastLoginAt = &now
	if err := s.repo.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRepository, err)
	}

	s.logger.Info("login succeeded", zap.String("account_id", user.ID))
	return s.issueSession(user)
}

// ChangePassword replaces the password of an authenticated account after
// verifying the current one. Login lockout state is left untouched.
func (s *AuthService) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error {
	user, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("%w: %v", ErrRepository, err)
	}

	if !user.HasPassword() {
		return ErrNotPasswordAccount
	}
	if !crypto.VerifyPassword(currentPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}

	hash, err := crypto.HashPassword(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	if err := s.repo.Save(ctx, user); err != nil {
		return fmt.Errorf("%w: %v", ErrRepository, err)
	}

	s.logger.Info("password changed", zap.String("account_id", user.ID))
	return nil
}

// GetAccount returns the account for an authenticated caller.
func (s *AuthService) GetAccount(ctx context.Context, accountID string) (*User, error) {
	user, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRepository, err)
	}
	return user, nil
}

func (s *AuthService) issueSession(user *User) (*Session, error) {
	token, err := crypto.NewSessionToken(s.jwtSecret, s.config.AppName, user.ID, user.Email, user.Role, user.EmailVerified, s.config.SessionTTL)
	if err != nil {
		return nil, err
	}
	return &Session{
		Token:         token,
		AccountID:     user.ID,
		Email:         user.Email,
		Role:          user.Role,
		EmailVerified: user.EmailVerified,
	}, nil
}
