package shopauth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/URK23CS1233/shopauth/crypto"
)

// Handler returns the chi router for the authentication endpoints. The core
// never depends on it; embedders can mount it or call the service directly.
func (s *AuthService) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.blanketRateLimit)

	r.Post("/register", s.handleRegister)
	r.Post("/login", s.handleLogin)
	r.Post("/request-otp", s.handleRequestOTP)
	r.Post("/verify-otp", s.handleVerifyOTP)
	r.Post("/forgot-password", s.handleForgotPassword)
	r.Post("/forgot-password-otp", s.handleForgotPasswordOTP)
	r.Post("/reset-password", s.handleResetPassword)
	r.Post("/reset-password-otp", s.handleResetPasswordOTP)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Post("/change-password", s.handleChangePassword)
		r.Get("/me", s.handleMe)
	})

	return r
}

// allowRateLimit consults the limiter; a missing limiter allows everything.
func (s *AuthService) allowRateLimit(ctx context.Context, key string, limit int, window time.Duration) bool {
	if s.limiter == nil || limit <= 0 {
		return true
	}
	allowed, _, err := s.limiter.Allow(ctx, key, limit, window)
	if err != nil {
		s.logger.Error("rate limiter error", zap.Error(err))
		// Fail open: the per-account lockout still bounds abuse.
		return true
	}
	return allowed
}

// blanketRateLimit applies the general per-IP limit to every auth endpoint.
func (s *AuthService) blanketRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limits := s.config.RateLimits
		if !s.allowRateLimit(r.Context(), "auth:"+clientIP(r), limits.AuthLimit, limits.AuthWindow) {
			writeError(w, http.StatusTooManyRequests, CodeRateLimited, ErrRateLimited.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

type sessionContextKey struct{}

// requireSession authenticates the bearer token and stores the claims in
// the request context.
func (s *AuthService) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing bearer token")
			return
		}
		claims, err := crypto.ParseSessionToken(s.jwtSecret, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid or expired token")
			return
		}
		ctx := context.WithValue(r.Context(), sessionContextKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionFromContext returns the authenticated session claims, if any.
func SessionFromContext(ctx context.Context) (*crypto.SessionClaims, bool) {
	claims, ok := ctx.Value(sessionContextKey{}).(*crypto.SessionClaims)
	return claims, ok
}

// writeAuthError maps the error taxonomy to HTTP responses. Lock errors
// carry the expiry so clients can tell the user when to retry.
func (s *AuthService) writeAuthError(w http.ResponseWriter, err error) {
	var locked *LockedError
	var otpLocked *OTPLockedError
	switch {
	case errors.As(err, &locked):
		authErr := newAuthError(CodeAccountLocked, locked.Error(), locked)
		authErr.LockedUntil = &locked.Until
		writeJSON(w, http.StatusLocked, authErr)
	case errors.As(err, &otpLocked):
		authErr := newAuthError(CodeOTPLocked, otpLocked.Error(), otpLocked)
		authErr.LockedUntil = &otpLocked.Until
		writeJSON(w, http.StatusLocked, authErr)
	case errors.Is(err, ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, CodeInvalidCredentials, ErrInvalidCredentials.Error())
	case errors.Is(err, ErrInvalidOTP):
		writeError(w, http.StatusBadRequest, CodeInvalidOTP, ErrInvalidOTP.Error())
	case errors.Is(err, ErrOTPExpired):
		writeError(w, http.StatusBadRequest, CodeOTPExpired, ErrOTPExpired.Error())
	case errors.Is(err, ErrInvalidResetToken):
		writeError(w, http.StatusBadRequest, CodeInvalidResetToken, ErrInvalidResetToken.Error())
	case errors.Is(err, ErrNotPasswordAccount):
		writeError(w, http.StatusBadRequest, CodeNotPasswordAccount, ErrNotPasswordAccount.Error())
	case errors.Is(err, ErrLinkResetUnsupported):
		writeError(w, http.StatusBadRequest, CodeLinkResetUnsupported, ErrLinkResetUnsupported.Error())
	case errors.Is(err, ErrUserNotFound):
		writeError(w, http.StatusNotFound, CodeUserNotFound, ErrUserNotFound.Error())
	case errors.Is(err, ErrEmailAlreadyExists):
		writeError(w, http.StatusConflict, CodeEmailExists, ErrEmailAlreadyExists.Error())
	case errors.Is(err, ErrWeakPassword):
		writeError(w, http.StatusBadRequest, CodeWeakPassword, ErrWeakPassword.Error())
	case errors.Is(err, ErrDeliveryFailed):
		writeError(w, http.StatusInternalServerError, CodeDeliveryFailed, "failed to send email, please try again")
	default:
		s.logger.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternalError, "internal server error")
	}
}

func (s *AuthService) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limits := s.config.RateLimits
	if !s.allowRateLimit(ctx, "register:"+clientIP(r), limits.RegisterLimit, limits.RegisterWindow) {
		writeError(w, http.StatusTooManyRequests, CodeRateLimited, ErrRateLimited.Error())
		return
	}

	var req registerRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return
	}
	if !validateName(req.Name) {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "name must be 2-50 letters and spaces")
		return
	}
	if !isValidEmail(normalizeEmail(req.Email)) {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "invalid email address")
		return
	}
	if err := validatePassword(req.Password); err != nil {
		s.writeAuthError(w, err)
		return
	}

	session, err := s.Register(ctx, strings.TrimSpace(req.Name), req.Email, req.Password)
	if err != nil {
		s.writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "registered successfully",
		"session": session,
	})
}

func (s *AuthService) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limits := s.config.RateLimits
	if !s.allowRateLimit(ctx, "login:"+clientIP(r), limits.LoginLimit, limits.LoginWindow) {
		writeError(w, http.StatusTooManyRequests, CodeRateLimited, ErrRateLimited.Error())
		return
	}

	var req loginRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return
	}
	if !isValidEmail(normalizeEmail(req.Email)) || req.Password == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "email and password are required")
		return
	}

	session, err := s.LoginWithPassword(ctx, req.Email, req.Password)
	if err != nil {
		s.writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "login successful",
		"session": session,
	})
}

func (s *AuthService) handleRequestOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limits := s.config.RateLimits
	if !s.allowRateLimit(ctx, "otp:"+clientIP(r), limits.OTPLimit, limits.OTPWindow) {
		writeError(w, http.StatusTooManyRequests, CodeRateLimited, ErrRateLimited.Error())
		return
	}

	var req otpRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return
	}
	email := normalizeEmail(req.Email)
	if !isValidEmail(email) {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "invalid email address")
		return
	}

	if err := s.RequestOTP(ctx, email); err != nil {
		s.writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "OTP sent successfully",
		"email":      crypto.MaskEmail(email),
		"expires_in": s.config.OTPTTL.String(),
	})
}

func (s *AuthService) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req otpVerifyRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return
	}
	if !isValidEmail(normalizeEmail(req.Email)) || !isValidOTP(req.OTP) {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "email and 6-digit OTP are required")
		return
	}

	session, err := s.VerifyOTP(ctx, req.Email, req.OTP)
	if err != nil {
		s.writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "OTP verified successfully",
		"session": session,
	})
}

// genericResetAck is returned for both known and unknown emails so reset
// requests cannot be used to probe which accounts exist.
func genericResetAck(w http.ResponseWriter, email string) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "if an account with that email exists, reset instructions have been sent",
		"email":   crypto.MaskEmail(email),
	})
}

func (s *AuthService) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limits := s.config.RateLimits
	if !s.allowRateLimit(ctx, "reset:"+clientIP(r), limits.PasswordResetLimit, limits.PasswordResetWindow) {
		writeError(w, http.StatusTooManyRequests, CodeRateLimited, ErrRateLimited.Error())
		return
	}

	var req forgotPasswordRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return
	}
	email := normalizeEmail(req.Email)
	if !isValidEmail(email) {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "invalid email address")
		return
	}

	if err := s.RequestResetLink(ctx, email); err != nil {
		s.writeAuthError(w, err)
		return
	}
	genericResetAck(w, email)
}

func (s *AuthService) handleForgotPasswordOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limits := s.config.RateLimits
	if !s.allowRateLimit(ctx, "reset:"+clientIP(r), limits.PasswordResetLimit, limits.PasswordResetWindow) {
		writeError(w, http.StatusTooManyRequests, CodeRateLimited, ErrRateLimited.Error())
		return
	}

	var req forgotPasswordRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return
	}
	email := normalizeEmail(req.Email)
	if !isValidEmail(email) {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "invalid email address")
		return
	}

	if err := s.RequestResetOTP(ctx, email); err != nil {
		s.writeAuthError(w, err)
		return
	}
	genericResetAck(w, email)
}

func (s *AuthService) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req resetPasswordRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "reset token is required")
		return
	}
	if err := validatePassword(req.Password); err != nil {
		s.writeAuthError(w, err)
		return
	}

	if err := s.ResetWithToken(ctx, req.Token, req.Password); err != nil {
		s.writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "password reset successfully, you can now login with your new password",
	})
}

func (s *AuthService) handleResetPasswordOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req resetPasswordOTPRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return
	}
	if !isValidEmail(normalizeEmail(req.Email)) || !isValidOTP(req.OTP) {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "email and 6-digit OTP are required")
		return
	}
	if err := validatePassword(req.Password); err != nil {
		s.writeAuthError(w, err)
		return
	}

	if err := s.ResetWithOTP(ctx, req.Email, req.OTP, req.Password); err != nil {
		s.writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "password reset successfully, you can now login with your new password",
	})
}

func (s *AuthService) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, ok := SessionFromContext(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
		return
	}

	var req changePasswordRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return
	}
	if req.CurrentPassword == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "current password is required")
		return
	}
	if err := validatePassword(req.NewPassword); err != nil {
		s.writeAuthError(w, err)
		return
	}

	if err := s.ChangePassword(ctx, claims.Subject, req.CurrentPassword, req.NewPassword); err != nil {
		s.writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "password changed successfully",
	})
}

func (s *AuthService) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, ok := SessionFromContext(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, CodeUnauthorized, "authentication required")
		return
	}

	user, err := s.GetAccount(ctx, claims.Subject)
	if err != nil {
		s.writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user": map[string]any{
			"id":             user.ID,
			"name":           user.Name,
			"email":          user.Email,
			"role":           user.Role,
			"email_verified": user.EmailVerified,
			"is_otp_user":    user.IsOTPUser,
			"last_login_at":  user.LastLoginAt,
			"created_at":     user.CreatedAt,
		},
	})
}
