package shopauth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func doJSON(t *testing.T, h http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "203.0.113.7:51234"
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("response is not JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return m
}

func TestHandlerRegisterAndLogin(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	h := svc.Handler()

	rec := doJSON(t, h, http.MethodPost, "/register", map[string]string{
		"name":     "Ada Lovelace",
		"email":    "ada@example.com",
		"password": "Sup3rSecret",
	}, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, want 201\nbody: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	session, ok := body["session"].(map[string]any)
	if !ok || session["token"] == "" {
		t.Fatalf("register response has no session token: %v", body)
	}

	rec = doJSON(t, h, http.MethodPost, "/login", map[string]string{
		"email":    "ada@example.com",
		"password": "Sup3rSecret",
	}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, want 200\nbody: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPost, "/login", map[string]string{
		"email":    "ada@example.com",
		"password": "wrong-password",
	}, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong-password status = %d, want 401", rec.Code)
	}
	if got := decodeBody(t, rec)["code"]; got != CodeInvalidCredentials {
		t.Errorf("error code = %v, want %s", got, CodeInvalidCredentials)
	}
}

func TestHandlerRegisterValidation(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	h := svc.Handler()

	tests := []struct {
		name string
		body map[string]string
		code string
	}{
		{"bad email", map[string]string{"name": "Ada Lovelace", "email": "not-an-email", "password": "Sup3rSecret"}, CodeValidationFailed},
		{"short name", map[string]string{"name": "A", "email": "ada@example.com", "password": "Sup3rSecret"}, CodeValidationFailed},
		{"digits in name", map[string]string{"name": "Ada 1337", "email": "ada@example.com", "password": "Sup3rSecret"}, CodeValidationFailed},
		{"no uppercase", map[string]string{"name": "Ada Lovelace", "email": "ada@example.com", "password": "sup3rsecret"}, CodeWeakPassword},
		{"no digit", map[string]string{"name": "Ada Lovelace", "email": "ada@example.com", "password": "SuperSecret"}, CodeWeakPassword},
		{"too short", map[string]string{"name": "Ada Lovelace", "email": "ada@example.com", "password": "S3cret"}, CodeWeakPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, http.MethodPost, "/register", tt.body, "")
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if got := decodeBody(t, rec)["code"]; got != tt.code {
				t.Errorf("error code = %v, want %s", got, tt.code)
			}
		})
	}
}

func TestHandlerLockedResponse(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	h := svc.Handler()

	seedPasswordUser(t, repo, "ada@example.com", "Sup3rSecret")

	for i := 0; i < 5; i++ {
		doJSON(t, h, http.MethodPost, "/login", map[string]string{
			"email":    "ada@example.com",
			"password": "wrong-password",
		}, "")
	}

	rec := doJSON(t, h, http.MethodPost, "/login", map[string]string{
		"email":    "ada@example.com",
		"password": "Sup3rSecret",
	}, "")
	if rec.Code != http.StatusLocked {
		t.Fatalf("status = %d, want 423", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["code"] != CodeAccountLocked {
		t.Errorf("error code = %v, want %s", body["code"], CodeAccountLocked)
	}
	if body["locked_until"] == nil {
		t.Error("locked response must carry locked_until")
	}
}

// Every error body the surface writes is a serialized AuthError, so clients
// can rely on one shape: code + message, plus locked_until on lock errors.
func TestHandlerErrorBodyIsAuthError(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	h := svc.Handler()

	seedPasswordUser(t, repo, "ada@example.com", "Sup3rSecret")

	rec := doJSON(t, h, http.MethodPost, "/login", map[string]string{
		"email":    "ada@example.com",
		"password": "wrong-password",
	}, "")
	var authErr AuthError
	if err := json.Unmarshal(rec.Body.Bytes(), &authErr); err != nil {
		t.Fatalf("error body does not decode into AuthError: %v\nbody: %s", err, rec.Body.String())
	}
	if authErr.Code != CodeInvalidCredentials {
		t.Errorf("code = %q, want %s", authErr.Code, CodeInvalidCredentials)
	}
	if authErr.Message != ErrInvalidCredentials.Error() {
		t.Errorf("message = %q, want %q", authErr.Message, ErrInvalidCredentials.Error())
	}
	if authErr.LockedUntil != nil {
		t.Error("locked_until set on a non-lock error")
	}

	for i := 0; i < 4; i++ {
		doJSON(t, h, http.MethodPost, "/login", map[string]string{
			"email":    "ada@example.com",
			"password": "wrong-password",
		}, "")
	}

	rec = doJSON(t, h, http.MethodPost, "/login", map[string]string{
		"email":    "ada@example.com",
		"password": "Sup3rSecret",
	}, "")
	authErr = AuthError{}
	if err := json.Unmarshal(rec.Body.Bytes(), &authErr); err != nil {
		t.Fatalf("locked body does not decode into AuthError: %v", err)
	}
	if authErr.Code != CodeAccountLocked {
		t.Errorf("code = %q, want %s", authErr.Code, CodeAccountLocked)
	}
	if authErr.LockedUntil == nil {
		t.Error("lock error must carry locked_until")
	}
}

func TestHandlerForgotPasswordAntiEnumeration(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	h := svc.Handler()

	seedPasswordUser(t, repo, "known@example.com", "Sup3rSecret")

	known := doJSON(t, h, http.MethodPost, "/forgot-password", map[string]string{"email": "known@example.com"}, "")
	unknown := doJSON(t, h, http.MethodPost, "/forgot-password", map[string]string{"email": "unknown@example.com"}, "")

	if known.Code != http.StatusOK || unknown.Code != http.StatusOK {
		t.Fatalf("statuses = %d/%d, want 200/200", known.Code, unknown.Code)
	}
	if decodeBody(t, known)["message"] != decodeBody(t, unknown)["message"] {
		t.Error("known and unknown emails must get the same acknowledgment")
	}
}

func TestHandlerOTPFlow(t *testing.T) {
	svc, _, mailer, _ := newTestService(t)
	h := svc.Handler()

	rec := doJSON(t, h, http.MethodPost, "/request-otp", map[string]string{"email": "shopper@example.com"}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("request-otp status = %d, want 200\nbody: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["email"] != "sh****@example.com" {
		t.Errorf("response email = %v, want masked sh****@example.com", body["email"])
	}

	rec = doJSON(t, h, http.MethodPost, "/verify-otp", map[string]string{
		"email": "shopper@example.com",
		"otp":   mailer.lastOTP(t),
	}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("verify-otp status = %d, want 200\nbody: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPost, "/verify-otp", map[string]string{
		"email": "shopper@example.com",
		"otp":   "12345", // 5 digits
	}, "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed OTP status = %d, want 400", rec.Code)
	}
}

func TestHandlerMeAndChangePassword(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	h := svc.Handler()

	session, err := svc.Register(context.Background(), "Ada Lovelace", "ada@example.com", "Sup3rSecret")
	if err != nil {
		t.Fatal(err)
	}

	rec := doJSON(t, h, http.MethodGet, "/me", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated /me status = %d, want 401", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/me", nil, session.Token)
	if rec.Code != http.StatusOK {
		t.Fatalf("/me status = %d, want 200\nbody: %s", rec.Code, rec.Body.String())
	}
	user, ok := decodeBody(t, rec)["user"].(map[string]any)
	if !ok || user["email"] != "ada@example.com" {
		t.Errorf("/me user = %v", user)
	}

	rec = doJSON(t, h, http.MethodPost, "/change-password", map[string]string{
		"current_password": "Sup3rSecret",
		"new_password":     "NewPassw0rd",
	}, session.Token)
	if rec.Code != http.StatusOK {
		t.Fatalf("change-password status = %d, want 200\nbody: %s", rec.Code, rec.Body.String())
	}

	if _, err := svc.LoginWithPassword(context.Background(), "ada@example.com", "NewPassw0rd"); err != nil {
		t.Errorf("login with changed password failed: %v", err)
	}
}

// denyLimiter rejects every request.
type denyLimiter struct{}

func (denyLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	return false, 0, nil
}

func TestHandlerRateLimited(t *testing.T) {
	svc, _, _, _ := newTestService(t, WithRateLimiter(denyLimiter{}))
	h := svc.Handler()

	rec := doJSON(t, h, http.MethodPost, "/login", map[string]string{
		"email":    "ada@example.com",
		"password": "Sup3rSecret",
	}, "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if got := decodeBody(t, rec)["code"]; got != CodeRateLimited {
		t.Errorf("error code = %v, want %s", got, CodeRateLimited)
	}
}

// errorLimiter simulates an unreachable limiter backend.
type errorLimiter struct{}

func (errorLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	return false, 0, context.DeadlineExceeded
}

func TestHandlerRateLimiterFailsOpen(t *testing.T) {
	svc, repo, _, _ := newTestService(t, WithRateLimiter(errorLimiter{}))
	h := svc.Handler()

	seedPasswordUser(t, repo, "ada@example.com", "Sup3rSecret")

	rec := doJSON(t, h, http.MethodPost, "/login", map[string]string{
		"email":    "ada@example.com",
		"password": "Sup3rSecret",
	}, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("limiter backend failure should fail open, got %d", rec.Code)
	}
}
