// Package crypto provides the secret handling for shopauth.
//
// This package implements:
//   - Password hashing with bcrypt (adaptive, salted, slow)
//   - Deterministic SHA-256 hashing for OTPs and reset tokens
//   - Cryptographically secure OTP and token generation
//   - Constant-time comparison functions
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHashCost is the bcrypt cost factor. High enough to resist offline
// brute force on stolen hashes.
const PasswordHashCost = 12

// ResetTokenBytes is the entropy of a reset token before hex encoding.
const ResetTokenBytes = 32

// ErrEntropyUnavailable is returned when the secure random source fails.
// Fatal: there is no fallback to a weak source.
var ErrEntropyUnavailable = errors.New("crypto: secure random source unavailable")

// HashToken hashes an OTP or reset token with SHA-256 for storage. The same
// input always produces the same digest, so equality is checked by comparing
// stored digests; the plaintext is never persisted. OTPs and reset tokens
// are random and expiring, so a fast hash is sufficient here - passwords go
// through HashPassword instead.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// HashPassword hashes a password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordHashCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword checks a password against a bcrypt hash.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ConstantTimeEquals compares two strings in constant time.
func ConstantTimeEquals(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// GenerateOTP returns a 6-digit numeric code drawn uniformly from
// 100000-999999, so the code is always exactly 6 ASCII digits.
func GenerateOTP() (string, error) {
	n, err := randomUint64(900000)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", 100000+n), nil
}

// GenerateResetToken returns a hex-encoded token with 256 bits of entropy.
func GenerateResetToken() (string, error) {
	b := make([]byte, ResetTokenBytes)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEntropyUnavailable, err)
	}
	return hex.EncodeToString(b), nil
}

// randomUint64 returns a uniform value in [0, max) via rejection sampling.
func randomUint64(max uint64) (uint64, error) {
	limit := (^uint64(0) / max) * max
	var buf [8]byte
	for {
		if _, err := io.ReadFull(rand.Reader, buf[:]); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrEntropyUnavailable, err)
		}
		v := binary.BigEndian.Uint64(buf[:])
		if v < limit {
			return v % max, nil
		}
	}
}

// MaskEmail masks an email address for display (e.g. jo****@example.com).
func MaskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return "***"
	}
	local := email[:at]
	domain := email[at+1:]

	masked := local[:1]
	if len(local) > 2 {
		masked = local[:2]
	}
	return masked + strings.Repeat("*", 4) + "@" + domain
}
