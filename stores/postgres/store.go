// Package postgres provides a PostgreSQL implementation of
// shopauth.UserRepository.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/URK23CS1233/shopauth"
)

// Schema is the DDL for the users table this repository expects.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id                     TEXT PRIMARY KEY,
	name                   TEXT NOT NULL,
	email                  TEXT NOT NULL UNIQUE,
	role                   TEXT NOT NULL DEFAULT 'user',
	password_hash          TEXT NOT NULL DEFAULT '',
	is_otp_user            BOOLEAN NOT NULL DEFAULT FALSE,
	email_verified         BOOLEAN NOT NULL DEFAULT FALSE,
	otp_hash               TEXT NOT NULL DEFAULT '',
	otp_expires_at         TIMESTAMPTZ,
	otp_attempts           INT NOT NULL DEFAULT 0,
	otp_locked_until       TIMESTAMPTZ,
	reset_token_hash       TEXT NOT NULL DEFAULT '',
	reset_token_expires_at TIMESTAMPTZ,
	login_attempts         INT NOT NULL DEFAULT 0,
	locked_until           TIMESTAMPTZ,
	last_login_at          TIMESTAMPTZ,
	created_at             TIMESTAMPTZ NOT NULL,
	updated_at             TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS users_reset_token_hash_idx ON users (reset_token_hash)
	WHERE reset_token_hash <> '';
`

const userColumns = `id, name, email, role, password_hash, is_otp_user, email_verified,
	otp_hash, otp_expires_at, otp_attempts, otp_locked_until,
	reset_token_hash, reset_token_expires_at,
	login_attempts, locked_until, last_login_at, created_at, updated_at`

// Repository implements shopauth.UserRepository for PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a repository backed by the given connection pool.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Migrate creates the users table if it does not exist.
func (r *Repository) Migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, Schema)
	return err
}

func scanUser(row pgx.Row) (*shopauth.User, error) {
	user := &shopauth.User{}
	err := row.Scan(
		&user.ID, &user.Name, &user.Email, &user.Role,
		&user.PasswordHash, &user.IsOTPUser, &user.EmailVerified,
		&user.OTPHash, &user.OTPExpiresAt, &user.OTPAttempts, &user.OTPLockedUntil,
		&user.ResetTokenHash, &user.ResetTokenExpiresAt,
		&user.LoginAttempts, &user.LockedUntil, &user.LastLoginAt,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, shopauth.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// FindByEmail looks up an account by its normalized email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*shopauth.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

// FindByID looks up an account by identifier.
func (r *Repository) FindByID(ctx context.Context, id string) (*shopauth.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// FindByResetTokenHash matches the stored reset-token hash and a still-future
// expiry in one query, so expired tokens never resolve to an account.
func (r *Repository) FindByResetTokenHash(ctx context.Context, tokenHash string) (*shopauth.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users
		WHERE reset_token_hash = $1 AND reset_token_hash <> '' AND reset_token_expires_at > NOW()`,
		tokenHash))
}

// Create inserts a new account, generating its ID and timestamps.
func (r *Repository) Create(ctx context.Context, user *shopauth.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		user.ID, user.Name, user.Email, user.Role,
		user.PasswordHash, user.IsOTPUser, user.EmailVerified,
		user.OTPHash, user.OTPExpiresAt, user.OTPAttempts, user.OTPLockedUntil,
		user.ResetTokenHash, user.ResetTokenExpiresAt,
		user.LoginAttempts, user.LockedUntil, user.LastLoginAt,
		user.CreatedAt, user.UpdatedAt,
	)
	return err
}

// Save writes the full account snapshot back to its row.
func (r *Repository) Save(ctx context.Context, user *shopauth.User) error {
	user.UpdatedAt = time.Now()
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET
			name = $2, email = $3, role = $4,
			password_hash = $5, is_otp_user = $6, email_verified = $7,
			otp_hash = $8, otp_expires_at = $9, otp_attempts = $10, otp_locked_until = $11,
			reset_token_hash = $12, reset_token_expires_at = $13,
			login_attempts = $14, locked_until = $15, last_login_at = $16,
			updated_at = $17
		WHERE id = $1`,
		user.ID, user.Name, user.Email, user.Role,
		user.PasswordHash, user.IsOTPUser, user.EmailVerified,
		user.OTPHash, user.OTPExpiresAt, user.OTPAttempts, user.OTPLockedUntil,
		user.ResetTokenHash, user.ResetTokenExpiresAt,
		user.LoginAttempts, user.LockedUntil, user.LastLoginAt,
		user.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shopauth.ErrUserNotFound
	}
	return nil
}

// WithDatabase returns a shopauth.Option that configures PostgreSQL storage:
//
//	shopauth.New(postgres.WithDatabase(pool), ...)
func WithDatabase(pool *pgxpool.Pool) shopauth.Option {
	return func(s *shopauth.AuthService) error {
		return shopauth.WithRepository(New(pool))(s)
	}
}
