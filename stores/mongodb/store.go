// Package mongodb provides a MongoDB implementation of
// shopauth.UserRepository.
package mongodb

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/URK23CS1233/shopauth"
)

// Repository implements shopauth.UserRepository backed by a users collection.
type Repository struct {
	users *mongo.Collection
}

// New creates the repository and ensures its indexes.
func New(client *mongo.Client, dbName string) *Repository {
	r := &Repository{users: client.Database(dbName).Collection("users")}
	r.ensureIndexes(context.Background())
	return r
}

func (r *Repository) ensureIndexes(ctx context.Context) {
	_, _ = r.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "reset_token_hash", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
}

type userDoc struct {
	ID            string `bson:"_id"`
	Name          string `bson:"name"`
	Email         string `bson:"email"`
	Role          string `bson:"role"`
	PasswordHash  string `bson:"password_hash,omitempty"`
	IsOTPUser     bool   `bson:"is_otp_user"`
	EmailVerified bool   `bson:"email_verified"`

	OTPHash        string     `bson:"otp_hash,omitempty"`
	OTPExpiresAt   *time.Time `bson:"otp_expires_at,omitempty"`
	OTPAttempts    int        `bson:"otp_attempts"`
	OTPLockedUntil *time.Time `bson:"otp_locked_until,omitempty"`

	ResetTokenHash      string     `bson:"reset_token_hash,omitempty"`
	ResetTokenExpiresAt *time.Time `bson:"reset_token_expires_at,omitempty"`

	LoginAttempts int        `bson:"login_attempts"`
	LockedUntil   *time.Time `bson:"locked_until,omitempty"`
	LastLoginAt   *time.Time `bson:"last_login_at,omitempty"`

	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func toDoc(u *shopauth.User) userDoc {
	return userDoc{
		ID:                  u.ID,
		Name:                u.Name,
		Email:               u.Email,
		Role:                u.Role,
		PasswordHash:        u.PasswordHash,
		IsOTPUser:           u.IsOTPUser,
		EmailVerified:       u.EmailVerified,
		OTPHash:             u.OTPHash,
		OTPExpiresAt:        u.OTPExpiresAt,
		OTPAttempts:         u.OTPAttempts,
		OTPLockedUntil:      u.OTPLockedUntil,
		ResetTokenHash:      u.ResetTokenHash,
		ResetTokenExpiresAt: u.ResetTokenExpiresAt,
		LoginAttempts:       u.LoginAttempts,
		LockedUntil:         u.LockedUntil,
		LastLoginAt:         u.LastLoginAt,
		CreatedAt:           u.CreatedAt,
		UpdatedAt:           u.UpdatedAt,
	}
}

func fromDoc(d userDoc) *shopauth.User {
	return &shopauth.User{
		ID:                  d.ID,
		Name:                d.Name,
		Email:               d.Email,
		Role:                d.Role,
		PasswordHash:        d.PasswordHash,
		IsOTPUser:           d.IsOTPUser,
		EmailVerified:       d.EmailVerified,
		OTPHash:             d.OTPHash,
		OTPExpiresAt:        d.OTPExpiresAt,
		OTPAttempts:         d.OTPAttempts,
		OTPLockedUntil:      d.OTPLockedUntil,
		ResetTokenHash:      d.ResetTokenHash,
		ResetTokenExpiresAt: d.ResetTokenExpiresAt,
		LoginAttempts:       d.LoginAttempts,
		LockedUntil:         d.LockedUntil,
		LastLoginAt:         d.LastLoginAt,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
}

func (r *Repository) findOne(ctx context.Context, filter bson.M) (*shopauth.User, error) {
	var doc userDoc
	err := r.users.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, shopauth.ErrUserNotFound
		}
		return nil, err
	}
	return fromDoc(doc), nil
}

// FindByEmail looks up an account by its normalized email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*shopauth.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// FindByID looks up an account by identifier.
func (r *Repository) FindByID(ctx context.Context, id string) (*shopauth.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// FindByResetTokenHash matches the stored reset-token hash and a still-future
// expiry in one query, so expired tokens never resolve to an account.
func (r *Repository) FindByResetTokenHash(ctx context.Context, tokenHash string) (*shopauth.User, error) {
	return r.findOne(ctx, bson.M{
		"reset_token_hash":       tokenHash,
		"reset_token_expires_at": bson.M{"$gt": time.Now()},
	})
}

// Create inserts a new account, generating its ID and timestamps.
func (r *Repository) Create(ctx context.Context, user *shopauth.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.users.InsertOne(ctx, toDoc(user))
	return err
}

// Save replaces the stored document with the given snapshot.
func (r *Repository) Save(ctx context.Context, user *shopauth.User) error {
	user.UpdatedAt = time.Now()
	res, err := r.users.ReplaceOne(ctx, bson.M{"_id": user.ID}, toDoc(user))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return shopauth.ErrUserNotFound
	}
	return nil
}
