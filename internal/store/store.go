package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by lookups when no user matches.
	ErrNotFound = errors.New("user not found")

	// ErrDuplicateUsername is returned by Create when the username is taken.
	ErrDuplicateUsername = errors.New("username already taken")
)

// User is the single persisted entity. A user carries at least one
// authentication mechanism: a password hash, a Google ID or a Facebook ID.
// Federated users get their provider profile ID as the username.
type User struct {
	ID           string    `bson:"_id" json:"id"`
	Username     string    `bson:"username" json:"username"`
	PasswordHash string    `bson:"password_hash,omitempty" json:"-"`
	GoogleID     string    `bson:"google_id,omitempty" json:"google_id,omitempty"`
	FacebookID   string    `bson:"facebook_id,omitempty" json:"facebook_id,omitempty"`
	Secret       *string   `bson:"secret,omitempty" json:"secret,omitempty"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

// HasSecret distinguishes "never submitted" from an empty-string secret.
func (u *User) HasSecret() bool { return u.Secret != nil }

// SetSecret overwrites any prior secret. No history is kept.
func (u *User) SetSecret(text string) { u.Secret = &text }

// Criteria drives FindOrCreate. Username is the match key; the provider
// ID fields are set on the record only when it is newly created.
type Criteria struct {
	Username   string
	GoogleID   string
	FacebookID string
}

// UserStore is the persistence contract. FindOrCreate must be atomic:
// concurrent calls with the same criteria never create duplicate records.
// Implementations rely on a unique username index plus upsert semantics,
// not application-level locking.
type UserStore interface {
	FindByID(ctx context.Context, id string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindOrCreate(ctx context.Context, criteria Criteria) (*User, error)

	// Create inserts a new user, failing with ErrDuplicateUsername if the
	// username is already reserved.
	Create(ctx context.Context, user *User) error

	// Save replaces the stored record for user.ID (upsert).
	Save(ctx context.Context, user *User) error

	// FindWithSecrets returns every user whose secret is non-null.
	FindWithSecrets(ctx context.Context) ([]*User, error)
}
