// Package auth holds the credential verifier, the identity federation
// adapter and the session manager. Route handlers orchestrate these; no
// piece of it talks HTTP except the session middleware.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/whisperwall/whisperwall/internal/store"
)

var (
	// ErrInvalidCredentials covers every local login failure: unknown
	// username, federated-only account, wrong password. Callers cannot
	// tell them apart.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAuthFailure covers federated handshake failures and session
	// deserialization failures.
	ErrAuthFailure = errors.New("authentication failure")
)

// Verifier registers and validates local username/password accounts.
type Verifier struct {
	users store.UserStore
}

func NewVerifier(users store.UserStore) *Verifier {
	return &Verifier{users: users}
}

// Register creates a local account with a bcrypt-hashed password.
// Returns store.ErrDuplicateUsername when the username is taken.
func (v *Verifier) Register(ctx context.Context, username, password string) (*store.User, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password required", ErrInvalidCredentials)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &store.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
	}
	if err := v.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Verify validates a username/password pair against the stored hash.
func (v *Verifier) Verify(ctx context.Context, username, password string) (*store.User, error) {
	user, err := v.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	// Federated-only accounts have no hash and can never log in locally.
	if user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
