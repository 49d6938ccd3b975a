package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whisperwall/whisperwall/internal/auth"
	"github.com/whisperwall/whisperwall/internal/store"
	"github.com/whisperwall/whisperwall/internal/store/memory"
)

func TestRegisterThenVerify(t *testing.T) {
	users := memory.NewUserStore()
	verifier := auth.NewVerifier(users)
	ctx := context.Background()

	registered, err := verifier.Register(ctx, "alice", "s3cretpass")
	require.NoError(t, err)
	require.NotEmpty(t, registered.ID)
	assert.NotEqual(t, "s3cretpass", registered.PasswordHash, "password must never be stored in plaintext")

	verified, err := verifier.Verify(ctx, "alice", "s3cretpass")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, verified.ID)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	users := memory.NewUserStore()
	verifier := auth.NewVerifier(users)
	ctx := context.Background()

	_, err := verifier.Register(ctx, "alice", "s3cretpass")
	require.NoError(t, err)

	_, err = verifier.Register(ctx, "alice", "otherpass")
	assert.ErrorIs(t, err, store.ErrDuplicateUsername)
}

func TestVerifyFailures(t *testing.T) {
	users := memory.NewUserStore()
	verifier := auth.NewVerifier(users)
	ctx := context.Background()

	_, err := verifier.Register(ctx, "alice", "s3cretpass")
	require.NoError(t, err)

	// A purely-federated account has no password hash.
	_, err = users.FindOrCreate(ctx, store.Criteria{Username: "google-42", GoogleID: "google-42"})
	require.NoError(t, err)

	tests := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "alice", "wrongpass"},
		{"unknown user", "bob", "s3cretpass"},
		{"federated-only account", "google-42", "anything"},
		{"empty password", "alice", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(ctx, tt.username, tt.password)
			assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
		})
	}
}

func TestCompleteLogin(t *testing.T) {
	users := memory.NewUserStore()
	federation := auth.NewFederation(users)
	ctx := context.Background()

	first, err := federation.CompleteLogin(ctx, auth.ProviderGoogle, "g-123")
	require.NoError(t, err)
	assert.Equal(t, "g-123", first.Username)
	assert.Equal(t, "g-123", first.GoogleID)
	assert.Empty(t, first.FacebookID)

	// Second login with the same profile hits the same record.
	second, err := federation.CompleteLogin(ctx, auth.ProviderGoogle, "g-123")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	fb, err := federation.CompleteLogin(ctx, auth.ProviderFacebook, "f-456")
	require.NoError(t, err)
	assert.Equal(t, "f-456", fb.FacebookID)
	assert.NotEqual(t, first.ID, fb.ID)
}

func TestCompleteLoginRejectsBadInput(t *testing.T) {
	users := memory.NewUserStore()
	federation := auth.NewFederation(users)
	ctx := context.Background()

	_, err := federation.CompleteLogin(ctx, auth.ProviderGoogle, "")
	assert.ErrorIs(t, err, auth.ErrAuthFailure)

	_, err = federation.CompleteLogin(ctx, auth.Provider("myspace"), "m-1")
	assert.ErrorIs(t, err, auth.ErrAuthFailure)
}
