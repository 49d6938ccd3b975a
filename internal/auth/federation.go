package auth

import (
	"context"
	"fmt"

	"github.com/whisperwall/whisperwall/internal/store"
)

// Provider names the supported federated identity providers.
type Provider string

const (
	ProviderGoogle   Provider = "google"
	ProviderFacebook Provider = "facebook"
)

// Federation maps external provider profile IDs to local user records.
// Only the profile ID is persisted; no email or display name crosses
// this boundary.
type Federation struct {
	users store.UserStore
}

func NewFederation(users store.UserStore) *Federation {
	return &Federation{users: users}
}

// CompleteLogin finds the user whose provider ID matches profileID, or
// creates one with the profile ID doubling as username. Calling it twice
// with the same provider and profile ID returns the same record.
func (f *Federation) CompleteLogin(ctx context.Context, provider Provider, profileID string) (*store.User, error) {
	if profileID == "" {
		return nil, fmt.Errorf("%w: empty profile id from %s", ErrAuthFailure, provider)
	}

	criteria := store.Criteria{Username: profileID}
	switch provider {
	case ProviderGoogle:
		criteria.GoogleID = profileID
	case ProviderFacebook:
		criteria.FacebookID = profileID
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrAuthFailure, provider)
	}

	user, err := f.users.FindOrCreate(ctx, criteria)
	if err != nil {
		return nil, fmt.Errorf("find or create %s user: %w", provider, err)
	}
	return user, nil
}
