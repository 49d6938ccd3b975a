// Package memory provides an in-memory UserStore used by tests and
// local development. It mirrors the semantics of the mongo store,
// including FindOrCreate atomicity (here a plain mutex).
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/whisperwall/whisperwall/internal/store"
)

type UserStore struct {
	mu     sync.RWMutex
	byID   map[string]*store.User
	byName map[string]string // username -> id
}

func NewUserStore() *UserStore {
	return &UserStore{
		byID:   map[string]*store.User{},
		byName: map[string]string{},
	}
}

func (s *UserStore) FindByID(ctx context.Context, id string) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return clone(user), nil
}

func (s *UserStore) FindByUsername(ctx context.Context, username string) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	return clone(s.byID[id]), nil
}

func (s *UserStore) FindOrCreate(ctx context.Context, criteria store.Criteria) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byName[criteria.Username]; ok {
		return clone(s.byID[id]), nil
	}
	now := time.Now().UTC()
	user := &store.User{
		ID:         uuid.NewString(),
		Username:   criteria.Username,
		GoogleID:   criteria.GoogleID,
		FacebookID: criteria.FacebookID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.byID[user.ID] = clone(user)
	s.byName[user.Username] = user.ID
	return user, nil
}

func (s *UserStore) Create(ctx context.Context, user *store.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byName[user.Username]; ok {
		return store.ErrDuplicateUsername
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	s.byID[user.ID] = clone(user)
	s.byName[user.Username] = user.ID
	return nil
}

func (s *UserStore) Save(ctx context.Context, user *store.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.byID[user.ID]; ok {
		delete(s.byName, prev.Username)
	}
	user.UpdatedAt = time.Now().UTC()
	s.byID[user.ID] = clone(user)
	s.byName[user.Username] = user.ID
	return nil
}

func (s *UserStore) FindWithSecrets(ctx context.Context) ([]*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*store.User
	for _, user := range s.byID {
		if user.HasSecret() {
			out = append(out, clone(user))
		}
	}
	return out, nil
}

func clone(u *store.User) *store.User {
	cp := *u
	if u.Secret != nil {
		secret := *u.Secret
		cp.Secret = &secret
	}
	return &cp
}
