// Package memstore provides in-process implementations of the user store and identity lock
// for development and tests. State is lost when the process exits.
package memstore

import (
	"context"
	"errors"
	"sync"
	"time"

	domainauth "github.com/cmpt474/mm-login-gateway/internal/domain/auth"
	"github.com/cmpt474/mm-login-gateway/internal/ports"
)

var _ ports.UserStore = (*UserStore)(nil)

// UserStore is a mutex-guarded map from identity to user record.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]domainauth.User
	now   func() time.Time
}

// NewUserStore returns an empty store. A nil clock uses time.Now.
func NewUserStore(now func() time.Time) *UserStore {
	if now == nil {
		now = time.Now
	}
	return &UserStore{users: make(map[string]domainauth.User), now: now}
}

// Exists reports whether identity has a record.
func (s *UserStore) Exists(ctx context.Context, identity string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[identity]
	return ok, nil
}

// Get returns a copy of the record, or domainauth.ErrUserNotFound.
func (s *UserStore) Get(ctx context.Context, identity string) (domainauth.User, error) {
	if err := ctx.Err(); err != nil {
		return domainauth.User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[identity]
	if !ok {
		return domainauth.User{}, domainauth.ErrUserNotFound
	}
	return u, nil
}

// Create checks and writes under one lock, so it never overwrites.
func (s *UserStore) Create(ctx context.Context, nu domainauth.NewUser) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if nu.Identity == "" {
		return false, errors.New("memstore: identity cannot be empty")
	}
	role := nu.Role
	if role == "" {
		role = domainauth.DefaultRole
	}
	if !role.Valid() {
		return false, errors.New("memstore: invalid role")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[nu.Identity]; ok {
		return false, nil
	}
	now := s.now().UTC()
	s.users[nu.Identity] = domainauth.User{
		Identity:  nu.Identity,
		Role:      role,
		AuthHash:  nu.AuthHash,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return true, nil
}

// Update applies upd to an existing record, reporting false when identity is unknown.
func (s *UserStore) Update(ctx context.Context, identity string, upd domainauth.UserUpdate) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if upd.Role != nil && !upd.Role.Valid() {
		return false, errors.New("memstore: invalid role")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[identity]
	if !ok {
		return false, nil
	}
	if upd.IsEmpty() {
		return true, nil
	}
	if upd.Role != nil {
		u.Role = *upd.Role
	}
	u.UpdatedAt = s.now().UTC()
	s.users[identity] = u
	return true, nil
}

// Len reports how many records exist.
func (s *UserStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}
