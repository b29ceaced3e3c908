// Package auth exposes the visitor's session as read-only lookups over the
// durable store. Token issuance and refresh belong to the backend and are
// not handled here.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/amorokdeh/GemsFlare/internal/storage"
)

var ErrAuthRequired = errors.New("authentication required")

type Session struct {
	store storage.Store
}

func NewSession(store storage.Store) *Session {
	return &Session{store: store}
}

// Token returns the bearer token of the current session, or ErrAuthRequired
// when none is stored.
func (s *Session) Token(ctx context.Context) (string, error) {
	return s.lookup(ctx, storage.KeyToken)
}

// UserID returns the id of the signed-in user, or ErrAuthRequired.
func (s *Session) UserID(ctx context.Context) (string, error) {
	return s.lookup(ctx, storage.KeyUserID)
}

// Authenticated reports whether a token is present. It says nothing about
// token validity; the backend rejects stale tokens on use.
func (s *Session) Authenticated(ctx context.Context) bool {
	_, err := s.Token(ctx)
	return err == nil
}

func (s *Session) lookup(ctx context.Context, key string) (string, error) {
	data, err := s.store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return "", ErrAuthRequired
	}
	if err != nil {
		return "", fmt.Errorf("read session %s: %w", key, err)
	}
	if len(data) == 0 {
		return "", ErrAuthRequired
	}
	return string(data), nil
}
