// Package storage persists registrations and resolves webhook tokens to chats.
package storage

import (
	"context"
	"time"

	"github.com/Proton-105/pydt-bot/internal/domain"
	apperrors "github.com/Proton-105/pydt-bot/internal/errors"
)

// TokenStore is the durable registration storage.
//
// Get returns an ErrNotFound error when the user has no record. Put upserts
// by user id, last write wins. FindByToken returns the chat bound to token,
// ErrNotFound when no record carries it and ErrAmbiguousTokenMapping when
// more than one does. Backend failures are reported as ErrStorageUnavailable.
type TokenStore interface {
	Get(ctx context.Context, userID int64) (*domain.Registration, error)
	Put(ctx context.Context, reg *domain.Registration) error
	FindByToken(ctx context.Context, token string) (int64, error)
}

func errNotFound() error {
	return apperrors.NewNotFoundError("registration")
}

// exactlyOne applies the secondary-index rule: a token resolves only when a
// single registration carries it.
func exactlyOne(chatIDs []int64) (int64, error) {
	switch len(chatIDs) {
	case 0:
		return 0, errNotFound()
	case 1:
		return chatIDs[0], nil
	default:
		return 0, apperrors.NewAmbiguousTokenError(len(chatIDs))
	}
}

type timeoutStore struct {
	next    TokenStore
	timeout time.Duration
}

// WithTimeout bounds every call to next by timeout.
func WithTimeout(next TokenStore, timeout time.Duration) TokenStore {
	if timeout <= 0 {
		return next
	}
	return &timeoutStore{next: next, timeout: timeout}
}

func (s *timeoutStore) Get(ctx context.Context, userID int64) (*domain.Registration, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.Get(ctx, userID)
}

func (s *timeoutStore) Put(ctx context.Context, reg *domain.Registration) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.Put(ctx, reg)
}

func (s *timeoutStore) FindByToken(ctx context.Context, token string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.next.FindByToken(ctx, token)
}
