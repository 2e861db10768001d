package storage

import (
	"context"
	"errors"

	"github.com/Proton-105/pydt-bot/internal/domain"
	apperrors "github.com/Proton-105/pydt-bot/internal/errors"
)

type breakerStore struct {
	next TokenStore
	cb   *apperrors.CircuitBreaker
}

// WithBreaker guards next with a circuit breaker. Only storage outages count
// as failures; misses and ambiguous mappings pass through untouched. While
// the breaker is open calls fail fast with ErrStorageUnavailable.
func WithBreaker(next TokenStore, settings apperrors.BreakerSettings) TokenStore {
	settings.IsFailure = func(err error) bool {
		return errors.Is(err, apperrors.ErrStorageUnavailable)
	}
	return &breakerStore{next: next, cb: apperrors.NewCircuitBreaker(settings)}
}

func (s *breakerStore) Get(ctx context.Context, userID int64) (*domain.Registration, error) {
	var reg *domain.Registration
	err := s.cb.Call(func() error {
		var callErr error
		reg, callErr = s.next.Get(ctx, userID)
		return callErr
	})
	return reg, s.translate("get", err)
}

func (s *breakerStore) Put(ctx context.Context, reg *domain.Registration) error {
	err := s.cb.Call(func() error {
		return s.next.Put(ctx, reg)
	})
	return s.translate("put", err)
}

func (s *breakerStore) FindByToken(ctx context.Context, token string) (int64, error) {
	var chatID int64
	err := s.cb.Call(func() error {
		var callErr error
		chatID, callErr = s.next.FindByToken(ctx, token)
		return callErr
	})
	return chatID, s.translate("find_by_token", err)
}

func (s *breakerStore) translate(op string, err error) error {
	if apperrors.IsOpenError(err) {
		return apperrors.NewStorageError(op, err)
	}
	return err
}
