package storage

import (
	"context"
	"sync"
	"time"

	"github.com/Proton-105/pydt-bot/internal/domain"
)

// MemoryStore keeps registrations in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	byUser  map[int64]domain.Registration
	byToken map[string]map[int64]struct{}
	now     func() time.Time
}

var _ TokenStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory TokenStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byUser:  make(map[int64]domain.Registration),
		byToken: make(map[string]map[int64]struct{}),
		now:     time.Now,
	}
}

// Get returns a copy of the user's registration or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, userID int64) (*domain.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reg, ok := s.byUser[userID]
	if !ok {
		return nil, errNotFound()
	}

	return &reg, nil
}

// Put upserts reg and moves its token index entry when the token changed.
func (s *MemoryStore) Put(_ context.Context, reg *domain.Registration) error {
	if reg == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.byUser[reg.UserID]; ok && prev.Token != "" && prev.Token != reg.Token {
		s.unindexLocked(prev.Token, reg.UserID)
	}

	stored := *reg
	stored.UpdatedAt = s.now().UTC()
	s.byUser[reg.UserID] = stored

	if reg.Token != "" {
		users := s.byToken[reg.Token]
		if users == nil {
			users = make(map[int64]struct{}, 1)
			s.byToken[reg.Token] = users
		}
		users[reg.UserID] = struct{}{}
	}

	return nil
}

// FindByToken returns the chat bound to token under the exactly-one rule.
func (s *MemoryStore) FindByToken(_ context.Context, token string) (int64, error) {
	if token == "" {
		return 0, errNotFound()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	users := s.byToken[token]
	chatIDs := make([]int64, 0, len(users))
	for userID := range users {
		chatIDs = append(chatIDs, s.byUser[userID].ChatID)
	}

	return exactlyOne(chatIDs)
}

func (s *MemoryStore) unindexLocked(token string, userID int64) {
	users := s.byToken[token]
	delete(users, userID)
	if len(users) == 0 {
		delete(s.byToken, token)
	}
}
