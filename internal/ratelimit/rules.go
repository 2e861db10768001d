package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Proton-105/pydt-bot/pkg/config"
)

// Rules holds the current per-user limit, window and whitelist. It is safe
// for concurrent use and can be swapped on config reload.
type Rules struct {
	mu        sync.RWMutex
	limit     int
	window    time.Duration
	whitelist map[int64]struct{}
}

// NewRules constructs rate limiting rules from configuration settings.
func NewRules(cfg config.RateLimitConfig) (*Rules, error) {
	r := &Rules{}
	if err := r.Update(cfg); err != nil {
		return nil, err
	}
	return r, nil
}

// Update replaces the rules atomically. An invalid cfg leaves the current
// rules untouched.
func (r *Rules) Update(cfg config.RateLimitConfig) error {
	limit, window, err := parseRule(cfg.PerUser)
	if err != nil {
		return fmt.Errorf("per_user rule: %w", err)
	}

	whitelist := make(map[int64]struct{}, len(cfg.Whitelist))
	for _, id := range cfg.Whitelist {
		whitelist[id] = struct{}{}
	}

	r.mu.Lock()
	r.limit = limit
	r.window = window
	r.whitelist = whitelist
	r.mu.Unlock()

	return nil
}

// PerUser returns the per-user limit and window.
func (r *Rules) PerUser() (int, time.Duration) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.limit, r.window
}

// IsWhitelisted returns true if the userID bypasses the window.
func (r *Rules) IsWhitelisted(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.whitelist[userID]
	return ok
}

func parseRule(rule config.RateLimitRule) (int, time.Duration, error) {
	if rule.Limit <= 0 {
		return 0, 0, errors.New("limit must be positive")
	}
	if rule.Window == "" {
		return 0, 0, errors.New("window duration is not set")
	}

	window, err := time.ParseDuration(rule.Window)
	if err != nil {
		return 0, 0, err
	}
	if window <= 0 {
		return 0, 0, errors.New("window must be positive")
	}

	return rule.Limit, window, nil
}
