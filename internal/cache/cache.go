// Package cache holds computed risk profiles between submissions. Entries
// are invalidated on every accepted outcome, so a hit is always a profile
// of the learner's current history.
package cache

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/abhisek/numbersense/internal/risk"
)

// ErrMiss is returned by Get when no live entry exists.
var ErrMiss = errors.New("cache: miss")

// ProfileCache stores risk profiles by learner.
type ProfileCache interface {
	Get(ctx context.Context, userID string) (*risk.Profile, error)
	Set(ctx context.Context, userID string, p *risk.Profile) error
	Invalidate(ctx context.Context, userID string) error
	Close() error
}

// Memory is an in-process ProfileCache with per-entry expiry.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	profile risk.Profile
	expires time.Time
}

// NewMemory returns an empty cache. A non-positive ttl never expires.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, now: time.Now, entries: make(map[string]memoryEntry)}
}

func (m *Memory) Get(_ context.Context, userID string) (*risk.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[userID]
	if !ok {
		return nil, ErrMiss
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, userID)
		return nil, ErrMiss
	}
	p := cloneProfile(e.profile)
	return &p, nil
}

func (m *Memory) Set(_ context.Context, userID string, p *risk.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := memoryEntry{profile: cloneProfile(*p)}
	if m.ttl > 0 {
		e.expires = m.now().Add(m.ttl)
	}
	m.entries[userID] = e
	return nil
}

func (m *Memory) Invalidate(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, userID)
	return nil
}

func (m *Memory) Close() error { return nil }

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// cloneProfile copies the slices so callers can't alias cached state.
func cloneProfile(p risk.Profile) risk.Profile {
	p.Indicators = slices.Clone(p.Indicators)
	p.Recommendations = slices.Clone(p.Recommendations)
	p.Patterns = slices.Clone(p.Patterns)
	return p
}

// Nop caches nothing.
type Nop struct{}

func (Nop) Get(context.Context, string) (*risk.Profile, error) { return nil, ErrMiss }
func (Nop) Set(context.Context, string, *risk.Profile) error    { return nil }
func (Nop) Invalidate(context.Context, string) error            { return nil }
func (Nop) Close() error                                        { return nil }
