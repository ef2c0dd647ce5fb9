// Package cache holds the role cache in front of the user store. Every
// implementation is best-effort: a miss or backend error just means the
// caller reads the store.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/xelth-com/sealflow/internal/models"
)

// RoleCache caches principal roles by principal id
type RoleCache interface {
	Get(ctx context.Context, principalID string) (models.Role, bool)
	Set(ctx context.Context, principalID string, role models.Role)
	Delete(ctx context.Context, principalID string)
}

// Key is the cache key of a principal's role
func Key(principalID string) string {
	return "user_role:" + principalID
}

// Noop is used when no cache is configured
type Noop struct{}

func (Noop) Get(context.Context, string) (models.Role, bool) { return "", false }
func (Noop) Set(context.Context, string, models.Role)        {}
func (Noop) Delete(context.Context, string)                  {}

type memoryEntry struct {
	role    models.Role
	expires time.Time
}

// Memory is a process-local cache with per-entry expiry
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory creates a process-local cache
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *Memory) Get(_ context.Context, principalID string) (models.Role, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[Key(principalID)]
	if !ok {
		return "", false
	}
	if m.now().After(e.expires) {
		delete(m.entries, Key(principalID))
		return "", false
	}
	return e.role, true
}

func (m *Memory) Set(_ context.Context, principalID string, role models.Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[Key(principalID)] = memoryEntry{role: role, expires: m.now().Add(m.ttl)}
}

func (m *Memory) Delete(_ context.Context, principalID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, Key(principalID))
}
