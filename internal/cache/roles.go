package cache

import (
	"sync"
	"time"
)

type roleEntry struct {
	isAdmin   bool
	expiresAt time.Time
}

// RoleCache is a process-local, TTL-bounded cache of user admin flags. It is
// only valid within one process lifetime; writes to a user's role must call
// Invalidate so the next lookup goes back to storage.
type RoleCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[uint]roleEntry
}

func NewRoleCache(ttl time.Duration) *RoleCache {
	return &RoleCache{
		ttl:     ttl,
		now:     time.Now,
		entries: map[uint]roleEntry{},
	}
}

// Get returns the cached flag and whether a live entry existed.
func (c *RoleCache) Get(userID uint) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[userID]
	if !ok {
		return false, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, userID)
		return false, false
	}
	return e.isAdmin, true
}

func (c *RoleCache) Set(userID uint, isAdmin bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = roleEntry{isAdmin: isAdmin, expiresAt: c.now().Add(c.ttl)}
}

// Invalidate drops the entry for a user. Called on every role write.
func (c *RoleCache) Invalidate(userID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
}
