package cache

import (
	"testing"
	"time"
)

func TestRoleCacheHitAndMiss(t *testing.T) {
	c := NewRoleCache(5 * time.Minute)

	if _, ok := c.Get(1); ok {
		t.Fatal("empty cache should miss")
	}
	c.Set(1, true)
	isAdmin, ok := c.Get(1)
	if !ok || !isAdmin {
		t.Errorf("Get = (%v, %v), want cached admin flag", isAdmin, ok)
	}
}

func TestRoleCacheExpires(t *testing.T) {
	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	c := NewRoleCache(5 * time.Minute)
	c.now = func() time.Time { return now }

	c.Set(1, true)
	now = now.Add(5*time.Minute + time.Second)
	if _, ok := c.Get(1); ok {
		t.Error("entry past its TTL should miss")
	}
}

func TestRoleCacheInvalidate(t *testing.T) {
	c := NewRoleCache(5 * time.Minute)
	c.Set(1, false)
	c.Invalidate(1)
	if _, ok := c.Get(1); ok {
		t.Error("invalidated entry should miss")
	}
}
