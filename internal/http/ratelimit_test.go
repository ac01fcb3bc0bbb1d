package http

import (
	"testing"
	"time"
)

func testLimiter(start time.Time) (*RateLimiter, *time.Time) {
	now := start
	rl := NewRateLimiter(10, time.Hour)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestRateLimiterRejectsEleventhCall(t *testing.T) {
	rl, _ := testLimiter(time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC))

	for i := 0; i < 10; i++ {
		ok, _ := rl.Allow(1)
		if !ok {
			t.Fatalf("call %d should be allowed", i+1)
		}
	}

	ok, retryAfter := rl.Allow(1)
	if ok {
		t.Fatal("11th call within the hour must be rejected")
	}
	if retryAfter != 3600 {
		t.Errorf("retryAfter = %d, want 3600", retryAfter)
	}
}

func TestRateLimiterWindowSlides(t *testing.T) {
	start := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	rl, now := testLimiter(start)

	for i := 0; i < 10; i++ {
		rl.Allow(1)
	}
	if ok, _ := rl.Allow(1); ok {
		t.Fatal("budget should be exhausted")
	}

	*now = start.Add(time.Hour + time.Second)
	if ok, _ := rl.Allow(1); !ok {
		t.Error("calls older than the window must fall out")
	}
}

func TestRateLimiterIsPerUser(t *testing.T) {
	rl, _ := testLimiter(time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC))

	for i := 0; i < 10; i++ {
		rl.Allow(1)
	}
	if ok, _ := rl.Allow(2); !ok {
		t.Error("one user's exhausted budget must not affect another")
	}
}

func TestRateLimiterRetryAfterIsFlat(t *testing.T) {
	start := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	rl, now := testLimiter(start)

	for i := 0; i < 10; i++ {
		rl.Allow(1)
	}
	// The hint stays the full window no matter where inside it the
	// rejection happens.
	*now = start.Add(30 * time.Minute)
	ok, retryAfter := rl.Allow(1)
	if ok {
		t.Fatal("still inside the window")
	}
	if retryAfter != 3600 {
		t.Errorf("retryAfter = %d, want flat 3600", retryAfter)
	}
}
