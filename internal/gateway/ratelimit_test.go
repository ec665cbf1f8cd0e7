package gateway

import (
	"testing"
	"time"
)

func TestRateLimiter_ImmediateBurst(t *testing.T) {
	rl := NewRateLimiter(5, 60.0)
	for i := 0; i < 5; i++ {
		if ok, _ := rl.Allow(); !ok {
			t.Fatalf("burst token %d refused", i)
		}
	}
	if ok, wait := rl.Allow(); ok || wait <= 0 {
		t.Fatalf("expected refusal with a wait after the burst, got ok=%v wait=%v", ok, wait)
	}
}

func TestRateLimiter_Refills(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := NewRateLimiter(1, 600.0) // 10 per second
	rl.now = func() time.Time { return now }
	rl.lastTime = now

	if ok, _ := rl.Allow(); !ok {
		t.Fatal("first token refused")
	}
	ok, wait := rl.Allow()
	if ok {
		t.Fatal("second token should wait")
	}
	if wait < 90*time.Millisecond || wait > 110*time.Millisecond {
		t.Fatalf("wait = %v, want ~100ms", wait)
	}

	now = now.Add(150 * time.Millisecond)
	if ok, _ := rl.Allow(); !ok {
		t.Fatal("token should have refilled")
	}
}

func TestRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	if rl.max != 10 || rl.rate != 1 {
		t.Fatalf("defaults = burst %v rate %v/s, want 10 and 1", rl.max, rl.rate)
	}
}
