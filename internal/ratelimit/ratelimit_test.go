package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWithinBurst(t *testing.T) {
	l := New(Config{RequestsPerMinute: 60, BurstSize: 5, CleanupInterval: time.Minute})
	defer l.Stop()

	for i := 0; i < 5; i++ {
		if !l.Allow("client-a") {
			t.Fatalf("request %d should be allowed within burst", i+1)
		}
	}
	if l.Allow("client-a") {
		t.Error("request above burst should be rejected")
	}
}

func TestAllowSeparateKeys(t *testing.T) {
	l := New(Config{RequestsPerMinute: 60, BurstSize: 1, CleanupInterval: time.Minute})
	defer l.Stop()

	if !l.Allow("client-a") {
		t.Error("first request for client-a should pass")
	}
	if !l.Allow("client-b") {
		t.Error("first request for client-b should pass despite client-a's usage")
	}
}

func TestTokensRefill(t *testing.T) {
	l := New(Config{RequestsPerMinute: 6000, BurstSize: 1, CleanupInterval: time.Minute})
	defer l.Stop()

	if !l.Allow("client-a") {
		t.Fatal("first request should pass")
	}
	if l.Allow("client-a") {
		t.Fatal("second immediate request should be rejected")
	}

	// 100 tokens/sec: 50ms is enough for a refill.
	time.Sleep(50 * time.Millisecond)
	if !l.Allow("client-a") {
		t.Error("request after refill window should pass")
	}
}
