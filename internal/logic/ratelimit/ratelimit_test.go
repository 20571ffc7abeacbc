package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterAllowsUnderLimit(t *testing.T) {
	l := New(time.Minute)
	now := time.Now()
	for i := 0; i < 5; i++ {
		if !l.Allow("ip-a", now, 5) {
			t.Fatalf("request %d should be allowed under limit 5", i)
		}
	}
	if l.Allow("ip-a", now, 5) {
		t.Fatalf("6th request should be blocked at limit 5")
	}
}

func TestLimiterSlidesWindow(t *testing.T) {
	l := New(time.Minute)
	base := time.Now()
	for i := 0; i < 5; i++ {
		l.Allow("ip-a", base, 5)
	}
	if l.Allow("ip-a", base, 5) {
		t.Fatalf("should be blocked within the window")
	}
	later := base.Add(time.Minute + time.Second)
	if !l.Allow("ip-a", later, 5) {
		t.Fatalf("should be allowed once the window has slid past the old hits")
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	l := New(time.Minute)
	now := time.Now()
	for i := 0; i < 5; i++ {
		l.Allow("ip-a", now, 5)
	}
	if !l.Allow("ip-b", now, 5) {
		t.Fatalf("a different key should not be affected by ip-a's count")
	}
}

func TestLimiterStats(t *testing.T) {
	l := New(time.Minute)
	now := time.Now()
	l.Allow("ip-a", now, 1)
	l.Allow("ip-a", now, 1)
	hits, total := l.Stats()
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}
	if hits != 1 {
		t.Errorf("hits = %d, want 1", hits)
	}
}
