package memory

import (
	"context"
	"testing"
	"time"
)

func TestAllowWithinLimit(t *testing.T) {
	l := New()
	defer l.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, remaining, err := l.Allow(ctx, "ip:203.0.113.7", 3, time.Minute)
		if err != nil {
			t.Fatalf("Allow() failed: %v", err)
		}
		if !allowed {
			t.Fatalf("hit %d denied, limit is 3", i+1)
		}
		if want := 3 - (i + 1); remaining != want {
			t.Errorf("hit %d: remaining = %d, want %d", i+1, remaining, want)
		}
	}

	allowed, remaining, err := l.Allow(ctx, "ip:203.0.113.7", 3, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if allowed {
		t.Error("hit 4 allowed, limit is 3")
	}
	if remaining != 0 {
		t.Errorf("remaining = %d, want 0", remaining)
	}
}

func TestAllowSeparateKeys(t *testing.T) {
	l := New()
	defer l.Close()
	ctx := context.Background()

	l.Allow(ctx, "a", 1, time.Minute)
	allowed, _, err := l.Allow(ctx, "b", 1, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if !allowed {
		t.Error("key b shares key a's window")
	}
}

func TestWindowExpires(t *testing.T) {
	l := New()
	defer l.Close()
	ctx := context.Background()

	l.Allow(ctx, "k", 1, 10*time.Millisecond)
	if allowed, _, _ := l.Allow(ctx, "k", 1, 10*time.Millisecond); allowed {
		t.Fatal("second hit within window allowed")
	}

	time.Sleep(15 * time.Millisecond)

	allowed, remaining, err := l.Allow(ctx, "k", 1, 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if !allowed {
		t.Error("hit after window expiry denied")
	}
	if remaining != 0 {
		t.Errorf("remaining = %d, want 0", remaining)
	}
}
