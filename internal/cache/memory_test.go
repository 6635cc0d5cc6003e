package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryTTL(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Now()

	if err := m.Set(ctx, "k", "v", 10*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	val, ok, err := m.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || val != "v" {
		t.Fatalf("Get: expected v, got %q ok=%v", val, ok)
	}

	m.SetClock(func() time.Time { return base.Add(11 * time.Second) })
	_, ok, err = m.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get (expired): %v", err)
	}
	if ok {
		t.Fatalf("expected expiry after TTL")
	}
}

func TestMemoryNoExpiry(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Now()

	if err := m.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	m.SetClock(func() time.Time { return base.Add(365 * 24 * time.Hour) })
	_, ok, err := m.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("zero TTL must never expire")
	}
}

func TestMemorySetNX(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Now()

	set, err := m.SetNX(ctx, "k", "1", 10*time.Second)
	if err != nil {
		t.Fatalf("SetNX: %v", err)
	}
	if !set {
		t.Fatalf("first SetNX must win")
	}
	set, err = m.SetNX(ctx, "k", "2", 10*time.Second)
	if err != nil {
		t.Fatalf("SetNX (second): %v", err)
	}
	if set {
		t.Fatalf("second SetNX must lose while the key lives")
	}

	m.SetClock(func() time.Time { return base.Add(11 * time.Second) })
	set, err = m.SetNX(ctx, "k", "3", 10*time.Second)
	if err != nil {
		t.Fatalf("SetNX (after expiry): %v", err)
	}
	if !set {
		t.Fatalf("SetNX must win again after expiry")
	}
}

func TestMemoryDelete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_ = m.Set(ctx, "a", "1", 0)
	_ = m.Set(ctx, "b", "2", 0)
	if err := m.Delete(ctx, "a", "b", "missing"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := m.Get(ctx, "a"); ok {
		t.Fatalf("expected a gone")
	}
	if _, ok, _ := m.Get(ctx, "b"); ok {
		t.Fatalf("expected b gone")
	}
}
