package cache

import (
	"context"
	"testing"
	"time"
)

func TestCache_SetGet(t *testing.T) {
	ctx := context.Background()
	c := New(Config{DefaultTTL: time.Minute})
	defer c.Close()

	c.Set(ctx, "a", 1)
	v, ok := c.Get(ctx, "a")
	if !ok {
		t.Fatal("Get(a) not found")
	}
	if v.(int) != 1 {
		t.Errorf("Get(a) = %v, want 1", v)
	}

	if _, ok := c.Get(ctx, "missing"); ok {
		t.Error("Get(missing) should not be found")
	}
}

func TestCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c := New(Config{DefaultTTL: time.Minute})
	defer c.Close()

	c.SetWithTTL(ctx, "short", "v", 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	if _, ok := c.Get(ctx, "short"); ok {
		t.Error("expired entry should not be returned")
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d, want 0 after lazy removal", c.Size())
	}
}

func TestCache_NoTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	c := New(Config{})
	defer c.Close()

	c.Set(ctx, "forever", "v")
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get(ctx, "forever"); !ok {
		t.Error("entry without TTL should not expire")
	}
}

func TestCache_DeleteAndClear(t *testing.T) {
	ctx := context.Background()
	c := New(Config{DefaultTTL: time.Minute})
	defer c.Close()

	c.Set(ctx, "a", 1)
	c.Set(ctx, "b", 2)
	c.Delete(ctx, "a")
	if _, ok := c.Get(ctx, "a"); ok {
		t.Error("deleted entry should not be returned")
	}
	if c.Size() != 1 {
		t.Errorf("Size() = %d, want 1", c.Size())
	}

	c.Clear(ctx)
	if c.Size() != 0 {
		t.Errorf("Size() after Clear = %d, want 0", c.Size())
	}
}

func TestCache_MaxItemsEvicts(t *testing.T) {
	ctx := context.Background()
	evicted := make(chan string, 4)
	c := New(Config{
		DefaultTTL: time.Minute,
		MaxItems:   2,
		OnEviction: func(key string, _ any) {
			evicted <- key
		},
	})
	defer c.Close()

	c.SetWithTTL(ctx, "a", 1, time.Minute)
	c.SetWithTTL(ctx, "b", 2, time.Hour)
	c.SetWithTTL(ctx, "c", 3, time.Hour)

	if c.Size() != 2 {
		t.Errorf("Size() = %d, want 2", c.Size())
	}
	select {
	case key := <-evicted:
		// "a" expires soonest, so it goes first.
		if key != "a" {
			t.Errorf("evicted key = %q, want %q", key, "a")
		}
	case <-time.After(time.Second):
		t.Fatal("eviction callback never fired")
	}
}

func TestCache_JanitorSweeps(t *testing.T) {
	ctx := context.Background()
	c := New(Config{CleanupInterval: 10 * time.Millisecond})
	defer c.Close()

	c.SetWithTTL(ctx, "gone", "v", 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	if c.Size() != 0 {
		t.Errorf("Size() = %d, want 0 after janitor sweep", c.Size())
	}
}
