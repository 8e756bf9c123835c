package transport

import (
	"errors"
	"testing"
	"time"
)

func TestCacheDeduplicatesCalls(t *testing.T) {
	t.Parallel()

	c := NewCache(10, 0)
	calls := 0
	fn := func() (any, error) {
		calls++
		return 42, nil
	}

	for i := 0; i < 5; i++ {
		v, err := c.Get("key", fn)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != 42 {
			t.Errorf("expected 42, got %v", v)
		}
	}
	if calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", calls)
	}
}

func TestCacheNeverCachesErrors(t *testing.T) {
	t.Parallel()

	c := NewCache(10, 0)
	calls := 0
	fn := func() (any, error) {
		calls++
		return nil, errors.New("boom")
	}

	for i := 0; i < 3; i++ {
		_, err := c.Get("key", fn)
		if err == nil {
			t.Fatal("expected error")
		}
	}
	if calls != 3 {
		t.Errorf("expected every call to miss since errors are never cached, got %d calls", calls)
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	t.Parallel()

	c := NewCache(10, 20*time.Millisecond)
	calls := 0
	fn := func() (any, error) {
		calls++
		return calls, nil
	}

	v1, _ := c.Get("key", fn)
	time.Sleep(40 * time.Millisecond)
	v2, _ := c.Get("key", fn)

	if v1 == v2 {
		t.Errorf("expected a fresh upstream call after TTL expiry, got same value %v twice", v1)
	}
	if calls != 2 {
		t.Errorf("expected 2 upstream calls, got %d", calls)
	}
}

func TestCacheEvictsOldestOnOverflow(t *testing.T) {
	t.Parallel()

	c := NewCache(2, 0)
	_, _ = c.Get("a", func() (any, error) { return "a", nil })
	_, _ = c.Get("b", func() (any, error) { return "b", nil })
	_, _ = c.Get("c", func() (any, error) { return "c", nil }) // evicts "a"

	calls := 0
	_, _ = c.Get("a", func() (any, error) { calls++; return "a2", nil })
	if calls != 1 {
		t.Errorf("expected key 'a' to have been evicted and recomputed, got %d calls", calls)
	}
}
