package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected a")
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("a = %v, %v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("size %d", c.Size())
	}
}

func TestLRUCache_TTL(t *testing.T) {
	c := NewLRUCache[string](4, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	c.Set("other", "v")
	now = now.Add(2 * time.Minute)

	if _, ok := c.Get("k"); ok {
		t.Fatal("expired entry returned")
	}
	if removed := c.CleanExpired(); removed != 1 {
		t.Fatalf("removed %d, want 1", removed)
	}
	if c.Size() != 0 {
		t.Fatalf("size %d", c.Size())
	}
	st := c.Stats()
	if st.Misses != 1 || st.Hits != 0 {
		t.Fatalf("stats %+v", st)
	}
}

func TestMemo_ComputesOnce(t *testing.T) {
	m := NewMemo(NewLRUCache[int](8, time.Minute))
	var calls atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, err := m.Do("key", func() (int, error) {
				calls.Add(1)
				time.Sleep(10 * time.Millisecond)
				return 42, nil
			})
			if err != nil || v != 42 {
				t.Errorf("got %v, %v", v, err)
			}
		}()
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("computed %d times", calls.Load())
	}
	if _, hit, _ := m.Do("key", func() (int, error) { return 0, nil }); !hit {
		t.Fatal("expected cache hit")
	}
}

func TestMemo_DoesNotCacheErrors(t *testing.T) {
	m := NewMemo(NewLRUCache[int](8, time.Minute))
	boom := errors.New("boom")
	if _, _, err := m.Do("k", func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	v, hit, err := m.Do("k", func() (int, error) { return 7, nil })
	if err != nil || hit || v != 7 {
		t.Fatalf("got %v %v %v", v, hit, err)
	}
	m.Forget("k")
	if _, hit, _ := m.Do("k", func() (int, error) { return 8, nil }); hit {
		t.Fatal("forgotten key should recompute")
	}
}

func TestKeysAndHash(t *testing.T) {
	if got := Key("filter", "abc", 0.1, ""); got != "filter:abc:0.1:" {
		t.Fatalf("key %q", got)
	}
	h := ContentHash([]byte("hello"))
	if len(h) != 64 || h != ContentHash([]byte("hello")) || h == ContentHash([]byte("hello!")) {
		t.Fatalf("hash %q", h)
	}
}

func TestManager_StartStop(t *testing.T) {
	c := NewLRUCache[int](2, time.Nanosecond)
	c.Set("a", 1)
	m := NewManager()
	m.Register(c)
	m.StartCleanup(time.Millisecond)
	deadline := time.Now().Add(time.Second)
	for c.Size() > 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	m.Stop()
	if c.Size() != 0 {
		t.Fatalf("cleanup did not run")
	}
}
