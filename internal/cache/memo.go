package cache

import (
	"golang.org/x/sync/singleflight"
)

// Memo computes a value once per key. Concurrent callers with the same key
// share one computation; errors are not cached.
type Memo[T any] struct {
	store *LRUCache[T]
	group singleflight.Group
}

func NewMemo[T any](store *LRUCache[T]) *Memo[T] {
	return &Memo[T]{store: store}
}

// Do returns the cached value for key or runs fn and caches its result.
// hit reports whether the value came from the cache.
func (m *Memo[T]) Do(key string, fn func() (T, error)) (value T, hit bool, err error) {
	if v, ok := m.store.Get(key); ok {
		return v, true, nil
	}
	res, err, _ := m.group.Do(key, func() (any, error) {
		if v, ok := m.store.Get(key); ok {
			return v, nil
		}
		v, err := fn()
		if err != nil {
			return v, err
		}
		m.store.Set(key, v)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return res.(T), false, nil
}

// Forget drops key from the cache.
func (m *Memo[T]) Forget(key string) {
	m.store.Delete(key)
	m.group.Forget(key)
}

func (m *Memo[T]) Stats() Stats {
	return m.store.Stats()
}
