package memory

import (
	"sync"
	"time"
)

// TTL is a minimal in-process TTL cache.
// A zero ttl on Set keeps the entry until it is deleted.
// Lazy expiration on Get.
type TTL[K comparable, V any] struct {
	mu     sync.RWMutex
	data   map[K]entry[V]
	now    func() time.Time
	pinned func(V) bool
}

type entry[V any] struct {
	val V
	exp time.Time
}

func NewTTL[K comparable, V any]() *TTL[K, V] {
	return &TTL[K, V]{data: make(map[K]entry[V]), now: time.Now}
}

// SetPinned registers a check for values that must outlive their ttl. An expired entry whose value
// is pinned stays live until a later check finds it unpinned. Set it before first use.
func (t *TTL[K, V]) SetPinned(pinned func(V) bool) {
	t.mu.Lock()
	t.pinned = pinned
	t.mu.Unlock()
}

func (t *TTL[K, V]) live(e entry[V], now time.Time) bool {
	if e.exp.IsZero() || !now.After(e.exp) {
		return true
	}
	return t.pinned != nil && t.pinned(e.val)
}

// Get returns the value and true if found and not expired; otherwise zero value and false.
func (t *TTL[K, V]) Get(k K) (V, bool) {
	t.mu.RLock()
	e, ok := t.data[k]
	live := ok && t.live(e, t.now())
	t.mu.RUnlock()
	if !live {
		var zero V
		return zero, false
	}
	return e.val, true
}

func (t *TTL[K, V]) Set(k K, v V, ttl time.Duration) {
	var exp time.Time
	if ttl > 0 {
		exp = t.now().Add(ttl)
	}
	t.mu.Lock()
	t.data[k] = entry[V]{val: v, exp: exp}
	t.mu.Unlock()
}

// GetOrSet returns the live value for k, or stores and returns the one built by create. create runs
// under the write lock, at most once per missing key.
func (t *TTL[K, V]) GetOrSet(k K, ttl time.Duration, create func() V) V {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	if e, ok := t.data[k]; ok && t.live(e, now) {
		if ttl > 0 {
			e.exp = now.Add(ttl)
			t.data[k] = e
		}
		return e.val
	}
	v := create()
	var exp time.Time
	if ttl > 0 {
		exp = now.Add(ttl)
	}
	t.data[k] = entry[V]{val: v, exp: exp}
	return v
}

func (t *TTL[K, V]) Delete(k K) {
	t.mu.Lock()
	delete(t.data, k)
	t.mu.Unlock()
}

// Purge drops expired entries and returns their values. Pinned entries are kept.
func (t *TTL[K, V]) Purge() []V {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	var dropped []V
	for k, e := range t.data {
		if !t.live(e, now) {
			delete(t.data, k)
			dropped = append(dropped, e.val)
		}
	}
	return dropped
}
