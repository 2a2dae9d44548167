// Package memory implements the in-process response cache: a bounded
// key/value map with per-entry TTL, insertion-order eviction and an
// absolute-age sweep.
package memory

import (
	"container/heap"
	"container/list"
	"sync"
	"time"
)

type entry struct {
	key        string
	value      any
	insertedAt time.Time
	expiresAt  time.Time // zero => no TTL
	elem       *list.Element
	heapIndex  int
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Stats is a point-in-time snapshot of store counters.
type Stats struct {
	Entries     int    `json:"entries"`
	MaxEntries  int    `json:"max_entries"`
	Hits        uint64 `json:"hits"`
	Misses      uint64 `json:"misses"`
	Evictions   uint64 `json:"evictions"`
	Expirations uint64 `json:"expirations"`
	Swept       uint64 `json:"swept"`
}

// Store is safe for concurrent use. Every operation holds the lock for its
// full duration, so operations are atomic and totally ordered.
type Store struct {
	mu      sync.Mutex
	opts    Options
	entries map[string]*entry
	order   *list.List // front is the oldest insertion
	expiry  expiryQueue
	stats   Stats
}

// New builds an empty store.
func New(opts ...Option) *Store {
	cfg := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Store{
		opts:    cfg,
		entries: make(map[string]*entry, cfg.MaxEntries),
		order:   list.New(),
	}
}

// Set inserts or replaces the entry for key. A ttl <= 0 means the entry only
// leaves through eviction, Delete/Clear or the horizon sweep. When the store is
// full and key is new, the single oldest entry by insertion time is evicted.
func (s *Store) Set(key string, value any, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.Now()
	s.setLocked(key, value, now, now, ttl)
}

// SetAt is Set for a value first written at insertedAt, e.g. one copied from
// another cache tier. Age and TTL count from insertedAt, so Fresh and
// Timestamp see the original write. It reports false and stores nothing when
// the TTL has already run out.
func (s *Store) SetAt(key string, value any, insertedAt time.Time, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.Now()
	if insertedAt.IsZero() || insertedAt.After(now) {
		insertedAt = now
	}
	if ttl > 0 && !now.Before(insertedAt.Add(ttl)) {
		return false
	}
	s.setLocked(key, value, insertedAt, now, ttl)
	return true
}

func (s *Store) setLocked(key string, value any, insertedAt, now time.Time, ttl time.Duration) {
	s.expireLocked(now)

	if ent, ok := s.entries[key]; ok {
		ent.value = value
		ent.insertedAt = insertedAt
		s.order.MoveToBack(ent.elem)
		s.scheduleLocked(ent, insertedAt, ttl)
		return
	}

	if len(s.entries) >= s.opts.MaxEntries {
		s.evictOldestLocked()
	}

	ent := &entry{key: key, value: value, insertedAt: insertedAt, heapIndex: -1}
	ent.elem = s.order.PushBack(ent)
	s.entries[key] = ent
	s.scheduleLocked(ent, insertedAt, ttl)
}

// Get returns the stored value, or false when the key was never set, was
// removed, or its TTL has elapsed.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent := s.lookupLocked(key, s.opts.Now())
	if ent == nil {
		s.stats.Misses++
		return nil, false
	}
	s.stats.Hits++
	return ent.value, true
}

// Fresh is Get plus a caller-side staleness bound: it only reports a hit when
// the entry was written less than maxAge ago. The entry itself is left in
// place, since its TTL may legitimately outlive maxAge.
func (s *Store) Fresh(key string, maxAge time.Duration) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.Now()
	ent := s.lookupLocked(key, now)
	if ent == nil || (maxAge > 0 && now.Sub(ent.insertedAt) >= maxAge) {
		s.stats.Misses++
		return nil, false
	}
	s.stats.Hits++
	return ent.value, true
}

// Timestamp returns the insertion time of key, or the zero time if absent.
func (s *Store) Timestamp(key string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent := s.lookupLocked(key, s.opts.Now())
	if ent == nil {
		return time.Time{}
	}
	return ent.insertedAt
}

// Delete removes key if present.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		s.removeLocked(ent)
	}
}

// Clear empties the store. Counters in Stats are kept.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*entry, s.opts.MaxEntries)
	s.order.Init()
	s.expiry = nil
}

// Len reports the number of live entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked(s.opts.Now())
	return len(s.entries)
}

// Keys returns live keys, oldest insertion first.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked(s.opts.Now())
	keys := make([]string, 0, len(s.entries))
	for el := s.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry).key)
	}
	return keys
}

// Expire drops every entry whose TTL has elapsed and returns how many went.
func (s *Store) Expire() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.expireLocked(s.opts.Now())
}

// Sweep drops every entry inserted more than horizon ago, whatever its TTL.
func (s *Store) Sweep(horizon time.Duration) int {
	if horizon <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.Now()
	removed := 0
	for el := s.order.Front(); el != nil; {
		next := el.Next()
		ent := el.Value.(*entry)
		if now.Sub(ent.insertedAt) > horizon {
			s.removeLocked(ent)
			removed++
		}
		el = next
	}
	s.stats.Swept += uint64(removed)
	return removed
}

// Stats returns a snapshot of the store counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.stats
	st.Entries = len(s.entries)
	st.MaxEntries = s.opts.MaxEntries
	return st
}

func (s *Store) lookupLocked(key string, now time.Time) *entry {
	ent, ok := s.entries[key]
	if !ok {
		return nil
	}
	if ent.expired(now) {
		s.removeLocked(ent)
		s.stats.Expirations++
		return nil
	}
	return ent
}

func (s *Store) scheduleLocked(ent *entry, from time.Time, ttl time.Duration) {
	if ttl <= 0 {
		ent.expiresAt = time.Time{}
		if ent.heapIndex >= 0 {
			heap.Remove(&s.expiry, ent.heapIndex)
		}
		return
	}
	ent.expiresAt = from.Add(ttl)
	if ent.heapIndex >= 0 {
		heap.Fix(&s.expiry, ent.heapIndex)
		return
	}
	heap.Push(&s.expiry, ent)
}

func (s *Store) expireLocked(now time.Time) int {
	removed := 0
	for len(s.expiry) > 0 && s.expiry[0].expired(now) {
		s.removeLocked(s.expiry[0])
		removed++
	}
	s.stats.Expirations += uint64(removed)
	return removed
}

func (s *Store) evictOldestLocked() {
	el := s.order.Front()
	if el == nil {
		return
	}
	s.removeLocked(el.Value.(*entry))
	s.stats.Evictions++
}

func (s *Store) removeLocked(ent *entry) {
	delete(s.entries, ent.key)
	s.order.Remove(ent.elem)
	if ent.heapIndex >= 0 {
		heap.Remove(&s.expiry, ent.heapIndex)
	}
}
