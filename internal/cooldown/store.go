// Package cooldown tracks per-key alert state: the last alerted price and
// the time of the last emitted alert.
package cooldown

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Key scopes cooldown tracking. Offers differing in any component are
// tracked independently.
type Key struct {
	Product string
	Brand   string
	Source  string
}

// Entry is the tracked state for one key. LastPrice is the last alerted
// price, not the last seen one: suppressed sightings never move it.
type Entry struct {
	LastPrice   decimal.Decimal
	LastAlertAt time.Time
}

// Store is an in-memory keyed state table. Entries are created lazily on
// first sighting and only mutated through the decision engine.
type Store struct {
	mu      sync.RWMutex
	entries map[Key]Entry
}

func NewStore() *Store {
	return &Store{entries: make(map[Key]Entry)}
}

func (s *Store) Get(key Key) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]

	return e, ok
}

func (s *Store) Upsert(key Key, price decimal.Decimal, alertedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = Entry{LastPrice: price, LastAlertAt: alertedAt}
}

// Len reports the number of tracked keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// EvictBefore removes entries whose last alert predates the cutoff and
// returns how many were dropped. The key set is small and finite in
// practice; eviction bounds memory on long runs, it is not a correctness
// concern.
func (s *Store) EvictBefore(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0

	for key, e := range s.entries {
		if e.LastAlertAt.Before(cutoff) {
			delete(s.entries, key)
			evicted++
		}
	}

	return evicted
}
