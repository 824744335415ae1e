package notify

import (
	"sort"
	"sync"
	"time"
)

const defaultDeadLetterCapacity = 1000

// DeadLetterStats holds aggregate stats for the dead letter store.
type DeadLetterStats struct {
	Total         int            `json:"total"`
	ByChannel     map[string]int `json:"by_channel"`
	OldestEntry   *time.Time     `json:"oldest_entry,omitempty"`
	NewestEntry   *time.Time     `json:"newest_entry,omitempty"`
	TotalAttempts int            `json:"total_attempts"`
}

// DeadLetterStore holds notification deliveries that exhausted their
// retries, in memory, bounded by a fixed capacity. When full, the oldest
// entry is evicted to admit a new one.
type DeadLetterStore struct {
	mu       sync.RWMutex
	capacity int
	entries  map[string]*Delivery
}

// NewDeadLetterStore creates an empty store with the default capacity.
func NewDeadLetterStore() *DeadLetterStore {
	return NewDeadLetterStoreWithCapacity(defaultDeadLetterCapacity)
}

// NewDeadLetterStoreWithCapacity creates an empty store holding at most
// capacity entries. Non-positive values fall back to the default.
func NewDeadLetterStoreWithCapacity(capacity int) *DeadLetterStore {
	if capacity <= 0 {
		capacity = defaultDeadLetterCapacity
	}
	return &DeadLetterStore{
		capacity: capacity,
		entries:  make(map[string]*Delivery),
	}
}

// Add puts a delivery into the store, evicting the oldest entry if the
// store is at capacity.
func (s *DeadLetterStore) Add(d *Delivery) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[d.ID]; !ok && len(s.entries) >= s.capacity {
		s.evictOldest()
	}
	s.entries[d.ID] = d
}

func (s *DeadLetterStore) evictOldest() {
	var oldestID string
	var oldest time.Time
	for id, d := range s.entries {
		if oldestID == "" || d.CreatedAt.Before(oldest) {
			oldestID = id
			oldest = d.CreatedAt
		}
	}
	if oldestID != "" {
		delete(s.entries, oldestID)
	}
}

// Get retrieves a delivery by ID.
func (s *DeadLetterStore) Get(id string) (*Delivery, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.entries[id]
	return d, ok
}

// Remove removes and returns a delivery from the store.
func (s *DeadLetterStore) Remove(id string) (*Delivery, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
	}
	return d, ok
}

// List returns all entries sorted by creation time, newest first.
func (s *DeadLetterStore) List() []*Delivery {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Delivery, 0, len(s.entries))
	for _, d := range s.entries {
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// Count returns the number of entries.
func (s *DeadLetterStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Purge removes all entries and returns the count removed.
func (s *DeadLetterStore) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.entries)
	s.entries = make(map[string]*Delivery)
	return n
}

// Stats returns aggregate statistics about the stored deliveries.
func (s *DeadLetterStore) Stats() DeadLetterStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := DeadLetterStats{
		Total:     len(s.entries),
		ByChannel: make(map[string]int),
	}

	for _, d := range s.entries {
		stats.ByChannel[d.Channel]++
		stats.TotalAttempts += d.Attempts
		if stats.OldestEntry == nil || d.CreatedAt.Before(*stats.OldestEntry) {
			t := d.CreatedAt
			stats.OldestEntry = &t
		}
		if stats.NewestEntry == nil || d.CreatedAt.After(*stats.NewestEntry) {
			t := d.CreatedAt
			stats.NewestEntry = &t
		}
	}

	return stats
}
