package quota

import (
	"sync"
	"time"

	"github.com/mikandro/smartfamilytravelscout-sub001/models"
	"github.com/mikandro/smartfamilytravelscout-sub001/scraper"
)

// MemoryStore is an in-process Store with the same semantics as FileStore
// but no durability. Useful in tests and one-shot runs.
type MemoryStore struct {
	maxDaily map[models.Source]int

	mu     sync.Mutex
	states map[models.Source]State
	now    func() time.Time
}

// NewMemoryStore creates an in-memory store with the given per-source daily
// maximums.
func NewMemoryStore(maxDaily map[models.Source]int) *MemoryStore {
	return &MemoryStore{
		maxDaily: maxDaily,
		states:   make(map[models.Source]State),
		now:      time.Now,
	}
}

// CheckAndIncrement implements Store.
func (ms *MemoryStore) CheckAndIncrement(source models.Source) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	max, limited := ms.maxDaily[source]
	if !limited || max <= 0 {
		return nil
	}

	now := ms.now()
	state := ms.states[source]
	if state.Date != today(now) {
		state = State{Date: today(now), Count: 0}
	}

	if state.Count >= max {
		return scraper.NewRateLimitError(source, secondsUntilMidnight(now), "daily", state.Count, max)
	}

	state.Count++
	ms.states[source] = state
	return nil
}

// Count returns the current counter for a source, for inspection in tests.
func (ms *MemoryStore) Count(source models.Source) int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.states[source].Count
}
