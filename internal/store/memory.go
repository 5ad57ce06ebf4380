package store

import (
	"sort"
	"sync"
)

const subscriberBuffer = 100

// MemoryStore is an in-memory implementation of [Store].
//
// Records are keyed by target, with new records replacing previous values.
// Subscribers receive updates via buffered channels; if a subscriber's
// buffer is full the update is dropped for that subscriber.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record

	subMu       sync.RWMutex
	subscribers map[chan Record]struct{}
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory [Store].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:     make(map[string]Record),
		subscribers: make(map[chan Record]struct{}),
	}
}

// Update stores a [Record], replacing the target's previous one, and
// notifies all subscribers. Runs and TotalDelta carry over from the
// previous record.
func (m *MemoryStore) Update(record Record) Record {
	m.mu.Lock()
	prev := m.records[record.Target]
	record.Runs = prev.Runs + 1
	record.TotalDelta = prev.TotalDelta + record.Delta
	m.records[record.Target] = record
	m.mu.Unlock()

	m.notifySubscribers(record)
	return record
}

// GetAll returns a snapshot of the latest record per target, ordered by
// target name.
func (m *MemoryStore) GetAll() []Record {
	m.mu.RLock()
	records := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		records = append(records, r)
	}
	m.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		return records[i].Target < records[j].Target
	})
	return records
}

// Subscribe creates a new subscription with a buffer of 100 records.
//
// Caller must call [MemoryStore.Unsubscribe] when done.
func (m *MemoryStore) Subscribe() <-chan Record {
	ch := make(chan Record, subscriberBuffer)
	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan Record) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers is non-blocking: a full subscriber buffer drops the
// record for that subscriber only.
func (m *MemoryStore) notifySubscribers(record Record) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- record:
		default:
		}
	}
}
