package registry

import (
	"sort"
	"sync"
)

// table is a key → entry index. Every mutation is a single insert or delete under the lock.
type table[T any] struct {
	mu      sync.RWMutex
	entries map[string]*Entry[T]
}

func newTable[T any]() *table[T] {
	return &table[T]{entries: make(map[string]*Entry[T])}
}

// MARK: insertIfAbsent
func (t *table[T]) insertIfAbsent(entry *Entry[T]) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.entries[entry.Key]; exists {
		return false
	}
	t.entries[entry.Key] = entry
	return true
}

// MARK: remove
func (t *table[T]) remove(key string) (*Entry[T], bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, exists := t.entries[key]
	if exists {
		delete(t.entries, key)
	}
	return entry, exists
}

// MARK: removeEntry
// Removes key only while it still maps to this exact entry.
func (t *table[T]) removeEntry(entry *Entry[T]) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if current, exists := t.entries[entry.Key]; exists && current == entry {
		delete(t.entries, entry.Key)
		return true
	}
	return false
}

// MARK: get
func (t *table[T]) get(key string) (*Entry[T], bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entry, exists := t.entries[key]
	return entry, exists
}

// MARK: keys
func (t *table[T]) keys() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	keys := make([]string, 0, len(t.entries))
	for key := range t.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MARK: snapshot
// Returns the current entries ordered by key.
func (t *table[T]) snapshot() []*Entry[T] {
	t.mu.RLock()
	entries := make([]*Entry[T], 0, len(t.entries))
	for _, entry := range t.entries {
		entries = append(entries, entry)
	}
	t.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries
}

// MARK: len
func (t *table[T]) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
