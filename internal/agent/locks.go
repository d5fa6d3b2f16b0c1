// ABOUTME: Keyed mutexes serializing concurrent turns on the same conversation
// ABOUTME: Entries are reference-counted and removed once the last holder unlocks

package agent

import "sync"

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// conversationLocks hands out one mutex per conversation id. Idle entries
// are dropped so the map does not grow with every conversation ever seen.
type conversationLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

func newConversationLocks() *conversationLocks {
	return &conversationLocks{entries: make(map[string]*lockEntry)}
}

// lock acquires the mutex for the given conversation and returns the
// matching unlock function.
func (l *conversationLocks) lock(conversationID string) func() {
	l.mu.Lock()
	entry, ok := l.entries[conversationID]
	if !ok {
		entry = &lockEntry{}
		l.entries[conversationID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, conversationID)
		}
		l.mu.Unlock()
	}
}
