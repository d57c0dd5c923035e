package audit

import "time"

// Seed is a test helper that backfills entries with explicit timestamps when
// using the in-memory store.
func Seed(s Store, entries ...Entry) {
	mem, ok := s.(*memoryStore)
	if !ok {
		return
	}
	mem.mu.Lock()
	defer mem.mu.Unlock()
	for _, e := range entries {
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now().UTC()
		}
		mem.entries = append(mem.entries, e)
	}
}
