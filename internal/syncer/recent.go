// Package syncer keeps the document catalog converged with the files
// on disk: a filesystem watcher reacts to external edits as they
// happen, and a periodic reconciler sweeps up anything the watcher
// missed. Writes performed by the engine itself are remembered for a
// short TTL so the watcher can ignore its own echo.
package syncer

import (
	"sync"
	"time"
)

// RecentWrites is a TTL set of absolute paths the engine has written
// itself. The watcher consults it to tell self-induced filesystem
// events from genuinely external ones.
type RecentWrites struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]time.Time
}

// NewRecentWrites returns a set whose entries expire after ttl.
func NewRecentWrites(ttl time.Duration) *RecentWrites {
	return &RecentWrites{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]time.Time),
	}
}

// Add registers absPath as written by this process. Re-adding an
// already present path restarts its TTL.
func (r *RecentWrites) Add(absPath string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[absPath] = r.now().Add(r.ttl)
}

// Observed reports whether absPath was self-written within the TTL.
// The entry is not consumed: a single write can fan out into several
// filesystem events, and all of them must be suppressed.
func (r *RecentWrites) Observed(absPath string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	for p, deadline := range r.entries {
		if deadline.Before(now) {
			delete(r.entries, p)
		}
	}
	deadline, ok := r.entries[absPath]
	return ok && !deadline.Before(now)
}
