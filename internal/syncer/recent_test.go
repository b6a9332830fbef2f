package syncer

import (
	"testing"
	"time"
)

// fakeClock drives RecentWrites expiry deterministically.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestRecent(ttl time.Duration) (*RecentWrites, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	r := NewRecentWrites(ttl)
	r.now = clock.now
	return r, clock
}

func TestRecentWrites_ObservedWithinTTL(t *testing.T) {
	r, _ := newTestRecent(time.Second)
	r.Add("/data/u/v/a.md")
	if !r.Observed("/data/u/v/a.md") {
		t.Error("path just added should be observed")
	}
	if r.Observed("/data/u/v/other.md") {
		t.Error("unknown path should not be observed")
	}
}

func TestRecentWrites_ObservedDoesNotConsume(t *testing.T) {
	r, _ := newTestRecent(time.Second)
	r.Add("/data/u/v/a.md")
	for i := 0; i < 3; i++ {
		if !r.Observed("/data/u/v/a.md") {
			t.Fatalf("lookup %d should still observe the path", i)
		}
	}
}

func TestRecentWrites_ExpiresAfterTTL(t *testing.T) {
	r, clock := newTestRecent(time.Second)
	r.Add("/data/u/v/a.md")
	clock.advance(1500 * time.Millisecond)
	if r.Observed("/data/u/v/a.md") {
		t.Error("path should expire after the TTL")
	}
}

func TestRecentWrites_ReAddRestartsTTL(t *testing.T) {
	r, clock := newTestRecent(time.Second)
	r.Add("/data/u/v/a.md")
	clock.advance(800 * time.Millisecond)
	r.Add("/data/u/v/a.md")
	clock.advance(800 * time.Millisecond)
	if !r.Observed("/data/u/v/a.md") {
		t.Error("re-added path should survive its original deadline")
	}
}

func TestRecentWrites_LazyExpiryDropsStaleEntries(t *testing.T) {
	r, clock := newTestRecent(time.Second)
	r.Add("/data/u/v/a.md")
	r.Add("/data/u/v/b.md")
	clock.advance(2 * time.Second)
	r.Observed("/data/u/v/a.md")
	if len(r.entries) != 0 {
		t.Errorf("entries = %d; want 0 after expiry", len(r.entries))
	}
}
