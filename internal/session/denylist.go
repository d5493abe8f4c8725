package session

import (
	"sync"
	"time"
)

// Denylist holds logged-out tokens until they expire. It has no size bound:
// an entry only leaves when its expiry passes or the token logs in again.
type Denylist struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewDenylist() *Denylist {
	return &Denylist{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Add rejects token until expires.
func (d *Denylist) Add(token string, expires time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.entries[token]; ok && cur.After(expires) {
		return
	}
	d.entries[token] = expires
}

func (d *Denylist) Remove(token string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.entries, token)
}

// Contains reports whether token is still denied.
func (d *Denylist) Contains(token string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	expires, ok := d.entries[token]
	if !ok {
		return false
	}
	if !d.now().Before(expires) {
		delete(d.entries, token)
		return false
	}
	return true
}

// CleanExpired drops entries past their expiry and returns how many went.
func (d *Denylist) CleanExpired() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	n := 0
	for token, expires := range d.entries {
		if !now.Before(expires) {
			delete(d.entries, token)
			n++
		}
	}
	return n
}

func (d *Denylist) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}
