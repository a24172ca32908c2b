package cache

import "time"

type saved struct {
	key       Key
	value     any
	stale     bool
	updatedAt time.Time
}

// Snapshot is a copy of the cached values under a set of prefixes.
type Snapshot struct {
	prefixes []Key
	entries  map[string]saved
	gen      uint64
}

// Snapshot captures every cached value under prefixes.
func (c *Client) Snapshot(prefixes ...Key) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		prefixes: append([]Key(nil), prefixes...),
		entries:  make(map[string]saved),
		gen:      c.gen,
	}
	for k, e := range c.entries {
		if e.has && matchesAny(e.key, prefixes) {
			s.entries[k] = saved{key: e.key, value: e.value, stale: e.stale, updatedAt: e.updatedAt}
		}
	}
	return s
}

// Restore puts back exactly the values captured by s. Values written under
// the snapshot prefixes after it was taken are dropped. A snapshot taken
// before the last Clear restores nothing.
func (c *Client) Restore(s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.gen != c.gen {
		return
	}
	for k, e := range c.entries {
		if !matchesAny(e.key, s.prefixes) {
			continue
		}
		if _, ok := s.entries[k]; !ok {
			e.value = nil
			e.has = false
		}
	}
	for _, sv := range s.entries {
		e := c.entryLocked(sv.key)
		e.value = sv.value
		e.has = true
		e.stale = sv.stale
		e.updatedAt = sv.updatedAt
	}
}

// Len returns the number of values captured.
func (s Snapshot) Len() int {
	return len(s.entries)
}
