package fitness

import (
	"fmt"
	"sort"
	"sync"

	"github.com/wildfunctions/acme/pkg/genome"
)

// KeyMode selects which signature a cache entry is stored under.
type KeyMode int

const (
	// KeyRaw stores under the signature of the repaired genome as given.
	KeyRaw KeyMode = iota
	// KeyEffective stores under the signature of the reduced structure, so
	// every effective structure is evaluated at most once.
	KeyEffective
)

func (m KeyMode) String() string {
	switch m {
	case KeyRaw:
		return "raw"
	case KeyEffective:
		return "effective"
	default:
		return fmt.Sprintf("keymode(%d)", int(m))
	}
}

// ParseKeyMode maps a config name to a key mode.
func ParseKeyMode(name string) (KeyMode, error) {
	switch name {
	case "", "raw":
		return KeyRaw, nil
	case "effective":
		return KeyEffective, nil
	default:
		return 0, fmt.Errorf("unknown cache key mode: %s (available: raw, effective)", name)
	}
}

// Entry is one evaluated structure.
type Entry struct {
	Key        string     // signature the entry is stored under
	Effective  string     // signature of the reduced structure
	Likelihood Likelihood // best likelihood the oracle found
}

// Cache maps structure signatures to their best likelihood. It belongs to
// one search session, grows for the session's lifetime and is never evicted.
type Cache struct {
	mu      sync.RWMutex
	mode    KeyMode
	entries map[string]Entry
	hits    int
	misses  int
}

// NewCache returns an empty cache.
func NewCache(mode KeyMode) *Cache {
	return &Cache{mode: mode, entries: make(map[string]Entry)}
}

// Mode returns the key mode entries are stored under.
func (c *Cache) Mode() KeyMode { return c.mode }

// Lookup checks both the raw and the effective signature.
func (c *Cache) Lookup(raw, effective genome.Genome) (Likelihood, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range []string{raw.Signature(), effective.Signature()} {
		if e, ok := c.entries[key]; ok {
			c.hits++
			return e.Likelihood, true
		}
	}
	c.misses++
	return 0, false
}

// Store records the likelihood of a structure under the key selected by the
// cache's mode.
func (c *Cache) Store(raw, effective genome.Genome, l Likelihood) {
	key := raw.Signature()
	if c.mode == KeyEffective {
		key = effective.Signature()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = Entry{Key: key, Effective: effective.Signature(), Likelihood: l}
}

// Len returns the number of stored structures.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns the lookup hit and miss counts.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

// Entries returns every entry sorted by key.
func (c *Cache) Entries() []Entry {
	c.mu.RLock()
	out := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Load seeds the cache with previously evaluated entries, e.g. from a store.
// Existing keys are overwritten.
func (c *Cache) Load(entries []Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entries {
		c.entries[e.Key] = e
	}
}
