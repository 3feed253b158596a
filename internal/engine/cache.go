// internal/engine/cache.go
package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/solatis/killwatch/internal/types"
)

/*
 * Match-result cache.
 *
 * Short-TTL map from event fingerprint to the matched profile ids, so a
 * repeated or replayed killmail skips candidate selection and evaluation
 * entirely. Purely a performance optimization: with the cache disabled,
 * Match returns identical results (only latency changes), except across a
 * TTL boundary under concurrent profile mutation, which is accepted as
 * approximate.
 *
 * The fingerprint hashes only the fields candidate selection consults
 * (killmail id, system id, victim ship type id, total value, attacker
 * count), not the full event. Rules on individual attacker fields are
 * therefore not part of the key; the killmail id component makes
 * cross-event collisions a non-issue in practice.
 */

// cacheEntry is one fingerprint's matched set with its expiry.
type cacheEntry struct {
	ids     []types.ProfileID
	expires time.Time
}

// matchCache is a TTL-bounded fingerprint cache. Safe for concurrent use.
type matchCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	enabled bool
}

// newMatchCache creates a cache with the given TTL. A disabled cache
// accepts stores and always misses.
func newMatchCache(ttl time.Duration, enabled bool) *matchCache {
	return &matchCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		enabled: enabled,
	}
}

// Lookup returns the cached matched set for a fingerprint. Expired entries
// miss; removal is left to the periodic purge.
func (c *matchCache) Lookup(fingerprint string, now time.Time) ([]types.ProfileID, bool) {
	if !c.enabled {
		return nil, false
	}
	c.mu.RLock()
	entry, ok := c.entries[fingerprint]
	c.mu.RUnlock()
	if !ok || now.After(entry.expires) {
		return nil, false
	}
	return entry.ids, true
}

// Store caches the matched set for a fingerprint.
func (c *matchCache) Store(fingerprint string, ids []types.ProfileID, now time.Time) {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	c.entries[fingerprint] = cacheEntry{ids: ids, expires: now.Add(c.ttl)}
	c.mu.Unlock()
}

// Purge removes expired entries.
func (c *matchCache) Purge(now time.Time) {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	for fp, entry := range c.entries {
		if now.After(entry.expires) {
			delete(c.entries, fp)
		}
	}
	c.mu.Unlock()
}

// Clear drops every entry. Called after a generation swap so stale matched
// sets never outlive the profiles that produced them.
func (c *matchCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Size returns the current entry count.
func (c *matchCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Fingerprint deterministically hashes the event fields consulted by
// candidate selection.
func Fingerprint(e *types.Event) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%d|%d|%.2f|%d",
		e.KillmailID,
		e.SolarSystemID,
		e.Victim.ShipTypeID,
		e.TotalValue,
		e.AttackerCount,
	)
	return hex.EncodeToString(h.Sum(nil))
}
