// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cache provides the process-local pipeline cache: a bounded,
// TTL'd key→value store shared across orchestration calls.
//
// Keys are derived, never guessed: every key embeds the user id so cached
// routes and enhancements cannot leak across users.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/kadirpekel/recall/pkg/config"
)

type entry struct {
	value     interface{}
	expiresAt time.Time
	storedAt  time.Time
	hits      int64
}

// Stats reports cache effectiveness counters.
type Stats struct {
	Size      int     `json:"size"`
	MaxSize   int     `json:"max_size"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	HitRate   float64 `json:"hit_rate"`
}

// Cache is a capacity-bounded TTL cache. When full, the entry with the
// lowest hit count is evicted, breaking ties by oldest timestamp. Expired
// entries are filtered lazily on read and swept periodically.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	maxSize    int
	defaultTTL time.Duration
	enabled    bool

	hits      int64
	misses    int64
	evictions int64

	stopSweep chan struct{}
	sweepOnce sync.Once
}

// New creates a Cache from config and starts the periodic sweeper.
func New(cfg config.CacheConfig) *Cache {
	c := &Cache{
		entries:    make(map[string]*entry),
		maxSize:    cfg.MaxSize,
		defaultTTL: cfg.DefaultTTL.Std(),
		enabled:    cfg.Enabled == nil || *cfg.Enabled,
		stopSweep:  make(chan struct{}),
	}

	sweepInterval := cfg.SweepInterval.Std()
	if sweepInterval > 0 {
		go c.sweepLoop(sweepInterval)
	}

	return c
}

// Key derives a cache key from a value kind, user id and query text.
// Format: "{kind}:{userId}:{sha256_hex(query)[:8]}".
func Key(kind, userID, query string) string {
	sum := sha256.Sum256([]byte(query))
	return fmt.Sprintf("%s:%s:%s", kind, userID, hex.EncodeToString(sum[:])[:8])
}

// Get returns the cached value for key, or false when absent, expired or
// the cache is disabled.
func (c *Cache) Get(key string) (interface{}, bool) {
	if !c.enabled {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}

	e.hits++
	c.hits++
	return e.value, true
}

// Set stores value under key with the default TTL.
func (c *Cache) Set(key string, value interface{}) {
	c.SetTTL(key, value, c.defaultTTL)
}

// SetTTL stores value under key with an explicit TTL. No-op when disabled.
func (c *Cache) SetTTL(key string, value interface{}, ttl time.Duration) {
	if !c.enabled {
		return
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictLocked()
	}

	c.entries[key] = &entry{
		value:     value,
		expiresAt: now.Add(ttl),
		storedAt:  now,
	}
}

// evictLocked removes the entry with the lowest hit count, ties broken by
// oldest storedAt. Caller holds the write lock.
func (c *Cache) evictLocked() {
	var victim string
	var victimHits int64 = -1
	var victimStored time.Time

	for key, e := range c.entries {
		if victimHits == -1 || e.hits < victimHits ||
			(e.hits == victimHits && e.storedAt.Before(victimStored)) {
			victim = key
			victimHits = e.hits
			victimStored = e.storedAt
		}
	}

	if victim != "" {
		delete(c.entries, victim)
		c.evictions++
	}
}

// Invalidate removes a single key.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// Size returns the current entry count.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Enabled reports whether the cache is active.
func (c *Cache) Enabled() bool {
	return c.enabled
}

// Stats returns a snapshot of the hit counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := Stats{
		Size:      len(c.entries),
		MaxSize:   c.maxSize,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

func (c *Cache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stopSweep:
			return
		}
	}
}

func (c *Cache) sweep() {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// Close stops the background sweeper.
func (c *Cache) Close() {
	c.sweepOnce.Do(func() {
		close(c.stopSweep)
	})
}
