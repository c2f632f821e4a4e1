// Package cache keeps immutable round configuration (start unit, hole
// count, score rule) in process so hot score writes skip one round
// fetch. Round lifecycle state is deliberately absent: the open check
// and the completion barrier always go to the store.
package cache

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// RoundConfig is the immutable slice of a round that is safe to cache
type RoundConfig struct {
	StartUnit  int
	TotalUnits int
	ScoreRule  string
}

// RoundConfigCache is a TTL'd in-memory cache of round configuration
type RoundConfigCache struct {
	data map[uuid.UUID]*entry
	ttl  time.Duration
	mu   sync.RWMutex

	stop     chan struct{}
	stopOnce sync.Once
}

type entry struct {
	cfg       RoundConfig
	expiresAt time.Time
}

// New creates a round-config cache with the given TTL
func New(ttl time.Duration) *RoundConfigCache {
	c := &RoundConfigCache{
		data: make(map[uuid.UUID]*entry),
		ttl:  ttl,
		stop: make(chan struct{}),
	}

	go c.cleanup()

	return c
}

// Stop ends the background janitor goroutine. The cache stays usable
// afterwards; expired entries just stop being purged. Safe to call
// more than once.
func (c *RoundConfigCache) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Get retrieves a cached config
func (c *RoundConfigCache) Get(roundID uuid.UUID) (RoundConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, exists := c.data[roundID]
	if !exists || time.Now().After(e.expiresAt) {
		return RoundConfig{}, false
	}

	return e.cfg, true
}

// Set stores a config
func (c *RoundConfigCache) Set(roundID uuid.UUID, cfg RoundConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[roundID] = &entry{
		cfg:       cfg,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Delete evicts a round, e.g. once it completes
func (c *RoundConfigCache) Delete(roundID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.data, roundID)
}

// cleanup removes expired entries periodically
func (c *RoundConfigCache) cleanup() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, e := range c.data {
				if now.After(e.expiresAt) {
					delete(c.data, key)
				}
			}
			c.mu.Unlock()
		}
	}
}
