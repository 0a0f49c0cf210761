// Package searchcache keeps search results per browser session so that
// repeating a search does not hit the remote API again.
package searchcache

import (
	"strings"

	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/kfsearch/internal/domain/image"
)

// Cache maps (session, query key) to a result list.
// Entries never expire on their own; they are dropped when the session ends.
type Cache struct {
	entries    *cache.Cache
	cacheTotal *prometheus.CounterVec
}

// New creates a cache. cacheTotal is a counter vec with label "result" ("hit"/"miss"); may be nil.
func New(cacheTotal *prometheus.CounterVec) *Cache {
	return &Cache{
		entries:    cache.New(cache.NoExpiration, 0),
		cacheTotal: cacheTotal,
	}
}

func entryKey(sessionID, key string) string {
	return sessionID + "\x00" + key
}

// Get returns a copy of the cached results.
func (c *Cache) Get(sessionID, key string) ([]image.Record, bool) {
	v, ok := c.entries.Get(entryKey(sessionID, key))
	if !ok {
		c.inc("miss")
		return nil, false
	}
	c.inc("hit")
	return clone(v.([]image.Record)), true
}

// Put stores results under key, replacing any previous entry.
func (c *Cache) Put(sessionID, key string, results []image.Record) {
	c.entries.Set(entryKey(sessionID, key), clone(results), cache.NoExpiration)
}

// Drop removes every entry of a session.
func (c *Cache) Drop(sessionID string) {
	prefix := sessionID + "\x00"
	for k := range c.entries.Items() {
		if strings.HasPrefix(k, prefix) {
			c.entries.Delete(k)
		}
	}
}

// Len returns the number of cached entries across sessions.
func (c *Cache) Len() int {
	return c.entries.ItemCount()
}

func (c *Cache) inc(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func clone(in []image.Record) []image.Record {
	out := make([]image.Record, len(in))
	copy(out, in)
	return out
}
