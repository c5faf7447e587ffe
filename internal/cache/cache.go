// Package cache keeps aggregated parse results for recently seen buffers.
package cache

import (
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/patrickmn/go-cache"

	"firestige.xyz/tracekit/internal/core"
	"firestige.xyz/tracekit/internal/metrics"
)

// ResultCache maps (buffer content, parser options) to the aggregated entries.
// Cached records are shared; callers must not mutate them.
type ResultCache struct {
	entries *cache.Cache
	ttl     time.Duration
}

func New(ttl, cleanup time.Duration) *ResultCache {
	return &ResultCache{
		entries: cache.New(ttl, cleanup),
		ttl:     ttl,
	}
}

// Key hashes the buffer and binds it to the options fingerprint, so the same bytes
// parsed with another charset or time zone miss.
func Key(buf []byte, fingerprint string) string {
	d := xxhash.New()
	_, _ = d.Write(buf)
	_, _ = d.WriteString(fingerprint)
	return strconv.FormatUint(d.Sum64(), 16) + ":" + strconv.Itoa(len(buf))
}

// Get returns a copy of the cached entry slices.
func (c *ResultCache) Get(key string) (core.Entries, bool) {
	v, found := c.entries.Get(key)
	if !found {
		metrics.CacheRequestsTotal.WithLabelValues("miss").Inc()
		return core.Entries{}, false
	}
	metrics.CacheRequestsTotal.WithLabelValues("hit").Inc()
	e := v.(core.Entries)
	return core.Entries{
		Frames: append([]*core.FrameRecord(nil), e.Frames...),
		Logs:   append([]*core.LogRecord(nil), e.Logs...),
	}, true
}

func (c *ResultCache) Put(key string, e core.Entries) {
	c.entries.Set(key, e, c.ttl)
}

func (c *ResultCache) Len() int {
	return c.entries.ItemCount()
}

func (c *ResultCache) Flush() {
	c.entries.Flush()
}
