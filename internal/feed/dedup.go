package feed

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Dedup drops events re-delivered by the pipeline within a short window.
// LRU bounds memory; TTL bounds staleness.
type Dedup struct {
	cache *lru.Cache[string, time.Time]
	ttl   time.Duration
}

func NewDedup(maxKeys int, ttl time.Duration) *Dedup {
	if maxKeys <= 0 {
		maxKeys = 4096
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	c, _ := lru.New[string, time.Time](maxKeys)
	return &Dedup{cache: c, ttl: ttl}
}

func (d *Dedup) IsDuplicate(key string) bool {
	if addedAt, ok := d.cache.Get(key); ok {
		if time.Since(addedAt) < d.ttl {
			return true
		}
		// Expired but still cached. Refresh below.
	}
	d.cache.Add(key, time.Now())
	return false
}

// DedupKey buckets occurred_at to 1 second so micro-timing differences in
// re-deliveries still collapse to one key.
func DedupKey(e *Event) string {
	child := int64(-1)
	if e.ChildID != nil {
		child = *e.ChildID
	}
	ts := e.OccurredAt.Truncate(time.Second).Unix()
	return fmt.Sprintf("%s|%s|%d|%d", e.CameraID, e.EventType, child, ts)
}
