package application

import (
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultCalendarCacheTTL  = 30 * time.Second
	defaultCalendarCacheSize = 128
)

// CalendarInvalidator drops cached calendar expansions. Services whose deletes
// cascade to bookings call it after a successful write.
type CalendarInvalidator interface {
	InvalidateCalendar()
}

// calendarCache keeps recently expanded calendar ranges in a size-bounded LRU with
// per-entry expiry. Readers take a generation before listing bookings and pass it
// to Store; anything invalidated in between is not cached.
type calendarCache struct {
	mu         sync.Mutex
	generation uint64
	entries    *expirable.LRU[string, []Occurrence]
}

func newCalendarCache(ttl time.Duration, size int) *calendarCache {
	if ttl <= 0 {
		ttl = defaultCalendarCacheTTL
	}
	if size <= 0 {
		size = defaultCalendarCacheSize
	}
	return &calendarCache{entries: expirable.NewLRU[string, []Occurrence](size, nil, ttl)}
}

// Generation identifies the current cache contents.
func (c *calendarCache) Generation() uint64 {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func (c *calendarCache) Get(key string) ([]Occurrence, bool) {
	if c == nil {
		return nil, false
	}
	occurrences, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	return cloneOccurrences(occurrences), true
}

// Store caches occurrences unless the cache was invalidated after generation was read.
func (c *calendarCache) Store(key string, generation uint64, occurrences []Occurrence) bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return false
	}
	c.entries.Add(key, cloneOccurrences(occurrences))
	return true
}

func (c *calendarCache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.generation++
	c.entries.Purge()
	c.mu.Unlock()
}

func cloneOccurrences(occurrences []Occurrence) []Occurrence {
	if len(occurrences) == 0 {
		return nil
	}
	out := make([]Occurrence, len(occurrences))
	copy(out, occurrences)
	return out
}

func buildCalendarCacheKey(params CalendarParams) string {
	return strings.Join([]string{params.RoomID, params.From.String(), params.To.String()}, "|")
}
