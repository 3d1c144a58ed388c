package cache

import "time"

// SetClock replaces the clock used for expiry.
func (c *MemoryCache) SetClock(now func() time.Time) {
	c.now = now
}
