package cache

import "time"

// Option applies a configuration option to the Cache.
type Option func(*Cache)

// WithClock overrides the time source used to stamp new records.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}
