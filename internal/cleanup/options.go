package cleanup

import "time"

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source used to decide what is expired.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}
