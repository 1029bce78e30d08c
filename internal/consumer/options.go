package consumer

import "time"

// Option applies a configuration option to the Loop.
type Option func(*Loop)

// WithRetryBackoff sets the base delay between re-attempts of a failing
// message. The delay doubles per attempt.
func WithRetryBackoff(d time.Duration) Option {
	return func(l *Loop) {
		l.retryBackoff = d
	}
}
