package services

import "time"

// BackoffPolicy maps a retry count to the delay before the next attempt.
type BackoffPolicy func(retryCount int) time.Duration

// ExponentialBackoff doubles the base delay per retry, capped at max.
func ExponentialBackoff(base, max time.Duration) BackoffPolicy {
	return func(retryCount int) time.Duration {
		if retryCount < 0 {
			retryCount = 0
		}
		d := base
		for i := 0; i < retryCount; i++ {
			d *= 2
			if d >= max {
				return max
			}
		}
		if d > max {
			return max
		}
		return d
	}
}

// DefaultBackoff is the dispatch retry policy: 30s, 1m, 2m, ... capped at 10m.
var DefaultBackoff = ExponentialBackoff(30*time.Second, 10*time.Minute)
