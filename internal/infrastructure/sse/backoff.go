package sse

import "time"

// NextDelay returns the reconnect delay for the given attempt (1-based):
// base doubled per previous attempt, clamped to max.
func NextDelay(attempt int, base, max time.Duration) time.Duration {
	if base <= 0 || base >= max {
		return max
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max || delay <= 0 {
			return max
		}
	}
	return delay
}

// ShouldRetry reports whether the given failure count is still within the
// retry budget.
func ShouldRetry(attempt, maxAttempts int) bool {
	return attempt <= maxAttempts
}
