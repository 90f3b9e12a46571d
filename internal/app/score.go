package app

import "time"

// scoreAnswer converts response latency into points: a full window of
// remaining time is worth base, zero remaining time is worth nothing,
// and the result decreases linearly (floored) in between. Elapsed past
// the window clamps to zero rather than going negative.
func scoreAnswer(elapsed, window time.Duration, base int) int {
	if window <= 0 {
		return 0
	}
	remaining := window - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return int(float64(base) * (remaining.Seconds() / window.Seconds()))
}
