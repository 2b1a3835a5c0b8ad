package ratelimit

import "time"

// SetClock replaces the limiter's time source.
func (m *Memory) SetClock(now func() time.Time) {
	m.now = now
}

// SetClock replaces the time source that picks the Redis window.
func (r *Redis) SetClock(now func() time.Time) {
	r.now = now
}
