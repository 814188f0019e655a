package common

import (
	"time"
)

// This stopwatch keeps track of time. It starts counting when created,
// and it can be asked for the time elapsed since then
type Stopwatch struct {
	startTime time.Time
}

func NewStopwatch() Stopwatch {
	return Stopwatch{time.Now()}
}

func (s *Stopwatch) Elapsed() time.Duration {
	return time.Since(s.startTime).Round(time.Millisecond)
}
