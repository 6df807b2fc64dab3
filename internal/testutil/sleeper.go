package testutil

import (
	"sync"
	"time"
)

// RecordingSleeper records requested sleep durations without sleeping.
// Optionally advances a StubClock by each requested duration, so polling
// loops driven by the clock make progress.
type RecordingSleeper struct {
	mu     sync.Mutex
	sleeps []time.Duration
	clock  *StubClock
}

// NewRecordingSleeper creates a RecordingSleeper. clock may be nil.
func NewRecordingSleeper(clock *StubClock) *RecordingSleeper {
	return &RecordingSleeper{clock: clock}
}

// Sleep records d and advances the attached clock, if any.
func (s *RecordingSleeper) Sleep(d time.Duration) {
	s.mu.Lock()
	s.sleeps = append(s.sleeps, d)
	s.mu.Unlock()
	if s.clock != nil {
		s.clock.Advance(d)
	}
}

// Sleeps returns the recorded durations.
func (s *RecordingSleeper) Sleeps() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration{}, s.sleeps...)
}
