package interpreter

import (
	"sync"
	"time"
)

// Stats accumulates named interval timings for one transaction, mirroring
// the mark/start/end bookkeeping the original transaction engine keeps for
// its own "execution" interval. Every method is safe to call from any
// goroutine, though in practice only the dispatch loop mutates it.
type Stats struct {
	mu      sync.Mutex
	marks   map[string]time.Time
	elapsed map[string]time.Duration
	started time.Time
	ended   time.Time
}

// NewStats returns a Stats with its overall transaction clock already
// running.
func NewStats(now time.Time) *Stats {
	return &Stats{
		marks:   make(map[string]time.Time),
		elapsed: make(map[string]time.Duration),
		started: now,
	}
}

// Mark records now as the start of a named interval.
func (s *Stats) Mark(name string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marks[name] = now
}

// End closes a named interval previously opened with Mark, accumulating its
// duration. Calling End without a matching Mark is a no-op.
func (s *Stats) End(name string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start, ok := s.marks[name]
	if !ok {
		return
	}
	s.elapsed[name] += now.Sub(start)
	delete(s.marks, name)
}

// Finish records the transaction's overall completion time.
func (s *Stats) Finish(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = now
}

// Elapsed returns the accumulated duration for a named interval.
func (s *Stats) Elapsed(name string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed[name]
}

// Total returns the wall-clock duration of the whole transaction. Zero if
// the transaction hasn't finished yet.
func (s *Stats) Total() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended.IsZero() {
		return 0
	}
	return s.ended.Sub(s.started)
}

// Snapshot returns a copy of every accumulated named interval, for
// inclusion in logs or diagnostics.
func (s *Stats) Snapshot() map[string]time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]time.Duration, len(s.elapsed))
	for k, v := range s.elapsed {
		out[k] = v
	}
	return out
}
