// Package ratelimit implements the fixed-window attempt counter guarding
// sign-in and sign-up against brute force.
//
// The window is anchored at the first attempt: later attempts increment the
// counter but never move the reset time. That is deliberate; it mirrors the
// resetTime semantics the rest of the system is built around.
package ratelimit

import (
	"sync"
	"time"
)

const (
	// DefaultMaxAttempts is the number of attempts admitted per window.
	DefaultMaxAttempts = 5
	// DefaultWindow is the fixed window measured from the first attempt.
	DefaultWindow = 15 * time.Minute
)

type record struct {
	count     int
	resetTime time.Time
}

// Store is a mutex-guarded attempt counter keyed by identifier
// (e.g. "signin:<ip>:<email>"). Safe for concurrent use.
type Store struct {
	mu          sync.Mutex
	records     map[string]*record
	maxAttempts int
	window      time.Duration
	now         func() time.Time
}

// Option configures Store behavior.
type Option func(*Store)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Store) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithMaxAttempts overrides the per-window attempt budget.
func WithMaxAttempts(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithWindow overrides the window length.
func WithWindow(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.window = d
		}
	}
}

// NewStore constructs an empty limiter.
func NewStore(opts ...Option) *Store {
	s := &Store{
		records:     make(map[string]*record),
		maxAttempts: DefaultMaxAttempts,
		window:      DefaultWindow,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsLimited reports whether the identifier has exhausted its window budget.
// Expired records are deleted as a side effect of checking.
func (s *Store) IsLimited(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.lookup(id)
	if rec == nil {
		return false
	}
	return rec.count >= s.maxAttempts
}

// RecordAttempt counts one attempt. The first attempt in a window fixes the
// reset time; subsequent attempts only increment the counter.
func (s *Store) RecordAttempt(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(id)
}

// Allow combines the limit check and the attempt recording under one lock,
// so two concurrent callers cannot both slip past the threshold.
// It returns false when the identifier is already over budget; otherwise it
// records the attempt and returns true.
func (s *Store) Allow(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec := s.lookup(id); rec != nil && rec.count >= s.maxAttempts {
		return false
	}
	s.record(id)
	return true
}

// Reset unconditionally forgets the identifier. Called on successful
// authentication so prior failures stop counting.
func (s *Store) Reset(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
}

// Remaining returns how many attempts are left in the current window.
func (s *Store) Remaining(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.lookup(id)
	if rec == nil {
		return s.maxAttempts
	}
	left := s.maxAttempts - rec.count
	if left < 0 {
		return 0
	}
	return left
}

// ResetTime returns when the identifier's window expires, or the zero time
// if no active record exists.
func (s *Store) ResetTime(id string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.lookup(id)
	if rec == nil {
		return time.Time{}
	}
	return rec.resetTime
}

// lookup returns the live record for id, lazily dropping it once expired.
// Callers must hold s.mu.
func (s *Store) lookup(id string) *record {
	rec, ok := s.records[id]
	if !ok {
		return nil
	}
	if s.now().After(rec.resetTime) {
		delete(s.records, id)
		return nil
	}
	return rec
}

// record counts one attempt for id. Callers must hold s.mu.
func (s *Store) record(id string) {
	if rec := s.lookup(id); rec != nil {
		rec.count++
		return
	}
	s.records[id] = &record{count: 1, resetTime: s.now().Add(s.window)}
}
