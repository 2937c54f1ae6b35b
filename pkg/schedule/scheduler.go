// Package schedule runs delayed callbacks keyed by name. Scheduling under an
// existing key replaces the pending callback; cancelling a key is a single
// call.
package schedule

import (
	"sort"
	"sync"
	"time"
)

// Scheduler runs fn once after d unless cancelled first.
type Scheduler interface {
	Schedule(key string, d time.Duration, fn func())
	Cancel(key string)
	Pending(key string) bool
	StopAll()
}

// TimerScheduler is backed by time.AfterFunc.
type TimerScheduler struct {
	timers map[string]*time.Timer
	mu     sync.Mutex
}

// NewTimerScheduler creates a new timer scheduler
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{
		timers: make(map[string]*time.Timer),
	}
}

// Schedule replaces any pending callback for key.
func (s *TimerScheduler) Schedule(key string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.timers[key]; ok {
		existing.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(d, func() {
		// Forget the key first so fn may schedule it again.
		s.mu.Lock()
		if s.timers[key] == timer {
			delete(s.timers, key)
		}
		s.mu.Unlock()
		fn()
	})
	s.timers[key] = timer
}

// Cancel stops the callback for key, if any.
func (s *TimerScheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[key]; ok {
		timer.Stop()
		delete(s.timers, key)
	}
}

// Pending reports whether a callback for key has not fired yet.
func (s *TimerScheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[key]
	return ok
}

// StopAll stops all pending callbacks
func (s *TimerScheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, timer := range s.timers {
		timer.Stop()
	}
	s.timers = make(map[string]*time.Timer)
}

// ManualScheduler fires callbacks only when Advance moves its clock. Tests
// use it to drive delayed transitions deterministically.
type ManualScheduler struct {
	mu      sync.Mutex
	now     time.Duration
	seq     int
	pending map[string]manualEvent
}

type manualEvent struct {
	at  time.Duration
	seq int
	fn  func()
}

// NewManualScheduler creates a scheduler whose clock starts at zero.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{pending: make(map[string]manualEvent)}
}

func (s *ManualScheduler) Schedule(key string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.pending[key] = manualEvent{at: s.now + d, seq: s.seq, fn: fn}
}

func (s *ManualScheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, key)
}

func (s *ManualScheduler) Pending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[key]
	return ok
}

func (s *ManualScheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = make(map[string]manualEvent)
}

// Advance moves the clock by d and runs every callback that became due, in
// due-time order. Callbacks run without the scheduler lock held and may
// schedule further events; those fire too if they fall within the window.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()

	for {
		s.mu.Lock()
		key, ev, ok := s.nextDue(target)
		if !ok {
			s.now = target
			s.mu.Unlock()
			return
		}
		delete(s.pending, key)
		s.now = ev.at
		s.mu.Unlock()
		ev.fn()
	}
}

func (s *ManualScheduler) nextDue(target time.Duration) (string, manualEvent, bool) {
	keys := make([]string, 0, len(s.pending))
	for k, ev := range s.pending {
		if ev.at <= target {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return "", manualEvent{}, false
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := s.pending[keys[i]], s.pending[keys[j]]
		if a.at != b.at {
			return a.at < b.at
		}
		return a.seq < b.seq
	})
	return keys[0], s.pending[keys[0]], true
}
