// Package tick provides a cooperative, tick-driven scheduling abstraction.
//
// Components implement Tickable and are re-invoked at a fixed period by a
// Scheduler. Ticks for all registered tickables run on a single goroutine,
// so a tickable's OnTick is never invoked concurrently with itself, with
// another tickable, or with a function submitted via Post. State touched only
// from that goroutine needs no locking.
package tick

import (
	"sync"
	"time"
)

// DefaultInterval is the default tick period.
const DefaultInterval = 50 * time.Millisecond

// Tickable is implemented by components driven by periodic ticks.
type Tickable interface {
	// OnTick performs one unit of cooperative work. It must not block.
	// Returning false unregisters the tickable; it will not be ticked again.
	OnTick() bool
}

// Scheduler drives registered tickables at a fixed period.
type Scheduler struct {
	interval time.Duration

	mu       sync.Mutex
	pending  []Tickable
	calls    []func()
	started  bool
	stopCh   chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once

	// entries is touched only by the run goroutine.
	entries []Tickable
}

// NewScheduler creates a scheduler with the given tick period.
// A zero or negative interval uses DefaultInterval.
func NewScheduler(interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		interval: interval,
		stopCh:   make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Add registers a tickable. It starts receiving ticks on the next cycle.
func (s *Scheduler) Add(t Tickable) {
	s.mu.Lock()
	s.pending = append(s.pending, t)
	s.mu.Unlock()
}

// Post schedules fn to run on the scheduler goroutine, serialized with
// ticks. Use it to call into tick-confined state from other goroutines.
func (s *Scheduler) Post(fn func()) {
	s.mu.Lock()
	s.calls = append(s.calls, fn)
	s.mu.Unlock()
}

// Start begins ticking in a background goroutine. Safe to call once.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go s.run()
}

// Stop halts the scheduler and waits for the run goroutine to exit.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })

	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started {
		<-s.stopped
	}
}

func (s *Scheduler) run() {
	defer close(s.stopped)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick runs one scheduling cycle: posted calls first, then every live
// tickable once. Exposed so tests and synchronous hosts can drive the
// scheduler without a background goroutine.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	calls := s.calls
	s.calls = nil
	s.entries = append(s.entries, s.pending...)
	s.pending = nil
	s.mu.Unlock()

	for _, fn := range calls {
		fn()
	}

	live := s.entries[:0]
	for _, t := range s.entries {
		if t.OnTick() {
			live = append(live, t)
		}
	}
	s.entries = live
}

// Len reports how many tickables are currently registered.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries) + len(s.pending)
}
