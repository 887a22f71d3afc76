package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/latchko/go-uprising/internal/world"
)

const (
	// DefaultResolution is how often the scheduler checks for due
	// sweeps. Individual sweeps fire on their own intervals.
	DefaultResolution = time.Second
)

// Sweep is one named periodic maintenance pass. Every sweep must be
// idempotent and safe to run concurrently with request handling.
type Sweep struct {
	Name     string
	Interval time.Duration

	// Delay postpones the first run past startup. Zero means the
	// first run waits one full interval.
	Delay time.Duration

	Run func(ctx context.Context, now time.Time) error

	next time.Time
}

// Scheduler drives a fixed set of sweeps, each on its own interval.
// It implements the service worker contract and runs until its
// context is cancelled. A failing sweep is logged and retried on its
// next interval; it never takes the scheduler down.
type Scheduler struct {
	mu     sync.Mutex
	sweeps []*Sweep

	resolution time.Duration
	now        func() time.Time
}

// SchedulerOpt configures a scheduler.
type SchedulerOpt func(*Scheduler)

// WithResolution overrides how often due sweeps are checked.
func WithResolution(d time.Duration) SchedulerOpt {
	return func(s *Scheduler) { s.resolution = d }
}

// WithClock overrides the scheduler's time source.
func WithClock(now func() time.Time) SchedulerOpt {
	return func(s *Scheduler) { s.now = now }
}

// NewScheduler creates a scheduler over the given sweeps.
func NewScheduler(sweeps []*Sweep, opts ...SchedulerOpt) *Scheduler {
	s := &Scheduler{
		sweeps:     sweeps,
		resolution: DefaultResolution,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the sweep loop until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.resolution)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs every sweep that has come due. The first tick arms each
// sweep's schedule without running it.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	var due []*Sweep
	for _, sw := range s.sweeps {
		if sw.next.IsZero() {
			delay := sw.Interval
			if sw.Delay > 0 {
				delay = sw.Delay
			}
			sw.next = now.Add(delay)
			continue
		}
		if !now.Before(sw.next) {
			sw.next = now.Add(sw.Interval)
			due = append(due, sw)
		}
	}
	s.mu.Unlock()

	for _, sw := range due {
		if err := sw.Run(ctx, now); err != nil {
			slog.ErrorContext(ctx, "sweep failed", "sweep", sw.Name, "error", err)
		}
	}
}

// ForceSweep runs one sweep immediately, regardless of its schedule.
func (s *Scheduler) ForceSweep(ctx context.Context, name string) error {
	s.mu.Lock()
	var target *Sweep
	for _, sw := range s.sweeps {
		if sw.Name == name {
			target = sw
			break
		}
	}
	s.mu.Unlock()

	if target == nil {
		return fmt.Errorf("sweep %s: %w", name, world.ErrNotFound)
	}
	return target.Run(ctx, s.now())
}

// SweepNames lists the configured sweeps.
func (s *Scheduler) SweepNames() []string {
	names := make([]string, len(s.sweeps))
	for i, sw := range s.sweeps {
		names[i] = sw.Name
	}
	return names
}
