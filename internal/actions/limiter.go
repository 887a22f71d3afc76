package actions

import (
	"sync"

	"golang.org/x/time/rate"
)

const (
	// DefaultActionsPerSecond is the sustained per-actor budget.
	DefaultActionsPerSecond = 5.0

	// DefaultActionBurst is the short-term per-actor allowance.
	DefaultActionBurst = 10
)

// limiterMap hands out one token bucket per actor, created on first
// use.
type limiterMap struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
}

func newLimiterMap(perSecond float64, burst int) *limiterMap {
	return &limiterMap{
		limiters: map[string]*rate.Limiter{},
		rate:     rate.Limit(perSecond),
		burst:    burst,
	}
}

func (m *limiterMap) allow(actorID string) bool {
	m.mu.Lock()
	l, ok := m.limiters[actorID]
	if !ok {
		l = rate.NewLimiter(m.rate, m.burst)
		m.limiters[actorID] = l
	}
	m.mu.Unlock()
	return l.Allow()
}

// forget drops an actor's bucket so the next action starts fresh.
func (m *limiterMap) forget(actorID string) {
	m.mu.Lock()
	delete(m.limiters, actorID)
	m.mu.Unlock()
}
