package ratelimit

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"resetAt"`
}

// clientWindow holds the trailing request timestamps for one client.
// Each client has its own lock so unrelated clients never contend.
type clientWindow struct {
	mu       sync.Mutex
	stamps   []time.Time
	lastSeen time.Time
}

// Limiter is a per-client sliding-window rate limiter. Admission for a
// single client is serialized on that client's lock; two simultaneous
// calls cannot both consume the last remaining slot.
type Limiter struct {
	mu      sync.RWMutex
	clients map[string]*clientWindow
	quota   int
	window  time.Duration
	logger  *logrus.Logger
	stop    chan struct{}

	now func() time.Time // overridable in tests
}

// New creates a limiter admitting at most quota requests per client in
// any trailing window. A sweeper goroutine drops windows for clients
// idle longer than the window; call Close to stop it.
func New(quota int, window time.Duration, logger *logrus.Logger) *Limiter {
	l := &Limiter{
		clients: make(map[string]*clientWindow),
		quota:   quota,
		window:  window,
		logger:  logger,
		stop:    make(chan struct{}),
		now:     time.Now,
	}

	go l.sweep()

	return l
}

// Admit records a request for clientID if capacity remains in the
// trailing window and reports the decision. When denied, ResetAt is the
// instant the oldest in-window request ages out.
func (l *Limiter) Admit(clientID string) Decision {
	cw := l.client(clientID)

	cw.mu.Lock()
	defer cw.mu.Unlock()

	now := l.now()
	cw.lastSeen = now
	cw.prune(now.Add(-l.window))

	if len(cw.stamps) >= l.quota {
		resetAt := now.Add(l.window)
		if len(cw.stamps) > 0 {
			resetAt = cw.stamps[0].Add(l.window)
		}
		return Decision{
			Allowed:   false,
			Remaining: 0,
			ResetAt:   resetAt,
		}
	}

	cw.stamps = append(cw.stamps, now)

	return Decision{
		Allowed:   true,
		Remaining: l.quota - len(cw.stamps),
		ResetAt:   now.Add(l.window),
	}
}

// Snapshot reports the current state for clientID without consuming a
// slot. Used by status surfaces.
func (l *Limiter) Snapshot(clientID string) Decision {
	l.mu.RLock()
	cw, ok := l.clients[clientID]
	l.mu.RUnlock()

	now := l.now()
	if !ok {
		return Decision{Allowed: true, Remaining: l.quota, ResetAt: now.Add(l.window)}
	}

	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.prune(now.Add(-l.window))

	if len(cw.stamps) >= l.quota {
		resetAt := now.Add(l.window)
		if len(cw.stamps) > 0 {
			resetAt = cw.stamps[0].Add(l.window)
		}
		return Decision{Allowed: false, Remaining: 0, ResetAt: resetAt}
	}

	return Decision{Allowed: true, Remaining: l.quota - len(cw.stamps), ResetAt: now.Add(l.window)}
}

// Close stops the sweeper goroutine.
func (l *Limiter) Close() {
	close(l.stop)
}

func (l *Limiter) client(clientID string) *clientWindow {
	l.mu.RLock()
	cw, ok := l.clients[clientID]
	l.mu.RUnlock()
	if ok {
		return cw
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if cw, ok = l.clients[clientID]; ok {
		return cw
	}
	cw = &clientWindow{}
	l.clients[clientID] = cw
	return cw
}

// prune drops timestamps at or before cutoff. Caller holds cw.mu.
func (cw *clientWindow) prune(cutoff time.Time) {
	idx := 0
	for idx < len(cw.stamps) && !cw.stamps[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		cw.stamps = append(cw.stamps[:0], cw.stamps[idx:]...)
	}
}

// sweep removes windows for clients that have been idle for longer
// than the window, so the client map does not grow without bound.
func (l *Limiter) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			cutoff := l.now().Add(-l.window)
			l.mu.Lock()
			for id, cw := range l.clients {
				cw.mu.Lock()
				idle := cw.lastSeen.Before(cutoff)
				cw.mu.Unlock()
				if idle {
					delete(l.clients, id)
				}
			}
			l.mu.Unlock()
		}
	}
}
