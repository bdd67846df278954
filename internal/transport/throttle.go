package transport

import (
	"context"
	"sync"
	"time"
)

// throttleWindow is one active cooldown on an endpoint. Every caller blocked
// on the same endpoint selects on the same release channel, so a rate-limit
// response produces one shared wait instead of independent sleeps.
type throttleWindow struct {
	endsAt  time.Time
	release chan struct{}
}

// ThrottleRegistry tracks active rate-limit windows keyed by endpoint.
// Windows are created by the request that received the rate-limit response
// and removed by the same request once its own sleep elapses.
type ThrottleRegistry struct {
	mu      sync.Mutex
	windows map[EndpointKey]*throttleWindow
}

func NewThrottleRegistry() *ThrottleRegistry {
	return &ThrottleRegistry{windows: make(map[EndpointKey]*throttleWindow)}
}

// Pending returns the remaining cooldown for key, if any.
func (r *ThrottleRegistry) Pending(key EndpointKey) (time.Duration, bool) {
	r.mu.Lock()
	w := r.windows[key]
	r.mu.Unlock()
	if w == nil {
		return 0, false
	}
	return time.Until(w.endsAt), true
}

// Wait blocks until any active window for key is released. Returns
// immediately when no window exists.
func (r *ThrottleRegistry) Wait(ctx context.Context, key EndpointKey) error {
	r.mu.Lock()
	w := r.windows[key]
	r.mu.Unlock()
	if w == nil {
		return nil
	}
	select {
	case <-w.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Install creates a window for key lasting d, unless one is already active.
// Reports whether this caller installed it and therefore owns its release.
func (r *ThrottleRegistry) Install(key EndpointKey, d time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.windows[key]; ok {
		return false
	}
	r.windows[key] = &throttleWindow{
		endsAt:  time.Now().Add(d),
		release: make(chan struct{}),
	}
	return true
}

// Release removes the window for key and wakes every waiter.
func (r *ThrottleRegistry) Release(key EndpointKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.windows[key]; ok {
		delete(r.windows, key)
		close(w.release)
	}
}
