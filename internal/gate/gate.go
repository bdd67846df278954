// Package gate provides the coordination primitive serializing credential
// refreshes: a mutex combined with a level-triggered idle signal, an integer
// priority for queue-jumping, and a terminal failure flag.
package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrFailed is returned by [Gate.Acquire] and [Gate.WaitIdle] once the gate
// has failed. The gate never un-fails.
var ErrFailed = errors.New("gate failed")

// Gate is a mutual-exclusion primitive with a level-triggered "idle" signal.
//
// The idle signal is cleared on acquire and set on release only when no other
// acquirer is pending, so a waiter never observes a false idle window between
// back-to-back acquisitions. An integer priority lets the request that
// discovered a stale credential jump the queue and drive the refresh itself.
type Gate struct {
	mu      sync.Mutex
	lockCh  chan struct{} // token present = held
	idleCh  chan struct{} // closed = idle
	failCh  chan struct{} // closed = failed
	idle    bool
	failed  bool
	waiters int
	prio    int
	cause   error
}

// New returns an idle, unheld gate.
func New() *Gate {
	g := &Gate{
		lockCh: make(chan struct{}, 1),
		idleCh: make(chan struct{}),
		failCh: make(chan struct{}),
		idle:   true,
	}
	close(g.idleCh)
	return g
}

// Acquire takes exclusive ownership of the gate, clearing the idle signal.
// The gate's priority is raised to the caller's priority when higher. Returns
// [ErrFailed] (wrapping the failure cause) once the gate has failed, or the
// context error on cancellation.
func (g *Gate) Acquire(ctx context.Context, priority int) error {
	g.mu.Lock()
	if g.failed {
		err := g.failureErrLocked()
		g.mu.Unlock()
		return err
	}
	g.waiters++
	if priority > g.prio {
		g.prio = priority
	}
	g.mu.Unlock()

	select {
	case g.lockCh <- struct{}{}:
		g.mu.Lock()
		g.waiters--
		g.clearIdleLocked()
		g.mu.Unlock()
		return nil
	case <-ctx.Done():
		g.abandon()
		return ctx.Err()
	case <-g.failCh:
		g.abandon()
		g.mu.Lock()
		err := g.failureErrLocked()
		g.mu.Unlock()
		return err
	}
}

// Release gives up ownership. The idle signal is set, and the priority reset,
// only if no acquirer is currently pending. Release of an unheld gate panics.
func (g *Gate) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()

	select {
	case <-g.lockCh:
	default:
		panic("gate: release of unheld gate")
	}

	if g.waiters == 0 {
		g.setIdleLocked()
		g.prio = 0
	}
}

// WaitIdle blocks until the gate is idle without acquiring it. Returns
// [ErrFailed] once the gate has failed, even if it is also idle.
func (g *Gate) WaitIdle(ctx context.Context) error {
	g.mu.Lock()
	ch := g.idleCh
	g.mu.Unlock()

	select {
	case <-ch:
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.failed {
			return g.failureErrLocked()
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-g.failCh:
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.failureErrLocked()
	}
}

// Elevate reserves and returns a priority strictly above the gate's current
// level. A request holding an elevated priority may drive a refresh instead
// of waiting for one.
func (g *Gate) Elevate() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prio++
	return g.prio
}

// Fail marks the gate as terminally failed with the given cause. All pending
// and future Acquire/WaitIdle calls return [ErrFailed]. Only the first cause
// is kept.
func (g *Gate) Fail(cause error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failed {
		return
	}
	g.failed = true
	g.cause = cause
	close(g.failCh)
}

// Held reports whether the gate is currently acquired.
func (g *Gate) Held() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.lockCh) == 1
}

// Priority returns the gate's current priority level.
func (g *Gate) Priority() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.prio
}

// Failed reports whether the gate has terminally failed.
func (g *Gate) Failed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.failed
}

// Err returns the terminal failure error, or nil while the gate is healthy.
func (g *Gate) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.failed {
		return nil
	}
	return g.failureErrLocked()
}

// abandon removes a pending waiter that gave up. If that leaves the gate free
// with nobody pending, the idle signal is restored.
func (g *Gate) abandon() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.waiters--
	if g.waiters == 0 && len(g.lockCh) == 0 {
		g.setIdleLocked()
		g.prio = 0
	}
}

func (g *Gate) clearIdleLocked() {
	if !g.idle {
		return
	}
	g.idle = false
	g.idleCh = make(chan struct{})
}

func (g *Gate) setIdleLocked() {
	if g.idle {
		return
	}
	g.idle = true
	close(g.idleCh)
}

func (g *Gate) failureErrLocked() error {
	if g.cause == nil {
		return ErrFailed
	}
	return fmt.Errorf("%w: %w", ErrFailed, g.cause)
}
