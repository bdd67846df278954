package gate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGateAcquireRelease(t *testing.T) {
	t.Run("starts idle and unheld", func(t *testing.T) {
		g := New()

		if g.Held() {
			t.Error("new gate should not be held")
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := g.WaitIdle(ctx); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("acquire clears idle", func(t *testing.T) {
		g := New()

		if err := g.Acquire(context.Background(), 0); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !g.Held() {
			t.Error("gate should be held after acquire")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		if err := g.WaitIdle(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("WaitIdle should block while held, got %v", err)
		}

		g.Release()
		if g.Held() {
			t.Error("gate should not be held after release")
		}
		if err := g.WaitIdle(context.Background()); err != nil {
			t.Fatalf("expected no error after release, got %v", err)
		}
	})

	t.Run("release of unheld gate panics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("expected panic")
			}
		}()
		New().Release()
	})
}

func TestGateMutualExclusion(t *testing.T) {
	g := New()
	var inside atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if err := g.Acquire(context.Background(), 0); err != nil {
					t.Errorf("expected no error, got %v", err)
					return
				}
				if n := inside.Add(1); n != 1 {
					t.Errorf("expected exactly one holder, got %d", n)
				}
				inside.Add(-1)
				g.Release()
			}
		}()
	}

	wg.Wait()
}

func TestGateIdleAntiFlicker(t *testing.T) {
	g := New()

	if err := g.Acquire(context.Background(), 0); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Queue a second acquirer before releasing.
	acquired := make(chan struct{})
	go func() {
		if err := g.Acquire(context.Background(), 0); err != nil {
			t.Errorf("expected no error, got %v", err)
			return
		}
		close(acquired)
	}()
	time.Sleep(20 * time.Millisecond)

	waitDone := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		waitDone <- g.WaitIdle(ctx)
	}()
	time.Sleep(20 * time.Millisecond)

	g.Release()
	<-acquired

	// The idle signal must not have flickered between the two holders.
	select {
	case err := <-waitDone:
		t.Fatalf("WaitIdle returned (%v) during handoff between holders", err)
	case <-time.After(80 * time.Millisecond):
	}

	g.Release()

	select {
	case err := <-waitDone:
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitIdle did not return after final release")
	}
}

func TestGateFail(t *testing.T) {
	t.Run("releases pending waiters", func(t *testing.T) {
		g := New()
		cause := errors.New("refresh blew up")

		if err := g.Acquire(context.Background(), 0); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		waitErr := make(chan error, 1)
		acqErr := make(chan error, 1)
		go func() { waitErr <- g.WaitIdle(context.Background()) }()
		go func() { acqErr <- g.Acquire(context.Background(), 0) }()
		time.Sleep(20 * time.Millisecond)

		g.Fail(cause)

		for name, ch := range map[string]chan error{"WaitIdle": waitErr, "Acquire": acqErr} {
			select {
			case err := <-ch:
				if !errors.Is(err, ErrFailed) {
					t.Errorf("%s: expected ErrFailed, got %v", name, err)
				}
				if !errors.Is(err, cause) {
					t.Errorf("%s: expected cause to be wrapped, got %v", name, err)
				}
			case <-time.After(time.Second):
				t.Fatalf("%s did not return after Fail", name)
			}
		}
	})

	t.Run("rejects future callers", func(t *testing.T) {
		g := New()
		g.Fail(errors.New("done for"))

		if err := g.Acquire(context.Background(), 0); !errors.Is(err, ErrFailed) {
			t.Errorf("expected ErrFailed, got %v", err)
		}
		if err := g.WaitIdle(context.Background()); !errors.Is(err, ErrFailed) {
			t.Errorf("expected ErrFailed even when idle, got %v", err)
		}
		if !g.Failed() {
			t.Error("Failed() should report true")
		}
		if g.Err() == nil {
			t.Error("Err() should report the terminal error")
		}
	})

	t.Run("keeps first cause", func(t *testing.T) {
		g := New()
		first := errors.New("first")
		g.Fail(first)
		g.Fail(errors.New("second"))

		if err := g.Err(); !errors.Is(err, first) {
			t.Errorf("expected first cause to win, got %v", err)
		}
	})
}

func TestGatePriority(t *testing.T) {
	t.Run("elevate is monotonic", func(t *testing.T) {
		g := New()
		a := g.Elevate()
		b := g.Elevate()
		if b <= a {
			t.Errorf("expected strictly increasing priorities, got %d then %d", a, b)
		}
		if g.Priority() != b {
			t.Errorf("expected gate priority %d, got %d", b, g.Priority())
		}
	})

	t.Run("acquire raises to caller priority", func(t *testing.T) {
		g := New()
		if err := g.Acquire(context.Background(), 5); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if g.Priority() != 5 {
			t.Errorf("expected priority 5, got %d", g.Priority())
		}

		g.Release()
		if g.Priority() != 0 {
			t.Errorf("expected priority reset on idle release, got %d", g.Priority())
		}
	})

	t.Run("priority survives handoff to pending waiter", func(t *testing.T) {
		g := New()
		if err := g.Acquire(context.Background(), 3); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		acquired := make(chan struct{})
		go func() {
			if err := g.Acquire(context.Background(), 1); err != nil {
				t.Errorf("expected no error, got %v", err)
				return
			}
			close(acquired)
		}()
		time.Sleep(20 * time.Millisecond)

		g.Release()
		<-acquired

		if g.Priority() != 3 {
			t.Errorf("expected priority kept at 3 across handoff, got %d", g.Priority())
		}
		g.Release()
	})
}

func TestGateAcquireCancellation(t *testing.T) {
	g := New()

	if err := g.Acquire(context.Background(), 0); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := g.Acquire(ctx, 0); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline error, got %v", err)
	}

	// The abandoned waiter must not block the idle signal forever.
	g.Release()

	idleCtx, idleCancel := context.WithTimeout(context.Background(), time.Second)
	defer idleCancel()
	if err := g.WaitIdle(idleCtx); err != nil {
		t.Fatalf("expected idle after release with no waiters, got %v", err)
	}
}
