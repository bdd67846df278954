package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"
)

func TestThrottleRegistry(t *testing.T) {
	key := EndpointKey{Method: http.MethodGet, Template: "https://social.halcyon.gg/api/v1/{id}"}

	t.Run("Wait Without Window Returns Immediately", func(t *testing.T) {
		r := NewThrottleRegistry()
		if err := r.Wait(context.Background(), key); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("Install Is Exclusive Per Key", func(t *testing.T) {
		r := NewThrottleRegistry()
		if !r.Install(key, time.Second) {
			t.Fatal("first install should succeed")
		}
		if r.Install(key, time.Second) {
			t.Error("second install on an active window should report false")
		}

		other := EndpointKey{Method: http.MethodPost, Template: key.Template}
		if !r.Install(other, time.Second) {
			t.Error("different key should install independently")
		}
	})

	t.Run("Waiters Block Until Release", func(t *testing.T) {
		r := NewThrottleRegistry()
		r.Install(key, time.Second)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		if err := r.Wait(ctx, key); !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline exceeded while window active, got %v", err)
		}

		var wg sync.WaitGroup
		errs := make([]error, 5)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = r.Wait(context.Background(), key)
			}(i)
		}

		r.Release(key)
		wg.Wait()

		for i, err := range errs {
			if err != nil {
				t.Errorf("waiter %d: expected no error, got %v", i, err)
			}
		}

		if err := r.Wait(context.Background(), key); err != nil {
			t.Errorf("window should be gone after release, got %v", err)
		}
	})

	t.Run("Pending Reports Remaining Time", func(t *testing.T) {
		r := NewThrottleRegistry()
		if _, ok := r.Pending(key); ok {
			t.Fatal("no window should be pending")
		}
		r.Install(key, 2*time.Second)
		remaining, ok := r.Pending(key)
		if !ok {
			t.Fatal("expected a pending window")
		}
		if remaining <= 0 || remaining > 2*time.Second {
			t.Errorf("unexpected remaining time %v", remaining)
		}
		r.Release(key)
		if _, ok := r.Pending(key); ok {
			t.Error("released window should not be pending")
		}
	})

	t.Run("Release Without Window Is A No-Op", func(t *testing.T) {
		r := NewThrottleRegistry()
		r.Release(key)
	})
}
