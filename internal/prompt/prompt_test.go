package prompt

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/castlebay/halcyon/internal/shared"
)

func TestPrompterAsk(t *testing.T) {
	ctx := context.Background()

	t.Run("reads one trimmed line", func(t *testing.T) {
		var out strings.Builder
		p := New(Options{
			Input:  strings.NewReader("  a32b934c6f6d4d75b34b4a4b53f2b36e  \n"),
			Output: &out,
		})

		got, err := p.Ask(ctx, "Exchange code for kestrel@example.com")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "a32b934c6f6d4d75b34b4a4b53f2b36e" {
			t.Errorf("unexpected answer %q", got)
		}
		if !strings.Contains(out.String(), "kestrel@example.com") {
			t.Errorf("prompt message should identify the account, got %q", out.String())
		}
	})

	t.Run("consecutive asks consume consecutive lines", func(t *testing.T) {
		p := New(Options{
			Input:  strings.NewReader("first\nsecond\n"),
			Output: io.Discard,
		})

		for _, want := range []string{"first", "second"} {
			got, err := p.Ask(ctx, "code")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != want {
				t.Errorf("expected %q, got %q", want, got)
			}
		}
	})

	t.Run("closed input", func(t *testing.T) {
		p := New(Options{Input: strings.NewReader(""), Output: io.Discard})

		if _, err := p.Ask(ctx, "code"); !errors.Is(err, shared.ErrPromptUnavailable) {
			t.Errorf("expected ErrPromptUnavailable, got %v", err)
		}
	})

	t.Run("context cancellation unblocks", func(t *testing.T) {
		blocked, cancel := context.WithCancel(ctx)
		// A pipe that never delivers data keeps the read pending.
		r, w := io.Pipe()
		defer w.Close()
		p := New(Options{Input: r, Output: io.Discard})

		done := make(chan error, 1)
		go func() {
			_, err := p.Ask(blocked, "code")
			done <- err
		}()

		cancel()
		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("ask did not observe cancellation")
		}
	})

	t.Run("concurrent asks serialize", func(t *testing.T) {
		// Two goroutines ask at once; both answers must come through and
		// the output must never interleave two prompts.
		p := New(Options{
			Input:  strings.NewReader("one\ntwo\n"),
			Output: io.Discard,
		})

		var wg sync.WaitGroup
		answers := make(chan string, 2)
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				got, err := p.Ask(ctx, "code")
				if err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
				answers <- got
			}()
		}
		wg.Wait()
		close(answers)

		seen := map[string]bool{}
		for a := range answers {
			seen[a] = true
		}
		if !seen["one"] || !seen["two"] {
			t.Errorf("expected both lines consumed exactly once, got %v", seen)
		}
	})
}
