package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/castlebay/halcyon/internal/shared"
	tu "github.com/castlebay/halcyon/internal/testing"
)

func TestSocialService(t *testing.T) {
	ctx := context.Background()

	t.Run("Lists Friends For The Authenticated Subject", func(t *testing.T) {
		opts, script := newTestOptions(t, tu.Step{Status: 200, Body: `[
			{"accountId": "f-1", "status": "ACCEPTED", "direction": "OUTBOUND", "created": "2026-01-05T09:30:00Z", "favorite": true},
			{"accountId": "f-2", "status": "PENDING", "direction": "INBOUND", "created": "2026-02-10T18:00:00Z"}
		]`})
		svc := NewSocialService(opts)

		friends, err := svc.Friends(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(friends) != 2 {
			t.Fatalf("expected two friends, got %d", len(friends))
		}
		if friends[0].SubjectID != "f-1" || !friends[0].Favorite {
			t.Errorf("unexpected friend %+v", friends[0])
		}
		if want := time.Date(2026, 2, 10, 18, 0, 0, 0, time.UTC); !friends[1].Created.Equal(want) {
			t.Errorf("unexpected created time %v", friends[1].Created)
		}

		req := script.Requests[0]
		if req.URL.String() != "https://social.halcyon.test/friends/api/public/friends/acc-1" {
			t.Errorf("unexpected request URL %s", req.URL)
		}
		if got := req.Header.Get("Authorization"); got != "bearer sess-1" {
			t.Errorf("unexpected authorization %q", got)
		}
	})

	t.Run("Requires An Identity", func(t *testing.T) {
		opts, script := newTestOptions(t)
		opts.Identity = nil
		svc := NewSocialService(opts)

		if _, err := svc.Friends(ctx); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected a configuration error, got %v", err)
		}
		if script.Calls() != 0 {
			t.Errorf("expected no requests, got %d", script.Calls())
		}
	})

	t.Run("Requires A Logged-In Subject", func(t *testing.T) {
		opts, script := newTestOptions(t)
		opts.Identity = stubIdentity("")
		svc := NewSocialService(opts)

		if _, err := svc.Friends(ctx); !errors.Is(err, shared.ErrNoCredential) {
			t.Errorf("expected a no-credential error, got %v", err)
		}
		if script.Calls() != 0 {
			t.Errorf("expected no requests, got %d", script.Calls())
		}
	})
}
