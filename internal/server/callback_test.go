package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/castlebay/halcyon/internal/shared"
)

const testCode = "a32b934c6f6d4d75b34b4a4b53f2b36e"

func TestCodeHandler(t *testing.T) {
	t.Run("delivers the code once", func(t *testing.T) {
		h := NewCodeHandler("state-1")

		req := httptest.NewRequest(http.MethodGet, "/callback?state=state-1&code="+testCode, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Login Complete") {
			t.Errorf("expected the success page, got %q", rec.Body.String())
		}

		result := <-h.Result()
		if err := result.Error(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Code != testCode {
			t.Errorf("expected code %s, got %s", testCode, result.Code)
		}
	})

	t.Run("rejects a second callback", func(t *testing.T) {
		h := NewCodeHandler("state-1")

		first := httptest.NewRequest(http.MethodGet, "/callback?state=state-1&code="+testCode, nil)
		h.ServeHTTP(httptest.NewRecorder(), first)

		second := httptest.NewRequest(http.MethodGet, "/callback?state=state-1&code="+testCode, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, second)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 on replay, got %d", rec.Code)
		}
	})

	t.Run("state mismatch", func(t *testing.T) {
		h := NewCodeHandler("state-1")

		req := httptest.NewRequest(http.MethodGet, "/callback?state=forged&code="+testCode, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		result := <-h.Result()
		if !errors.Is(result.Error(), shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", result.Error())
		}
	})

	t.Run("login rejected by the platform", func(t *testing.T) {
		h := NewCodeHandler("state-1")

		req := httptest.NewRequest(http.MethodGet,
			"/callback?state=state-1&errorCode=login_denied&errorMessage=denied", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		result := <-h.Result()
		if !errors.Is(result.Error(), shared.ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", result.Error())
		}
	})

	t.Run("malformed code", func(t *testing.T) {
		h := NewCodeHandler("state-1")

		req := httptest.NewRequest(http.MethodGet, "/callback?state=state-1&code=not-a-code", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		result := <-h.Result()
		if result.Error() == nil {
			t.Error("expected an error for a malformed code")
		}
	})
}

func TestLoopback(t *testing.T) {
	logger := log.New(io.Discard)

	t.Run("captures a redirect end to end", func(t *testing.T) {
		l := NewLoopback("127.0.0.1:0", "https://www.halcyon.gg", "client-1", logger)
		if err := l.Start(); err != nil {
			t.Fatalf("start: %v", err)
		}

		authorize := l.AuthorizeURL()
		if !strings.Contains(authorize, "state="+l.state) {
			t.Errorf("authorize URL missing state: %s", authorize)
		}
		if !strings.Contains(authorize, "redirectUrl=") {
			t.Errorf("authorize URL missing redirect: %s", authorize)
		}

		go func() {
			url := fmt.Sprintf("%s?state=%s&code=%s", l.RedirectURL(), l.state, testCode)
			resp, err := http.Get(url)
			if err != nil {
				t.Errorf("redirect request failed: %v", err)
				return
			}
			resp.Body.Close()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		code, err := l.Wait(ctx)
		if err != nil {
			t.Fatalf("wait: %v", err)
		}
		if code != testCode {
			t.Errorf("expected %s, got %s", testCode, code)
		}
	})

	t.Run("context cancellation unblocks wait", func(t *testing.T) {
		l := NewLoopback("127.0.0.1:0", "https://www.halcyon.gg", "client-1", logger)
		if err := l.Start(); err != nil {
			t.Fatalf("start: %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := l.Wait(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
