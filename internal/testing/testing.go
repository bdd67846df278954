// package testing contains shared testing utilities
package testing

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
)

// Step is one scripted exchange: either a response to hand back or an
// error to fail the round trip with.
type Step struct {
	Status int
	Header http.Header
	Body   string
	Err    error
}

// ScriptedRoundTripper plays back steps in order, capturing every request
// and its body. Once the script is exhausted the final step repeats, so a
// test can assert "eventually succeeds" without counting retries exactly.
type ScriptedRoundTripper struct {
	mu    sync.Mutex
	steps []Step

	Requests []*http.Request
	Bodies   []string
}

func NewScriptedRoundTripper(steps ...Step) *ScriptedRoundTripper {
	return &ScriptedRoundTripper{steps: steps}
}

func (s *ScriptedRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	body := ""
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		body = string(b)
	}
	s.Requests = append(s.Requests, req.Clone(req.Context()))
	s.Bodies = append(s.Bodies, body)

	i := len(s.Requests) - 1
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	step := s.steps[i]
	if step.Err != nil {
		return nil, step.Err
	}

	header := step.Header
	if header == nil {
		header = http.Header{}
	}
	if header.Get("Content-Type") == "" {
		header = header.Clone()
		header.Set("Content-Type", "application/json")
	}
	return &http.Response{
		StatusCode: step.Status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(step.Body)),
		Request:    req,
	}, nil
}

// Calls reports how many round trips have been made.
func (s *ScriptedRoundTripper) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Requests)
}

// ErrorEnvelope builds a platform error body for scripted responses.
func ErrorEnvelope(code, message string, vars ...string) string {
	var sb strings.Builder
	sb.WriteString(`{"errorCode":`)
	sb.WriteString(quoteJSON(code))
	sb.WriteString(`,"errorMessage":`)
	sb.WriteString(quoteJSON(message))
	if len(vars) > 0 {
		sb.WriteString(`,"messageVars":[`)
		for i, v := range vars {
			if i > 0 {
				sb.WriteString(",")
			}
			sb.WriteString(quoteJSON(v))
		}
		sb.WriteString("]")
	}
	sb.WriteString("}")
	return sb.String()
}

func quoteJSON(s string) string {
	return fmt.Sprintf("%q", s)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path exists but is not a directory: %s", path)
	}
}
