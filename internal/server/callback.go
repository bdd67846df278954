package server

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/castlebay/halcyon/internal/shared"
)

// CodeResult contains the outcome of a browser login redirect.
type CodeResult struct {
	Code string
	err  error
}

func (r CodeResult) Error() error {
	return r.err
}

// CodeHandler captures the one-time authorization code the platform appends
// to the redirect after a browser login. Implements the Handler interface
// for registration with a Router.
//
// The code is delivered raw; the auth package turns it into a credential.
type CodeHandler struct {
	state       string
	resultChan  chan CodeResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewCodeHandler creates a handler expecting the given state token.
// The state token should be cryptographically random for CSRF protection.
func NewCodeHandler(state string) *CodeHandler {
	return &CodeHandler{
		state:      state,
		resultChan: make(chan CodeResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *CodeHandler) Routes() []string {
	return []string{"/callback"}
}

// ServeHTTP handles the redirect request.
//
// Validates the state parameter, extracts the code query parameter, and
// sends the result through the result channel.
func (h *CodeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Only handle one redirect
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	state := r.URL.Query().Get("state")
	if state != h.state {
		err := fmt.Errorf("%w: invalid state parameter", shared.ErrInvalidArgument)
		h.Send(CodeResult{err: err})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	raw := r.URL.Query().Get("code")
	if raw == "" {
		errCode := r.URL.Query().Get("errorCode")
		errMsg := r.URL.Query().Get("errorMessage")
		err := fmt.Errorf("%w: login rejected: %s - %s", shared.ErrInvalidCredentials, errCode, errMsg)
		h.Send(CodeResult{err: err})
		http.Error(w, "Login rejected", http.StatusBadRequest)
		return
	}

	code, err := shared.ExtractCode(raw)
	if err != nil {
		h.Send(CodeResult{err: fmt.Errorf("malformed code in redirect: %w", err)})
		http.Error(w, "Malformed code", http.StatusBadRequest)
		return
	}

	h.Send(CodeResult{Code: code})

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, successPage)
}

// Send sends the result through the channel (only once).
func (h *CodeHandler) Send(result CodeResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *CodeHandler) Result() <-chan CodeResult {
	return h.resultChan
}

const successPage = `
<!DOCTYPE html>
<html>
<head>
    <title>Login Complete</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #7D56F4; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>&#10003; Login Complete</h1>
        <p>You can close this window and return to the terminal.</p>
    </div>
</body>
</html>
`
