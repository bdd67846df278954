package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Error codes returned in the platform's error envelope. Classification in
// the executor keys off these exact strings.
const (
	CodeInvalidToken              = "errors.halcyon.common.oauth.invalid_token"
	CodeTokenVerificationFailed   = "errors.halcyon.common.authentication.token_verification_failed"
	CodeQueryUnauthorized         = "error.query.401"
	CodeInvalidAccountCredentials = "errors.halcyon.account.invalid_account_credentials"
	CodeInvalidRefreshToken       = "errors.halcyon.account.auth_token.invalid_refresh_token"
	CodeExchangeCodeNotFound      = "errors.halcyon.account.oauth.exchange_code_not_found"
	CodeAuthorizationCodeNotFound = "errors.halcyon.account.oauth.authorization_code_not_found"
	CodeTwoFactorRequired         = "errors.halcyon.security.two_factor.required"
	CodeCorrectiveActionRequired  = "errors.halcyon.account.corrective_action_required"
	CodeThrottled                 = "errors.halcyon.common.throttled"
	CodeServerError               = "errors.halcyon.common.server_error"
	CodeConcurrentModification    = "errors.halcyon.common.concurrent_modification_error"
)

// APIError is a decoded platform error envelope, stamped with the request
// that produced it. BatchStatus carries the upstream status embedded in a
// batch query's serviceResponse, which classifies independently of the
// outer HTTP status.
type APIError struct {
	StatusCode       int
	Code             string
	Message          string
	MessageVars      []string
	NumericCode      int
	Service          string
	Intent           string
	CorrectiveAction string
	Continuation     string
	BatchStatus      int
	RetryAfter       time.Duration
	Method           string
	URL              string

	authUsed string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.URL, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%s %s: %d: %s", e.Method, e.URL, e.StatusCode, e.Message)
}

type errorEnvelope struct {
	ErrorCode          string   `json:"errorCode"`
	ErrorMessage       string   `json:"errorMessage"`
	MessageVars        []string `json:"messageVars"`
	NumericErrorCode   int      `json:"numericErrorCode"`
	OriginatingService string   `json:"originatingService"`
	Intent             string   `json:"intent"`
	CorrectiveAction   string   `json:"correctiveAction"`
	Continuation       string   `json:"continuation"`
	ErrorStatus        int      `json:"errorStatus"`
}

// newAPIError decodes an error response body. Non-JSON bodies keep the raw
// text as the message so proxy error pages stay diagnosable.
func newAPIError(status int, header http.Header, body []byte, route Route, authUsed string) *APIError {
	e := &APIError{
		StatusCode: status,
		Method:     route.Method,
		URL:        route.URL,
		authUsed:   authUsed,
	}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil {
		e.Code = env.ErrorCode
		e.Message = env.ErrorMessage
		e.MessageVars = env.MessageVars
		e.NumericCode = env.NumericErrorCode
		e.Service = env.OriginatingService
		e.Intent = env.Intent
		e.CorrectiveAction = env.CorrectiveAction
		e.Continuation = env.Continuation
		e.BatchStatus = env.ErrorStatus
	}
	if e.Code == "" && e.Message == "" {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = fmt.Sprintf("unknown %d response", status)
		}
		e.Message = msg
	}

	e.RetryAfter = retryAfterHint(header, e.MessageVars)
	return e
}

// DecodeError decodes an error response obtained outside the executor, such
// as a grant driven through the oauth2 package, into the same envelope type
// the executor produces.
func DecodeError(status int, header http.Header, body []byte, route Route) *APIError {
	return newAPIError(status, header, body, route, "")
}

// retryAfterHint reads the Retry-After header, falling back to the first
// message var. The query service omits rate-limit headers and reports the
// delay there instead.
func retryAfterHint(header http.Header, vars []string) time.Duration {
	if header != nil {
		if v := header.Get("Retry-After"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				return time.Duration(n) * time.Second
			}
		}
	}
	if len(vars) > 0 {
		if n, err := strconv.Atoi(vars[0]); err == nil && n >= 0 {
			return time.Duration(n) * time.Second
		}
	}
	return 0
}

type errorClass int

const (
	classOther errorClass = iota
	classInvalidToken
	classRateLimited
	classCapacity
	classTransient
)

func (e *APIError) class() errorClass {
	switch e.Code {
	case CodeInvalidToken, CodeTokenVerificationFailed, CodeQueryUnauthorized:
		return classInvalidToken
	case CodeServerError, CodeConcurrentModification:
		return classTransient
	}
	if e.Code == CodeThrottled || e.StatusCode == http.StatusTooManyRequests {
		if e.RetryAfter > 0 {
			return classRateLimited
		}
		return classCapacity
	}
	if e.BatchStatus == http.StatusInternalServerError || e.BatchStatus == http.StatusBadGateway {
		return classTransient
	}
	return classOther
}

// ErrorCode extracts the platform error code from err's chain, or "" when
// err carries no envelope.
func ErrorCode(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// IsCapacityThrottle reports whether err is a throttle response without a
// usable retry-after hint. A refresh that fails this way warrants a full
// session restart rather than immediate failure.
func IsCapacityThrottle(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.class() == classCapacity
}

// IsTransient reports whether err is a short-lived server condition: a
// transient server error or an explicit rate limit. A refresh that fails this
// way is retried on the next cycle rather than failing the session.
func IsTransient(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	c := apiErr.class()
	return c == classTransient || c == classRateLimited
}

// isConnReset reports whether err is the remote end dropping an established
// connection, which is retried outside the attempt budget.
func isConnReset(err error) bool {
	return errors.Is(err, syscall.ECONNRESET) || errors.Is(err, io.ErrUnexpectedEOF)
}
