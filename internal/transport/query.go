package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
)

// queryHTMLTitlePattern extracts the upstream status and message from a
// proxy error page, whose title reads like "502 Bad Gateway".
var queryHTMLTitlePattern = regexp.MustCompile(`<title>((\d+).*)</title>`)

// QueryOperation is one named operation in a batch query request.
type QueryOperation struct {
	Name      string         `json:"operationName,omitempty"`
	Variables map[string]any `json:"variables,omitempty"`
	Query     string         `json:"query"`
}

type queryResult struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []queryResultError         `json:"errors"`
}

type queryResultError struct {
	Message         string `json:"message"`
	ServiceResponse string `json:"serviceResponse"`
}

// Query executes named operations as one batch request against the query
// service and returns one payload per operation, in order.
func (c *Client) Query(ctx context.Context, baseURL string, priority int, ops ...QueryOperation) ([]json.RawMessage, error) {
	req := Request{
		Route:    NewRoute(http.MethodPost, baseURL, "/api/query", nil),
		Auth:     AuthSessionBearer,
		Priority: priority,
		Query:    ops,
	}
	_, payloads, err := c.execute(ctx, req)
	return payloads, err
}

// decodeQueryResponse normalizes the three response shapes the query
// service produces into either payloads or an APIError that classifies the
// same way as a plain request failure. The shapes lack a shared
// discriminant, so the first byte of the body decides:
//
//  1. Non-JSON text, usually a proxy error page.
//  2. A top-level object envelope whose status field carries the failure.
//  3. An array of per-operation results, each possibly carrying errors.
func decodeQueryResponse(status int, header http.Header, body []byte, route Route, authUsed string) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		e := newAPIError(status, header, nil, route, authUsed)
		e.Message = fmt.Sprintf("empty query response with status %d", status)
		return nil, e
	}

	switch trimmed[0] {
	case '[':
		return decodeQueryResults(status, header, trimmed, route, authUsed)
	case '{':
		return nil, decodeQueryEnvelope(status, header, trimmed, route, authUsed)
	default:
		return nil, queryPageError(status, header, string(trimmed), route, authUsed)
	}
}

// queryPageError turns an HTML or plain-text body into an APIError. The
// status parsed out of the page title classifies upstream 500/502 pages as
// transient.
func queryPageError(status int, header http.Header, page string, route Route, authUsed string) *APIError {
	e := &APIError{
		StatusCode: status,
		Message:    "Unknown reason",
		Method:     route.Method,
		URL:        route.URL,
		authUsed:   authUsed,
	}
	e.RetryAfter = retryAfterHint(header, nil)
	if m := queryHTMLTitlePattern.FindStringSubmatch(page); m != nil {
		e.Message = m[1]
		if n, err := strconv.Atoi(m[2]); err == nil {
			e.BatchStatus = n
		}
	}
	return e
}

// decodeQueryEnvelope handles a top-level object body. A conventional error
// envelope is decoded as such; otherwise the object is expected to be the
// query service's { status, message } wrapper, whose message doubles as the
// error code.
func decodeQueryEnvelope(status int, header http.Header, body []byte, route Route, authUsed string) *APIError {
	if hasErrorCode(body) {
		return newAPIError(status, header, body, route, authUsed)
	}

	var env struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &env); err == nil && env.Status >= 400 {
		e := &APIError{
			StatusCode: status,
			Code:       env.Message,
			Message:    env.Message,
			Method:     route.Method,
			URL:        route.URL,
			authUsed:   authUsed,
		}
		e.RetryAfter = retryAfterHint(header, nil)
		return e
	}

	e := newAPIError(status, header, body, route, authUsed)
	e.Message = fmt.Sprintf("unexpected query envelope: %s", bytes.TrimSpace(body))
	return e
}

// decodeQueryResults handles the array shape. The first operation carrying
// errors selects the failure; its serviceResponse re-parses into an
// envelope, or, when the upstream handed back a raw page, through the same
// title extraction as shape one.
func decodeQueryResults(status int, header http.Header, body []byte, route Route, authUsed string) ([]json.RawMessage, error) {
	var results []queryResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("decoding query results: %w", err)
	}

	for _, res := range results {
		if len(res.Errors) == 0 {
			continue
		}
		selected := res.Errors[0]

		e := &APIError{
			StatusCode: status,
			Message:    selected.Message,
			Method:     route.Method,
			URL:        route.URL,
			authUsed:   authUsed,
		}

		if selected.ServiceResponse != "" {
			var env errorEnvelope
			if err := json.Unmarshal([]byte(selected.ServiceResponse), &env); err == nil {
				if env.ErrorMessage != "" {
					e.Message = env.ErrorMessage
				}
				e.Code = env.ErrorCode
				e.MessageVars = env.MessageVars
				e.NumericCode = env.NumericErrorCode
				e.Service = env.OriginatingService
				e.BatchStatus = env.ErrorStatus
			} else {
				var page string
				if json.Unmarshal([]byte(selected.ServiceResponse), &page) == nil {
					if m := queryHTMLTitlePattern.FindStringSubmatch(page); m != nil {
						e.Message = m[1]
						if n, aerr := strconv.Atoi(m[2]); aerr == nil {
							e.BatchStatus = n
						}
					} else {
						e.Message = "Unknown reason"
					}
				}
			}
		}

		e.RetryAfter = retryAfterHint(header, e.MessageVars)
		return nil, e
	}

	payloads := make([]json.RawMessage, 0, len(results))
	for i, res := range results {
		if len(res.Data) == 0 {
			return nil, fmt.Errorf("query result %d carries neither data nor errors", i)
		}
		for _, payload := range res.Data {
			payloads = append(payloads, payload)
			break
		}
	}
	return payloads, nil
}
