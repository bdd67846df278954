// Raw service for hand-built requests against any platform service.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/castlebay/halcyon/internal/shared"
	"github.com/castlebay/halcyon/internal/transport"
)

// RawService issues ad-hoc requests through the executor, for debugging and
// for endpoints no typed client covers yet. Calls carry the session bearer
// and inherit the full retry policy.
type RawService struct {
	service
}

// NewRawService creates a raw service client.
func NewRawService(opts Options) *RawService {
	return &RawService{service: newService(opts, "raw")}
}

// RawResponse is a raw platform response with the decoded JSON body when the
// body parses as JSON.
type RawResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// Get performs a GET against service ("account", "social", "query", "web")
// at path and returns the raw response.
func (s *RawService) Get(ctx context.Context, service, path string) (*RawResponse, error) {
	return s.roundTrip(ctx, http.MethodGet, service, path, nil)
}

// Post performs a POST with a JSON body against service at path.
func (s *RawService) Post(ctx context.Context, service, path string, data []byte) (*RawResponse, error) {
	var body any
	if len(data) > 0 {
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, fmt.Errorf("%w: request body is not valid JSON", shared.ErrInvalidArgument)
		}
	} else {
		body = struct{}{}
	}
	return s.roundTrip(ctx, http.MethodPost, service, path, body)
}

// Delete performs a DELETE against service at path.
func (s *RawService) Delete(ctx context.Context, service, path string) (*RawResponse, error) {
	return s.roundTrip(ctx, http.MethodDelete, service, path, nil)
}

func (s *RawService) roundTrip(ctx context.Context, method, service, path string, body any) (*RawResponse, error) {
	base, err := s.baseFor(service)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	req := transport.Request{
		Route: transport.NewRoute(method, base, path, nil),
		Auth:  transport.AuthSessionBearer,
		Body:  body,
	}
	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("raw %s %s: %w", method, path, err)
	}

	raw := &RawResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       resp.Body,
	}
	var jsonData any
	if err := json.Unmarshal(resp.Body, &jsonData); err == nil {
		raw.IsJSON = true
		raw.JSONData = jsonData
	}
	return raw, nil
}

func (s *RawService) baseFor(service string) (string, error) {
	switch strings.ToLower(service) {
	case "account":
		return s.cfg.Platform.AccountURL, nil
	case "social":
		return s.cfg.Platform.SocialURL, nil
	case "query":
		return s.cfg.Platform.QueryURL, nil
	case "web":
		return s.cfg.Platform.WebURL, nil
	}
	return "", fmt.Errorf("%w: unknown service %q", shared.ErrInvalidArgument, service)
}
