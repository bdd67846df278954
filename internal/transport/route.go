package transport

import (
	"net/url"
	"strings"
)

// EndpointKey identifies an endpoint by method and unexpanded path template
// rather than the substituted URL, so that throttle windows installed for a
// parameterized route are shared across every parameter value.
type EndpointKey struct {
	Method   string
	Template string
}

// Route is a fully resolved request target. URL carries the expanded address
// sent on the wire; Template keeps the original placeholder form for
// throttle-window keying.
type Route struct {
	Method   string
	Template string
	URL      string
}

// NewRoute expands a path template like "/api/public/account/{subjectId}"
// against base, percent-escaping each parameter value. Unknown placeholders
// are left in place so a missing parameter fails loudly at the server
// instead of silently collapsing two endpoints into one key.
func NewRoute(method, base, template string, params map[string]string) Route {
	expanded := template
	for name, value := range params {
		expanded = strings.ReplaceAll(expanded, "{"+name+"}", url.PathEscape(value))
	}
	return Route{
		Method:   method,
		Template: base + template,
		URL:      base + expanded,
	}
}

// WithQuery appends encoded query parameters to the expanded URL. The
// template, and with it the throttle key, stays unchanged, so every
// parameter combination shares the endpoint's window.
func (r Route) WithQuery(values url.Values) Route {
	if len(values) == 0 {
		return r
	}
	sep := "?"
	if strings.Contains(r.URL, "?") {
		sep = "&"
	}
	r.URL += sep + values.Encode()
	return r
}

// RawRoute wraps an absolute URL that has no template form, such as a
// redirect target captured from a response. Raw routes share one throttle
// key per exact URL.
func RawRoute(method, rawURL string) Route {
	return Route{Method: method, Template: rawURL, URL: rawURL}
}

// Key returns the throttle-registry key for the route.
func (r Route) Key() EndpointKey {
	return EndpointKey{Method: r.Method, Template: r.Template}
}
