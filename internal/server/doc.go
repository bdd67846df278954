// Package server provides the loopback HTTP listener behind browser logins.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Code Callback Handler
//
// [CodeHandler] captures the one-time authorization code from the redirect at
// the end of a browser login.
//
// The handler validates the state parameter (CSRF protection), extracts the
// code query parameter, and sends it through a channel without exchanging it;
// the auth package owns the exchange.
//
// It only processes one callback to prevent replay attacks.
//
// # Loopback Flow
//
// [Loopback] ties the pieces together for the login command: it binds a
// localhost listener, opens the platform authorization page in the operator's
// browser, and blocks until the redirect delivers the code or the context is
// canceled. [Loopback.Supplier] adapts the whole flow to the supplier shape
// the one-time code source accepts, so a browser login is just another code
// source to the session manager.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
