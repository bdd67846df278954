// Package services provides typed clients for the Halcyon platform services.
//
// # Clients
//
// [AccountService] covers the account service: token verification, one-time
// exchange codes, session revocation (including the self-revoking kill used
// during shutdown), device credential management and account lookups.
//
// [SocialService] reads the authenticated subject's social graph. It resolves
// the subject through the [Identity] interface, implemented by the session
// manager.
//
// [QueryService] executes named operations against the batch query endpoint
// and returns one payload per operation.
//
// [RawService] issues hand-built requests against any of the platform
// services, for debugging and for endpoints no typed client covers yet.
//
// # Transport
//
// Every request flows through the shared transport executor, so the clients
// inherit retry classification, per-endpoint throttle windows and credential
// recovery without carrying any of that logic themselves. Bulk lookups chunk
// ids to the endpoint's limit before fanning requests.
//
// # Error Handling
//
// Clients wrap failures with the operation that failed and otherwise pass
// the executor's errors through unchanged, so callers can match
// [transport.APIError] and the shared sentinels:
//   - [shared.ErrMissingArgument] : a required argument was empty
//   - [shared.ErrNoCredential] : a subject-scoped call before login
package services
