// Package session owns the credential lifecycle around a [Manager]:
//
// # Lifecycle
//
//  1. [Manager.Start] authenticates through the configured credential source
//     and launches the background refresh loop.
//  2. The loop renews the credential ahead of the earliest token expiry, or
//     immediately when [Manager.RequestRefresh] fires.
//  3. [Manager.Refresh] serializes concurrent refresh demand through the
//     priority gate; a caller that waited behind a completed refresh returns
//     satisfied without issuing a second grant.
//  4. [Manager.Restart] rebuilds the session from scratch when a refresh is
//     capacity throttled. The subject must survive a restart unchanged.
//
// # Failure
//
// Unrecoverable failures are terminal: [Manager.Wait] unblocks with the
// cause, the gate releases every queued waiter, and in-flight requests
// resolve with a cancellation error instead of hanging.
//
// The manager implements [transport.Session], which is how the request
// executor drives stale-credential recovery on behalf of rejected requests.
package session
