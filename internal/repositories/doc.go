// Package repositories implements SQLite persistence for the halcyon CLI's
// local state.
//
// Key Implementations:
//   - [CredentialRepository] : device credentials mirrored from the platform,
//     keyed by (subject id, device id), so later runs skip interactive login
//   - [EventRepository] : append-only auth lifecycle event log (logins,
//     refreshes, restarts, failures, logouts) for diagnostics
//   - [AccountCacheRepository] : resolved account records with a freshness
//     window, consulted by the bulk resolver before going to the network
//
// The schema is managed by the migration runner in the shared package;
// [Open] opens a store and brings it up to date in one call. All of this is
// application-layer state: the session library itself never reads or writes
// it, callers wire persistence through callbacks.
package repositories
