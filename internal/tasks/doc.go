// Package tasks orchestrates bulk operations on top of the service clients.
//
// # Engine
//
// [ResolveEngine] implements [Engine]: it accepts a mixed batch of account
// ids and display names and resolves them to account records. Ids go through
// the bulk lookup endpoint in one pass; display names have no bulk endpoint,
// so they fan out over a bounded worker pool paced by a token-bucket rate
// limiter. An optional [AccountCache] is consulted first and fed with every
// fresh result, so repeated runs against the same roster stay local.
//
// # Progress Reporting
//
// Long-running operations accept a progress channel. Sends never block: if
// the consumer falls behind, updates are dropped rather than stalling the
// run. Pass nil to disable progress reporting entirely.
//
// # Failure Model
//
// A failed lookup is recorded against its query in the [ResolveResult] and
// the run continues. Only context cancellation and terminal session failure
// abort the whole run, since nothing after them can succeed.
package tasks
