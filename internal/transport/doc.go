// Package transport issues every outbound platform request and owns the
// retry machinery that keeps callers oblivious to rate limits, capacity
// throttling, transient server failures and expiring credentials.
//
// # Request Execution
//
// [Client.Do] wraps one call in the retry loop:
//
//  1. Wait out any active [ThrottleRegistry] window for the endpoint.
//  2. Non-elevated requests wait for the refresh gate to go idle.
//  3. Perform the call and decode the platform error envelope.
//  4. Classify the failure and either retry with the class's backoff,
//     drive a credential refresh and retry, or propagate.
//
// Cumulative sleep across retries is bounded by the policy's MaxTotalWait;
// exhausting it, or the attempt budget, surfaces [ErrRetryBudgetExceeded]
// wrapping the underlying error.
//
// # Failure Classes
//
// Classification keys off the envelope's errorCode and status:
//
//   - invalid credential: coordinate a refresh through [Session], then retry
//   - rate limited (retry-after known): sleep it out, coalescing concurrent
//     callers of the endpoint into one shared wait
//   - capacity throttled (no retry-after): exponential backoff, capped
//   - transient server error: linear backoff, counted against the budget
//   - connection reset: linear backoff, not counted against the budget
//
// # Credential Recovery
//
// A rejected credential is handled by whichever in-flight request discovers
// it first, if its priority allows: the executor re-resolves the
// authorization placeholder, and either retries immediately (another caller
// already refreshed), drives [Session.Refresh] itself, or waits for the
// holder of the gate to finish. Unrecoverable outcomes mark the session
// failed so every pending and future caller aborts instead of hanging.
//
// # Batch Queries
//
// [Client.Query] posts named operations to the query service. The service
// reports failures in three shapes (HTML page, object envelope,
// per-operation error arrays); all three normalize into [APIError] so the
// retry loop treats them exactly like plain request failures.
package transport
