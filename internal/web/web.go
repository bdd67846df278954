// Package web sketches an HTMX-based dashboard mirroring the watch TUI.
//
// # HTMX Web Dashboard Implementation Plan
//
// # Architecture
//
// The dashboard replicates the watch TUI's session panel using server-side
// rendering with HTMX for dynamic updates. Each pane corresponds to a
// template and handler:
//
//  1. Session Panel: state, subject, token countdowns, refresh counters
//  2. Event Log: recent auth events from the local store
//  3. Device Credentials: stored device credentials with revoke buttons
//  4. Account Lookup: resolve display names and ids through the bulk engine
//
// Core Components
//
//   - HTTP Server: the server package's BasicRouter with html/template rendering
//   - Service Integration: the same session.Manager snapshot and repositories
//     the TUI reads from
//   - SSE Handler: streams snapshot changes so countdowns update live
//
// Routes
//
//	GET  /                     → Session panel (full page)
//	GET  /session              → HTMX partial: session panel refresh
//	GET  /session/stream       → SSE snapshot stream
//	POST /session/refresh      → Force a refresh cycle
//	GET  /events               → HTMX partial: event log page
//	GET  /devices              → Device credential list
//	POST /devices/{id}/revoke  → Revoke a device credential
//	POST /lookup               → Bulk account resolution form
//
// Templates
//
//   - base.html: Layout with state badge in the navigation
//   - session.html: Countdown panel with hx-trigger="sse:snapshot"
//   - events.html: Paginated event table
//   - devices.html: Credential table with confirmation modals
//
// # State Management
//
// The dashboard holds no state of its own: the session manager owns the
// live credential, the repositories own history, and every request
// re-reads both. SSE connections are the only per-client state.
//
// # Snapshot Streaming
//
// Countdowns tick client-side between snapshots:
//  1. GET /session/stream registers an SSE connection
//  2. A goroutine polls Manager.Snapshot on the watch interval
//  3. Changed snapshots are pushed as "snapshot" events
//  4. A terminal failure pushes a "failed" event and closes the stream
//
// # Status
//
// Planned. The loopback listener and router infrastructure in the server
// package are the foundation; no handlers are implemented yet.
package web
