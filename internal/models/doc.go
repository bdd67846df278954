// Package models defines wire types and persistent entities for the Halcyon credential client.
//
// The package contains two categories of types:
//
// 1. Wire types: structs mirroring the platform's JSON responses
//   - [Account] : Public account record from lookups
//   - [TokenInfo] : Verify endpoint's view of a presented token
//   - [ExchangeCode] : One-time code minted for a token handoff
//   - [DeviceCredentialInfo] : Platform record of a device credential
//   - [Friend] : Friend list entry for the authenticated subject
//
// 2. Persistent entities: records backed by the local SQLite store
//   - [StoredCredential] : Device credential mirror keyed by (subject, device)
//   - [AuthEvent] : Append-only auth lifecycle log entry
//
// Persistent entities implement the [Model] interface where the full
// lifecycle applies; the event log is append-only and carries only Validate.
package models
