// Package auth turns login material into the credential pair every request
// against the Halcyon platform carries.
//
// # Credential Sources
//
// All sources implement [Source] and finish the same way: an identity-client
// grant produces the exchange token, then [Grants.Mint] exchanges it for the
// session token. Variants differ only in how the identity grant is funded:
//
//   - [Direct] : email and password through the web handshake, with optional
//     interactive second-factor collection
//   - [OneTimeCode] : a single-use exchange or authorization code, literal or
//     supplied on demand
//   - [DeviceBound] : a durable device credential, no interaction
//   - [StoredRefresh] : a saved refresh secret
//   - [Composite] : the above in fixed fallback order, generating a new
//     device credential after interactive success
//
// # Grants
//
// [Grants] issues the token grants. Standard OAuth2 grants go through the
// oauth2 package ([oauth2.Config.Exchange] for authorization codes, a
// [oauth2.TokenSource] for refresh); the platform-specific grant types post
// through the retrying executor and inherit its backoff and throttle
// handling.
//
// # Error Handling
//
// Grant failures surface as typed errors from the shared package:
//   - [shared.ErrInvalidCredentials] : login material rejected
//   - [shared.ErrSecondFactorRequired] : carried by [SecondFactorError] with
//     the accepted verification methods
//   - [shared.ErrCodeExpiredOrInvalid] : one-time code already spent
//   - [shared.ErrInvalidRefreshToken] : refresh secret no longer valid
//   - [shared.ErrLoginThrottled] : login rate limit that outlived the
//     executor's budget
package auth
