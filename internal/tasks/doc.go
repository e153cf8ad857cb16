// Package tasks implements the credential flows behind the HTTP routes.
//
// # Core Operations
//
//  1. [Authenticator.Login] : create or update the stored credential after an OAuth login
//     - Unknown provider ids get a new record without an API key
//     - Known ones have email and token pair overwritten (last writer wins)
//
//  2. [KeyIssuer.Issue] : mint a new API key for a logged in user
//     - The previous key stops resolving immediately
//     - Collisions on the unique index are retried with a fresh key
//
//  3. [CredentialProxy.Lookup] : resolve an API key to the stored token pair
//     - Unknown, prefix and banned keys are all [shared.ErrUnauthorized]
//     - The stored token is returned immediately and checked in the background
//
// # Background Refresh
//
// [Refresher] is a fixed worker pool fed by a bounded queue. Each job probes the stored access token,
// and only a 401 from the provider triggers the refresh_token grant. Provider calls share one
// [rate.Limiter]. Failures are logged and never reach the caller of Lookup.
//
// Submissions are deduplicated by provider id while a check is queued or running, and Submit never
// blocks: a full queue drops the check, which the next lookup will retry.
//
// # Implementation
//
// The flows depend on two interfaces:
//   - [CredentialStore] : repositories.CredentialRepository
//   - [TokenChecker] : services.SpotifyService
package tasks
