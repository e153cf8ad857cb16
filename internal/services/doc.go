// Package services implements the HTTP clients the credential proxy talks to.
//
// # Spotify
//
// [SpotifyService] implements [OAuthService] on top of [oauth2.Config]:
//   - [SpotifyService.GetAuthURL] and [SpotifyService.Exchange] drive the authorization-code login
//   - [SpotifyService.Profile] reads GET /v1/me to identify the user
//   - [SpotifyService.Probe] reads GET /v1/me/player to check a stored access token
//   - [SpotifyService.Refresh] runs the refresh_token grant
//
// Client credentials are sent in the form body ([oauth2.AuthStyleInParams]).
// Token values are never logged or included in errors.
//
// # Credentials API
//
// [CredentialsClient] is the consumer side of GET /spotifyCreds, used by the CLI.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrAuthFailed] : authorization code exchange failed
//   - [shared.ErrTokenExpired] : the provider rejected the access token (401)
//   - [shared.ErrRefreshFailed] : the refresh_token grant failed
//   - [shared.ErrProvider] : any other provider failure (network, 5xx, 429)
//   - [shared.ErrUnauthorized] : the credentials API rejected the API key
package services
