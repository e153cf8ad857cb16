// Package repositories implements SQLite persistence for the credential store.
//
// [CredentialRepository] stores one [models.UserCredential] per Spotify identity and looks records up
// by provider id or by API key.
//
// Every write is a single statement, so each record update is atomic without explicit transactions.
// Concurrent logins follow last-writer-wins: the latest login's email and token pair are kept.
// Narrow writes ([CredentialRepository.UpdateAPIKey], [CredentialRepository.UpdateAccessToken]) touch
// one column so key issuance and background refreshes cannot overwrite each other's fields.
//
// Driver errors are classified into the shared sentinels:
//   - [shared.ErrNotFound] : no matching record
//   - [shared.ErrConflict] : a UNIQUE index (provider id, email, api key) rejected the write
//   - [shared.ErrPersistence] : any other database failure
package repositories
