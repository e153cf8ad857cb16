// Package models defines the persisted entities of the credential proxy.
//
// [UserCredential] is the single persistent entity: one record per Spotify identity holding the
// current [TokenPair] and the API key external callers present to fetch it.
//
// All persistent entities implement the [Model] interface providing ID, timestamps, and validation.
package models
