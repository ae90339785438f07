// Package backend is the HTTP client for the Sangh Utsav registration API. It speaks
// JSON to the sign-in and registration-information endpoints and multipart to account
// creation.
//
// # Architecture boundaries
//
// The client knows endpoints and wire shapes only. It never touches session storage
// and never interprets a sign-in body beyond reading it; classification of login
// outcomes belongs to the caller.
//
// Bearer tokens are not handled here. Callers pass an *http.Client whose transport
// attaches them.
package backend
