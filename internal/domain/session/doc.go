// Package session decides what a login entry point writes to the browser.
//
// A Profile names the query parameters an entry point requires and the
// cookie layout it uses. Bootstrap turns a request into a Result:
//
//   - OutcomeMissingParam: a required parameter is absent, nothing is written
//   - OutcomeConflict: the browser already holds a different context
//   - OutcomeReady: context cookies (when guarded) and token cookies to write
//
// Tokens are split into chunks of at most MaxChunkLength bytes, one cookie
// per chunk, plus a count cookie. ReadToken reverses that.
//
// PendingStore keeps the PKCE verifier and original query of an
// authorization request until the identity provider calls back.
package session
