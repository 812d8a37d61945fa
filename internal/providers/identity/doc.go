// Package identity is the OIDC client for the Keycloak realm that issues
// access tokens for the orchestrator.
//
// Browsers use the authorization code flow with PKCE (AuthCodeURL then
// Exchange). The load probe uses the password grant. Failures to reach the
// server wrap ErrUnavailable; rejections by the server do not.
package identity
