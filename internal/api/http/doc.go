// Package http serves the gate's browser-facing routes.
//
// Two entry points start a login: /service-proxy/ for the application
// service proxy and /vnc/ for the VM console. Both validate their query,
// redirect to the identity provider for the request's host and finish in
// /callback, where the authorization code is exchanged and the session
// cookies are written. A browser already holding a different service proxy
// context gets a conflict page whose form posts to /reset.
package http
