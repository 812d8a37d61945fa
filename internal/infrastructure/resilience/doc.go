// Package resilience provides a circuit breaker for calls to the identity
// provider.
//
// The breaker never retries. When the provider keeps failing it opens and
// callers get ErrCircuitOpen immediately, which the gate renders as the
// "identity provider unavailable" page instead of holding the login request
// until the HTTP timeout.
//
// States:
//   - Closed: calls pass through, failures are counted
//   - Open: calls fail fast until Timeout elapses
//   - Half-open: up to MaxRequests trial calls decide whether to close again
//
// Example Usage:
//
//	breaker := resilience.New("identity", resilience.Settings{Timeout: 30 * time.Second})
//	tok, err := resilience.Do(breaker, func() (*Token, error) { return exchange(ctx) })
package resilience
