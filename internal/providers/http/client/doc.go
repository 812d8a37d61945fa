// Package client provides the shared outbound HTTP client.
//
// Built on go-resty/resty over a pooled transport from
// hashicorp/go-retryablehttp, with:
//   - sonic as the JSON codec
//   - a token bucket limiter per client instance
//   - an optional circuit breaker for calls to a single upstream
//   - no retries: callers see every failure
//
// Example Usage:
//
//	c := client.New(client.Options{Timeout: 10 * time.Second})
//	resp, err := c.Do(ctx, func(r *resty.Request) (*resty.Response, error) {
//		return r.SetResult(&page).Get(url)
//	})
package client
