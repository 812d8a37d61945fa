// Package config provides 12-factor configuration for the gate and the probe.
//
// Configuration is loaded from environment variables with defaults and
// checked with go-playground/validator. CLI flags override environment
// variables in the binaries.
//
// Gate Environment Variables:
//   - PORT, HOST, PUBLIC_HOST, SHUTDOWN_TIMEOUT
//   - IDENTITY_URL, IDENTITY_DEV_URL, IDENTITY_REALM, IDENTITY_CLIENT_ID
//   - IDENTITY_REDIRECT_PATH, IDENTITY_TIMEOUT, LOGIN_TTL, LOGIN_MAX_PENDING
//   - COOKIE_MAX_CHUNK
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//
// Probe Environment Variables:
//   - MY_HOSTNAME, PROJECT, APP_ID, API_TOKEN
//   - PROBE_USERNAME, PROBE_PASSWORD, PROBE_CLIENT_ID, PROBE_REALM
//   - USERS, APPS_PER_USER, PAGE_SIZE, EXCLUDE_CLUSTER
//   - REQUEST_TIMEOUT, SESSION_DURATION, FORCE_CLOSE_AFTER, INSECURE_TLS
package config
