// Package id provides ULID generation for gate and probe identifiers.
//
// IDs are prefixed by kind so logs stay readable:
//   - req_*: HTTP requests and trace spans
//   - login_*: pending identity-provider logins (OAuth state)
//   - run_*: probe runs
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// RequestID identifies an HTTP request or trace span
type RequestID string

// LoginID identifies a pending login round-trip to the identity provider
type LoginID string

// RunID identifies a single probe run
type RunID string

const (
	RequestPrefix = "req"
	LoginPrefix   = "login"
	RunPrefix     = "run"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

// NewLoginID generates a new pending-login ID
func NewLoginID() LoginID {
	return LoginID(Default().GenerateWithPrefix(LoginPrefix))
}

// NewRunID generates a new probe run ID
func NewRunID() RunID {
	return RunID(Default().GenerateWithPrefix(RunPrefix))
}

func (id RequestID) String() string { return string(id) }
func (id LoginID) String() string   { return string(id) }
func (id RunID) String() string     { return string(id) }

// IsValid reports whether s is a prefixed ULID carrying the given prefix.
func IsValid(s, prefix string) bool {
	rest, ok := strings.CutPrefix(s, prefix+"_")
	if !ok {
		return false
	}
	_, err := ulid.Parse(rest)
	return err == nil
}

// Timestamp extracts the creation time from a prefixed ULID
func Timestamp(s string) (time.Time, error) {
	_, raw, found := strings.Cut(s, "_")
	if !found {
		raw = s
	}
	parsed, err := ulid.Parse(raw)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
