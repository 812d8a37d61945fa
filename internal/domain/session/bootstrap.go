package session

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Outcome is the terminal state of a bootstrap attempt.
type Outcome int

const (
	OutcomeReady Outcome = iota
	OutcomeMissingParam
	OutcomeConflict
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReady:
		return "ready"
	case OutcomeMissingParam:
		return "missing_param"
	case OutcomeConflict:
		return "conflict"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// FieldDiff compares one context field between the stored and requested
// contexts.
type FieldDiff struct {
	Field     string
	Existing  string
	Stored    bool
	Requested string
	Differs   bool
}

// Conflict reports that the browser already holds a different context.
type Conflict struct {
	Existing  Context
	Requested Context
	Diffs     []FieldDiff
}

func (c *Conflict) Error() string {
	var fields []string
	for _, d := range c.Diffs {
		if d.Differs {
			fields = append(fields, d.Field)
		}
	}
	return "context conflict on " + strings.Join(fields, ", ")
}

// Result is what a bootstrap attempt decided. Cookies is only populated for
// OutcomeReady; nothing is written otherwise.
type Result struct {
	Outcome   Outcome
	Requested Context
	Missing   []string
	Conflict  *Conflict
	Cookies   []*http.Cookie
}

// Guard compares every field in requested against the jar. Absent fields are
// staged for writing; a present field with a different value makes the whole
// request a conflict and nothing is staged.
func (p Profile) Guard(requested Context, jar CookieJar) ([]*http.Cookie, *Conflict) {
	existing := p.StoredContext(jar)
	if existing.Equal(requested) {
		return nil, nil
	}

	var (
		staged      []*http.Cookie
		conflicting bool
	)
	for _, field := range p.Fields {
		stored, ok := existing[field]
		if !ok {
			staged = append(staged, newCookie(p.ContextCookieName(field), encodeContextValue(requested[field])))
			continue
		}
		if stored != requested[field] {
			conflicting = true
		}
	}
	if !conflicting {
		return staged, nil
	}

	conflict := &Conflict{Existing: existing, Requested: requested}
	for _, field := range p.Fields {
		stored, ok := existing[field]
		conflict.Diffs = append(conflict.Diffs, FieldDiff{
			Field:     field,
			Existing:  stored,
			Stored:    ok,
			Requested: requested[field],
			Differs:   ok && stored != requested[field],
		})
	}
	return nil, conflict
}

// Bootstrap validates the query, applies the context guard when the profile
// has one, and stages the token cookies.
func (p Profile) Bootstrap(query url.Values, jar CookieJar, tok Token) Result {
	requested, missing := p.Validate(query)
	if len(missing) > 0 {
		return Result{Outcome: OutcomeMissingParam, Requested: requested, Missing: missing}
	}

	var cookies []*http.Cookie
	if p.GuardContext {
		staged, conflict := p.Guard(requested, jar)
		if conflict != nil {
			return Result{Outcome: OutcomeConflict, Requested: requested, Conflict: conflict}
		}
		cookies = staged
	}
	cookies = append(cookies, p.TokenCookies(tok)...)

	return Result{Outcome: OutcomeReady, Requested: requested, Cookies: cookies}
}

// MissingParamError formats a missing-parameter result for display.
func MissingParamError(missing []string) error {
	if len(missing) == 1 {
		return fmt.Errorf("%s parameter missing", missing[0])
	}
	return fmt.Errorf("parameters missing: %s", strings.Join(missing, ", "))
}
