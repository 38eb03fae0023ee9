// Package dsl compiles the log filter language into a parameterized SQL
// predicate plus an optional message regex applied after the rows are
// fetched.
//
// The language is a flat sequence of field:value terms joined by AND/OR/NOT
// (symbolic aliases && and || are accepted):
//
//	level:ERROR AND module:bootstrap
//	source:telegram && process:poller
//	timestamp:>2025-04-01T00:00:00 AND message:"fail.*"
//	context:user_id NOT level:DEBUG
//
// The compiler is deliberately permissive: a term that does not parse is
// dropped, not rejected, so a sloppy query degrades to a broader filter
// instead of failing outright.
package dsl

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Query is the compiled form of a filter expression.
//
// Where is a SQL fragment with ? placeholders and Params holds the bound
// values in order. An empty Where matches all rows. Pattern, when non-nil,
// must be applied by the caller to the message text of fetched rows; it is
// never part of the SQL. Skipped counts terms that were dropped as
// malformed (including unparsable timestamps).
type Query struct {
	Where   string
	Params  []any
	Pattern *regexp.Regexp
	Skipped int
}

// HasPattern reports whether a message post-filter was requested.
func (q Query) HasPattern() bool { return q.Pattern != nil }

var (
	// Connectives must be whitespace-delimited (or sit at an edge of the
	// input) so they are never confused with field values.
	connectiveRe = regexp.MustCompile(`(?:^|\s+)(AND|OR|NOT)(?:\s+|$)`)
	termRe       = regexp.MustCompile(`^(\w+):([<>]=?|=)?(.*)$`)
)

// Fields translated to exact/operator column predicates.
var columnFields = map[string]bool{
	"level":        true,
	"module":       true,
	"source":       true,
	"process":      true,
	"version":      true,
	"event_run_id": true,
}

// Compile translates a filter expression. The only possible error is an
// invalid message regex; everything else degrades to a skipped term.
func Compile(input string) (Query, error) {
	s := strings.ReplaceAll(input, "&&", "AND")
	s = strings.ReplaceAll(s, "||", "OR")

	var (
		q          Query
		parts      []string
		messageRaw string
		hasMessage bool
	)

	for _, tok := range splitTokens(strings.TrimSpace(s)) {
		if tok == "AND" || tok == "OR" || tok == "NOT" {
			parts = appendConnective(parts, tok)
			continue
		}

		m := termRe.FindStringSubmatch(tok)
		if m == nil {
			q.Skipped++
			continue
		}
		field, op, value := m[1], m[2], strings.Trim(strings.TrimSpace(m[3]), `"`)
		if op == "" {
			op = "="
		}

		switch {
		case field == "timestamp":
			ms, err := parseTimestamp(value)
			if err != nil {
				q.Skipped++
				continue
			}
			parts = append(parts, fmt.Sprintf("timestamp %s ?", op))
			q.Params = append(q.Params, ms)

		case field == "message":
			// Filtered by regex over fetched rows, not by SQL.
			// If several message terms appear, the last one wins.
			messageRaw = value
			hasMessage = true

		case columnFields[field]:
			parts = append(parts, fmt.Sprintf("%s %s ?", field, op))
			q.Params = append(q.Params, value)

		case field == "context":
			// Context is stored as serialized JSON text.
			parts = append(parts, "context LIKE ?")
			q.Params = append(q.Params, "%"+value+"%")

		default:
			q.Skipped++
		}
	}

	// A predicate must not start or end with a bare connective; dangling
	// ones appear when the adjacent term was diverted or dropped.
	for len(parts) > 0 && isConnective(parts[len(parts)-1]) {
		parts = parts[:len(parts)-1]
	}
	for len(parts) > 0 && (parts[0] == "AND" || parts[0] == "OR") {
		parts = parts[1:]
	}

	q.Where = strings.Join(parts, " ")
	if len(parts) == 0 {
		q.Params = nil
	}

	if hasMessage {
		p, err := regexp.Compile(messageRaw)
		if err != nil {
			return Query{}, fmt.Errorf("message pattern: %w", err)
		}
		q.Pattern = p
	}
	return q, nil
}

func isConnective(s string) bool { return s == "AND" || s == "OR" || s == "NOT" }

// appendConnective adds a connective to the predicate. When the term between
// two connectives was diverted (message) or dropped (malformed), the stale
// run of connectives collapses so the fragment stays valid SQL; a NOT after
// AND/OR is legitimate and is kept.
func appendConnective(parts []string, tok string) []string {
	if tok != "NOT" {
		for len(parts) > 0 && isConnective(parts[len(parts)-1]) {
			parts = parts[:len(parts)-1]
		}
	}
	return append(parts, tok)
}

// splitTokens splits the input on connective keywords, keeping the
// keywords as tokens interleaved with the term tokens.
func splitTokens(s string) []string {
	if s == "" {
		return nil
	}
	var toks []string
	last := 0
	for _, m := range connectiveRe.FindAllStringSubmatchIndex(s, -1) {
		if head := strings.TrimSpace(s[last:m[0]]); head != "" {
			toks = append(toks, head)
		}
		toks = append(toks, s[m[2]:m[3]])
		last = m[1]
	}
	if tail := strings.TrimSpace(s[last:]); tail != "" {
		toks = append(toks, tail)
	}
	return toks
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseTimestamp converts an ISO-8601 value to storage milliseconds.
// Values without an offset are read as UTC so a query means the same thing
// regardless of where the service runs.
func parseTimestamp(value string) (int64, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.ParseInLocation(layout, value, time.UTC)
		if err == nil {
			return t.UnixMilli(), nil
		}
		lastErr = err
	}
	return 0, lastErr
}
