package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedPlan      = errors.New("malformed plan payload")
	ErrMalformedQueryList = errors.New("malformed query list payload")
)

// stripCodeFence removes a single surrounding markdown fence. Models wrap
// JSON in ```json blocks often enough that refusing to look inside would
// fail otherwise-valid payloads; everything past this point stays strict.
func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		// Drop the info string ("json", "JSON", ...) on the opening line.
		s = s[idx+1:]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

type planPayload struct {
	Goal    string   `json:"goal"`
	Queries []string `json:"queries"`
}

// DecodePlan strictly decodes the planning reply. Anything short of a JSON
// object carrying a non-empty goal and at least one non-blank query is a
// structural failure for the session; there is no repair pass.
func DecodePlan(raw string) (string, []string, error) {
	var p planPayload
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &p); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedPlan, err)
	}
	goal := strings.TrimSpace(p.Goal)
	if goal == "" {
		return "", nil, fmt.Errorf("%w: missing goal", ErrMalformedPlan)
	}
	queries, err := cleanQueries(p.Queries, ErrMalformedPlan)
	if err != nil {
		return "", nil, err
	}
	return goal, queries, nil
}

// DecodeQueryList strictly decodes a regenerated query set: a JSON array of
// strings. The count may differ from the initial batch; only emptiness and
// blank entries are rejected.
func DecodeQueryList(raw string) ([]string, error) {
	var queries []string
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &queries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedQueryList, err)
	}
	return cleanQueries(queries, ErrMalformedQueryList)
}

func cleanQueries(in []string, kind error) ([]string, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("%w: empty query list", kind)
	}
	out := make([]string, 0, len(in))
	for i, q := range in {
		q = strings.TrimSpace(q)
		if q == "" {
			return nil, fmt.Errorf("%w: blank query at index %d", kind, i)
		}
		out = append(out, q)
	}
	return out, nil
}

// ParseQuestionList splits a clarifying-question reply into one trimmed,
// non-blank line per question. Numbering prefixes are kept verbatim since
// answers are matched to questions by position, not by parsed number.
func ParseQuestionList(raw string) []string {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}
