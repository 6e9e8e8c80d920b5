package memory

import (
	"fmt"
	"strings"

	"github.com/BartekS5/treemigrate/pkg/models"
)

// parsed is a query of the form
//
//	SELECT f1,f2 FROM Type WHERE Field IN ('a','b') [AND (X != NULL OR Y != NULL)]
type parsed struct {
	fields     []string
	objectType string
	filter     string
	values     map[string]bool
	notNull    []string
}

func parse(q string) (*parsed, error) {
	q = strings.Join(strings.Fields(q), " ")
	rest, ok := strings.CutPrefix(q, "SELECT ")
	if !ok {
		return nil, fmt.Errorf("MALFORMED_QUERY: expected SELECT: %s", q)
	}
	fieldList, rest, ok := strings.Cut(rest, " FROM ")
	if !ok {
		return nil, fmt.Errorf("MALFORMED_QUERY: expected FROM: %s", q)
	}
	objectType, rest, ok := strings.Cut(rest, " WHERE ")
	if !ok {
		return nil, fmt.Errorf("MALFORMED_QUERY: expected WHERE: %s", q)
	}
	filter, rest, ok := strings.Cut(rest, " IN (")
	if !ok {
		return nil, fmt.Errorf("MALFORMED_QUERY: expected IN: %s", q)
	}

	p := &parsed{objectType: objectType, filter: filter, values: make(map[string]bool)}
	for _, f := range strings.Split(fieldList, ",") {
		p.fields = append(p.fields, strings.TrimSpace(f))
	}

	values, rest, err := parseList(rest)
	if err != nil {
		return nil, fmt.Errorf("MALFORMED_QUERY: %w: %s", err, q)
	}
	for _, v := range values {
		p.values[v] = true
	}

	rest = strings.TrimSpace(rest)
	if rest == "" {
		return p, nil
	}
	cond, ok := strings.CutPrefix(rest, "AND (")
	if !ok || !strings.HasSuffix(cond, ")") {
		return nil, fmt.Errorf("MALFORMED_QUERY: unexpected %q", rest)
	}
	for _, c := range strings.Split(strings.TrimSuffix(cond, ")"), " OR ") {
		name, ok := strings.CutSuffix(strings.TrimSpace(c), " != NULL")
		if !ok {
			return nil, fmt.Errorf("MALFORMED_QUERY: unsupported condition %q", c)
		}
		p.notNull = append(p.notNull, name)
	}
	return p, nil
}

// parseList reads quoted literals up to the closing parenthesis.
func parseList(s string) ([]string, string, error) {
	var out []string
	var cur strings.Builder
	inQuote, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			cur.WriteByte(c)
			escaped = false
		case inQuote && c == '\\':
			escaped = true
		case c == '\'':
			if inQuote {
				out = append(out, cur.String())
				cur.Reset()
			}
			inQuote = !inQuote
		case inQuote:
			cur.WriteByte(c)
		case c == ')':
			return out, s[i+1:], nil
		}
	}
	return nil, "", fmt.Errorf("unterminated IN list")
}

func (p *parsed) matches(r *models.Record) bool {
	v, ok := r.Get(p.filter)
	if !ok || !p.values[v.Text()] || v.IsNull() {
		return false
	}
	if len(p.notNull) == 0 {
		return true
	}
	for _, f := range p.notNull {
		if v, ok := r.Get(f); ok && !v.IsNull() {
			return true
		}
	}
	return false
}
