package postgres

import (
	"strconv"
	"strings"
)

// Rebind rewrites "?" placeholders to PostgreSQL's positional "$n" form.
// Question marks inside single-quoted literals, double-quoted identifiers and
// "--" line comments are left untouched.
func Rebind(query string) string {
	if !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)

	n := 0
	var quote byte
	inComment := false

	for i := 0; i < len(query); i++ {
		c := query[i]

		switch {
		case inComment:
			if c == '\n' {
				inComment = false
			}
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '-' && i+1 < len(query) && query[i+1] == '-':
			inComment = true
		case c == '?':
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}

		b.WriteByte(c)
	}

	return b.String()
}
