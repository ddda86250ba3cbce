// Package sqlutil renders PostgreSQL identifiers and literals.
package sqlutil

import "strings"

// QuoteIdentifier wraps name in double quotes, doubling any embedded quote.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteQualified quotes each non-empty part and joins them with dots, so
// ("db", "public", "t") renders as "db"."public"."t".
func QuoteQualified(parts ...string) string {
	var b strings.Builder
	for _, part := range parts {
		if part == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(QuoteIdentifier(part))
	}
	return b.String()
}

// QuoteString quotes a string literal with single quotes, doubling any
// embedded single quote.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
