package repository

import (
	"strconv"
	"strings"
)

// itoa shortens positional-placeholder construction in dynamic queries.
func itoa(n int) string {
	return strconv.Itoa(n)
}

// prefixColumns qualifies each column of a comma-separated column list with
// a table alias, for use in joined queries.
func prefixColumns(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
