// Package utils holds small generic helpers with no domain knowledge.
package utils

import "strconv"

// AtoiDefault parses s as a base-10 integer and falls back to def when s is
// empty or not a number. Used for numeric environment values (page size and
// the like) where a bad value should select the default, not fail the load.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}
