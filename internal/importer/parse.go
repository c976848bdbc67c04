package importer

import (
	"strconv"
	"strings"
)

// ParseBool reports whether s is one of "true", "1", "yes" or "t", ignoring case.
// Anything else, including the empty string, is false.
func ParseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "t":
		return true
	}
	return false
}

// nullable maps the empty string to NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ParseTypeIDs reads a bracketed, comma-separated id list such as "[12, 40,7]".
// Tokens that are not integers are dropped and counted in skipped.
func ParseTypeIDs(s string) (ids []int64, skipped int) {
	s = strings.Trim(s, "[]")
	if s == "" {
		return nil, 0
	}
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		id, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			skipped++
			continue
		}
		ids = append(ids, id)
	}
	return ids, skipped
}
