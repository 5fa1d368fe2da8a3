package sqlparse

import "time"

// dateLayouts are tried in order when a quoted literal has the shape of a
// date or timestamp. RFC3339 covers the common case; the plain-space
// variants match values produced by DATETIME's own canonical String().
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05.9999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseDateShaped reports whether s parses under one of dateLayouts. A
// cheap prefix check (four digits, a dash, two digits, a dash) avoids
// running every layout against strings that plainly aren't dates.
func parseDateShaped(s string) (time.Time, bool) {
	if !looksLikeDatePrefix(s) {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func looksLikeDatePrefix(s string) bool {
	if len(s) < len("2006-01-02") {
		return false
	}
	for i, want := range "0000-00-00" {
		c := s[i]
		if want == '-' {
			if c != '-' {
				return false
			}
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
