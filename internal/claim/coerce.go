package claim

import (
	"strconv"
	"strings"
	"time"
)

// Models do not reliably follow the requested types, so field values are
// coerced leniently. Anything that cannot be coerced becomes nil.

// Numeric dates that do not start with the year are read day first.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"02 Jan 2006",
}

func nullish(s string) bool {
	switch strings.ToLower(s) {
	case "", "null", "none", "n/a", "na", "unknown", "not found", "not available":
		return true
	}
	return false
}

func coerceString(v any) *string {
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if nullish(s) {
			return nil
		}
		return &s
	case float64:
		s := strconv.FormatFloat(val, 'f', -1, 64)
		return &s
	case bool:
		s := strconv.FormatBool(val)
		return &s
	}
	return nil
}

func coerceNumber(v any) *float64 {
	switch val := v.(type) {
	case float64:
		return &val
	case string:
		var b strings.Builder
		for _, r := range val {
			if (r >= '0' && r <= '9') || r == '.' || r == '-' {
				b.WriteRune(r)
			}
		}
		cleaned := strings.Trim(b.String(), ".")
		if cleaned == "" {
			return nil
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return nil
		}
		return &f
	}
	return nil
}

func coerceDate(v any) *Date {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if nullish(s) {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := NewDate(t.Year(), t.Month(), t.Day())
			return &d
		}
	}
	return nil
}
