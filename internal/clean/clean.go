// Package clean normalizes raw values pulled from upstream JSON payloads
// before they reach the database. Upstream providers mix numbers, numeric
// strings, and missing fields freely; every helper here fails soft by
// returning nil instead of an error.
package clean

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// String trims whitespace and converts empty values to nil.
func String(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// Int coerces a raw JSON value (number or numeric string) to an int64.
func Int(value any) *int64 {
	switch v := value.(type) {
	case nil:
		return nil
	case int64:
		return &v
	case int:
		n := int64(v)
		return &n
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		n := int64(v)
		return &n
	case json.Number:
		return Int(string(v))
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		// Parse via float first so "1.0" style strings survive.
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) {
			return nil
		}
		n := int64(f)
		return &n
	default:
		return nil
	}
}

// Float coerces a raw JSON value (number or numeric string) to a float64.
func Float(value any) *float64 {
	switch v := value.(type) {
	case nil:
		return nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		return &v
	case int:
		f := float64(v)
		return &f
	case int64:
		f := float64(v)
		return &f
	case json.Number:
		return Float(string(v))
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return &f
	default:
		return nil
	}
}

var dateFormats = []string{"2006-01-02", "2006/01/02", "02-01-2006", "02/01/2006"}

// Date parses a date string and returns it as a YYYYMMDD integer, the
// canonical comparable form races are stored with.
func Date(value string) *int64 {
	s := strings.TrimSpace(value)
	if s == "" {
		return nil
	}
	for _, format := range dateFormats {
		t, err := time.Parse(format, s)
		if err != nil {
			continue
		}
		n := int64(t.Year()*10000 + int(t.Month())*100 + t.Day())
		return &n
	}
	return nil
}

// DateString converts a YYYYMMDD integer back to YYYY-MM-DD, the form the
// weather provider's date-range parameters expect.
func DateString(date int64) string {
	s := strconv.FormatInt(date, 10)
	if len(s) != 8 {
		return ""
	}
	return s[:4] + "-" + s[4:6] + "-" + s[6:8]
}

// SecondsToMillis converts a duration in seconds to whole milliseconds.
func SecondsToMillis(seconds *float64) *int64 {
	if seconds == nil {
		return nil
	}
	ms := int64(math.Round(*seconds * 1000))
	return &ms
}
