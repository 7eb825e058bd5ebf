package breeding

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical layout used when a calendar date is displayed or stored.
const DateLayout = "2006-01-02"

// dayFirstLayouts are tried in order before the ISO fallbacks. Single digit
// months and days are accepted.
var dayFirstLayouts = []string{
	"2006-1-2",
	"2006/1/2",
	"2-1-2006",
	"2/1/2006",
}

var isoLayouts = []string{
	"20060102",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.RFC3339Nano,
}

// ParseDate extracts a calendar date from a raw record value. Strings and
// numbers are accepted; anything after a literal "T" is treated as a time of
// day and ignored. The second result is false when no date could be read.
func ParseDate(value any) (time.Time, bool) {
	text, ok := textValue(value)
	if !ok {
		return time.Time{}, false
	}
	if head, _, found := strings.Cut(text, "T"); found {
		text = strings.TrimSpace(head)
	}
	if text == "" {
		return time.Time{}, false
	}
	for _, layout := range dayFirstLayouts {
		if parsed, err := time.Parse(layout, text); err == nil {
			return DateOnly(parsed), true
		}
	}
	for _, layout := range isoLayouts {
		if parsed, err := time.Parse(layout, text); err == nil {
			return DateOnly(parsed), true
		}
	}
	return time.Time{}, false
}

// DateOnly truncates t to midnight UTC of its own calendar day.
func DateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the signed number of calendar days from start to end.
func DaysBetween(start, end time.Time) int {
	delta := DateOnly(end).Sub(DateOnly(start))
	return int(math.Round(delta.Hours() / 24))
}

// FormatDate renders a date with DateLayout, or "" for the zero time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// textValue stringifies primitive record values. Empty strings, booleans and
// nil count as missing.
func textValue(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		v = strings.TrimSpace(v)
		return v, v != ""
	case json.Number:
		return v.String(), v.String() != ""
	case float64:
		if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return "", false
		}
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return strconv.FormatInt(int64(v), 10), true
		}
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case float32:
		return textValue(float64(v))
	case int:
		return strconv.Itoa(v), v != 0
	case int64:
		return strconv.FormatInt(v, 10), v != 0
	case int32:
		return strconv.FormatInt(int64(v), 10), v != 0
	case uint64:
		return strconv.FormatUint(v, 10), v != 0
	case time.Time:
		return FormatDate(v), !v.IsZero()
	default:
		return "", false
	}
}
