package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/oarkflow/date"
)

// Formats the municipal feeds emit, tried in order. The first successful
// parse wins; oarkflow/date takes a last shot at anything unusual.
var dateTimeFormats = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
	"01/02/2006",
}

// ParseDateTime parses a provider date/time string into a UTC instant.
// Provider feeds mix bare dates, ISO stamps with and without fractional
// seconds, and legacy slash dates; offsets and trailing Z are stripped
// because the feeds publish local wall-clock times. An unparseable string
// returns ok=false, never an error.
func ParseDateTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	s = stripOffset(s)
	for _, layout := range dateTimeFormats {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	if t, err := date.Parse(s); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

// stripOffset removes a trailing timezone designator: "Z", "+00:00" or a
// negative offset such as "-05:00" (third '-' after the date dashes).
func stripOffset(s string) string {
	if i := strings.Index(s, "+"); i > 0 {
		s = s[:i]
	}
	if strings.Count(s, "-") > 2 {
		if i := strings.LastIndex(s, "-"); strings.Contains(s[i:], ":") {
			s = s[:i]
		}
	}
	return strings.TrimSuffix(s, "Z")
}

// ParseClock parses a wall-clock time like "10:00 AM", "2:30 PM",
// "14:00" or "14:00:00" into a 24-hour (hour, minute) pair.
func ParseClock(s string) (hour, minute int, ok bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, 0, false
	}
	isPM := strings.Contains(s, "PM")
	isAM := strings.Contains(s, "AM")
	s = strings.TrimSpace(strings.NewReplacer("AM", "", "PM", "").Replace(s))
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return 0, 0, false
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, false
	}
	m, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, false
	}
	if isPM && h != 12 {
		h += 12
	} else if isAM && h == 12 {
		h = 0
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}

// At returns the day of t with the given wall-clock time, keeping UTC.
func At(t time.Time, hour, minute int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, time.UTC)
}
