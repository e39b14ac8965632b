package normalize

import (
	"regexp"
	"strings"
	"time"

	"github.com/garyellow/uniflow-chat/internal/event"
)

// IsExpired reports whether ev's reference date is before now's day.
// Recruit posts use the deadline, everything else uses the event date.
// Unparseable or missing dates never expire.
func IsExpired(ev event.Event, now time.Time) bool {
	raw := ev.KeyInfo.Date
	if ev.Type == event.TypeRecruit {
		raw = ev.KeyInfo.Deadline
	}
	if raw == "" {
		return false
	}

	t, err := ParseDateLeading(raw, now)
	if err != nil {
		return false
	}
	return t.Before(midnight(now))
}

// ParseDateLeading parses the date at the start of raw, ignoring a trailing
// time such as " 中午12:00".
func ParseDateLeading(raw string, now time.Time) (time.Time, error) {
	return ParseDate(stripTime(raw), now)
}

var datePrefixRe = regexp.MustCompile(`^(?:\d{4}年\d{1,2}月\d{1,2}[日号]?|\d{4}[/.\-]\d{1,2}[/.\-]\d{1,2}|\d{1,2}月\d{1,2}[日号]?)`)

// stripTime drops a trailing time from values like "2025年12月30日 中午12:00".
func stripTime(raw string) string {
	date, _ := SplitDateTime(raw)
	return date
}

// SplitDateTime separates a leading date from whatever follows it.
// When raw does not start with a recognizable date it is returned whole.
func SplitDateTime(raw string) (date, rest string) {
	s := fold(raw)
	m := datePrefixRe.FindString(s)
	if m == "" {
		return raw, ""
	}
	return m, strings.TrimSpace(s[len(m):])
}
