package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/width"

	"github.com/garyellow/uniflow-chat/internal/event"
)

var (
	// ErrAmbiguousWeekday is returned for a weekday with no week qualifier ("周三").
	ErrAmbiguousWeekday = errors.New("ambiguous weekday")

	// ErrUnrecognizedDate is returned when no date pattern matches.
	ErrUnrecognizedDate = errors.New("unrecognized date")
)

var (
	isoDateRe = regexp.MustCompile(`^(\d{4})[/.\-](\d{1,2})[/.\-](\d{1,2})$`)
	cnDateRe  = regexp.MustCompile(`^(?:(\d{4})年)?(\d{1,2})月(\d{1,2})[日号]?$`)
	cnWeekRe  = regexp.MustCompile(`^(下下个?|下个?|本|这个?)?(?:周|星期|礼拜)([一二三四五六日天])$`)
	enWeekRe  = regexp.MustCompile(`^(?:(this|next|(?:the\s+)?week\s+after\s+next)\s+)?((mon|tue|tues|wed|thu|thur|thurs|fri|sat|sun)(?:day|nesday|sday|urday)?)(\s+after\s+next)?$`)
	enDateRe  = regexp.MustCompile(`^([a-z]{3,9})\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?$`)
)

// cnWeekdayOffset counts days from Monday.
var cnWeekdayOffset = map[string]int{
	"一": 0, "二": 1, "三": 2, "四": 3, "五": 4, "六": 5, "日": 6, "天": 6,
}

var enWeekdayOffset = map[string]int{
	"mon": 0, "tue": 1, "tues": 1, "wed": 2, "thu": 3, "thur": 3, "thurs": 3,
	"fri": 4, "sat": 5, "sun": 6,
}

var enMonths = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "sept": time.September, "oct": time.October,
	"nov": time.November, "dec": time.December,
}

var relativeDays = map[string]int{
	"今天": 0, "今日": 0, "today": 0,
	"明天": 1, "明日": 1, "tomorrow": 1,
	"后天": 2, "後天": 2, "day after tomorrow": 2, "the day after tomorrow": 2,
}

// fold maps full-width digits and punctuation to ASCII and trims space.
func fold(s string) string {
	return strings.TrimSpace(width.Fold.String(s))
}

// ParseDate resolves raw against now. The result is midnight in now's zone.
//
// A weekday without a week qualifier returns ErrAmbiguousWeekday; the caller
// must ask the user rather than guess. Anything else unresolvable returns
// ErrUnrecognizedDate.
func ParseDate(raw string, now time.Time) (time.Time, error) {
	s := fold(raw)
	if s == "" {
		return time.Time{}, ErrUnrecognizedDate
	}
	lower := strings.ToLower(s)
	today := midnight(now)

	if n, ok := relativeDays[lower]; ok {
		return today.AddDate(0, 0, n), nil
	}

	if m := isoDateRe.FindStringSubmatch(s); m != nil {
		return buildDate(atoi(m[1]), atoi(m[2]), atoi(m[3]), now.Location())
	}

	if m := cnDateRe.FindStringSubmatch(s); m != nil {
		month, day := atoi(m[2]), atoi(m[3])
		if m[1] != "" {
			return buildDate(atoi(m[1]), month, day, now.Location())
		}
		return buildDate(rollYear(now, month, day), month, day, now.Location())
	}

	if m := cnWeekRe.FindStringSubmatch(s); m != nil {
		prefix := strings.TrimSuffix(m[1], "个")
		if prefix == "" {
			return time.Time{}, ErrAmbiguousWeekday
		}
		weeks := 0
		switch prefix {
		case "下":
			weeks = 1
		case "下下":
			weeks = 2
		}
		return weekMonday(today).AddDate(0, 0, weeks*7+cnWeekdayOffset[m[2]]), nil
	}

	if m := enWeekRe.FindStringSubmatch(lower); m != nil && isWeekdayName(m[2], m[3]) {
		prefix, afterNext := m[1], m[4] != ""
		switch {
		case prefix == "" && !afterNext:
			return time.Time{}, ErrAmbiguousWeekday
		case prefix != "" && afterNext:
			return time.Time{}, ErrUnrecognizedDate
		}
		weeks := 0
		switch {
		case afterNext, strings.HasSuffix(prefix, "after next"):
			weeks = 2
		case prefix == "next":
			weeks = 1
		}
		return weekMonday(today).AddDate(0, 0, weeks*7+enWeekdayOffset[m[3]]), nil
	}

	if m := enDateRe.FindStringSubmatch(lower); m != nil {
		month, ok := parseEnMonth(m[1])
		if !ok {
			return time.Time{}, ErrUnrecognizedDate
		}
		day := atoi(m[2])
		if m[3] != "" {
			return buildDate(atoi(m[3]), int(month), day, now.Location())
		}
		return buildDate(rollYear(now, int(month), day), int(month), day, now.Location())
	}

	return time.Time{}, ErrUnrecognizedDate
}

// BareWeekday reports whether raw names a weekday with no week qualifier.
func BareWeekday(raw string) (time.Weekday, bool) {
	s := fold(raw)
	if m := cnWeekRe.FindStringSubmatch(s); m != nil && m[1] == "" {
		return weekdayFromOffset(cnWeekdayOffset[m[2]]), true
	}
	lower := strings.ToLower(s)
	if m := enWeekRe.FindStringSubmatch(lower); m != nil && m[1] == "" && m[4] == "" && isWeekdayName(m[2], m[3]) {
		return weekdayFromOffset(enWeekdayOffset[m[3]]), true
	}
	return 0, false
}

// FormatDate renders t as 2025年12月24日 for zh and zh-en, 2025-12-24 for en.
func FormatDate(t time.Time, lang event.Language) string {
	if lang == event.LangEn {
		return t.Format(time.DateOnly)
	}
	return fmt.Sprintf("%d年%d月%d日", t.Year(), int(t.Month()), t.Day())
}

// NormalizeDate parses and formats raw. On failure it returns raw unchanged
// together with the parse error.
func NormalizeDate(raw string, lang event.Language, now time.Time) (string, error) {
	t, err := ParseDate(raw, now)
	if err != nil {
		return raw, err
	}
	return FormatDate(t, lang), nil
}

// rollYear picks now's year, or the next one when month/day already passed.
func rollYear(now time.Time, month, day int) int {
	year := now.Year()
	if month < int(now.Month()) || (month == int(now.Month()) && day < now.Day()) {
		year++
	}
	return year
}

func buildDate(year, month, day int, loc *time.Location) (time.Time, error) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, ErrUnrecognizedDate
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	// time.Date normalizes 2月30日 into March; reject instead.
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, ErrUnrecognizedDate
	}
	return t, nil
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// weekMonday returns the Monday that starts t's ISO week.
func weekMonday(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}

func weekdayFromOffset(offset int) time.Weekday {
	return time.Weekday((offset + 1) % 7)
}

// isWeekdayName guards enWeekRe against mixes like "monurday".
func isWeekdayName(name, stem string) bool {
	full := map[string]string{
		"mon": "monday", "tue": "tuesday", "tues": "tuesday", "wed": "wednesday",
		"thu": "thursday", "thur": "thursday", "thurs": "thursday",
		"fri": "friday", "sat": "saturday", "sun": "sunday",
	}[stem]
	return name == stem || name == full
}

func parseEnMonth(s string) (time.Month, bool) {
	if m, ok := enMonths[s]; ok {
		return m, true
	}
	if len(s) > 3 {
		m, ok := enMonths[s[:3]]
		if ok && strings.HasPrefix(strings.ToLower(m.String()), s) {
			return m, true
		}
	}
	return 0, false
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
