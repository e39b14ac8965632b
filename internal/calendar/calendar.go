// Package calendar renders published events as iCalendar (RFC 5545) files.
package calendar

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	apperrors "github.com/garyellow/uniflow-chat/internal/errors"
	"github.com/garyellow/uniflow-chat/internal/event"
	"github.com/garyellow/uniflow-chat/internal/normalize"
)

// ContentType is the MIME type of Export output.
const ContentType = "text/calendar; charset=utf-8"

const (
	productName     = "UniFlow"
	uidDomain       = "uniflow-campus"
	defaultStart    = 10 * time.Hour
	defaultDuration = 2 * time.Hour
)

// ErrNoSchedule means the event carries no date a calendar entry can anchor to.
var ErrNoSchedule = errors.New("event has no parseable date")

var rangeSepRe = regexp.MustCompile(`\s*(?:-|~|–|—|至|到)\s*`)

// Slot is the resolved time span of an event.
type Slot struct {
	Start  time.Time
	End    time.Time
	AllDay bool
}

// Resolve works out when ev takes place.
//
// Recruit posts become an all-day entry on the deadline. Other events use the
// date plus key_info.time (or a time trailing the date). A single time lasts
// two hours, "全天" or no time at all makes it all-day, and "14:00-16:00"
// sets both ends. ref anchors relative and year-less dates.
func Resolve(ev event.Event, ref time.Time) (Slot, error) {
	raw := ev.KeyInfo.Date
	if ev.Type == event.TypeRecruit && ev.KeyInfo.Deadline != "" {
		raw = ev.KeyInfo.Deadline
	}
	if raw == "" {
		raw = ev.KeyInfo.Deadline
	}
	if strings.TrimSpace(raw) == "" {
		return Slot{}, ErrNoSchedule
	}

	datePart, trailing := normalize.SplitDateTime(raw)
	day, err := normalize.ParseDate(datePart, ref)
	if err != nil {
		return Slot{}, fmt.Errorf("%w: %q: %w", ErrNoSchedule, raw, err)
	}

	if ev.Type == event.TypeRecruit {
		return allDay(day), nil
	}

	clock := strings.TrimSpace(ev.KeyInfo.Time)
	if clock == "" {
		clock = trailing
	}
	if clock == "" || strings.Contains(clock, "全天") {
		return allDay(day), nil
	}

	parts := rangeSepRe.Split(clock, 2)
	start, ok := atClock(day, parts[0])
	if !ok {
		// Free text like "待定" still gets a usable entry.
		start = day.Add(defaultStart)
	}
	end := start.Add(defaultDuration)
	if len(parts) == 2 {
		if t, ok := atClock(day, parts[1]); ok && t.After(start) {
			end = t
		}
	}
	return Slot{Start: start, End: end}, nil
}

func allDay(day time.Time) Slot {
	return Slot{Start: day, End: day.AddDate(0, 0, 1), AllDay: true}
}

func atClock(day time.Time, raw string) (time.Time, bool) {
	hhmm, ok := normalize.NormalizeTime(raw)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location()), true
}

// Export renders rec as a single-event VCALENDAR.
func Export(rec event.Record) (string, error) {
	ref := rec.CreatedAt
	if ref.IsZero() {
		ref = normalize.Now()
	}
	ref = ref.In(normalize.Location())

	slot, err := Resolve(rec.Event, ref)
	if err != nil {
		return "", apperrors.NewWrapper("calendar", "export").Wrap(err, "event has no usable date")
	}

	cal := ics.NewCalendarFor(productName)
	cal.SetMethod(ics.MethodPublish)
	cal.SetCalscale("GREGORIAN")

	ve := cal.AddEvent(rec.ID + "@" + uidDomain)
	ve.SetDtStampTime(ref)
	if !rec.CreatedAt.IsZero() {
		ve.SetCreatedTime(rec.CreatedAt)
	}
	if slot.AllDay {
		ve.SetAllDayStartAt(slot.Start)
		ve.SetAllDayEndAt(slot.End)
	} else {
		ve.SetStartAt(slot.Start)
		ve.SetEndAt(slot.End)
	}

	ev := rec.Event
	ve.SetSummary(summaryLine(ev))
	if desc := Description(ev); desc != "" {
		ve.SetDescription(desc)
	}
	if loc := ev.KeyInfo.Location; loc != "" {
		ve.SetLocation(loc)
	}
	if u := firstNonEmpty(ev.KeyInfo.RegistrationLink, ev.KeyInfo.Link); u != "" {
		ve.SetURL(u)
	}
	for _, tag := range ev.Tags {
		ve.AddCategory(tag)
	}
	ve.SetStatus(ics.ObjectStatusConfirmed)
	ve.SetSequence(0)

	return cal.Serialize(), nil
}

func summaryLine(ev event.Event) string {
	if ev.Type == event.TypeRecruit {
		return "截止 Deadline: " + ev.Title
	}
	return ev.Title
}

type detail struct {
	label string
	value string
}

// Description joins the summary with the key details worth seeing in a
// calendar client.
func Description(ev event.Event) string {
	k := ev.KeyInfo
	details := []detail{
		{"公司 Company", k.Company},
		{"职位 Position", k.Position},
		{"薪资 Salary", k.Salary},
		{"学历 Education", k.Education},
		{"主讲人 Speaker", k.Speaker},
		{"主办方 Organizer", k.Organizer},
		{"联系方式 Contact", k.Contact},
		{"报名 Registration", k.RegistrationLink},
		{"链接 Link", k.Link},
	}
	if k.Referral != nil && *k.Referral {
		details = append(details, detail{"内推 Referral", "是 Yes"})
	}

	lines := make([]string, 0, len(details))
	for _, d := range details {
		if d.value != "" {
			lines = append(lines, d.label+": "+d.value)
		}
	}

	parts := make([]string, 0, 2)
	if s := strings.TrimSpace(ev.Summary); s != "" {
		parts = append(parts, s)
	}
	if len(lines) > 0 {
		parts = append(parts, strings.Join(lines, "\n"))
	}
	return strings.Join(parts, "\n\n")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
