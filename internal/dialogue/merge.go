package dialogue

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/garyellow/uniflow-chat/internal/event"
	"github.com/garyellow/uniflow-chat/internal/normalize"
)

// Merge folds one turn's entities into prev and returns the new draft with
// the paths written this turn.
//
// create_event discards prev before applying entities. Otherwise each entity
// overwrites its own path and nothing else. All tag entities of the turn
// together replace the tag list. Entities without a field or value, and type
// values outside the taxonomy, are ignored.
func Merge(prev event.Event, entities []event.Entity, intent event.Intent) (event.Event, []event.Path) {
	next := prev.Clone()
	if intent == event.IntentCreateEvent {
		next = event.Event{}
	}

	var touched []event.Path
	var tags []string
	for _, ent := range entities {
		value := strings.TrimSpace(ent.Value)
		if value == "" {
			continue
		}
		p, ok := resolvePath(ent.Field)
		if !ok {
			continue
		}

		switch p.Top {
		case event.TopTitle:
			next.Title = value
		case event.TopType:
			t, ok := event.ParseType(value)
			if !ok {
				continue
			}
			next.Type = t
		case event.TopSummary:
			next.Summary = value
		case event.TopTags:
			tags = append(tags, value)
		case event.TopKeyInfo:
			if p.Key != "" {
				next.KeyInfo.Set(p.Key, value)
			} else {
				next.KeyInfo.SetExtra(p.ExtraKey, value)
			}
		}

		if !slices.Contains(touched, p) {
			touched = append(touched, p)
		}
	}

	if len(tags) > 0 {
		next.Tags = lo.Uniq(tags)
	}
	return next, touched
}

// resolvePath maps an entity field to a draft path. Bare names that are not
// known slots are kept as unrecognized key_info entries.
func resolvePath(field string) (event.Path, bool) {
	field = strings.TrimSpace(field)
	if field == "" {
		return event.Path{}, false
	}
	if p, ok := event.ParsePath(field); ok {
		return p, true
	}
	return event.Path{Top: event.TopKeyInfo, ExtraKey: field}, true
}

// Clarification is a question the next reply must ask before a field can be
// filled. Today the only cause is a weekday given without its week.
type Clarification struct {
	Field   event.Field
	Raw     string
	Weekday time.Weekday
	// ThisWeek and NextWeek are the two readings of Raw.
	ThisWeek time.Time
	NextWeek time.Time
}

// Normalize canonicalizes the fields touched this turn and repairs bilingual
// formatting. Comma-joined tags are always split, and the stored date is
// always re-checked for a bare weekday.
//
// A bare weekday in date or deadline clears that field and returns a
// Clarification; the weekday is never resolved by guessing.
func Normalize(ev event.Event, touched []event.Path, lang event.Language, now time.Time) (event.Event, *Clarification) {
	out := ev.Clone()
	var clarify *Clarification

	for _, p := range touched {
		switch {
		case p == event.KeyPath(event.FieldDate), p == event.KeyPath(event.FieldDeadline):
			if c := normalizeDateField(&out.KeyInfo, p.Key, lang, now); c != nil && clarify == nil {
				clarify = c
			}
		case p == event.KeyPath(event.FieldTime):
			if v, ok := normalize.NormalizeTime(out.KeyInfo.Time); ok {
				out.KeyInfo.Time = v
			}
		case p == event.KeyPath(event.FieldLocation):
			loc := out.KeyInfo.Location
			if lang == event.LangZhEn {
				loc = normalize.RepairSeparator(loc)
			}
			out.KeyInfo.Location = normalize.NormalizeLocation(loc, lang)
		case p.Top == event.TopTitle && lang == event.LangZhEn:
			out.Title = normalize.RepairSeparator(out.Title)
		case p.Top == event.TopTags && lang == event.LangZhEn:
			out.Tags = lo.Map(out.Tags, func(t string, _ int) string {
				return normalize.RepairTag(t)
			})
		}
	}

	if len(out.Tags) > 0 {
		out.Tags = lo.Uniq(normalize.SplitTags(out.Tags))
	}

	// A bare weekday may also arrive through an echoed draft rather than an entity.
	for _, f := range []event.Field{event.FieldDate, event.FieldDeadline} {
		if _, ok := normalize.BareWeekday(out.KeyInfo.Get(f)); !ok {
			continue
		}
		if c := normalizeDateField(&out.KeyInfo, f, lang, now); clarify == nil {
			clarify = c
		}
	}

	return out, clarify
}

// normalizeDateField formats the date stored at f. Unrecognized values stay
// as they are; a bare weekday is cleared and reported.
func normalizeDateField(k *event.KeyInfo, f event.Field, lang event.Language, now time.Time) *Clarification {
	raw := k.Get(f)
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	v, err := normalize.NormalizeDate(raw, lang, now)
	switch {
	case err == nil:
		k.Set(f, v)
		return nil
	case errors.Is(err, normalize.ErrAmbiguousWeekday):
		k.Set(f, "")
		return newClarification(f, raw, now)
	default:
		return nil
	}
}

func newClarification(f event.Field, raw string, now time.Time) *Clarification {
	wd, _ := normalize.BareWeekday(raw)
	offset := (int(wd) + 6) % 7
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	monday := today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))
	return &Clarification{
		Field:    f,
		Raw:      strings.TrimSpace(raw),
		Weekday:  wd,
		ThisWeek: monday.AddDate(0, 0, offset),
		NextWeek: monday.AddDate(0, 0, 7+offset),
	}
}
