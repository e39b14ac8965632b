package dialogue

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/garyellow/uniflow-chat/internal/event"
	"github.com/garyellow/uniflow-chat/internal/normalize"
)

// IssueKind classifies a validation finding.
type IssueKind string

const (
	IssueMissing   IssueKind = "missing"
	IssueInvalid   IssueKind = "invalid"
	IssueAmbiguous IssueKind = "ambiguous"
	IssueUnknown   IssueKind = "unknown"
	IssueExpired   IssueKind = "expired"
)

// Severity tells whether an issue blocks publishing.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding.
type Issue struct {
	Field    string    `json:"field"`
	Kind     IssueKind `json:"type"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
}

// ValidationReport is the result of Validate.
type ValidationReport struct {
	Valid         bool     `json:"isValid"`
	Completeness  float64  `json:"completeness"`
	Issues        []Issue  `json:"issues"`
	MissingFields []string `json:"missingFields"`
	CanPublish    bool     `json:"canPublish"`
}

// Validate checks ev without calling a model. Errors make the draft invalid;
// warnings are reported but do not block publishing.
func Validate(ev event.Event, threshold float64, now time.Time) ValidationReport {
	a := Evaluate(ev, threshold)
	issues := []Issue{}

	for _, f := range a.MissingFields {
		issues = append(issues, Issue{
			Field:    f,
			Kind:     IssueMissing,
			Severity: SeverityError,
			Message:  fmt.Sprintf("%s is required", f),
		})
	}

	for _, f := range []event.Field{event.FieldDate, event.FieldDeadline} {
		raw := ev.KeyInfo.Get(f)
		if raw == "" {
			continue
		}
		path := event.KeyPath(f).String()
		if wd, ok := normalize.BareWeekday(raw); ok {
			issues = append(issues, Issue{
				Field:    path,
				Kind:     IssueAmbiguous,
				Severity: SeverityError,
				Message:  fmt.Sprintf("%q does not say which week's %s", raw, wd),
			})
			continue
		}
		if _, err := normalize.ParseDateLeading(raw, now); err != nil {
			issues = append(issues, Issue{
				Field:    path,
				Kind:     IssueInvalid,
				Severity: SeverityError,
				Message:  fmt.Sprintf("%q is not a recognizable date", raw),
			})
		}
	}

	for _, f := range event.Fields() {
		if ev.Type != "" && ev.KeyInfo.Has(f) && !event.KnownFor(ev.Type, f) {
			issues = append(issues, unknownKey(event.KeyPath(f).String(), ev.Type))
		}
	}
	for _, k := range slices.Sorted(maps.Keys(ev.KeyInfo.Extra)) {
		issues = append(issues, unknownKey(event.Path{Top: event.TopKeyInfo, ExtraKey: k}.String(), ev.Type))
	}

	if normalize.IsExpired(ev, now) {
		field := event.KeyPath(event.FieldDate)
		if ev.Type == event.TypeRecruit {
			field = event.KeyPath(event.FieldDeadline)
		}
		issues = append(issues, Issue{
			Field:    field.String(),
			Kind:     IssueExpired,
			Severity: SeverityWarning,
			Message:  "the date has already passed",
		})
	}

	valid := !slices.ContainsFunc(issues, func(i Issue) bool { return i.Severity == SeverityError })
	return ValidationReport{
		Valid:         valid,
		Completeness:  a.Completeness,
		Issues:        issues,
		MissingFields: a.MissingFields,
		CanPublish:    valid && a.Publishable,
	}
}

func unknownKey(path string, t event.Type) Issue {
	msg := fmt.Sprintf("%s is not a recognized field", path)
	if t != "" {
		msg = fmt.Sprintf("%s is not a recognized field for %s events", path, t)
	}
	return Issue{Field: path, Kind: IssueUnknown, Severity: SeverityWarning, Message: msg}
}
