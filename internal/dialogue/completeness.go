package dialogue

import (
	"github.com/samber/lo"

	"github.com/garyellow/uniflow-chat/internal/event"
)

// DefaultPublishThreshold is the completeness a draft needs before publishing.
const DefaultPublishThreshold = 0.6

const (
	requiredWeight    = 2
	recommendedWeight = 1
)

var (
	alwaysRequired = []event.Path{
		{Top: event.TopTitle},
		{Top: event.TopType},
		{Top: event.TopSummary},
	}

	requiredByType = map[event.Type][]event.Path{
		event.TypeRecruit:  keyPaths(event.FieldCompany, event.FieldPosition, event.FieldDeadline),
		event.TypeActivity: keyPaths(event.FieldDate, event.FieldTime, event.FieldLocation),
		event.TypeLecture:  keyPaths(event.FieldDate, event.FieldTime, event.FieldLocation),
	}

	recommendedByType = map[event.Type][]event.Path{
		event.TypeRecruit:  keyPaths(event.FieldSalary, event.FieldLink),
		event.TypeActivity: keyPaths(event.FieldDeadline, event.FieldOrganizer, event.FieldRegistrationLink),
		event.TypeLecture:  keyPaths(event.FieldSpeaker, event.FieldOrganizer, event.FieldRegistrationLink),
	}
)

func keyPaths(fields ...event.Field) []event.Path {
	return lo.Map(fields, func(f event.Field, _ int) event.Path { return event.KeyPath(f) })
}

// Assessment summarizes how far a draft is from publishable.
type Assessment struct {
	// MissingFields lists unfilled required paths in canonical dotted form.
	MissingFields []string
	Completeness  float64
	Publishable   bool
}

// RequiredFields returns the required paths for a draft of type t.
func RequiredFields(t event.Type) []event.Path {
	return append(append([]event.Path{}, alwaysRequired...), requiredByType[t]...)
}

// RecommendedFields returns the recommended paths for a draft of type t.
func RecommendedFields(t event.Type) []event.Path {
	return append([]event.Path{{Top: event.TopTags}}, recommendedByType[t]...)
}

// Evaluate scores ev. Required fields weigh twice as much as recommended ones.
// A draft is publishable once it reaches threshold and has a title and type.
func Evaluate(ev event.Event, threshold float64) Assessment {
	if threshold <= 0 {
		threshold = DefaultPublishThreshold
	}

	required := RequiredFields(ev.Type)
	recommended := RecommendedFields(ev.Type)

	missing := lo.FilterMap(required, func(p event.Path, _ int) (string, bool) {
		return p.String(), !ev.Has(p)
	})

	total := len(required)*requiredWeight + len(recommended)*recommendedWeight
	present := (len(required)-len(missing))*requiredWeight +
		lo.CountBy(recommended, ev.Has)*recommendedWeight

	completeness := float64(present) / float64(total)
	return Assessment{
		MissingFields: missing,
		Completeness:  completeness,
		Publishable:   completeness >= threshold && ev.Title != "" && ev.Type != "",
	}
}
