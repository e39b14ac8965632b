package dialogue

import (
	"time"

	"github.com/garyellow/uniflow-chat/internal/event"
	"github.com/garyellow/uniflow-chat/internal/normalize"
)

// Preview is the draft as shown for confirmation before publishing.
type Preview struct {
	Event        event.Event `json:"event"`
	Completeness float64     `json:"completeness"`
	Publishable  bool        `json:"publishable"`
	Expired      bool        `json:"expired"`
}

// NewPreview builds the preview payload for ev.
func NewPreview(ev event.Event, a Assessment, now time.Time) *Preview {
	return &Preview{
		Event:        ev.Clone(),
		Completeness: a.Completeness,
		Publishable:  a.Publishable,
		Expired:      normalize.IsExpired(ev, now),
	}
}

func publishedNote(lang event.Language, id string) string {
	switch lang {
	case event.LangEn:
		return "Published. Event ID: " + id
	case event.LangZhEn:
		return "已发布，活动编号：" + id + " / Published. Event ID: " + id
	default:
		return "已发布，活动编号：" + id
	}
}
