package dialogue

import "github.com/garyellow/uniflow-chat/internal/event"

type hint struct {
	zh, en string
}

func (h hint) text(lang event.Language) string {
	switch lang {
	case event.LangEn:
		return h.en
	case event.LangZhEn:
		return h.zh + " / " + h.en
	default:
		return h.zh
	}
}

var (
	hintTitle   = hint{"请提供活动标题", "Please provide a title"}
	hintType    = hint{"请选择活动类型：招聘/活动/讲座", "Please choose a type: recruit / activity / lecture"}
	hintCompany = hint{"请提供公司名称", "Please provide the company name"}
	hintStart   = hint{"请告诉我您想录入什么类型的信息", "Tell me what kind of event you want to post"}
)

// Suggestions returns short deterministic hints for what to provide next.
func Suggestions(ev event.Event, lang event.Language) []string {
	if ev.IsEmpty() {
		return []string{hintStart.text(lang)}
	}

	out := []string{}
	if ev.Title == "" {
		out = append(out, hintTitle.text(lang))
	}
	if ev.Type == "" {
		out = append(out, hintType.text(lang))
	}
	if ev.Type == event.TypeRecruit && !ev.KeyInfo.Has(event.FieldCompany) {
		out = append(out, hintCompany.text(lang))
	}
	return out
}
