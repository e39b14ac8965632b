package dialogue

import (
	"fmt"
	"time"

	"github.com/garyellow/uniflow-chat/internal/event"
	"github.com/garyellow/uniflow-chat/internal/normalize"
)

var zhWeekdays = [...]string{"周日", "周一", "周二", "周三", "周四", "周五", "周六"}

// Text renders the clarifying question appended to the reply.
func (c *Clarification) Text(lang event.Language) string {
	if c == nil {
		return ""
	}
	zhName := zhWeekdays[c.Weekday]
	enName := c.Weekday.String()
	this, next := c.ThisWeek.Format(time.DateOnly), c.NextWeek.Format(time.DateOnly)

	switch lang {
	case event.LangEn:
		return fmt.Sprintf(
			"Please confirm: does %q mean this %s (%s) or next %s (%s)? You can also provide a specific date (e.g., %s).",
			enName, enName, this, enName, next, next)
	case event.LangZhEn:
		return fmt.Sprintf(
			"请确认：你说的“%s”是本%s（%s）还是下%s（%s）？/ Please confirm whether %q refers to this %s or next %s. 也可以直接给出具体日期（如 %s / %s）。",
			zhName, zhName, normalize.FormatDate(c.ThisWeek, event.LangZh), zhName, normalize.FormatDate(c.NextWeek, event.LangZh),
			enName, enName, enName, normalize.FormatDate(c.NextWeek, event.LangZh), next)
	default:
		return fmt.Sprintf(
			"请确认：你说的“%s”是本%s（%s）还是下%s（%s）？也可以直接给出具体日期（如 %s）。",
			zhName, zhName, normalize.FormatDate(c.ThisWeek, event.LangZh), zhName, normalize.FormatDate(c.NextWeek, event.LangZh),
			normalize.FormatDate(c.NextWeek, event.LangZh))
	}
}
