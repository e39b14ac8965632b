package dialogue

import (
	"reflect"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/garyellow/uniflow-chat/internal/event"
)

// 2025-12-20 is a Saturday.
var refNow = time.Date(2025, 12, 20, 10, 0, 0, 0, time.FixedZone("UTC+8", 8*3600))

func ent(field, value string) event.Entity {
	return event.Entity{Field: field, Value: value, Confidence: 0.9}
}

func TestMerge_Idempotent(t *testing.T) {
	t.Parallel()
	prev := event.Event{Title: "腾讯前端实习", Type: event.TypeRecruit}
	entities := []event.Entity{ent("company", "腾讯"), ent("tags", "实习"), ent("key_info.deadline", "2026年2月1日")}

	once, _ := Merge(prev, entities, event.IntentAddInfo)
	twice, _ := Merge(once, entities, event.IntentAddInfo)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("Expected re-merge to be a no-op:\n%+v\n%+v", once, twice)
	}
}

func TestMerge_PartialUpdateKeepsOtherFields(t *testing.T) {
	t.Parallel()
	prev := event.Event{Title: "腾讯前端实习", Type: event.TypeRecruit}
	prev.KeyInfo.Company = "腾讯"

	next, touched := Merge(prev, []event.Entity{ent("deadline", "2月1日")}, event.IntentAddInfo)

	if next.KeyInfo.Company != "腾讯" || next.Title != "腾讯前端实习" || next.Type != event.TypeRecruit {
		t.Errorf("Expected untouched fields to survive, got %+v", next)
	}
	if next.KeyInfo.Deadline != "2月1日" {
		t.Errorf("Expected deadline 2月1日, got %q", next.KeyInfo.Deadline)
	}
	if len(touched) != 1 || touched[0] != event.KeyPath(event.FieldDeadline) {
		t.Errorf("Expected only deadline touched, got %v", touched)
	}
	if prev.KeyInfo.Deadline != "" {
		t.Error("Merge must not modify its input")
	}
}

func TestMerge_CreateEventResets(t *testing.T) {
	t.Parallel()
	prev := event.Event{Title: "旧活动", Type: event.TypeActivity, Tags: []string{"旧"}}
	prev.KeyInfo.Location = "操场"

	next, _ := Merge(prev, []event.Entity{ent("title", "新讲座")}, event.IntentCreateEvent)

	if next.Title != "新讲座" {
		t.Errorf("Expected title 新讲座, got %q", next.Title)
	}
	if next.Type != "" || len(next.Tags) != 0 || next.KeyInfo.Location != "" {
		t.Errorf("Expected previous draft discarded, got %+v", next)
	}
}

func TestMerge_FieldHandling(t *testing.T) {
	t.Parallel()

	next, touched := Merge(event.Event{}, []event.Entity{
		ent("type", "not-a-type"),
		ent("", "no field"),
		ent("speaker", "  "),
		ent("dress_code", "正装"),
		ent("key_info.room_size", "200"),
		ent("type", "讲座"),
	}, event.IntentAddInfo)

	if next.Type != event.TypeLecture {
		t.Errorf("Expected type lecture, got %q", next.Type)
	}
	if next.KeyInfo.Extra["dress_code"] != "正装" || next.KeyInfo.Extra["room_size"] != "200" {
		t.Errorf("Expected unknown keys kept in Extra, got %v", next.KeyInfo.Extra)
	}
	if next.KeyInfo.Speaker != "" {
		t.Errorf("Expected blank value skipped, got %q", next.KeyInfo.Speaker)
	}
	if len(touched) != 3 {
		t.Errorf("Expected 3 touched paths, got %v", touched)
	}
}

func TestMerge_TagsReplaceAndDedupe(t *testing.T) {
	t.Parallel()
	prev := event.Event{Tags: []string{"旧标签"}}

	next, _ := Merge(prev, []event.Entity{ent("tags", "AI"), ent("tag", "实习"), ent("tags", "AI")}, event.IntentAddInfo)

	if !slices.Equal(next.Tags, []string{"AI", "实习"}) {
		t.Errorf("Expected [AI 实习], got %v", next.Tags)
	}

	kept, _ := Merge(prev, []event.Entity{ent("title", "x")}, event.IntentAddInfo)
	if !slices.Equal(kept.Tags, []string{"旧标签"}) {
		t.Errorf("Expected tags kept when no tag entity, got %v", kept.Tags)
	}
}

func TestNormalize_WeekdayClarification(t *testing.T) {
	t.Parallel()
	ev := event.Event{Title: "讲座", Type: event.TypeLecture}
	ev.KeyInfo.Date = "周三"

	out, clarify := Normalize(ev, []event.Path{event.KeyPath(event.FieldDate)}, event.LangZh, refNow)

	if out.KeyInfo.Date != "" {
		t.Errorf("Expected ambiguous date cleared, got %q", out.KeyInfo.Date)
	}
	if clarify == nil {
		t.Fatal("Expected a clarification")
	}
	if clarify.Weekday != time.Wednesday || clarify.Field != event.FieldDate {
		t.Errorf("Expected Wednesday on date, got %v on %s", clarify.Weekday, clarify.Field)
	}
	if got := clarify.ThisWeek.Format(time.DateOnly); got != "2025-12-17" {
		t.Errorf("Expected this week 2025-12-17, got %s", got)
	}
	if got := clarify.NextWeek.Format(time.DateOnly); got != "2025-12-24" {
		t.Errorf("Expected next week 2025-12-24, got %s", got)
	}

	text := clarify.Text(event.LangZh)
	for _, want := range []string{"周三", "本周三", "下周三", "2025年12月24日"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected clarification to mention %q, got %q", want, text)
		}
	}
	if en := clarify.Text(event.LangEn); !strings.Contains(en, "Wednesday") || !strings.Contains(en, "2025-12-24") {
		t.Errorf("Unexpected English clarification %q", en)
	}
	if bi := clarify.Text(event.LangZhEn); !strings.Contains(bi, "周三") || !strings.Contains(bi, "Wednesday") {
		t.Errorf("Unexpected bilingual clarification %q", bi)
	}
}

func TestNormalize_StoredBareWeekdayIsRechecked(t *testing.T) {
	t.Parallel()
	ev := event.Event{}
	ev.KeyInfo.Date = "星期五"

	out, clarify := Normalize(ev, nil, event.LangZh, refNow)

	if clarify == nil || clarify.Weekday != time.Friday {
		t.Fatalf("Expected Friday clarification, got %+v", clarify)
	}
	if out.KeyInfo.Date != "" {
		t.Errorf("Expected date cleared, got %q", out.KeyInfo.Date)
	}
}

func TestNormalize_Fields(t *testing.T) {
	t.Parallel()
	ev := event.Event{Tags: []string{"AI，实习, 技术"}}
	ev.KeyInfo.Date = "下周三"
	ev.KeyInfo.Time = "下午3点"
	ev.KeyInfo.Deadline = "1月5日"
	ev.KeyInfo.Location = "图书馆"

	touched := []event.Path{
		event.KeyPath(event.FieldDate),
		event.KeyPath(event.FieldTime),
		event.KeyPath(event.FieldDeadline),
		event.KeyPath(event.FieldLocation),
	}
	out, clarify := Normalize(ev, touched, event.LangZh, refNow)

	if clarify != nil {
		t.Fatalf("Expected no clarification, got %+v", clarify)
	}
	checks := map[string][2]string{
		"date":     {out.KeyInfo.Date, "2025年12月24日"},
		"time":     {out.KeyInfo.Time, "15:00"},
		"deadline": {out.KeyInfo.Deadline, "2026年1月5日"},
		"location": {out.KeyInfo.Location, "图书馆"},
	}
	for name, c := range checks {
		if c[0] != c[1] {
			t.Errorf("%s: expected %q, got %q", name, c[1], c[0])
		}
	}
	if !slices.Equal(out.Tags, []string{"AI", "实习", "技术"}) {
		t.Errorf("Expected tags split, got %v", out.Tags)
	}
}

func TestNormalize_BilingualRepair(t *testing.T) {
	t.Parallel()
	ev := event.Event{Title: "前端讲座/Frontend Talk", Tags: []string{"讲座 / Lecture", "实习/Internship"}}
	ev.KeyInfo.Location = "图书馆"

	touched := []event.Path{
		{Top: event.TopTitle},
		{Top: event.TopTags},
		event.KeyPath(event.FieldLocation),
	}
	out, _ := Normalize(ev, touched, event.LangZhEn, refNow)

	if out.Title != "前端讲座 | Frontend Talk" {
		t.Errorf("Expected repaired title, got %q", out.Title)
	}
	if out.KeyInfo.Location != "图书馆 | Library" {
		t.Errorf("Expected bilingual location, got %q", out.KeyInfo.Location)
	}
	if !slices.Equal(out.Tags, []string{"讲座|Lecture", "实习|Internship"}) {
		t.Errorf("Expected repaired tag, got %v", out.Tags)
	}

	// Untouched fields are left alone in other languages.
	plain, _ := Normalize(ev, nil, event.LangZh, refNow)
	if plain.Title != ev.Title {
		t.Errorf("Expected title unchanged, got %q", plain.Title)
	}
}
