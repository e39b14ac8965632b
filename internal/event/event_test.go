package event

import (
	"encoding/json"
	"testing"
)

func TestParseType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input  string
		want   Type
		wantOK bool
	}{
		{"recruit", TypeRecruit, true},
		{" Lecture ", TypeLecture, true},
		{"招聘", TypeRecruit, true},
		{"活动", TypeActivity, true},
		{"讲座", TypeLecture, true},
		{"party", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseType(tt.input)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseType(%q) = (%q, %v), expected (%q, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestParseIntent_UnknownIsUnclear(t *testing.T) {
	t.Parallel()

	if got := ParseIntent("CONFIRM"); got != IntentConfirm {
		t.Errorf("Expected confirm, got %q", got)
	}
	if got := ParseIntent("book_flight"); got != IntentUnclear {
		t.Errorf("Expected unclear, got %q", got)
	}
}

func TestParseLanguage(t *testing.T) {
	t.Parallel()

	tests := map[string]Language{
		"":      LangZh,
		"zh":    LangZh,
		"EN":    LangEn,
		"zh-en": LangZhEn,
		"fr":    LangZh,
	}
	for input, want := range tests {
		if got := ParseLanguage(input); got != want {
			t.Errorf("ParseLanguage(%q) = %q, expected %q", input, got, want)
		}
	}
}

func TestEvent_CloneIsDeep(t *testing.T) {
	t.Parallel()

	yes := true
	orig := Event{
		Title: "宣讲会",
		Tags:  []string{"招聘"},
		KeyInfo: KeyInfo{
			Company:  "腾讯",
			Referral: &yes,
			Extra:    map[string]string{"room": "A1"},
		},
	}

	c := orig.Clone()
	c.Tags[0] = "changed"
	*c.KeyInfo.Referral = false
	c.KeyInfo.Extra["room"] = "B2"

	if orig.Tags[0] != "招聘" {
		t.Errorf("Expected original tags untouched, got %v", orig.Tags)
	}
	if !*orig.KeyInfo.Referral {
		t.Error("Expected original referral untouched")
	}
	if orig.KeyInfo.Extra["room"] != "A1" {
		t.Errorf("Expected original extra untouched, got %v", orig.KeyInfo.Extra)
	}
}

func TestEvent_Overlay(t *testing.T) {
	t.Parallel()

	base := Event{Title: "old", Type: TypeActivity, KeyInfo: KeyInfo{Location: "操场"}}
	got := base.Overlay(Event{Title: "new", KeyInfo: KeyInfo{Date: "2025年12月24日"}})

	if got.Title != "new" {
		t.Errorf("Expected title 'new', got %q", got.Title)
	}
	if got.Type != TypeActivity {
		t.Errorf("Expected type kept, got %q", got.Type)
	}
	if got.KeyInfo.Location != "操场" || got.KeyInfo.Date != "2025年12月24日" {
		t.Errorf("Unexpected key_info: %+v", got.KeyInfo)
	}
	if base.Title != "old" {
		t.Error("Overlay must not mutate the receiver")
	}
}

func TestEvent_IsEmpty(t *testing.T) {
	t.Parallel()

	if !(Event{}).IsEmpty() {
		t.Error("Expected zero event to be empty")
	}
	if (Event{KeyInfo: KeyInfo{Extra: map[string]string{"x": "y"}}}).IsEmpty() {
		t.Error("Expected event with extra key to be non-empty")
	}
}

func TestKeyInfo_JSONFlat(t *testing.T) {
	t.Parallel()

	raw := `{"company":"腾讯","position":"后端开发","referral":true,"floor":"3F","headcount":5}`
	var k KeyInfo
	if err := json.Unmarshal([]byte(raw), &k); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if k.Company != "腾讯" || k.Position != "后端开发" {
		t.Errorf("Unexpected known fields: %+v", k)
	}
	if k.Referral == nil || !*k.Referral {
		t.Error("Expected referral true")
	}
	if k.Extra["floor"] != "3F" || k.Extra["headcount"] != "5" {
		t.Errorf("Expected unknown keys preserved, got %v", k.Extra)
	}

	out, err := json.Marshal(k)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(out, &m); err != nil {
		t.Fatalf("Unmarshal of output failed: %v", err)
	}
	if m["referral"] != true {
		t.Errorf("Expected referral serialized as bool, got %v", m["referral"])
	}
	if _, ok := m["date"]; ok {
		t.Error("Expected empty fields omitted")
	}
}

func TestKeyInfo_SetReferral(t *testing.T) {
	t.Parallel()

	var k KeyInfo
	k.Set(FieldReferral, "是")
	if k.Get(FieldReferral) != "true" {
		t.Errorf("Expected 'true', got %q", k.Get(FieldReferral))
	}
	k.Set(FieldReferral, "maybe")
	if k.Referral != nil {
		t.Error("Expected unparseable referral to clear the field")
	}
}

func TestKnownFor(t *testing.T) {
	t.Parallel()

	if !KnownFor(TypeRecruit, FieldCompany) {
		t.Error("Expected company known for recruit")
	}
	if KnownFor(TypeLecture, FieldSalary) {
		t.Error("Expected salary unknown for lecture")
	}
	if !KnownFor("", FieldSalary) {
		t.Error("Expected every field known when type is unset")
	}
}

func TestParsePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input  string
		want   string
		wantOK bool
	}{
		{"title", "title", true},
		{"TAGS", "tags", true},
		{"key_info.date", "key_info.date", true},
		{"date", "key_info.date", true},
		{"key_info.registrationLink", "key_info.registration_link", true},
		{"key_info.floor", "key_info.floor", true},
		{"floor", "", false},
		{"", "", false},
		{"key_info.", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			p, ok := ParsePath(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParsePath(%q) ok = %v, expected %v", tt.input, ok, tt.wantOK)
			}
			if ok && p.String() != tt.want {
				t.Errorf("ParsePath(%q) = %q, expected %q", tt.input, p.String(), tt.want)
			}
		})
	}
}

func TestEvent_GetHas(t *testing.T) {
	t.Parallel()

	ev := Event{Tags: []string{"a", "b"}, KeyInfo: KeyInfo{Extra: map[string]string{"floor": "3"}}}
	if got := ev.Get(Path{Top: TopTags}); got != "a, b" {
		t.Errorf("Expected 'a, b', got %q", got)
	}
	if !ev.Has(Path{Top: TopKeyInfo, ExtraKey: "floor"}) {
		t.Error("Expected extra path to be present")
	}
	if ev.Has(KeyPath(FieldDate)) {
		t.Error("Expected date to be absent")
	}
}
