package nlu

import (
	"strings"
	"testing"

	"github.com/garyellow/uniflow-chat/internal/event"
)

func TestResponsePrompts_CoverEveryStageAndLanguage(t *testing.T) {
	t.Parallel()

	if len(responsePrompts) != 15 {
		t.Fatalf("Expected 15 prompt builders, got %d", len(responsePrompts))
	}

	seen := map[string]bool{}
	for _, lang := range event.Languages() {
		for _, stage := range event.Stages() {
			build, ok := responsePrompts[promptKey{stage: stage, lang: lang}]
			if !ok {
				t.Fatalf("Missing builder for %s/%s", stage, lang)
			}
			p := build(State{Stage: stage, Language: lang})
			if p == "" {
				t.Errorf("Empty prompt for %s/%s", stage, lang)
			}
			if seen[p] {
				t.Errorf("Duplicate prompt text for %s/%s", stage, lang)
			}
			seen[p] = true
		}
	}
}

func TestSystemPrompt_BilingualContract(t *testing.T) {
	t.Parallel()

	p := SystemPrompt(State{Stage: event.StagePreviewing, Language: event.LangZhEn})
	for _, want := range []string{`" | "`, "中文|English", "空一行"} {
		if !strings.Contains(p, want) {
			t.Errorf("Expected bilingual prompt to mention %q", want)
		}
	}
}

func TestSystemPrompt_IncludesDraftAfterWelcome(t *testing.T) {
	t.Parallel()

	draft := event.Event{Title: "AI 讲座", Type: event.TypeLecture}
	initial := SystemPrompt(State{Stage: event.StageInitial, Language: event.LangZh, Draft: draft})
	if strings.Contains(initial, "AI 讲座") {
		t.Error("Expected welcome prompt without draft")
	}
	collecting := SystemPrompt(State{Stage: event.StageCollecting, Language: event.LangZh, Draft: draft})
	if !strings.Contains(collecting, "AI 讲座") {
		t.Error("Expected collecting prompt to include draft")
	}
}

func TestSystemPrompt_UnknownFallsBack(t *testing.T) {
	t.Parallel()

	p := SystemPrompt(State{Stage: "closing", Language: "fr"})
	if !strings.Contains(p, "信息收集") {
		t.Error("Expected fallback to Chinese collecting prompt")
	}
}

func TestApology(t *testing.T) {
	t.Parallel()

	if !strings.Contains(Apology(event.LangZhEn), "Sorry") || !strings.Contains(Apology(event.LangZhEn), "抱歉") {
		t.Error("Expected bilingual apology")
	}
	if strings.Contains(Apology(event.LangZh), "Sorry") {
		t.Error("Expected Chinese-only apology")
	}
}

func TestExtractPrompt_CarriesContext(t *testing.T) {
	t.Parallel()

	p := extractPrompt(ExtractInput{
		State: State{
			Stage:         event.StageCollecting,
			Draft:         event.Event{Title: "腾讯前端实习", Type: event.TypeRecruit},
			MissingFields: []string{"key_info.deadline"},
			Language:      event.LangZh,
		},
		Message: "截止时间2月1日",
	})

	for _, want := range []string{`"stage": "collecting"`, "key_info.deadline", "腾讯前端实习", "截止时间2月1日", "公司名称(company)"} {
		if !strings.Contains(p, want) {
			t.Errorf("Expected extraction prompt to contain %q", want)
		}
	}

	empty := extractPrompt(ExtractInput{Message: "你好"})
	if !strings.Contains(empty, `"missingFields": []`) {
		t.Errorf("Expected empty missing fields rendered as [], got:\n%s", empty)
	}
}
