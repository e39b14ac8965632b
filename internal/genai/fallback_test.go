package genai

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// mockChatModel is a test mock for the ChatModel interface
type mockChatModel struct {
	completeFunc func(ctx context.Context, req ChatRequest) (string, error)
	provider     Provider
	model        string
	calls        atomic.Int32
	closeCalled  bool
}

func (m *mockChatModel) Complete(ctx context.Context, req ChatRequest) (string, error) {
	m.calls.Add(1)
	if m.completeFunc != nil {
		return m.completeFunc(ctx, req)
	}
	return "", errors.New("not implemented")
}

func (m *mockChatModel) Provider() Provider { return m.provider }
func (m *mockChatModel) Model() string      { return m.model }

func (m *mockChatModel) Close() error {
	m.closeCalled = true
	return nil
}

func reply(text string) func(context.Context, ChatRequest) (string, error) {
	return func(context.Context, ChatRequest) (string, error) { return text, nil }
}

func failWith(msg string) func(context.Context, ChatRequest) (string, error) {
	return func(context.Context, ChatRequest) (string, error) { return "", errors.New(msg) }
}

var fastRetry = RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

func TestFallbackChatModel_PrimarySuccess(t *testing.T) {
	t.Parallel()
	primary := &mockChatModel{completeFunc: reply("ok"), provider: ProviderOpenAI, model: "deepseek-chat"}
	secondary := &mockChatModel{completeFunc: reply("backup"), provider: ProviderGemini, model: "gemini-2.5-flash"}

	f := NewFallbackChatModel(fastRetry, primary, secondary)
	got, err := f.Complete(context.Background(), ChatRequest{Operation: "classify"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("Expected ok, got %q", got)
	}
	if secondary.calls.Load() != 0 {
		t.Error("Expected secondary to be untouched")
	}
}

func TestFallbackChatModel_RetriesThenFallsBack(t *testing.T) {
	t.Parallel()
	primary := &mockChatModel{completeFunc: failWith("service unavailable"), provider: ProviderOpenAI, model: "a"}
	secondary := &mockChatModel{completeFunc: reply("backup"), provider: ProviderGemini, model: "b"}

	f := NewFallbackChatModel(fastRetry, primary, secondary)
	got, err := f.Complete(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "backup" {
		t.Errorf("Expected backup, got %q", got)
	}
	if primary.calls.Load() != 2 {
		t.Errorf("Expected primary retried to 2 attempts, got %d", primary.calls.Load())
	}
}

func TestFallbackChatModel_QuotaFallsBackWithoutRetry(t *testing.T) {
	t.Parallel()
	primary := &mockChatModel{completeFunc: failWith("quota exceeded"), provider: ProviderGemini, model: "a"}
	secondary := &mockChatModel{completeFunc: reply("groq"), provider: ProviderGroq, model: "b"}

	f := NewFallbackChatModel(fastRetry, primary, secondary)
	if _, err := f.Complete(context.Background(), ChatRequest{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if primary.calls.Load() != 1 {
		t.Errorf("Expected 1 primary call, got %d", primary.calls.Load())
	}
}

func TestFallbackChatModel_PermanentErrorSkipsProvider(t *testing.T) {
	t.Parallel()
	first := &mockChatModel{completeFunc: failWith("invalid api key"), provider: ProviderGemini, model: "flash"}
	second := &mockChatModel{completeFunc: reply("same provider"), provider: ProviderGemini, model: "flash-lite"}
	third := &mockChatModel{completeFunc: reply("other provider"), provider: ProviderGroq, model: "llama"}

	f := NewFallbackChatModel(fastRetry, first, second, third)
	got, err := f.Complete(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "other provider" {
		t.Errorf("Expected other provider, got %q", got)
	}
	if second.calls.Load() != 0 {
		t.Error("Expected second model of failed provider to be skipped")
	}
}

func TestFallbackChatModel_AllFail(t *testing.T) {
	t.Parallel()
	primary := &mockChatModel{completeFunc: failWith("bad gateway"), provider: ProviderOpenAI, model: "a"}
	secondary := &mockChatModel{completeFunc: failWith("bad gateway"), provider: ProviderGroq, model: "b"}

	f := NewFallbackChatModel(fastRetry, primary, secondary)
	_, err := f.Complete(context.Background(), ChatRequest{})
	if err == nil {
		t.Fatal("Expected error")
	}
	if !strings.Contains(err.Error(), "all models failed") {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestFallbackChatModel_ContextCanceled(t *testing.T) {
	t.Parallel()
	primary := &mockChatModel{completeFunc: reply("never"), provider: ProviderOpenAI, model: "a"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewFallbackChatModel(fastRetry, primary)
	_, err := f.Complete(ctx, ChatRequest{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if primary.calls.Load() != 0 {
		t.Error("Expected no calls on canceled context")
	}
}

func TestFallbackChatModel_Nil(t *testing.T) {
	t.Parallel()
	var f *FallbackChatModel

	if _, err := f.Complete(context.Background(), ChatRequest{}); err == nil {
		t.Error("Expected error from nil chain")
	}
	if f.Provider() != "" || f.Model() != "" || f.Len() != 0 {
		t.Error("Expected zero values from nil chain")
	}
	if err := f.Close(); err != nil {
		t.Errorf("Expected nil close error, got %v", err)
	}
}

func TestFallbackChatModel_Close(t *testing.T) {
	t.Parallel()
	a := &mockChatModel{provider: ProviderOpenAI}
	b := &mockChatModel{provider: ProviderGemini}

	if err := NewFallbackChatModel(fastRetry, a, b).Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.closeCalled || !b.closeCalled {
		t.Error("Expected all models closed")
	}
}
