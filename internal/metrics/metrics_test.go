package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew(t *testing.T) {
	t.Parallel()
	registry := prometheus.NewRegistry()
	m := New(registry)

	if m == nil {
		t.Fatal("New() returned nil")
	}

	// Verify all metric fields are initialized
	if m.TurnsTotal == nil {
		t.Error("TurnsTotal is nil")
	}
	if m.TurnDuration == nil {
		t.Error("TurnDuration is nil")
	}
	if m.LLMTotal == nil {
		t.Error("LLMTotal is nil")
	}
	if m.LLMMalformedTotal == nil {
		t.Error("LLMMalformedTotal is nil")
	}
	if m.SessionsActive == nil {
		t.Error("SessionsActive is nil")
	}
	if m.RateLimiterDropped == nil {
		t.Error("RateLimiterDropped is nil")
	}
}

func TestRecordTurn(t *testing.T) {
	t.Parallel()
	m := New(prometheus.NewRegistry())

	m.RecordTurn("collecting", "success", 1.2)
	m.RecordTurn("collecting", "success", 0.8)
	m.RecordTurn("previewing", "error", 3)

	if got := testutil.ToFloat64(m.TurnsTotal.WithLabelValues("collecting", "success")); got != 2 {
		t.Errorf("Expected 2 collecting turns, got %v", got)
	}
	if got := testutil.CollectAndCount(m.TurnDuration); got != 1 {
		t.Errorf("Expected 1 histogram series, got %d", got)
	}
}

func TestRecordLLMRequest(t *testing.T) {
	t.Parallel()
	m := New(prometheus.NewRegistry())

	m.RecordLLMRequest("gemini", "classify", "success", 0.4)
	m.RecordLLMRequest("gemini", "classify", "rate_limit", 0)
	m.RecordLLMFallback("gemini", "groq", "classify")
	m.RecordLLMMalformed("extract")

	if got := testutil.ToFloat64(m.LLMTotal.WithLabelValues("gemini", "classify", "rate_limit")); got != 1 {
		t.Errorf("Expected 1 rate-limited request, got %v", got)
	}
	if got := testutil.ToFloat64(m.LLMMalformedTotal.WithLabelValues("extract")); got != 1 {
		t.Errorf("Expected 1 malformed response, got %v", got)
	}
	if got := testutil.ToFloat64(m.LLMFallbackTotal.WithLabelValues("gemini", "groq", "classify")); got != 1 {
		t.Errorf("Expected 1 fallback, got %v", got)
	}
}

func TestRecordLogDropped(t *testing.T) {
	t.Parallel()
	m := New(prometheus.NewRegistry())

	m.RecordLogDropped("buffer_full")
	m.RecordLogDropped("buffer_full")
	m.RecordLogDropped("sink_error")

	if got := testutil.ToFloat64(m.LogRecordsDropped.WithLabelValues("buffer_full")); got != 2 {
		t.Errorf("Expected 2 buffer_full drops, got %v", got)
	}
	if got := testutil.ToFloat64(m.LogRecordsDropped.WithLabelValues("sink_error")); got != 1 {
		t.Errorf("Expected 1 sink_error drop, got %v", got)
	}
}

func TestGauges(t *testing.T) {
	t.Parallel()
	m := New(prometheus.NewRegistry())

	m.SetSessionsActive(7)
	m.SetRateLimiterClients("client", 3)

	if got := testutil.ToFloat64(m.SessionsActive); got != 7 {
		t.Errorf("Expected 7 sessions, got %v", got)
	}
	if got := testutil.ToFloat64(m.RateLimiterClients.WithLabelValues("client")); got != 3 {
		t.Errorf("Expected 3 clients, got %v", got)
	}
}

func TestNilSafe(t *testing.T) {
	t.Parallel()
	var m *Metrics

	// Should not panic
	m.RecordTurn("initial", "success", 1)
	m.SetSessionsActive(1)
	m.RecordClarification()
	m.RecordEventPublished("recruit")
	m.RecordLLMRequest("openai", "respond", "success", 1)
	m.RecordLLMFallback("openai", "gemini", "respond")
	m.RecordLLMMalformed("classify")
	m.RecordHTTPError("internal", "chat")
	m.RecordRateLimiterDrop("global")
	m.SetRateLimiterClients("client", 1)
	m.RecordArchiveUpload("success")
	m.RecordLogDropped("buffer_full")
}

func TestGlobal(t *testing.T) {
	m := New(prometheus.NewRegistry())
	prev := Global()
	t.Cleanup(func() { InitGlobal(prev) })

	InitGlobal(m)
	if Global() != m {
		t.Error("Expected Global to return installed instance")
	}
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	t.Parallel()
	registry := prometheus.NewRegistry()
	New(registry)

	defer func() {
		if recover() == nil {
			t.Error("Expected panic on duplicate registration")
		}
	}()
	New(registry)
}
