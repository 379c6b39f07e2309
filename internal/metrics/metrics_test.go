package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheus(reg)

	rec.ObserveLLM("openai", "embed", true, 20*time.Millisecond)
	rec.ObserveLLM("openai", "embed", false, 5*time.Millisecond)
	rec.PanelLookup(true)
	rec.PanelLookup(false)
	rec.PanelLookup(false)
	rec.SessionStarted()
	rec.SessionCompleted(true)
	rec.GatewayMessage("submit_answer")

	if got := testutil.ToFloat64(rec.llmRequests.WithLabelValues("openai", "embed", "error")); got != 1 {
		t.Fatalf("expected 1 failed embed request, got %v", got)
	}
	if got := testutil.ToFloat64(rec.panelLookups.WithLabelValues("generated")); got != 2 {
		t.Fatalf("expected 2 generated panels, got %v", got)
	}
	if got := testutil.ToFloat64(rec.sessions.WithLabelValues("ended")); got != 1 {
		t.Fatalf("expected 1 ended session, got %v", got)
	}
	if got := testutil.ToFloat64(rec.messages.WithLabelValues("submit_answer")); got != 1 {
		t.Fatalf("expected 1 gateway message, got %v", got)
	}
}

func TestOrNop(t *testing.T) {
	if _, ok := OrNop(nil).(Nop); !ok {
		t.Fatal("expected Nop recorder for nil input")
	}
}
