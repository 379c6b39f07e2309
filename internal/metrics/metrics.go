// Package metrics records service counters for LLM calls, panel reuse and interview sessions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is implemented by Prometheus and Nop.
type Recorder interface {
	ObserveLLM(provider, operation string, success bool, duration time.Duration)
	PanelLookup(reused bool)
	SessionStarted()
	SessionCompleted(endedEarly bool)
	GatewayMessage(kind string)
}

// Prometheus implements Recorder using Prometheus metrics.
type Prometheus struct {
	llmRequests  *prometheus.CounterVec
	llmDuration  *prometheus.HistogramVec
	panelLookups *prometheus.CounterVec
	sessions     *prometheus.CounterVec
	messages     *prometheus.CounterVec
}

// NewPrometheus registers the collectors with reg. A nil reg uses the default registerer.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Prometheus{
		llmRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "panel_llm_requests_total",
				Help: "Total number of LLM requests by provider, operation and status",
			},
			[]string{"provider", "operation", "status"},
		),
		llmDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "panel_llm_request_duration_seconds",
				Help:    "Duration of LLM requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "operation"},
		),
		panelLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "panel_lookups_total",
				Help: "Panel lookups by result (reused or generated)",
			},
			[]string{"result"},
		),
		sessions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "panel_interview_sessions_total",
				Help: "Interview session transitions by event",
			},
			[]string{"event"},
		),
		messages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "panel_gateway_messages_total",
				Help: "Inbound gateway messages by type",
			},
			[]string{"type"},
		),
	}
}

// ObserveLLM records one provider call.
func (p *Prometheus) ObserveLLM(provider, operation string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	p.llmRequests.WithLabelValues(provider, operation, status).Inc()
	p.llmDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

// PanelLookup records whether a similar panel was reused.
func (p *Prometheus) PanelLookup(reused bool) {
	result := "generated"
	if reused {
		result = "reused"
	}
	p.panelLookups.WithLabelValues(result).Inc()
}

func (p *Prometheus) SessionStarted() {
	p.sessions.WithLabelValues("started").Inc()
}

func (p *Prometheus) SessionCompleted(endedEarly bool) {
	event := "completed"
	if endedEarly {
		event = "ended"
	}
	p.sessions.WithLabelValues(event).Inc()
}

func (p *Prometheus) GatewayMessage(kind string) {
	p.messages.WithLabelValues(kind).Inc()
}

// Nop discards everything.
type Nop struct{}

func (Nop) ObserveLLM(string, string, bool, time.Duration) {}
func (Nop) PanelLookup(bool) {}
func (Nop) SessionStarted() {}
func (Nop) SessionCompleted(bool) {}
func (Nop) GatewayMessage(string) {}

// OrNop returns r, or Nop when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return Nop{}
	}
	return r
}
