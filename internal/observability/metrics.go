package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting application metrics.
//
// The metrics system is built on Prometheus and tracks:
//   - ReAct loop turn counts and durations
//   - Verifier pipeline outcomes
//   - Tool dispatch latency and status
//   - HTTP API request performance
//   - Database query performance
//   - Rate limiter decisions
//   - HITL pause/resume activity
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	defer metrics.LoopTurnDuration.Observe(time.Since(start).Seconds())
type Metrics struct {
	// LoopTurns counts ReAct loop turns by agent and outcome.
	// Labels: agent, outcome (tool_call|final|error|budget_exceeded)
	LoopTurns *prometheus.CounterVec

	// LoopTurnDuration measures the wall-clock time of one ReAct loop turn.
	// Labels: agent
	// Buckets: 0.1s, 0.5s, 1s, 2s, 5s, 10s, 30s, 60s
	LoopTurnDuration *prometheus.HistogramVec

	// VerifierOutcomes counts verifier results by verifier name and outcome.
	// Labels: verifier, outcome (pass|warn|block)
	VerifierOutcomes *prometheus.CounterVec

	// VerifierDuration measures custom verifier worker execution time.
	// Labels: verifier
	// Buckets: 0.01s, 0.05s, 0.1s, 0.5s, 1s, 5s, 10s
	VerifierDuration *prometheus.HistogramVec

	// ToolExecutionCounter counts tool invocations.
	// Labels: tool_name, status (success|error)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name
	// Buckets: 0.01s, 0.05s, 0.1s, 0.5s, 1s, 5s, 10s, 30s, 60s
	ToolExecutionDuration *prometheus.HistogramVec

	// LLMRequestDuration measures LLM provider call latency in seconds.
	// Labels: provider, model
	// Buckets: 0.1s, 0.5s, 1s, 2s, 5s, 10s, 30s, 60s
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts LLM requests by provider and model.
	// Labels: provider, model, status (success|error)
	LLMRequestCounter *prometheus.CounterVec

	// LLMTokensUsed tracks token consumption.
	// Labels: provider, model, type (input|output)
	LLMTokensUsed *prometheus.CounterVec

	// HitlPauses counts pauses by agent and tool.
	// Labels: agent, tool
	HitlPauses *prometheus.CounterVec

	// HitlResumes counts resumes by outcome.
	// Labels: outcome (ok|expired|not_found)
	HitlResumes *prometheus.CounterVec

	// HTTPRequestDuration measures HTTP API request latency.
	// Labels: method, path, status_code
	// Buckets: 0.001s, 0.005s, 0.01s, 0.05s, 0.1s, 0.5s, 1s, 5s
	HTTPRequestDuration *prometheus.HistogramVec

	// HTTPRequestCounter counts HTTP requests.
	// Labels: method, path, status_code
	HTTPRequestCounter *prometheus.CounterVec

	// DatabaseQueryDuration measures conversation/hitl store query latency.
	// Labels: operation (select|insert|update|delete), backend (sqlite|postgres|redis)
	// Buckets: 0.001s, 0.005s, 0.01s, 0.05s, 0.1s, 0.5s, 1s, 5s
	DatabaseQueryDuration *prometheus.HistogramVec

	// DatabaseQueryCounter counts store queries.
	// Labels: operation, backend, status (success|error)
	DatabaseQueryCounter *prometheus.CounterVec

	// RateLimitDecisions counts rate limiter allow/deny decisions.
	// Labels: route, decision (allow|deny)
	RateLimitDecisions *prometheus.CounterVec

	// ActiveSessions is a gauge tracking current in-flight conversations.
	// Labels: agent
	ActiveSessions *prometheus.GaugeVec
}

// NewMetrics creates and registers all Prometheus metrics.
// This should be called once at application startup.
//
// All metrics are automatically registered with Prometheus's default registry
// and will be available at the /metrics endpoint when using prometheus HTTP handler.
func NewMetrics() *Metrics {
	return &Metrics{
		LoopTurns: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sidecar_loop_turns_total",
				Help: "Total number of ReAct loop turns by agent and outcome",
			},
			[]string{"agent", "outcome"},
		),

		LoopTurnDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sidecar_loop_turn_duration_seconds",
				Help:    "Duration of a single ReAct loop turn in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"agent"},
		),

		VerifierOutcomes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sidecar_verifier_outcomes_total",
				Help: "Total number of verifier outcomes by verifier and outcome",
			},
			[]string{"verifier", "outcome"},
		),

		VerifierDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sidecar_verifier_duration_seconds",
				Help:    "Duration of verifier execution in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
			},
			[]string{"verifier"},
		),

		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sidecar_tool_executions_total",
				Help: "Total number of tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sidecar_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),

		LLMRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sidecar_llm_request_duration_seconds",
				Help:    "Duration of LLM provider requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),

		LLMRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sidecar_llm_requests_total",
				Help: "Total number of LLM requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),

		LLMTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sidecar_llm_tokens_total",
				Help: "Total number of tokens used by provider, model, and type",
			},
			[]string{"provider", "model", "type"},
		),

		HitlPauses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sidecar_hitl_pauses_total",
				Help: "Total number of HITL pauses by agent and tool",
			},
			[]string{"agent", "tool"},
		),

		HitlResumes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sidecar_hitl_resumes_total",
				Help: "Total number of HITL resume attempts by outcome",
			},
			[]string{"outcome"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sidecar_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"method", "path", "status_code"},
		),

		HTTPRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sidecar_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),

		DatabaseQueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sidecar_database_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"operation", "backend"},
		),

		DatabaseQueryCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sidecar_database_queries_total",
				Help: "Total number of database queries",
			},
			[]string{"operation", "backend", "status"},
		),

		RateLimitDecisions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sidecar_rate_limit_decisions_total",
				Help: "Total number of rate limit decisions by route and decision",
			},
			[]string{"route", "decision"},
		),

		ActiveSessions: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sidecar_active_sessions",
				Help: "Current number of active conversations by agent",
			},
			[]string{"agent"},
		),
	}
}

// RecordLoopTurn records the outcome and duration of one ReAct loop turn.
func (m *Metrics) RecordLoopTurn(agent, outcome string, durationSeconds float64) {
	m.LoopTurns.WithLabelValues(agent, outcome).Inc()
	m.LoopTurnDuration.WithLabelValues(agent).Observe(durationSeconds)
}

// RecordVerifierOutcome records a single verifier's outcome and, when the
// verifier ran out-of-process, its execution duration.
func (m *Metrics) RecordVerifierOutcome(verifier, outcome string, durationSeconds float64) {
	m.VerifierOutcomes.WithLabelValues(verifier, outcome).Inc()
	if durationSeconds > 0 {
		m.VerifierDuration.WithLabelValues(verifier).Observe(durationSeconds)
	}
}

// RecordToolExecution records metrics for a tool dispatch.
func (m *Metrics) RecordToolExecution(toolName, status string, durationSeconds float64) {
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordLLMRequest records metrics for an LLM provider request.
func (m *Metrics) RecordLLMRequest(provider, model, status string, durationSeconds float64, inputTokens, outputTokens int) {
	m.LLMRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	if inputTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "output").Add(float64(outputTokens))
	}
}

// RecordHitlPause records a ReAct loop pause awaiting human confirmation.
func (m *Metrics) RecordHitlPause(agent, tool string) {
	m.HitlPauses.WithLabelValues(agent, tool).Inc()
}

// RecordHitlResume records the outcome of a resume-token redemption attempt.
func (m *Metrics) RecordHitlResume(outcome string) {
	m.HitlResumes.WithLabelValues(outcome).Inc()
}

// RecordHTTPRequest records metrics for a completed HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, durationSeconds float64) {
	m.HTTPRequestCounter.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, statusCode).Observe(durationSeconds)
}

// RecordDatabaseQuery records metrics for a conversation or HITL store query.
func (m *Metrics) RecordDatabaseQuery(operation, backend, status string, durationSeconds float64) {
	m.DatabaseQueryCounter.WithLabelValues(operation, backend, status).Inc()
	m.DatabaseQueryDuration.WithLabelValues(operation, backend).Observe(durationSeconds)
}

// RecordRateLimitDecision records a rate limiter allow/deny decision for a route.
func (m *Metrics) RecordRateLimitDecision(route, decision string) {
	m.RateLimitDecisions.WithLabelValues(route, decision).Inc()
}

// SessionStarted increments the active sessions gauge for an agent.
func (m *Metrics) SessionStarted(agent string) {
	m.ActiveSessions.WithLabelValues(agent).Inc()
}

// SessionEnded decrements the active sessions gauge for an agent.
func (m *Metrics) SessionEnded(agent string) {
	m.ActiveSessions.WithLabelValues(agent).Dec()
}
