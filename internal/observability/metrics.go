package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects Prometheus counters, histograms and gauges for the
// engagement fabric: LLM Router traffic, Guardian decisions, the ReAct
// loop, the Task Queue, and tool dispatch.
type Metrics struct {
	// LLMRequestDuration measures Router call latency.
	// Labels: provider, model
	LLMRequestDuration *prometheus.HistogramVec

	// LLMRequestCounter counts Router calls by outcome.
	// Labels: provider, model, status (success|error)
	LLMRequestCounter *prometheus.CounterVec

	// LLMTokensUsed tracks token consumption.
	// Labels: provider, model, type (prompt|completion)
	LLMTokensUsed *prometheus.CounterVec

	// RouterFailovers counts Router fallback to a secondary provider.
	// Labels: from_provider, to_provider
	RouterFailovers *prometheus.CounterVec

	// ToolExecutionCounter counts tool dispatches by outcome.
	// Labels: tool_name, status (success|error)
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool dispatch latency.
	// Labels: tool_name
	ToolExecutionDuration *prometheus.HistogramVec

	// GuardianDenials counts actions blocked by the safety policy engine.
	// Labels: tool_name, reason
	GuardianDenials *prometheus.CounterVec

	// ReActIterations measures how many observe/think/act cycles a task
	// runs before emitting its final event.
	// Labels: outcome (final|max_iterations|timeout|error)
	ReActIterations *prometheus.HistogramVec

	// TaskQueueDepth tracks the number of pending and running tasks.
	// Labels: status (pending|running)
	TaskQueueDepth *prometheus.GaugeVec

	// EngagementDuration measures a full Team Lead engagement's wall time.
	EngagementDuration prometheus.Histogram

	// EngagementTasksTotal counts terminal tasks across engagements.
	// Labels: status (completed|failed)
	EngagementTasksTotal *prometheus.CounterVec

	// ErrorCounter tracks errors by component and type.
	// Labels: component, error_type
	ErrorCounter *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus collectors against reg.
// Pass prometheus.DefaultRegisterer at process startup; tests should pass a
// fresh prometheus.NewRegistry() to avoid colliding with other test cases.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LLMRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "redshadow_llm_request_duration_seconds",
				Help:    "Duration of LLM Router requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),
		LLMRequestCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redshadow_llm_requests_total",
				Help: "Total LLM Router requests by provider, model and status",
			},
			[]string{"provider", "model", "status"},
		),
		LLMTokensUsed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redshadow_llm_tokens_total",
				Help: "Total tokens consumed by provider, model and type",
			},
			[]string{"provider", "model", "type"},
		),
		RouterFailovers: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redshadow_router_failovers_total",
				Help: "Total Router failovers from one provider to another",
			},
			[]string{"from_provider", "to_provider"},
		),
		ToolExecutionCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redshadow_tool_executions_total",
				Help: "Total tool dispatches by tool name and status",
			},
			[]string{"tool_name", "status"},
		),
		ToolExecutionDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "redshadow_tool_execution_duration_seconds",
				Help:    "Duration of tool dispatches in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),
		GuardianDenials: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redshadow_guardian_denials_total",
				Help: "Total actions blocked by the Guardian safety policy engine",
			},
			[]string{"tool_name", "reason"},
		),
		ReActIterations: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "redshadow_react_iterations",
				Help:    "Number of observe/think/act iterations per task run",
				Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34},
			},
			[]string{"outcome"},
		),
		TaskQueueDepth: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "redshadow_task_queue_depth",
				Help: "Current Task Queue depth by status",
			},
			[]string{"status"},
		),
		EngagementDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "redshadow_engagement_duration_seconds",
				Help:    "Duration of a full Team Lead engagement in seconds",
				Buckets: []float64{10, 30, 60, 300, 600, 1800, 3600, 7200},
			},
		),
		EngagementTasksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redshadow_engagement_tasks_total",
				Help: "Total terminal tasks across engagements by status",
			},
			[]string{"status"},
		),
		ErrorCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redshadow_errors_total",
				Help: "Total errors by component and error type",
			},
			[]string{"component", "error_type"},
		),
	}
}

// RecordLLMRequest records a completed Router call.
func (m *Metrics) RecordLLMRequest(provider, model, status string, durationSeconds float64, promptTokens, completionTokens int) {
	m.LLMRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	if promptTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.LLMTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

// RecordFailover records the Router falling back to a secondary provider.
func (m *Metrics) RecordFailover(fromProvider, toProvider string) {
	m.RouterFailovers.WithLabelValues(fromProvider, toProvider).Inc()
}

// RecordToolExecution records a completed tool dispatch.
func (m *Metrics) RecordToolExecution(toolName, status string, durationSeconds float64) {
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordGuardianDenial records the Guardian blocking an action.
func (m *Metrics) RecordGuardianDenial(toolName, reason string) {
	m.GuardianDenials.WithLabelValues(toolName, reason).Inc()
}

// RecordReActIterations records how many iterations a task run took.
func (m *Metrics) RecordReActIterations(outcome string, iterations int) {
	m.ReActIterations.WithLabelValues(outcome).Observe(float64(iterations))
}

// SetTaskQueueDepth sets the current queue depth for a status.
func (m *Metrics) SetTaskQueueDepth(status string, depth int) {
	m.TaskQueueDepth.WithLabelValues(status).Set(float64(depth))
}

// RecordEngagement records a completed engagement's duration and terminal
// task outcomes.
func (m *Metrics) RecordEngagement(durationSeconds float64, completed, failed int) {
	m.EngagementDuration.Observe(durationSeconds)
	if completed > 0 {
		m.EngagementTasksTotal.WithLabelValues("completed").Add(float64(completed))
	}
	if failed > 0 {
		m.EngagementTasksTotal.WithLabelValues("failed").Add(float64(failed))
	}
}

// RecordError increments the error counter for a component and error type.
func (m *Metrics) RecordError(component, errorType string) {
	m.ErrorCounter.WithLabelValues(component, errorType).Inc()
}
