// Package observability provides metrics and distributed tracing for the
// engagement fabric.
//
// # Overview
//
// Two of the three pillars of observability live here:
//
//  1. Metrics - Prometheus counters, histograms and gauges for the LLM
//     Router, Guardian, ReAct loop, Task Queue and tool dispatch.
//  2. Tracing - OpenTelemetry spans covering an engagement end to end:
//     Team Lead decomposition, each worker's ReAct iterations, Router
//     calls, and Guardian checks.
//
// Structured logging with redaction lives in internal/logging instead,
// since it returns a plain *slog.Logger consumed directly by the rest of
// the codebase.
//
// # Metrics
//
// Example usage:
//
//	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
//	start := time.Now()
//	resp, err := router.Chat(ctx, req)
//	status := "success"
//	if err != nil {
//		status = "error"
//	}
//	metrics.RecordLLMRequest(providerCfg.Name, providerCfg.Model, status, time.Since(start).Seconds(), resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
//
// # Tracing
//
// Example usage:
//
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName: "redshadow",
//	    Endpoint:    os.Getenv("OTEL_ENDPOINT"),
//	})
//	defer shutdown(context.Background())
//
//	ctx, span := tracer.TraceEngagement(ctx, objective)
//	defer span.End()
package observability
