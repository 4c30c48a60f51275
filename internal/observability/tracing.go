// Package observability provides OpenTelemetry integration for distributed tracing.
//
// Traces are exported over OTLP HTTP to a local collector agent
// (Datadog Agent with the OTLP receiver enabled, or any OTLP-compatible
// collector). The agent handles authentication and forwarding, so the
// application never carries backend credentials.
//
// Environment variables (optional):
//   - ASKAQL_TRACE_AGENT_HOST: agent OTLP endpoint (default: localhost:4318)
//   - ASKAQL_TRACE_ENVIRONMENT: deployment environment tag (default: dev)
//   - ASKAQL_TRACE_SERVICE: service name shown in APM (default: askaql)
package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/aqlhr/askaql/internal/log"
)

// DefaultAgentHost is the default agent OTLP HTTP endpoint.
const DefaultAgentHost = "localhost:4318"

// Config for OTEL setup.
type Config struct {
	// AgentHost is the collector OTLP endpoint (default: localhost:4318)
	AgentHost string
	// Environment is the deployment environment (dev, staging, prod)
	Environment string
	// ServiceName is the service name shown in APM
	ServiceName string
}

// Setup installs a global TracerProvider exporting to the local agent.
//
// Returns a shutdown function that flushes pending spans. Exporter
// creation failure disables tracing instead of failing startup; the
// collector being down must not take the API down with it.
func Setup(ctx context.Context, cfg Config, logger log.Logger) (shutdown func(context.Context) error, err error) {
	agentHost := cfg.AgentHost
	if agentHost == "" {
		agentHost = DefaultAgentHost
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(agentHost),
		otlptracehttp.WithInsecure(), // localhost doesn't need TLS
	)
	if err != nil {
		logger.Warn("failed to create trace exporter, tracing disabled", "error", err)
		return func(context.Context) error { return nil }, nil
	}

	attrs := []attribute.KeyValue{
		attribute.String("service.name", cfg.ServiceName),
	}
	if cfg.Environment != "" {
		attrs = append(attrs, attribute.String("deployment.environment", cfg.Environment))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attrs...)),
	)
	otel.SetTracerProvider(tp)

	logger.Debug("tracing enabled",
		"agent", agentHost,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	return tp.Shutdown, nil
}
