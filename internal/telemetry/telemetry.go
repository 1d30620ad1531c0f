// Package telemetry turns finished pause spans into log records.
package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Provider owns an SDK tracer provider that logs every ended span.
type Provider struct {
	provider *sdktrace.TracerProvider
}

// NewLogProvider logs ended spans to logger at debug level, or at warn when
// the span recorded an error status. A nil logger uses slog.Default.
func NewLogProvider(logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	p := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(&logSpanProcessor{logger: logger}))
	return &Provider{provider: p}
}

func (p *Provider) Tracer(name string) trace.Tracer {
	if p == nil || p.provider == nil {
		return otel.Tracer(name)
	}
	return p.provider.Tracer(name)
}

func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.provider == nil {
		return nil
	}
	return p.provider.Shutdown(ctx)
}

type logSpanProcessor struct {
	logger *slog.Logger
}

func (p *logSpanProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p *logSpanProcessor) OnEnd(span sdktrace.ReadOnlySpan) {
	level := slog.LevelDebug
	status := span.Status()
	if status.Code == codes.Error {
		level = slog.LevelWarn
	}

	attrs := make([]slog.Attr, 0, len(span.Attributes())+3)
	attrs = append(attrs,
		slog.String("span", span.Name()),
		slog.Duration("elapsed", span.EndTime().Sub(span.StartTime())),
	)
	for _, kv := range span.Attributes() {
		attrs = append(attrs, slog.Any(string(kv.Key), kv.Value.AsInterface()))
	}
	for _, ev := range span.Events() {
		if ev.Name == "exception" {
			for _, kv := range ev.Attributes {
				if kv.Key == "exception.message" {
					attrs = append(attrs, slog.String("err", kv.Value.AsString()))
				}
			}
		}
	}
	if status.Description != "" {
		attrs = append(attrs, slog.String("status", status.Description))
	}
	p.logger.LogAttrs(context.Background(), level, "span ended", attrs...)
}

func (p *logSpanProcessor) Shutdown(context.Context) error { return nil }

func (p *logSpanProcessor) ForceFlush(context.Context) error { return nil }
