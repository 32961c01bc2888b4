package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

func fieldMap(fields []zap.Field) map[string]string {
	m := make(map[string]string, len(fields))
	for _, f := range fields {
		m[f.Key] = f.String
	}
	return m
}

func TestContextFields(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))

	ctx := WithScope(context.Background(), Scope{TenantID: "acme"})
	ctx = WithRequestID(ctx, "req-1")

	got := fieldMap(ContextFields(ctx))
	assert.Equal(t, "acme", got["tenant.id"])
	assert.Equal(t, "req-1", got["request.id"])
	assert.NotContains(t, got, "task.id")
}

func TestContextFields_Trace(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	got := fieldMap(ContextFields(ctx))
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", got["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", got["span_id"])
}

func TestWithScope_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		scope Scope
	}{
		{"empty tenant", Scope{}},
		{"tenant with spaces", Scope{TenantID: "a b"}},
		{"bad task", Scope{TenantID: "acme", TaskID: "x/y"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Panics(t, func() { WithScope(context.Background(), tt.scope) })
		})
	}
}

func TestWithRequestID_Invalid(t *testing.T) {
	assert.Panics(t, func() { WithRequestID(context.Background(), "") })
	assert.Panics(t, func() { WithRequestID(context.Background(), "id with space") })
}
