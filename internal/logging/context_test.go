package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextKeys(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, "", Project(ctx))
	assert.Equal(t, "", CompileID(ctx))
	assert.Equal(t, "", NodeID(ctx))

	ctx = WithProject(ctx, "demo")
	ctx = WithCompileID(ctx, "c-1")
	ctx = WithNodeID(ctx, "node-9")

	assert.Equal(t, "demo", Project(ctx))
	assert.Equal(t, "c-1", CompileID(ctx))
	assert.Equal(t, "node-9", NodeID(ctx))
}

func TestLogWith(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := WithNodeID(WithCompileID(WithProject(context.Background(), "demo"), "c-abc"), "n1")
	LogWith(ctx, logger).Info("test message")

	output := buf.String()
	assert.Contains(t, output, "project=demo")
	assert.Contains(t, output, "compile_id=c-abc")
	assert.Contains(t, output, "node_id=n1")
	assert.Contains(t, output, "test message")
}

func TestLogWithMissingKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	LogWith(WithProject(context.Background(), "only"), logger).Info("partial context")

	output := buf.String()
	assert.Contains(t, output, "project=only")
	assert.NotContains(t, output, "compile_id")
	assert.NotContains(t, output, "node_id")
}

func TestCorrelationHandler(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(NewCorrelationHandler(inner))

	ctx := WithCompileID(WithProject(context.Background(), "auto"), "c-auto")
	logger.InfoContext(ctx, "auto inject")

	output := buf.String()
	assert.Contains(t, output, `"project":"auto"`)
	assert.Contains(t, output, `"compile_id":"c-auto"`)
	assert.NotContains(t, output, "node_id")
}

func TestCorrelationHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	handler := NewCorrelationHandler(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	logger := slog.New(handler.WithAttrs([]slog.Attr{slog.String("component", "compiler")}))

	logger.InfoContext(WithNodeID(context.Background(), "n-attr"), "with attrs")

	output := buf.String()
	assert.Contains(t, output, `"node_id":"n-attr"`)
	assert.Contains(t, output, `"component":"compiler"`)
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn")

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}
