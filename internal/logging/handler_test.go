// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Coursekeep Contributors

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/coursekeep/coursekeep/pkg/errutil"
)

func newJSONLogger(t *testing.T, buf *bytes.Buffer, level string) *slog.Logger {
	t.Helper()
	logger, err := Setup(Options{Service: "coursekeep", Version: "1.0.0", Format: "json", Level: level}, buf)
	require.NoError(t, err)
	return logger
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "Failed to parse JSON: %s", buf.String())
	return entry
}

func TestSetup_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	newJSONLogger(t, &buf, "").Info("test message")

	entry := decode(t, &buf)
	assert.Equal(t, "test message", entry["msg"])
	assert.Equal(t, "coursekeep", entry["service"])
	assert.Equal(t, "1.0.0", entry["version"])
	assert.Contains(t, entry, "time")
	assert.Contains(t, entry, "level")
}

func TestSetup_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup(Options{Service: "coursekeep", Format: "text"}, &buf)
	require.NoError(t, err)

	logger.Info("test message")

	assert.Contains(t, buf.String(), "test message")
	assert.Contains(t, buf.String(), "service=coursekeep")
}

func TestSetup_DefaultFormatIsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup(Options{}, &buf)
	require.NoError(t, err)

	logger.Info("test message")
	decode(t, &buf)
}

func TestSetup_RejectsUnknownFormat(t *testing.T) {
	_, err := Setup(Options{Format: "xml"}, &bytes.Buffer{})
	errutil.AssertErrorCode(t, err, "LOG_FORMAT_INVALID")
}

func TestSetup_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(t, &buf, "warn")

	logger.Info("dropped")
	assert.Zero(t, buf.Len())

	logger.Warn("kept")
	assert.Equal(t, "kept", decode(t, &buf)["msg"])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"info":    slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for name, want := range tests {
		got, err := ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseLevel("loud")
	errutil.AssertErrorCode(t, err, "LOG_LEVEL_INVALID")
}

func TestHandler_RequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(t, &buf, "")

	ctx := ContextWithRequestID(context.Background(), "01J0000000000000000000REQ1")
	logger.InfoContext(ctx, "handled")

	assert.Equal(t, "01J0000000000000000000REQ1", decode(t, &buf)["request_id"])
	assert.Equal(t, "", RequestIDFromContext(context.Background()))
}

func TestHandler_TraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger := newJSONLogger(t, &buf, "")

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)

	logger.InfoContext(ctx, "traced message")

	entry := decode(t, &buf)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])
}

func TestHandler_NoContext(t *testing.T) {
	var buf bytes.Buffer
	newJSONLogger(t, &buf, "").Info("plain")

	entry := decode(t, &buf)
	assert.NotContains(t, entry, "trace_id")
	assert.NotContains(t, entry, "span_id")
	assert.NotContains(t, entry, "request_id")
}

func TestHandler_WithAttrsKeepsService(t *testing.T) {
	var buf bytes.Buffer
	newJSONLogger(t, &buf, "").With("component", "web").WithGroup("req").Info("grouped", "path", "/")

	entry := decode(t, &buf)
	assert.Equal(t, "web", entry["component"])
	assert.Contains(t, entry, "req")
}

func TestSetDefault(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	logger, err := SetDefault(Options{Service: "coursekeep", Format: "json"})
	require.NoError(t, err)
	assert.Same(t, logger, slog.Default())
}
