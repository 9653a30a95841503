package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestWithContext_AddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Output: &buf, Format: "json"})

	ctx := WithRequestID(context.Background(), "req-42")
	log.WithContext(ctx).Info("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid json log line: %v", err)
	}
	if entry["request_id"] != "req-42" {
		t.Errorf("request_id = %v, want req-42", entry["request_id"])
	}
}

func TestWithContext_NoRequestID(t *testing.T) {
	log := Discard()
	if log.WithContext(context.Background()) != log {
		t.Error("expected the same logger when ctx carries no request ID")
	}
	if RequestIDFrom(context.Background()) != "" {
		t.Error("expected empty request ID")
	}
}

func TestProductionUsesJSON(t *testing.T) {
	var buf bytes.Buffer
	New(Config{Output: &buf, Format: "text", Environment: "production"}).Info("started")

	if !json.Valid(buf.Bytes()) {
		t.Errorf("expected JSON output in production, got %q", buf.String())
	}
}
