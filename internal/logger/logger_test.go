package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected valid JSON log output, got error: %v\nraw output: %s", err, buf.String())
	}
	return entry
}

func TestSetup_ReturnsJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, slog.LevelInfo)

	if l == nil {
		t.Fatal("expected non-nil logger")
	}

	l.Info("test message", slog.String("key", "value"))

	entry := decodeEntry(t, &buf)
	if entry["msg"] != "test message" {
		t.Errorf("msg = %q, want %q", entry["msg"], "test message")
	}
	if entry["key"] != "value" {
		t.Errorf("key = %q, want %q", entry["key"], "value")
	}
	if entry["service"] != ServiceName {
		t.Errorf("service = %q, want %q", entry["service"], ServiceName)
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected 'time' field in JSON log output")
	}
}

func TestSetup_IncludesLevelField(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, slog.LevelInfo)

	l.Warn("warning test")

	entry := decodeEntry(t, &buf)
	if entry["level"] != "WARN" {
		t.Errorf("level = %q, want %q", entry["level"], "WARN")
	}
}

func TestSetup_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, slog.LevelWarn)

	l.Info("suppressed")
	l.Debug("suppressed")
	if buf.Len() != 0 {
		t.Errorf("expected no output below WARN, got: %s", buf.String())
	}

	l.Error("emitted")
	if !strings.Contains(buf.String(), "emitted") {
		t.Errorf("expected ERROR log to be emitted, got: %s", buf.String())
	}
}

func TestSetup_NilLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, nil)

	l.Debug("suppressed")
	if buf.Len() != 0 {
		t.Errorf("expected DEBUG to be suppressed, got: %s", buf.String())
	}
}

func TestSetup_MultipleAttributes(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, slog.LevelInfo)

	l.Info("日次サマリーを更新しました",
		slog.String("user_id", "u-123"),
		slog.String("date", "2024-06-14"),
		slog.Int("total_sleep_duration_minutes", 480),
		slog.Int("number_of_sleep_sessions", 2),
	)

	entry := decodeEntry(t, &buf)
	if entry["user_id"] != "u-123" {
		t.Errorf("user_id = %q, want %q", entry["user_id"], "u-123")
	}
	if entry["date"] != "2024-06-14" {
		t.Errorf("date = %q, want %q", entry["date"], "2024-06-14")
	}
	if entry["total_sleep_duration_minutes"] != float64(480) {
		t.Errorf("total_sleep_duration_minutes = %v, want %v", entry["total_sleep_duration_minutes"], 480)
	}
	if entry["number_of_sleep_sessions"] != float64(2) {
		t.Errorf("number_of_sleep_sessions = %v, want %v", entry["number_of_sleep_sessions"], 2)
	}
}

func TestSetupDefault_SetsGlobalLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	SetupDefault(&buf, slog.LevelInfo)

	slog.Default().Info("global test", slog.String("test_key", "test_val"))

	entry := decodeEntry(t, &buf)
	if entry["msg"] != "global test" {
		t.Errorf("msg = %q, want %q", entry["msg"], "global test")
	}
	if entry["test_key"] != "test_val" {
		t.Errorf("test_key = %q, want %q", entry["test_key"], "test_val")
	}
}

func TestComponent_AddsComponentAttribute(t *testing.T) {
	var buf bytes.Buffer
	l := Component(Setup(&buf, slog.LevelInfo), "materialize-worker")

	l.Info("started")

	entry := decodeEntry(t, &buf)
	if entry["component"] != "materialize-worker" {
		t.Errorf("component = %q, want %q", entry["component"], "materialize-worker")
	}
	if entry["service"] != ServiceName {
		t.Errorf("service = %q, want %q", entry["service"], ServiceName)
	}
}
