package telemetry

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func captureOutput(t *testing.T, fn func()) []map[string]any {
	t.Helper()
	var buf bytes.Buffer
	prev := out
	out = &buf
	defer func() { out = prev }()

	fn()

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("log line is not valid JSON: %v (%q)", err, line)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestWriteIncludesLevelAndFields(t *testing.T) {
	entries := captureOutput(t, func() {
		Info("batch.start", map[string]any{"project_id": "p1", "items": 30})
		Warn("budget.wait", map[string]any{"wait_ms": 1200})
		Error("batch.item_failed", nil)
	})
	if len(entries) != 3 {
		t.Fatalf("expected 3 log lines, got %d", len(entries))
	}
	if entries[0]["level"] != "info" || entries[0]["msg"] != "batch.start" {
		t.Fatalf("unexpected first entry: %v", entries[0])
	}
	if entries[0]["project_id"] != "p1" {
		t.Fatalf("field project_id missing: %v", entries[0])
	}
	if entries[1]["level"] != "warn" {
		t.Fatalf("expected warn level, got %v", entries[1]["level"])
	}
	if entries[2]["level"] != "error" {
		t.Fatalf("expected error level, got %v", entries[2]["level"])
	}
	for _, e := range entries {
		if _, ok := e["ts"]; !ok {
			t.Fatalf("entry missing ts: %v", e)
		}
	}
}
