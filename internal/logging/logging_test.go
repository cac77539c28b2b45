package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "warn", FormatJSON)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Info().Msg("dropped")
	logger.Warn().Str("domain", "customer").Msg("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("Expected one line above the level, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("Log line is not JSON: %v", err)
	}
	if entry["level"] != "warn" || entry["domain"] != "customer" || entry["message"] != "kept" {
		t.Errorf("Unexpected entry %v", entry)
	}
}

func TestNew_EmptyLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "", FormatJSON)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Debug().Msg("hidden")
	if buf.Len() != 0 {
		t.Errorf("Debug should be filtered at the default level, got %q", buf.String())
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := New(nil, "loud", FormatJSON); err == nil {
		t.Error("Expected an error for an unknown level")
	}
}

func TestDefaultFormat(t *testing.T) {
	if DefaultFormat("dev") != FormatConsole {
		t.Error("dev should log to the console")
	}
	if DefaultFormat("prod") != FormatJSON {
		t.Error("prod should log JSON")
	}
}
