package logx

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLogger_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "production", "warn")

	l.Info().Msg("dropped")
	l.Warn().Str("product_id", "1").Msg("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("not json: %v", err)
	}
	if entry["message"] != "kept" || entry["level"] != "warn" || entry["product_id"] != "1" {
		t.Fatalf("unexpected entry: %v", entry)
	}
}

func TestNewLogger_BadLevelFallsBackToInfo(t *testing.T) {
	l := newLogger(&bytes.Buffer{}, "development", "loud")
	if l.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("level=%s, want info", l.GetLevel())
	}
}
