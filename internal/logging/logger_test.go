package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLogger_JSONInProduction(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "production", "")

	logger.Info().Str("offer", "7").Msg("polled")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected JSON output, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "polled" {
		t.Errorf("Expected message 'polled', got %v", entry["message"])
	}
	if entry["offer"] != "7" {
		t.Errorf("Expected offer field '7', got %v", entry["offer"])
	}
}

func TestNewLogger_Levels(t *testing.T) {
	var buf bytes.Buffer

	if lvl := newLogger(&buf, "production", "").GetLevel(); lvl != zerolog.InfoLevel {
		t.Errorf("Expected info level by default, got %s", lvl)
	}
	if lvl := newLogger(&buf, "development", "").GetLevel(); lvl != zerolog.DebugLevel {
		t.Errorf("Expected debug level in development, got %s", lvl)
	}
	if lvl := newLogger(&buf, "production", "warn").GetLevel(); lvl != zerolog.WarnLevel {
		t.Errorf("Expected warn level, got %s", lvl)
	}
	if lvl := newLogger(&buf, "production", "bogus").GetLevel(); lvl != zerolog.InfoLevel {
		t.Errorf("Expected info level for unknown input, got %s", lvl)
	}
}

func TestNewFileLogger_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "churn.log")

	logger, closer, err := NewFileLogger(path, "debug")
	if err != nil {
		t.Fatalf("Failed to open log file: %v", err)
	}
	logger.Debug().Msg("first")
	closer.Close()

	logger, closer, err = NewFileLogger(path, "debug")
	if err != nil {
		t.Fatalf("Failed to reopen log file: %v", err)
	}
	logger.Debug().Msg("second")
	closer.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("Expected 2 log lines, got %d: %q", len(lines), data)
	}
}
