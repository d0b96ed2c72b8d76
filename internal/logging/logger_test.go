package logging_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stemgen/internal/logging"
)

func logToFile(t *testing.T, opts logging.Options, emit func(*slog.Logger)) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.log")
	opts.OutputPaths = []string{path}

	logger, err := logging.New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	emit(logger)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	return string(data)
}

func TestConsoleFormat(t *testing.T) {
	out := logToFile(t, logging.Options{Format: "console"}, func(logger *slog.Logger) {
		scoped := logging.NewComponentLogger(logger, "pipeline")
		scoped.Info("track routed",
			logging.String("engine", "demucs"),
			logging.Int("size_mb", 12),
			logging.String("title", "Strings Of Life"),
		)
	})

	if !strings.Contains(out, "INFO pipeline: track routed") {
		t.Fatalf("component prefix missing: %q", out)
	}
	if !strings.Contains(out, "engine=demucs") || !strings.Contains(out, "size_mb=12") {
		t.Fatalf("attrs missing: %q", out)
	}
	if !strings.Contains(out, `title="Strings Of Life"`) {
		t.Fatalf("value with spaces not quoted: %q", out)
	}
}

func TestJSONFormat(t *testing.T) {
	out := logToFile(t, logging.Options{Format: "json"}, func(logger *slog.Logger) {
		logger.Warn("cache purge", logging.String("hash", "abc123"))
	})

	var record map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &record); err != nil {
		t.Fatalf("output is not JSON: %v\n%q", err, out)
	}
	if record["msg"] != "cache purge" {
		t.Fatalf("msg = %v", record["msg"])
	}
	if record["level"] != "warn" {
		t.Fatalf("level = %v", record["level"])
	}
	if record["hash"] != "abc123" {
		t.Fatalf("hash = %v", record["hash"])
	}
	if _, ok := record["ts"]; !ok {
		t.Fatal("ts field missing")
	}
}

func TestLevelFiltering(t *testing.T) {
	out := logToFile(t, logging.Options{Format: "console", Level: "warn"}, func(logger *slog.Logger) {
		logger.Info("quiet")
		logger.Warn("loud")
	})

	if strings.Contains(out, "quiet") {
		t.Fatalf("info record emitted at warn level: %q", out)
	}
	if !strings.Contains(out, "loud") {
		t.Fatalf("warn record dropped: %q", out)
	}
}

func TestRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "yaml"}); err == nil {
		t.Fatal("New accepted an unknown format")
	}
}

func TestErrorAttr(t *testing.T) {
	out := logToFile(t, logging.Options{Format: "console"}, func(logger *slog.Logger) {
		logger.Error("boom", logging.Error(os.ErrNotExist))
	})
	if !strings.Contains(out, "error=") {
		t.Fatalf("error attr missing: %q", out)
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("nop logger claims to be enabled")
	}
	logger.Info("ignored")
}
