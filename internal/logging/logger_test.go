package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"buildvault/internal/config"
	"buildvault/internal/logging"
	"buildvault/internal/services"
)

func TestNewFromConfigWritesJSONFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Format = "json"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("file message", logging.String("k", "v"))

	data, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &record); err != nil {
		t.Fatalf("log file line is not JSON: %v (%s)", err, data)
	}
	if record["msg"] != "file message" || record["k"] != "v" || record["level"] != "info" {
		t.Fatalf("unexpected record: %v", record)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message without caller")
	if strings.Contains(buf.String(), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", buf.String())
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message with caller")
	if !strings.Contains(buf.String(), ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", buf.String())
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestNewInvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "invalid", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("expected info level filtering, got %q", buf.String())
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithEpisodeID(ctx, "0f8c2a7e-1111-2222-3333-444455556666")
	ctx = services.WithStage(ctx, "summary")
	ctx = services.WithRunID(ctx, "run-xyz")

	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WithContext(ctx, logger).Info("contextual log")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	for key, want := range map[string]string{
		logging.FieldEpisodeID: "0f8c2a7e-1111-2222-3333-444455556666",
		logging.FieldStage:     "summary",
		logging.FieldRunID:     "run-xyz",
	} {
		if record[key] != want {
			t.Fatalf("field %s = %v, want %q", key, record[key], want)
		}
	}
}

func TestConsoleSubjectShortensEpisodeID(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger = logging.NewComponentLogger(logger, "insights")
	ctx := services.WithStage(services.WithEpisodeID(context.Background(), "0f8c2a7e-aaaa"), "insights")
	logging.WithContext(ctx, logger).Info("batch saved", logging.Int("count", 4))

	out := buf.String()
	if !strings.Contains(out, "[insights] Episode 0f8c2a7e (insights) – batch saved") {
		t.Fatalf("unexpected header: %q", out)
	}
	if !strings.Contains(out, "    - count: 4") {
		t.Fatalf("expected field line, got %q", out)
	}
}

func TestJSONRecordsClassifyErrors(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	cause := services.Wrap(services.ErrCompletion, "summary", "complete", "model refused", errors.New("429"))
	logger.Warn("summary generation failed",
		logging.Error(cause),
		logging.Duration("elapsed", 1500*time.Millisecond),
	)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record[logging.FieldErrorKind] != "completion" {
		t.Fatalf("error_kind = %v, want completion", record[logging.FieldErrorKind])
	}
	if record["elapsed"] != 1.5 {
		t.Fatalf("elapsed = %v, want 1.5 seconds", record["elapsed"])
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", record)
	}
}

func TestJSONRecordsKeepExplicitErrorKind(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Error("link enrichment failed",
		logging.Error(errors.New("dial tcp: timeout")),
		logging.String(logging.FieldErrorKind, "network"),
	)
	if n := strings.Count(buf.String(), `"error_kind"`); n != 1 {
		t.Fatalf("expected one error_kind, got %d in %s", n, buf.String())
	}
	if !strings.Contains(buf.String(), `"error_kind":"network"`) {
		t.Fatalf("explicit kind overwritten: %s", buf.String())
	}
}

func TestConsoleFieldsTrimFloats(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("segment grouped",
		logging.Float64("start", 12.5),
		logging.Float64("confidence", 0.87654),
		logging.String("speaker", "Speaker A"),
	)
	out := buf.String()
	for _, want := range []string{"    - start: 12.5\n", "    - confidence: 0.877\n", `    - speaker: "Speaker A"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}
