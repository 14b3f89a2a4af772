package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewFanoutHandlerCollapses(t *testing.T) {
	if _, ok := newFanoutHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler when every child is nil")
	}
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if got := newFanoutHandler(nil, inner); got != inner {
		t.Fatalf("expected single child returned unwrapped, got %T", got)
	}
}

func TestFanoutHandlerRespectsChildLevels(t *testing.T) {
	var infoBuf, debugBuf bytes.Buffer
	info := slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo})
	debug := slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(newFanoutHandler(info, debug))

	if !logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected fanout enabled for debug when any child accepts it")
	}
	logger.Debug("quiet")
	logger.Info("loud")

	if strings.Contains(infoBuf.String(), "quiet") {
		t.Fatalf("info child received debug record: %s", infoBuf.String())
	}
	if !strings.Contains(debugBuf.String(), "quiet") || !strings.Contains(debugBuf.String(), "loud") {
		t.Fatalf("debug child missing records: %s", debugBuf.String())
	}
}

func TestFanoutHandlerWithAttrsReachesEveryChild(t *testing.T) {
	var a, b bytes.Buffer
	logger := slog.New(newFanoutHandler(
		slog.NewJSONHandler(&a, nil),
		slog.NewJSONHandler(&b, nil),
	)).With(FieldEpisodeID, "ep-1").WithGroup("stats")

	logger.Info("done", "segments", 12)

	for name, buf := range map[string]*bytes.Buffer{"first": &a, "second": &b} {
		out := buf.String()
		if !strings.Contains(out, `"episode_id":"ep-1"`) {
			t.Fatalf("%s child missing episode attr: %s", name, out)
		}
		if !strings.Contains(out, `"stats":{"segments":12}`) {
			t.Fatalf("%s child missing grouped attr: %s", name, out)
		}
	}
}
