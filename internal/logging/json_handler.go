package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"buildvault/internal/services"
)

// jsonHandler writes one JSON object per record and tags every record that
// carries an error with its services classification.
type jsonHandler struct {
	slog.Handler
}

func newJSONHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	opts := slog.HandlerOptions{
		Level:       lvl,
		AddSource:   addSource,
		ReplaceAttr: replaceJSONAttr,
	}
	return jsonHandler{Handler: slog.NewJSONHandler(w, &opts)}
}

func (h jsonHandler) Handle(ctx context.Context, record slog.Record) error {
	var (
		err     error
		hasKind bool
	)
	record.Attrs(func(attr slog.Attr) bool {
		switch attr.Key {
		case FieldErrorKind:
			hasKind = true
		case "error":
			err, _ = attr.Value.Resolve().Any().(error)
		}
		return true
	})
	if err != nil && !hasKind {
		record = record.Clone()
		record.AddAttrs(slog.String(FieldErrorKind, services.Kind(err)))
	}
	return h.Handler.Handle(ctx, record)
}

func (h jsonHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return jsonHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h jsonHandler) WithGroup(name string) slog.Handler {
	return jsonHandler{Handler: h.Handler.WithGroup(name)}
}

func replaceJSONAttr(_ []string, attr slog.Attr) slog.Attr {
	switch attr.Key {
	case slog.TimeKey:
		attr.Key = "ts"
		if attr.Value.Kind() == slog.KindTime {
			attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339Nano))
		}
	case slog.LevelKey:
		attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
	case "error":
		if err, ok := attr.Value.Any().(error); ok && err != nil {
			attr.Value = slog.StringValue(err.Error())
		}
	case slog.SourceKey:
		if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
			attr.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
		}
	}
	if attr.Value.Kind() == slog.KindDuration {
		// Stage timings are easier to aggregate as fractional seconds.
		attr.Value = slog.Float64Value(attr.Value.Duration().Seconds())
	}
	return attr
}
