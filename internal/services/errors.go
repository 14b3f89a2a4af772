package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrDownload      = errors.New("download error")
	ErrTranscription = errors.New("transcription error")
	ErrCompletion    = errors.New("completion error")
	ErrParse         = errors.New("parse error")
	ErrStore         = errors.New("store error")
	ErrCapabilityGap = errors.New("capability gap")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrLocked        = errors.New("episode locked")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker so callers can classify it with errors.Is. The marker
// should be one of the exported sentinel errors above; nil falls back to
// ErrStore for datastore-less call sites that forgot to pick one.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrStore
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns a short classification label for err, used as a log attribute.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDownload):
		return "download"
	case errors.Is(err, ErrTranscription):
		return "transcription"
	case errors.Is(err, ErrCompletion):
		return "completion"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrCapabilityGap):
		return "capability_gap"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrLocked):
		return "locked"
	case errors.Is(err, ErrStore):
		return "store"
	default:
		return "unknown"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
