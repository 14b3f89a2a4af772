package logs

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"buildvault/internal/logging"
)

// Entry is one decoded log record.
type Entry struct {
	Time      time.Time
	Level     string
	Message   string
	Component string
	RunID     string
	EpisodeID string
	Stage     string
	EventType string
	Raw       string
}

// Filter selects entries. Empty fields match everything.
type Filter struct {
	RunID     string
	EpisodeID string
	Stage     string
	// ProblemsOnly keeps warn and error records.
	ProblemsOnly bool
}

// Match reports whether e passes the filter.
func (f Filter) Match(e Entry) bool {
	switch {
	case f.RunID != "" && e.RunID != f.RunID:
		return false
	case f.EpisodeID != "" && e.EpisodeID != f.EpisodeID:
		return false
	case f.Stage != "" && e.Stage != f.Stage:
		return false
	case f.ProblemsOnly && e.Level != "warn" && e.Level != "error":
		return false
	}
	return true
}

// ParseLine decodes one JSON record. Lines that are not JSON objects are
// rejected.
func ParseLine(line string) (Entry, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "{") {
		return Entry{}, false
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		return Entry{}, false
	}
	str := func(key string) string {
		v, _ := fields[key].(string)
		return v
	}
	e := Entry{
		Level:     str("level"),
		Message:   str("msg"),
		Component: str(logging.FieldComponent),
		RunID:     str(logging.FieldRunID),
		EpisodeID: str(logging.FieldEpisodeID),
		Stage:     str(logging.FieldStage),
		EventType: str(logging.FieldEventType),
		Raw:       line,
	}
	if ts, err := time.Parse(time.RFC3339Nano, str("ts")); err == nil {
		e.Time = ts
	}
	return e, true
}

// TailResult holds the matching entries and the file offset after reading.
type TailResult struct {
	Entries []Entry
	Offset  int64
}

// Tail returns up to limit of the newest entries in path that match filter.
// A missing file yields no entries.
func Tail(path string, limit int, filter Filter) (TailResult, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return TailResult{}, nil
		}
		return TailResult{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if limit <= 0 {
		offset, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return TailResult{}, fmt.Errorf("seek log file: %w", err)
		}
		return TailResult{Offset: offset}, nil
	}

	ring := make([]Entry, limit)
	count, idx := 0, 0
	offset, err := scan(file, filter, func(e Entry) error {
		ring[idx] = e
		idx = (idx + 1) % limit
		if count < limit {
			count++
		}
		return nil
	})
	if err != nil {
		return TailResult{}, err
	}

	entries := make([]Entry, count)
	if count == limit {
		for i := range count {
			entries[i] = ring[(idx+i)%limit]
		}
	} else {
		copy(entries, ring[:count])
	}
	return TailResult{Entries: entries, Offset: offset}, nil
}

// Follow polls path every interval and passes entries appended after offset
// to fn until ctx is done or fn fails. A truncated file restarts from zero.
func Follow(ctx context.Context, path string, offset int64, interval time.Duration, filter Filter, fn func(Entry) error) error {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		next, err := readFrom(path, offset, filter, fn)
		if err != nil {
			return err
		}
		offset = next

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func readFrom(path string, offset int64, filter Filter, fn func(Entry) error) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return offset, fmt.Errorf("stat log file: %w", err)
	}
	if offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}
	next, err := scan(file, filter, fn)
	if err != nil {
		return offset, err
	}
	return offset + next, nil
}

// scan passes every matching complete line to fn and returns the number of
// bytes consumed. A trailing partial line is left for the next read.
func scan(r io.Reader, filter Filter, fn func(Entry) error) (int64, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	var consumed int64
	for {
		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			return consumed, nil
		}
		if err != nil {
			return consumed, fmt.Errorf("read log file: %w", err)
		}
		consumed += int64(len(line))
		entry, ok := ParseLine(line)
		if !ok || !filter.Match(entry) {
			continue
		}
		if err := fn(entry); err != nil {
			return consumed, err
		}
	}
}
