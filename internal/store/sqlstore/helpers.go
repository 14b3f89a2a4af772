package sqlstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func nowStamp() (time.Time, string) {
	now := time.Now().UTC()
	return now, now.Format(timeLayout)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(raw sql.NullString) time.Time {
	if !raw.Valid || raw.String == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, raw.String); err == nil {
		return t
	}
	return time.Time{}
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

func encodeIDs(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	return string(data), err
}

func decodeIDs(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("decode episode ids: %w", err)
	}
	return ids, nil
}

func encodeMentions(m map[string]int) (string, error) {
	if m == nil {
		m = map[string]int{}
	}
	data, err := json.Marshal(m)
	return string(data), err
}

func decodeMentions(raw string) (map[string]int, error) {
	m := map[string]int{}
	if strings.TrimSpace(raw) == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("decode episode mentions: %w", err)
	}
	return m, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
