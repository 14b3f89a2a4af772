package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DecodeJSON decodes a model JSON payload into target. Markdown code fences
// and prose around the outermost object or array are tolerated.
func DecodeJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}
	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}
	extracted := extractJSON(trimmed)
	if extracted == "" || extracted == trimmed {
		return fmt.Errorf("%w (payload snippet: %s)", directErr, snippet(trimmed))
	}
	if err := json.Unmarshal([]byte(extracted), target); err != nil {
		return fmt.Errorf("%w (extracted payload snippet: %s)", err, snippet(extracted))
	}
	return nil
}

func extractJSON(content string) string {
	body := strings.TrimSpace(unfence(content))
	if body == "" || body[0] == '{' || body[0] == '[' {
		return body
	}
	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(body, pair[0])
		end := strings.LastIndex(body, pair[1])
		if start >= 0 && end > start {
			return strings.TrimSpace(body[start : end+1])
		}
	}
	return body
}

func unfence(content string) string {
	body, ok := strings.CutPrefix(strings.TrimSpace(content), "```")
	if !ok {
		return content
	}
	body = strings.TrimLeft(body, " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return body
}

func snippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	const limit = 160
	if runes := []rune(clean); len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
