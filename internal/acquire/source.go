package acquire

import (
	"net/url"
	"strings"

	"buildvault/internal/services"
	"buildvault/internal/stage"
)

var pathPrefixes = []string{"shorts", "embed", "live", "v"}

// SourceID extracts the video ID from a watch URL. It understands watch?v=,
// youtu.be/, /shorts/, /embed/ and /live/ forms.
func SourceID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", services.Wrap(services.ErrValidation, stage.Acquire, "parse url", "url is empty", nil)
	}
	parsed, err := url.Parse(raw)
	if err == nil && (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != "" {
		if id := idFromURL(parsed); validID(id) {
			return id, nil
		}
	}
	// Loose fallback for strings that only carry a v= parameter.
	if _, after, ok := strings.Cut(raw, "v="); ok {
		id, _, _ := strings.Cut(after, "&")
		if validID(id) {
			return id, nil
		}
	}
	return "", services.Wrap(services.ErrValidation, stage.Acquire, "parse url", "no video id in "+raw, nil)
}

func idFromURL(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "m.")
	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if host == "youtu.be" {
		if len(segments) > 0 {
			return segments[0]
		}
		return ""
	}
	if v := u.Query().Get("v"); v != "" {
		return v
	}
	for i := 0; i+1 < len(segments); i++ {
		for _, prefix := range pathPrefixes {
			if segments[i] == prefix {
				return segments[i+1]
			}
		}
	}
	return ""
}

func validID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
