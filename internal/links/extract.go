package links

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"buildvault/internal/logging"
	"buildvault/internal/services"
	"buildvault/internal/stage"
	"buildvault/internal/store"
)

var urlPattern = regexp.MustCompile("https?://[^\\s<>\"{}|\\\\^`\\[\\]]+")

const trailingPunctuation = ".,;:)"

// ExtractStore is the slice of the datastore the extractor touches.
type ExtractStore interface {
	ListLinks(ctx context.Context, episodeID string) ([]store.Link, error)
	InsertLinks(ctx context.Context, links []store.Link) error
	DeleteLinks(ctx context.Context, episodeID string) error
}

// Options controls an Extract call.
type Options struct {
	SkipExisting bool
}

// Extractor turns episode descriptions into stored links.
type Extractor struct {
	store  ExtractStore
	logger *slog.Logger
}

// NewExtractor constructs an extractor.
func NewExtractor(st ExtractStore, logger *slog.Logger) *Extractor {
	return &Extractor{
		store:  st,
		logger: logging.NewComponentLogger(logger, stage.Links),
	}
}

// Extract stores the links found in the episode description.
func (x *Extractor) Extract(ctx context.Context, ep *store.Episode, opts Options) ([]store.Link, stage.Result) {
	logger := logging.WithContext(ctx, x.logger)

	existing, err := x.store.ListLinks(ctx, ep.ID)
	if err != nil {
		return nil, x.fail(logger, err)
	}
	if len(existing) > 0 && opts.SkipExisting {
		return existing, stage.Skipped(stage.Links, len(existing), "links exist")
	}

	// A recompute keeps what enrichment already learned about URLs that are
	// still in the description.
	previous := make(map[string]store.Link, len(existing))
	for _, l := range existing {
		previous[l.URL] = l
	}

	urls := FindURLs(ep.Description)
	out := make([]store.Link, 0, len(urls))
	for _, u := range urls {
		if prior, ok := previous[u]; ok {
			out = append(out, prior)
			continue
		}
		out = append(out, store.Link{
			ID:          uuid.NewString(),
			EpisodeID:   ep.ID,
			URL:         u,
			Title:       Host(u),
			Description: "Link from " + ep.Title,
			LinkType:    store.LinkTypeResource,
		})
	}

	if len(existing) > 0 {
		if err := x.store.DeleteLinks(ctx, ep.ID); err != nil {
			return nil, x.fail(logger, err)
		}
	}
	if len(out) == 0 {
		return nil, stage.Succeeded(stage.Links, 0, "no links in description")
	}
	if err := x.store.InsertLinks(ctx, out); err != nil {
		return nil, x.fail(logger, err)
	}

	logger.Info("links stored", logging.Int(logging.FieldCount, len(out)))
	return out, stage.Succeeded(stage.Links, len(out), "")
}

// FindURLs returns the http(s) URLs in text in order of appearance, with
// trailing punctuation removed and duplicates collapsed.
func FindURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.TrimRight(m, trailingPunctuation)
		if _, dup := seen[m]; dup || !strings.Contains(m, "://") || strings.HasSuffix(m, "://") {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// Host returns the URL host without a leading "www.".
func Host(raw string) string {
	host := ""
	if parsed, err := url.Parse(raw); err == nil {
		host = parsed.Hostname()
	}
	if host == "" {
		parts := strings.Split(raw, "/")
		if len(parts) > 2 {
			host = parts[2]
		} else {
			host = raw
		}
	}
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

func (x *Extractor) fail(logger *slog.Logger, err error) stage.Result {
	logging.WarnWithContext(logger, "link extraction failed", logging.EventStageFailure,
		logging.String(logging.FieldErrorKind, services.Kind(err)),
		logging.Error(err),
	)
	return stage.Failed(stage.Links, err)
}
