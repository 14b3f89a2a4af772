package links

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"buildvault/internal/logging"
	"buildvault/internal/services"
	"buildvault/internal/stage"
	"buildvault/internal/store"
)

const (
	DefaultEnrichLimit = 3

	defaultFetchTimeout = 30 * time.Second
	maxPageBytes        = 2 << 20
	maxPromptChars      = 3000
	summaryMaxTokens    = 120
	userAgent           = "Mozilla/5.0 (compatible; buildvault/1.0)"

	SummaryPrompt = "You describe web pages for a podcast show-notes index. Summarize the page in one or two sentences."
)

// EnrichStore is the slice of the datastore the enricher touches.
type EnrichStore interface {
	ListUnenrichedLinks(ctx context.Context, limit int) ([]store.Link, error)
	MarkLinkEnriched(ctx context.Context, id, description string) error
}

// Completer summarizes page text. It is optional.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error)
}

// Page is what the enricher reads from a fetched document.
type Page struct {
	Title       string
	Description string
	Text        string
}

// Enricher fetches pages behind unenriched links and records a description.
type Enricher struct {
	store     EnrichStore
	client    *http.Client
	completer Completer
	logger    *slog.Logger
}

// EnricherOption customizes an Enricher.
type EnricherOption func(*Enricher)

// WithHTTPClient overrides the page fetch client.
func WithHTTPClient(client *http.Client) EnricherOption {
	return func(e *Enricher) {
		if client != nil {
			e.client = client
		}
	}
}

// WithCompleter enables model-written page summaries.
func WithCompleter(c Completer) EnricherOption {
	return func(e *Enricher) {
		e.completer = c
	}
}

// NewEnricher constructs an enricher.
func NewEnricher(st EnrichStore, logger *slog.Logger, opts ...EnricherOption) *Enricher {
	e := &Enricher{
		store:  st,
		client: &http.Client{Timeout: defaultFetchTimeout},
		logger: logging.NewComponentLogger(logger, stage.Enrich),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich describes up to limit unenriched links and returns how many were
// marked enriched.
func (e *Enricher) Enrich(ctx context.Context, limit int) (int, stage.Result) {
	logger := logging.WithContext(ctx, e.logger)
	if limit <= 0 {
		limit = DefaultEnrichLimit
	}

	queue, err := e.store.ListUnenrichedLinks(ctx, limit)
	if err != nil {
		return 0, e.fail(logger, err)
	}
	if len(queue) == 0 {
		return 0, stage.Succeeded(stage.Enrich, 0, "no unenriched links")
	}

	enriched, fallbacks := 0, 0
	for _, link := range queue {
		if err := ctx.Err(); err != nil {
			return enriched, stage.Failed(stage.Enrich, err)
		}
		description, ok := e.describe(ctx, logger, link)
		if !ok {
			fallbacks++
		}
		if err := e.store.MarkLinkEnriched(ctx, link.ID, description); err != nil {
			return enriched, e.fail(logger, err)
		}
		enriched++
	}

	detail := ""
	if fallbacks > 0 {
		detail = fmt.Sprintf("%d of %d used the fallback description", fallbacks, len(queue))
	}
	logger.Info("links enriched",
		logging.Int(logging.FieldCount, enriched),
		logging.Int("fallbacks", fallbacks),
	)
	return enriched, stage.Succeeded(stage.Enrich, enriched, detail)
}

// describe returns the link description and whether it came from the page.
func (e *Enricher) describe(ctx context.Context, logger *slog.Logger, link store.Link) (string, bool) {
	page, err := e.Fetch(ctx, link.URL)
	if err != nil {
		logger.Debug("link fetch failed", logging.String("url", link.URL), logging.Error(err))
		return Fallback(link.Title), false
	}
	if e.completer != nil && page.Text != "" {
		prompt := fmt.Sprintf("Title: %s\nURL: %s\n\n%s", page.Title, link.URL, truncate(page.Text, maxPromptChars))
		text, err := e.completer.Complete(ctx, SummaryPrompt, prompt, summaryMaxTokens)
		if text = strings.TrimSpace(text); err == nil && text != "" {
			return text, true
		}
		if err != nil {
			logger.Debug("link summary failed", logging.String("url", link.URL), logging.Error(err))
		}
	}
	if page.Description != "" {
		return page.Description, true
	}
	if page.Title != "" {
		return "Resource about " + page.Title, true
	}
	return Fallback(link.Title), false
}

// Fetch downloads url and reads its title, description, and visible text.
func (e *Enricher) Fetch(ctx context.Context, url string) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return Page{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := e.client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("fetch page: unexpected status %d", resp.StatusCode)
	}
	return ParsePage(io.LimitReader(resp.Body, maxPageBytes))
}

// ParsePage extracts page metadata from HTML.
func ParsePage(r io.Reader) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Page{}, fmt.Errorf("parse html: %w", err)
	}
	page := Page{Title: clean(doc.Find("title").First().Text())}
	if og, ok := doc.Find("meta[property='og:title']").Attr("content"); ok && page.Title == "" {
		page.Title = clean(og)
	}
	if desc, ok := doc.Find("meta[name='description']").Attr("content"); ok {
		page.Description = clean(desc)
	}
	if page.Description == "" {
		if og, ok := doc.Find("meta[property='og:description']").Attr("content"); ok {
			page.Description = clean(og)
		}
	}
	doc.Find("script, style, noscript").Remove()
	page.Text = clean(doc.Find("body").Text())
	return page, nil
}

// Fallback is the description recorded when a page yields nothing usable.
func Fallback(title string) string {
	return fmt.Sprintf("Resource about %s (auto-enriched)", title)
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

func (e *Enricher) fail(logger *slog.Logger, err error) stage.Result {
	logging.WarnWithContext(logger, "link enrichment failed", logging.EventStageFailure,
		logging.String(logging.FieldErrorKind, services.Kind(err)),
		logging.Error(err),
	)
	return stage.Failed(stage.Enrich, err)
}
