package pipeline

import (
	"cmp"
	"context"
	"math"
	"slices"
	"time"

	"buildvault/internal/logging"
	"buildvault/internal/stage"
	"buildvault/internal/store"
)

// Rough per-unit API prices used for the run estimate.
const (
	TranscriptionCostPerSecond = 0.00025
	SummaryCost                = 0.015
	InsightCostPerSegment      = 0.009
)

// Report summarizes one run.
type Report struct {
	RunID          string         `json:"run_id"`
	DemoMode       bool           `json:"demo_mode"`
	AlreadyExisted bool           `json:"already_existed"`
	Episode        EpisodeView    `json:"episode"`
	Stages         []stage.Result `json:"stages"`
	Counts         Counts         `json:"counts"`
	Summary        string         `json:"summary,omitempty"`
	// Transcript holds the segments the transcript stage returned, which demo
	// mode caps.
	Transcript []SegmentView    `json:"transcript,omitempty"`
	Speakers   []SpeakerShare   `json:"speakers,omitempty"`
	Categories []CategoryCount  `json:"categories,omitempty"`
	Insights   []InsightView    `json:"insights,omitempty"`
	Products   []ProductMention `json:"products,omitempty"`
	Links      []LinkView       `json:"links,omitempty"`
	Cost       CostEstimate     `json:"cost"`
}

// EpisodeView is the report's episode header.
type EpisodeView struct {
	ID              string    `json:"id"`
	SourceID        string    `json:"source_id"`
	Title           string    `json:"title"`
	SourceURL       string    `json:"source_url"`
	Status          string    `json:"status"`
	DurationSeconds float64   `json:"duration_seconds"`
	PublishedAt     time.Time `json:"published_at"`
}

// Counts are the stored entity totals for the episode after the run.
type Counts struct {
	Segments int `json:"segments"`
	Groups   int `json:"groups"`
	Insights int `json:"insights"`
	Products int `json:"products"`
	Links    int `json:"links"`
	Enriched int `json:"enriched"`
}

// SegmentView is one transcript line.
type SegmentView struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
	Text    string  `json:"text"`
}

// SpeakerShare is one speaker's talk time.
type SpeakerShare struct {
	Speaker string  `json:"speaker"`
	Seconds float64 `json:"seconds"`
	Percent float64 `json:"percent"`
}

// CategoryCount is the number of insights in one category.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// InsightView is one reported insight.
type InsightView struct {
	Category   string  `json:"category"`
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
}

// ProductMention is a registry product linked to the episode.
type ProductMention struct {
	Name         string `json:"name"`
	Category     string `json:"category"`
	MentionCount int    `json:"mention_count"`
	Episodes     int    `json:"episodes"`
}

// LinkView is one stored episode link.
type LinkView struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Enriched    bool   `json:"enriched"`
}

// CostEstimate is a rough API spend estimate in US dollars.
type CostEstimate struct {
	Transcription float64 `json:"transcription"`
	Summary       float64 `json:"summary"`
	Insights      float64 `json:"insights"`
	Total         float64 `json:"total"`
}

// Failed returns the stages that failed.
func (r *Report) Failed() []stage.Result {
	var out []stage.Result
	for _, s := range r.Stages {
		if !s.OK() {
			out = append(out, s)
		}
	}
	return out
}

// Stage returns the result recorded for name.
func (r *Report) Stage(name string) (stage.Result, bool) {
	for _, s := range r.Stages {
		if s.Stage == name {
			return s, true
		}
	}
	return stage.Result{}, false
}

// populate fills the aggregate sections from the store. Read failures are
// logged and leave the affected section empty.
func (r *Runner) populate(ctx context.Context, report *Report, ep *store.Episode, found []store.Insight) {
	logger := logging.WithContext(ctx, r.logger)
	st := r.deps.Store

	if fresh, err := st.GetEpisode(ctx, ep.ID); err == nil {
		ep = fresh
	}
	report.Episode = EpisodeView{
		ID:              ep.ID,
		SourceID:        ep.SourceID,
		Title:           ep.Title,
		SourceURL:       ep.SourceURL,
		Status:          string(ep.Status),
		DurationSeconds: ep.DurationSeconds,
		PublishedAt:     ep.PublishedAt,
	}

	segments, err := st.ListSegments(ctx, ep.ID)
	if err != nil {
		logger.Warn("report: list segments failed", logging.Error(err))
	}
	report.Counts.Segments = len(segments)
	report.Counts.Groups = countGroups(segments)
	report.Speakers = SpeakerDistribution(segments)

	stored, err := st.ListInsights(ctx, ep.ID)
	if err != nil {
		logger.Warn("report: list insights failed", logging.Error(err))
		stored = found
	}
	report.Counts.Insights = len(stored)
	report.Categories = CategoryCounts(stored)
	shown := stored
	if limit := r.opts.demoLimit(r.opts.DemoMaxInsights); limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	for _, in := range shown {
		report.Insights = append(report.Insights, InsightView{
			Category:   string(in.Category),
			Content:    in.Content,
			Confidence: in.Confidence,
			Start:      in.SegmentStart,
			End:        in.SegmentEnd,
		})
	}

	mentioned, err := st.ListProductsForEpisode(ctx, ep.ID)
	if err != nil {
		logger.Warn("report: list products failed", logging.Error(err))
	}
	report.Counts.Products = len(mentioned)
	for _, p := range mentioned {
		report.Products = append(report.Products, ProductMention{
			Name:         p.Name,
			Category:     p.Category,
			MentionCount: p.MentionCount,
			Episodes:     len(p.EpisodeIDs),
		})
	}

	storedLinks, err := st.ListLinks(ctx, ep.ID)
	if err != nil {
		logger.Warn("report: list links failed", logging.Error(err))
	}
	report.Counts.Links = len(storedLinks)
	for _, l := range storedLinks {
		report.Links = append(report.Links, LinkView{URL: l.URL, Title: l.Title, Description: l.Description, Enriched: l.Enriched})
	}
	if res, ok := report.Stage(stage.Enrich); ok && res.Outcome == stage.OutcomeSuccess {
		report.Counts.Enriched = res.Count
	}

	analyzed := len(segments)
	if limit := r.opts.demoLimit(r.opts.InsightSegmentLimit); limit > 0 {
		analyzed = min(analyzed, limit)
	}
	report.Cost = EstimateCost(audioSeconds(ep, segments), analyzed)
}

// SpeakerDistribution totals talk time per speaker, largest first.
func SpeakerDistribution(segments []store.Segment) []SpeakerShare {
	totals := map[string]float64{}
	var sum float64
	for _, seg := range segments {
		d := seg.Duration()
		totals[seg.Speaker] += d
		sum += d
	}
	if sum == 0 {
		return nil
	}
	out := make([]SpeakerShare, 0, len(totals))
	for speaker, secs := range totals {
		out = append(out, SpeakerShare{Speaker: speaker, Seconds: round(secs, 1), Percent: round(secs/sum*100, 1)})
	}
	slices.SortFunc(out, func(a, b SpeakerShare) int {
		if c := cmp.Compare(b.Seconds, a.Seconds); c != 0 {
			return c
		}
		return cmp.Compare(a.Speaker, b.Speaker)
	})
	return out
}

// CategoryCounts counts insights per category in display order.
func CategoryCounts(items []store.Insight) []CategoryCount {
	counts := map[store.Category]int{}
	for _, in := range items {
		counts[in.Category]++
	}
	var out []CategoryCount
	for _, c := range store.Categories() {
		if n := counts[c]; n > 0 {
			out = append(out, CategoryCount{Category: string(c), Count: n})
		}
	}
	return out
}

// EstimateCost prices a run from audio length and analyzed segment count.
func EstimateCost(audioSeconds float64, analyzedSegments int) CostEstimate {
	c := CostEstimate{
		Transcription: TranscriptionCostPerSecond * audioSeconds,
		Summary:       SummaryCost,
		Insights:      InsightCostPerSegment * float64(analyzedSegments),
	}
	c.Total = c.Transcription + c.Summary + c.Insights
	return c
}

func audioSeconds(ep *store.Episode, segments []store.Segment) float64 {
	if ep.DurationSeconds > 0 {
		return ep.DurationSeconds
	}
	var end float64
	for _, seg := range segments {
		end = max(end, seg.EndTime)
	}
	return end
}

func countGroups(segments []store.Segment) int {
	seen := map[string]struct{}{}
	for _, seg := range segments {
		if seg.GroupID != "" {
			seen[seg.GroupID] = struct{}{}
		}
	}
	return len(seen)
}

func segmentViews(segments []store.Segment) []SegmentView {
	if len(segments) == 0 {
		return nil
	}
	out := make([]SegmentView, len(segments))
	for i, seg := range segments {
		out[i] = SegmentView{Start: seg.StartTime, End: seg.EndTime, Speaker: seg.Speaker, Text: seg.Text()}
	}
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
