package supabase

import (
	"time"

	"buildvault/internal/store"
)

const (
	tableEpisodes = "podcast_episodes"
	tableSegments = "segments"
	tableInsights = "insights"
	tableProducts = "products"
	tableLinks    = "episode_links"
)

type episodeRow struct {
	ID            string  `json:"id"`
	SourceID      string  `json:"youtube_video_id"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Duration      float64 `json:"duration"`
	SourceURL     string  `json:"youtube_url"`
	PublishedAt   *string `json:"published_at"`
	Status        string  `json:"status"`
	IsProcessed   bool    `json:"is_processed"`
	Summary       *string `json:"summary"`
	AudioFilePath *string `json:"audio_file_path"`
	CreatedAt     *string `json:"created_at,omitempty"`
	UpdatedAt     *string `json:"updated_at,omitempty"`
}

func toEpisodeRow(ep *store.Episode) episodeRow {
	return episodeRow{
		ID:            ep.ID,
		SourceID:      ep.SourceID,
		Title:         ep.Title,
		Description:   ep.Description,
		Duration:      ep.DurationSeconds,
		SourceURL:     ep.SourceURL,
		PublishedAt:   timePtr(ep.PublishedAt),
		Status:        string(ep.Status),
		IsProcessed:   ep.IsProcessed,
		Summary:       strPtr(ep.Summary),
		AudioFilePath: strPtr(ep.AudioPath),
	}
}

func (r episodeRow) episode() *store.Episode {
	return &store.Episode{
		ID:              r.ID,
		SourceID:        r.SourceID,
		Title:           r.Title,
		Description:     r.Description,
		DurationSeconds: r.Duration,
		SourceURL:       r.SourceURL,
		PublishedAt:     parseTime(r.PublishedAt),
		Status:          store.Status(r.Status),
		IsProcessed:     r.IsProcessed,
		Summary:         deref(r.Summary),
		AudioPath:       deref(r.AudioFilePath),
		CreatedAt:       parseTime(r.CreatedAt),
		UpdatedAt:       parseTime(r.UpdatedAt),
	}
}

type segmentRow struct {
	ID           string  `json:"id"`
	EpisodeID    string  `json:"episode_id"`
	StartTime    float64 `json:"start_time"`
	EndTime      float64 `json:"end_time"`
	Speaker      string  `json:"speaker"`
	RawText      string  `json:"raw_text"`
	DisplayText  string  `json:"display_text"`
	Confidence   float64 `json:"confidence"`
	Duration     float64 `json:"duration"`
	SegmentType  string  `json:"segment_type"`
	AIEnhanced   bool    `json:"ai_enhanced"`
	SegmentGroup *string `json:"segment_group,omitempty"`
}

type insightRow struct {
	ID           string  `json:"id"`
	EpisodeID    string  `json:"episode_id"`
	Category     string  `json:"category"`
	Content      string  `json:"content"`
	Confidence   float64 `json:"confidence_score"`
	SegmentStart float64 `json:"segment_start"`
	SegmentEnd   float64 `json:"segment_end"`
	CreatedAt    *string `json:"created_at,omitempty"`
}

type productRow struct {
	Name            string         `json:"name"`
	Category        string         `json:"category"`
	Description     string         `json:"description"`
	MentionCount    int            `json:"mention_count"`
	EpisodeIDs      []string       `json:"episode_ids"`
	EpisodeMentions map[string]int `json:"episode_mentions"`
	UpdatedAt       *string        `json:"updated_at,omitempty"`
}

type linkRow struct {
	ID          string  `json:"id"`
	EpisodeID   string  `json:"episode_id"`
	URL         string  `json:"url"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	LinkType    string  `json:"link_type"`
	Enriched    bool    `json:"enriched"`
	CreatedAt   *string `json:"created_at,omitempty"`
}

func timePtr(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}

func parseTime(s *string) time.Time {
	if s == nil || *s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, *s); err == nil {
		return t
	}
	return time.Time{}
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
