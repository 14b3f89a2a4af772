package store

import (
	"slices"
	"strings"
	"time"
)

// Status represents the lifecycle of an episode.
type Status string

const (
	StatusDownloaded  Status = "downloaded"
	StatusTranscribed Status = "transcribed"
	StatusProcessed   Status = "processed"
	StatusSummarized  Status = "summarized"
	StatusAnalyzed    Status = "analyzed"
)

var statusOrder = []Status{
	StatusDownloaded,
	StatusTranscribed,
	StatusProcessed,
	StatusSummarized,
	StatusAnalyzed,
}

// Rank returns the position of s in the lifecycle, or -1 when unknown.
func (s Status) Rank() int {
	return slices.Index(statusOrder, s)
}

// Valid reports whether s is a known lifecycle status.
func (s Status) Valid() bool {
	return s.Rank() >= 0
}

// Before reports whether s precedes other in the lifecycle. Unknown statuses
// sort before every known one.
func (s Status) Before(other Status) bool {
	return s.Rank() < other.Rank()
}

// ParseStatus converts a persisted value into a Status.
func ParseStatus(value string) (Status, bool) {
	s := Status(strings.ToLower(strings.TrimSpace(value)))
	return s, s.Valid()
}

// SegmentTypeUtterance marks segments produced from diarized utterances.
const SegmentTypeUtterance = "speaker_utterance"

// LinkTypeResource is the default link classification.
const LinkTypeResource = "resource"

// Episode is one processed podcast or video unit.
type Episode struct {
	ID              string
	SourceID        string
	Title           string
	Description     string
	DurationSeconds float64
	SourceURL       string
	PublishedAt     time.Time
	Status          Status
	IsProcessed     bool
	Summary         string
	AudioPath       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Segment is one speaker-attributed, time-bounded transcript unit.
type Segment struct {
	ID          string
	EpisodeID   string
	StartTime   float64
	EndTime     float64
	Speaker     string
	RawText     string
	DisplayText string
	Confidence  float64
	GroupID     string
	AIEnhanced  bool
	SegmentType string
}

// Text returns the normalized segment text.
func (s Segment) Text() string {
	if text := strings.TrimSpace(s.DisplayText); text != "" {
		return text
	}
	return strings.TrimSpace(s.RawText)
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	if s.EndTime <= s.StartTime {
		return 0
	}
	return s.EndTime - s.StartTime
}

// SortSegments orders segments by start time, then end time, then ID.
func SortSegments(segments []Segment) {
	slices.SortStableFunc(segments, func(a, b Segment) int {
		switch {
		case a.StartTime < b.StartTime:
			return -1
		case a.StartTime > b.StartTime:
			return 1
		case a.EndTime < b.EndTime:
			return -1
		case a.EndTime > b.EndTime:
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
}

// Insight is one categorized observation derived from a batch of segments.
type Insight struct {
	ID           string
	EpisodeID    string
	Category     Category
	Content      string
	Confidence   float64
	SegmentStart float64
	SegmentEnd   float64
	CreatedAt    time.Time
}

// Product is a known tool or platform referenced in insights.
//
// EpisodeMentions records how many of MentionCount's occurrences each episode
// contributed, so re-reconciling an episode replaces its contribution instead
// of adding to it.
type Product struct {
	Name            string
	Category        string
	Description     string
	MentionCount    int
	EpisodeIDs      []string
	EpisodeMentions map[string]int
	UpdatedAt       time.Time
}

// Link is a hyperlink found in an episode description.
type Link struct {
	ID          string
	EpisodeID   string
	URL         string
	Title       string
	Description string
	LinkType    string
	Enriched    bool
	CreatedAt   time.Time
}

// UnionIDs merges b into a, returning a sorted slice without duplicates or
// blanks.
func UnionIDs(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	for _, id := range a {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	for _, id := range b {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// ClampConfidence bounds a confidence score to [0,1].
func ClampConfidence(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Transcript renders segments as "Speaker: text" lines.
func Transcript(segments []Segment) string {
	var b strings.Builder
	for i, seg := range segments {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(seg.Speaker)
		b.WriteString(": ")
		b.WriteString(seg.Text())
	}
	return b.String()
}

// Batches splits segments into consecutive runs of at most size elements.
func Batches(segments []Segment, size int) [][]Segment {
	if size <= 0 || len(segments) == 0 {
		return nil
	}
	out := make([][]Segment, 0, (len(segments)+size-1)/size)
	for start := 0; start < len(segments); start += size {
		out = append(out, segments[start:min(start+size, len(segments))])
	}
	return out
}
