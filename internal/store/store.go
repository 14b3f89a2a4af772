package store

import (
	"context"
)

// EpisodeStore persists episodes.
type EpisodeStore interface {
	CreateEpisode(ctx context.Context, ep *Episode) error
	// GetEpisode returns an error marked services.ErrNotFound when absent.
	GetEpisode(ctx context.Context, id string) (*Episode, error)
	// FindEpisodeBySource returns nil, nil when no episode has the source ID.
	FindEpisodeBySource(ctx context.Context, sourceID string) (*Episode, error)
	// AdvanceEpisodeStatus moves the episode forward to status. Earlier
	// statuses are ignored so re-running a stage never regresses progress.
	AdvanceEpisodeStatus(ctx context.Context, id string, status Status) error
	MarkEpisodeProcessed(ctx context.Context, id string) error
	UpdateEpisodeSummary(ctx context.Context, id, summary string) error
}

// SegmentStore persists transcript segments.
type SegmentStore interface {
	InsertSegments(ctx context.Context, segments []Segment) error
	// ListSegments returns the episode's segments ordered by start time.
	ListSegments(ctx context.Context, episodeID string) ([]Segment, error)
	// AssignSegmentGroup fails with services.ErrCapabilityGap when the schema
	// has no group column.
	AssignSegmentGroup(ctx context.Context, groupID string, segmentIDs []string) error
	// DeleteSegments removes the episode's segments before a forced recompute.
	DeleteSegments(ctx context.Context, episodeID string) error
}

// InsightStore persists insights.
type InsightStore interface {
	InsertInsights(ctx context.Context, insights []Insight) error
	ListInsights(ctx context.Context, episodeID string) ([]Insight, error)
	DeleteInsights(ctx context.Context, episodeID string) error
}

// ProductStore persists the product registry.
type ProductStore interface {
	// GetProduct returns nil, nil when the product is not registered.
	GetProduct(ctx context.Context, name string) (*Product, error)
	InsertProduct(ctx context.Context, p *Product) error
	UpdateProduct(ctx context.Context, p *Product) error
	ListProducts(ctx context.Context) ([]Product, error)
	ListProductsForEpisode(ctx context.Context, episodeID string) ([]Product, error)
}

// LinkStore persists episode links.
type LinkStore interface {
	InsertLinks(ctx context.Context, links []Link) error
	ListLinks(ctx context.Context, episodeID string) ([]Link, error)
	// ListUnenrichedLinks returns up to limit unenriched links across all
	// episodes, oldest first.
	ListUnenrichedLinks(ctx context.Context, limit int) ([]Link, error)
	MarkLinkEnriched(ctx context.Context, id, description string) error
	DeleteLinks(ctx context.Context, episodeID string) error
}

// Store is the full datastore collaborator.
type Store interface {
	EpisodeStore
	SegmentStore
	InsightStore
	ProductStore
	LinkStore
	Capabilities() Capabilities
	Ping(ctx context.Context) error
	Close() error
}
