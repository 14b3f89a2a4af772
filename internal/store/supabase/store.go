package supabase

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	postgrest "github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"

	"buildvault/internal/services"
	"buildvault/internal/store"
)

// tableClient is the subset of the Supabase client the store uses.
type tableClient interface {
	From(table string) *postgrest.QueryBuilder
}

// Store implements store.Store against Supabase.
type Store struct {
	client tableClient
	caps   store.Capabilities
}

var _ store.Store = (*Store)(nil)

// Open builds a Supabase-backed store.
func Open(url, key string, schemaVersion int) (*Store, error) {
	caps, err := store.CapabilitiesFor(schemaVersion)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "store", "open supabase", "schema version", err)
	}
	client, err := supa.NewClient(url, key, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "store", "open supabase", "", err)
	}
	return &Store{client: client, caps: caps}, nil
}

// Capabilities reports the declared schema features.
func (s *Store) Capabilities() store.Capabilities { return s.caps }

// Close is a no-op; the REST client holds no persistent connection.
func (s *Store) Close() error { return nil }

// Ping issues a cheap read against the episodes table.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var rows []episodeRow
	if _, err := s.client.From(tableEpisodes).Select("id", "", false).Limit(1, "").ExecuteTo(&rows); err != nil {
		return storeErr("ping", err)
	}
	return nil
}

func storeErr(op string, err error) error {
	return services.Wrap(services.ErrStore, "supabase", op, "", err)
}

// pageSize stays under PostgREST's default max-rows cap so a short page
// always means the end of the result.
const pageSize = 500

// fetchPages walks query in pageSize windows until a short page comes back.
func fetchPages[T any](ctx context.Context, query func(from, to int) *postgrest.FilterBuilder) ([]T, error) {
	var out []T
	for from := 0; ; from += pageSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var page []T
		if _, err := query(from, from+pageSize-1).ExecuteTo(&page); err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < pageSize {
			return out, nil
		}
	}
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// CreateEpisode inserts a new episode row.
func (s *Store) CreateEpisode(ctx context.Context, ep *store.Episode) error {
	if ep == nil || ep.ID == "" || ep.SourceID == "" {
		return services.Wrap(services.ErrValidation, "supabase", "create episode", "id and source id required", nil)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if ep.Status == "" {
		ep.Status = store.StatusDownloaded
	}
	row := toEpisodeRow(ep)
	stamp := nowStamp()
	row.CreatedAt, row.UpdatedAt = &stamp, &stamp
	if _, _, err := s.client.From(tableEpisodes).Insert(row, false, "", "minimal", "").Execute(); err != nil {
		return storeErr("create episode", err)
	}
	ep.CreatedAt = parseTime(&stamp)
	ep.UpdatedAt = ep.CreatedAt
	return nil
}

func (s *Store) selectEpisode(ctx context.Context, column, value string) (*store.Episode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []episodeRow
	if _, err := s.client.From(tableEpisodes).Select("*", "", false).Eq(column, value).Limit(1, "").ExecuteTo(&rows); err != nil {
		return nil, storeErr("select episode", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].episode(), nil
}

// GetEpisode fetches an episode by ID.
func (s *Store) GetEpisode(ctx context.Context, id string) (*store.Episode, error) {
	ep, err := s.selectEpisode(ctx, "id", id)
	if err != nil {
		return nil, err
	}
	if ep == nil {
		return nil, services.Wrap(services.ErrNotFound, "supabase", "get episode", fmt.Sprintf("episode %s", id), nil)
	}
	return ep, nil
}

// FindEpisodeBySource looks up an episode by video ID.
func (s *Store) FindEpisodeBySource(ctx context.Context, sourceID string) (*store.Episode, error) {
	return s.selectEpisode(ctx, "youtube_video_id", sourceID)
}

// AdvanceEpisodeStatus moves status forward only; the status filter makes
// the update conditional on the stored value.
func (s *Store) AdvanceEpisodeStatus(ctx context.Context, id string, status store.Status) error {
	if !status.Valid() {
		return services.Wrap(services.ErrValidation, "supabase", "advance status", fmt.Sprintf("unknown status %q", status), nil)
	}
	if _, err := s.GetEpisode(ctx, id); err != nil {
		return err
	}
	var earlier []string
	for _, st := range []store.Status{store.StatusDownloaded, store.StatusTranscribed, store.StatusProcessed, store.StatusSummarized} {
		if st.Before(status) {
			earlier = append(earlier, string(st))
		}
	}
	if len(earlier) == 0 {
		return nil
	}
	update := map[string]any{"status": string(status), "updated_at": nowStamp()}
	if _, _, err := s.client.From(tableEpisodes).Update(update, "minimal", "").Eq("id", id).In("status", earlier).Execute(); err != nil {
		return storeErr("advance status", err)
	}
	return nil
}

// MarkEpisodeProcessed sets the processed flag and advances status.
func (s *Store) MarkEpisodeProcessed(ctx context.Context, id string) error {
	if _, err := s.GetEpisode(ctx, id); err != nil {
		return err
	}
	update := map[string]any{"is_processed": true, "updated_at": nowStamp()}
	if _, _, err := s.client.From(tableEpisodes).Update(update, "minimal", "").Eq("id", id).Execute(); err != nil {
		return storeErr("mark processed", err)
	}
	return s.AdvanceEpisodeStatus(ctx, id, store.StatusProcessed)
}

// UpdateEpisodeSummary persists the generated summary.
func (s *Store) UpdateEpisodeSummary(ctx context.Context, id, summary string) error {
	if _, err := s.GetEpisode(ctx, id); err != nil {
		return err
	}
	update := map[string]any{"summary": summary, "updated_at": nowStamp()}
	if _, _, err := s.client.From(tableEpisodes).Update(update, "minimal", "").Eq("id", id).Execute(); err != nil {
		return storeErr("update summary", err)
	}
	return nil
}

// InsertSegments bulk-inserts segments in one request.
func (s *Store) InsertSegments(ctx context.Context, segments []store.Segment) error {
	if len(segments) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	rows := make([]segmentRow, 0, len(segments))
	for _, seg := range segments {
		row := segmentRow{
			ID:          seg.ID,
			EpisodeID:   seg.EpisodeID,
			StartTime:   seg.StartTime,
			EndTime:     seg.EndTime,
			Speaker:     seg.Speaker,
			RawText:     seg.RawText,
			DisplayText: seg.DisplayText,
			Confidence:  seg.Confidence,
			Duration:    seg.Duration(),
			SegmentType: seg.SegmentType,
			AIEnhanced:  seg.AIEnhanced,
		}
		if s.caps.SegmentGroups {
			row.SegmentGroup = strPtr(seg.GroupID)
		}
		rows = append(rows, row)
	}
	if _, _, err := s.client.From(tableSegments).Insert(rows, false, "", "minimal", "").Execute(); err != nil {
		return storeErr("insert segments", err)
	}
	return nil
}

// ListSegments returns segments ordered by start time.
func (s *Store) ListSegments(ctx context.Context, episodeID string) ([]store.Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := fetchPages[segmentRow](ctx, func(from, to int) *postgrest.FilterBuilder {
		return s.client.From(tableSegments).Select("*", "", false).
			Eq("episode_id", episodeID).
			Order("start_time", &postgrest.OrderOpts{Ascending: true}).
			Range(from, to, "")
	})
	if err != nil {
		return nil, storeErr("list segments", err)
	}
	out := make([]store.Segment, 0, len(rows))
	for _, r := range rows {
		seg := store.Segment{
			ID:          r.ID,
			EpisodeID:   r.EpisodeID,
			StartTime:   r.StartTime,
			EndTime:     r.EndTime,
			Speaker:     r.Speaker,
			RawText:     r.RawText,
			DisplayText: r.DisplayText,
			Confidence:  r.Confidence,
			AIEnhanced:  r.AIEnhanced,
			SegmentType: r.SegmentType,
		}
		if s.caps.SegmentGroups {
			seg.GroupID = deref(r.SegmentGroup)
		}
		out = append(out, seg)
	}
	store.SortSegments(out)
	return out, nil
}

// AssignSegmentGroup stamps groupID on the listed segments.
func (s *Store) AssignSegmentGroup(ctx context.Context, groupID string, segmentIDs []string) error {
	if !s.caps.SegmentGroups {
		return services.Wrap(services.ErrCapabilityGap, "supabase", "assign segment group", "schema has no segment_group column", nil)
	}
	if len(segmentIDs) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	update := map[string]any{"segment_group": groupID}
	if _, _, err := s.client.From(tableSegments).Update(update, "minimal", "").In("id", segmentIDs).Execute(); err != nil {
		return storeErr("assign segment group", err)
	}
	return nil
}

// InsertInsights bulk-inserts insights.
func (s *Store) InsertInsights(ctx context.Context, insights []store.Insight) error {
	if len(insights) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	stamp := nowStamp()
	rows := make([]insightRow, 0, len(insights))
	for _, in := range insights {
		rows = append(rows, insightRow{
			ID:           in.ID,
			EpisodeID:    in.EpisodeID,
			Category:     string(in.Category),
			Content:      in.Content,
			Confidence:   in.Confidence,
			SegmentStart: in.SegmentStart,
			SegmentEnd:   in.SegmentEnd,
			CreatedAt:    &stamp,
		})
	}
	if _, _, err := s.client.From(tableInsights).Insert(rows, false, "", "minimal", "").Execute(); err != nil {
		return storeErr("insert insights", err)
	}
	return nil
}

// ListInsights returns insights ordered by segment start.
func (s *Store) ListInsights(ctx context.Context, episodeID string) ([]store.Insight, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := fetchPages[insightRow](ctx, func(from, to int) *postgrest.FilterBuilder {
		return s.client.From(tableInsights).Select("*", "", false).
			Eq("episode_id", episodeID).
			Order("segment_start", &postgrest.OrderOpts{Ascending: true}).
			Range(from, to, "")
	})
	if err != nil {
		return nil, storeErr("list insights", err)
	}
	out := make([]store.Insight, 0, len(rows))
	for _, r := range rows {
		category, _ := store.ParseCategory(r.Category)
		out = append(out, store.Insight{
			ID:           r.ID,
			EpisodeID:    r.EpisodeID,
			Category:     category,
			Content:      r.Content,
			Confidence:   r.Confidence,
			SegmentStart: r.SegmentStart,
			SegmentEnd:   r.SegmentEnd,
			CreatedAt:    parseTime(r.CreatedAt),
		})
	}
	return out, nil
}

func (r productRow) product() store.Product {
	mentions := r.EpisodeMentions
	if mentions == nil {
		mentions = map[string]int{}
	}
	return store.Product{
		Name:            r.Name,
		Category:        r.Category,
		Description:     r.Description,
		MentionCount:    r.MentionCount,
		EpisodeIDs:      store.UnionIDs(r.EpisodeIDs, nil),
		EpisodeMentions: mentions,
		UpdatedAt:       parseTime(r.UpdatedAt),
	}
}

func toProductRow(p *store.Product) productRow {
	stamp := nowStamp()
	mentions := p.EpisodeMentions
	if mentions == nil {
		mentions = map[string]int{}
	}
	return productRow{
		Name:            p.Name,
		Category:        p.Category,
		Description:     p.Description,
		MentionCount:    p.MentionCount,
		EpisodeIDs:      store.UnionIDs(p.EpisodeIDs, nil),
		EpisodeMentions: mentions,
		UpdatedAt:       &stamp,
	}
}

// GetProduct returns the product or nil when absent.
func (s *Store) GetProduct(ctx context.Context, name string) (*store.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []productRow
	if _, err := s.client.From(tableProducts).Select("*", "", false).Eq("name", name).Limit(1, "").ExecuteTo(&rows); err != nil {
		return nil, storeErr("get product", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	p := rows[0].product()
	return &p, nil
}

// InsertProduct registers a new product.
func (s *Store) InsertProduct(ctx context.Context, p *store.Product) error {
	if p == nil || p.Name == "" {
		return services.Wrap(services.ErrValidation, "supabase", "insert product", "name required", nil)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, _, err := s.client.From(tableProducts).Insert(toProductRow(p), false, "", "minimal", "").Execute(); err != nil {
		return storeErr("insert product", err)
	}
	return nil
}

// UpdateProduct overwrites the mutable registry fields.
func (s *Store) UpdateProduct(ctx context.Context, p *store.Product) error {
	if p == nil || p.Name == "" {
		return services.Wrap(services.ErrValidation, "supabase", "update product", "name required", nil)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	row := toProductRow(p)
	update := map[string]any{
		"category":         row.Category,
		"description":      row.Description,
		"mention_count":    row.MentionCount,
		"episode_ids":      row.EpisodeIDs,
		"episode_mentions": row.EpisodeMentions,
		"updated_at":       row.UpdatedAt,
	}
	if _, _, err := s.client.From(tableProducts).Update(update, "minimal", "").Eq("name", p.Name).Execute(); err != nil {
		return storeErr("update product", err)
	}
	return nil
}

// ListProducts returns the registry ordered by mention count.
func (s *Store) ListProducts(ctx context.Context) ([]store.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []productRow
	if _, err := s.client.From(tableProducts).Select("*", "", false).
		Order("mention_count", &postgrest.OrderOpts{Ascending: false}).
		ExecuteTo(&rows); err != nil {
		return nil, storeErr("list products", err)
	}
	out := make([]store.Product, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.product())
	}
	return out, nil
}

// ListProductsForEpisode returns products whose episode set contains episodeID.
func (s *Store) ListProductsForEpisode(ctx context.Context, episodeID string) ([]store.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []productRow
	if _, err := s.client.From(tableProducts).Select("*", "", false).
		Contains("episode_ids", []string{episodeID}).
		ExecuteTo(&rows); err != nil {
		return nil, storeErr("list products for episode", err)
	}
	out := make([]store.Product, 0, len(rows))
	for _, r := range rows {
		p := r.product()
		if slices.Contains(p.EpisodeIDs, episodeID) {
			out = append(out, p)
		}
	}
	return out, nil
}

// InsertLinks bulk-inserts links.
func (s *Store) InsertLinks(ctx context.Context, links []store.Link) error {
	if len(links) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now().UTC()
	rows := make([]linkRow, 0, len(links))
	for i, l := range links {
		linkType := l.LinkType
		if linkType == "" {
			linkType = store.LinkTypeResource
		}
		created := now.Add(time.Duration(i) * time.Microsecond).Format(time.RFC3339Nano)
		rows = append(rows, linkRow{
			ID:          l.ID,
			EpisodeID:   l.EpisodeID,
			URL:         l.URL,
			Title:       l.Title,
			Description: l.Description,
			LinkType:    linkType,
			Enriched:    l.Enriched,
			CreatedAt:   &created,
		})
	}
	if _, _, err := s.client.From(tableLinks).Insert(rows, false, "", "minimal", "").Execute(); err != nil {
		return storeErr("insert links", err)
	}
	return nil
}

func linksFromRows(rows []linkRow) []store.Link {
	out := make([]store.Link, 0, len(rows))
	for _, r := range rows {
		out = append(out, store.Link{
			ID:          r.ID,
			EpisodeID:   r.EpisodeID,
			URL:         r.URL,
			Title:       r.Title,
			Description: r.Description,
			LinkType:    r.LinkType,
			Enriched:    r.Enriched,
			CreatedAt:   parseTime(r.CreatedAt),
		})
	}
	return out
}

// ListLinks returns an episode's links in insertion order.
func (s *Store) ListLinks(ctx context.Context, episodeID string) ([]store.Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []linkRow
	if _, err := s.client.From(tableLinks).Select("*", "", false).
		Eq("episode_id", episodeID).
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		ExecuteTo(&rows); err != nil {
		return nil, storeErr("list links", err)
	}
	return linksFromRows(rows), nil
}

// ListUnenrichedLinks returns up to limit unenriched links, oldest first.
func (s *Store) ListUnenrichedLinks(ctx context.Context, limit int) ([]store.Link, error) {
	if limit <= 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []linkRow
	if _, err := s.client.From(tableLinks).Select("*", "", false).
		Eq("enriched", strconv.FormatBool(false)).
		Order("created_at", &postgrest.OrderOpts{Ascending: true}).
		Limit(limit, "").
		ExecuteTo(&rows); err != nil {
		return nil, storeErr("list unenriched links", err)
	}
	return linksFromRows(rows), nil
}

// MarkLinkEnriched records the enrichment description.
func (s *Store) MarkLinkEnriched(ctx context.Context, id, description string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	update := map[string]any{"enriched": true, "description": description}
	if _, _, err := s.client.From(tableLinks).Update(update, "minimal", "").Eq("id", id).Execute(); err != nil {
		return storeErr("mark link enriched", err)
	}
	return nil
}

func (s *Store) deleteByEpisode(ctx context.Context, table, op, episodeID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, _, err := s.client.From(table).Delete("minimal", "").Eq("episode_id", episodeID).Execute(); err != nil {
		return storeErr(op, err)
	}
	return nil
}

// DeleteSegments removes every segment of the episode.
func (s *Store) DeleteSegments(ctx context.Context, episodeID string) error {
	return s.deleteByEpisode(ctx, tableSegments, "delete segments", episodeID)
}

// DeleteInsights removes every insight of the episode.
func (s *Store) DeleteInsights(ctx context.Context, episodeID string) error {
	return s.deleteByEpisode(ctx, tableInsights, "delete insights", episodeID)
}

// DeleteLinks removes every link of the episode.
func (s *Store) DeleteLinks(ctx context.Context, episodeID string) error {
	return s.deleteByEpisode(ctx, tableLinks, "delete links", episodeID)
}
