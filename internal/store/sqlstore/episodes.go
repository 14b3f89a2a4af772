package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"buildvault/internal/services"
	"buildvault/internal/store"
)

const episodeColumns = "id, source_id, title, description, duration_seconds, source_url, published_at, status, is_processed, summary, audio_file_path, created_at, updated_at"

func scanEpisode(scanner interface{ Scan(dest ...any) error }) (*store.Episode, error) {
	var (
		ep          store.Episode
		publishedAt sql.NullString
		status      string
		summary     sql.NullString
		audioPath   sql.NullString
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
	)
	if err := scanner.Scan(
		&ep.ID,
		&ep.SourceID,
		&ep.Title,
		&ep.Description,
		&ep.DurationSeconds,
		&ep.SourceURL,
		&publishedAt,
		&status,
		&ep.IsProcessed,
		&summary,
		&audioPath,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	ep.PublishedAt = parseTime(publishedAt)
	ep.Status = store.Status(status)
	ep.Summary = summary.String
	ep.AudioPath = audioPath.String
	ep.CreatedAt = parseTime(createdRaw)
	ep.UpdatedAt = parseTime(updatedRaw)
	return &ep, nil
}

// CreateEpisode inserts a new episode row. CreatedAt/UpdatedAt are stamped.
func (s *Store) CreateEpisode(ctx context.Context, ep *store.Episode) error {
	if ep == nil || ep.ID == "" || ep.SourceID == "" {
		return services.Wrap(services.ErrValidation, "store", "create episode", "id and source id required", nil)
	}
	now, stamp := nowStamp()
	if ep.Status == "" {
		ep.Status = store.StatusDownloaded
	}
	_, err := s.exec(ctx,
		`INSERT INTO episodes (`+episodeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ep.ID,
		ep.SourceID,
		ep.Title,
		ep.Description,
		ep.DurationSeconds,
		ep.SourceURL,
		nullableTime(ep.PublishedAt),
		string(ep.Status),
		ep.IsProcessed,
		nullableString(ep.Summary),
		nullableString(ep.AudioPath),
		stamp,
		stamp,
	)
	if err != nil {
		return storeErr("create episode", err)
	}
	ep.CreatedAt = now
	ep.UpdatedAt = now
	return nil
}

// GetEpisode fetches an episode by ID.
func (s *Store) GetEpisode(ctx context.Context, id string) (*store.Episode, error) {
	row := s.queryRow(ctx, `SELECT `+episodeColumns+` FROM episodes WHERE id = ?`, id)
	ep, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "store", "get episode", fmt.Sprintf("episode %s", id), nil)
	}
	if err != nil {
		return nil, storeErr("get episode", err)
	}
	return ep, nil
}

// FindEpisodeBySource looks up an episode by its URL-derived source ID.
func (s *Store) FindEpisodeBySource(ctx context.Context, sourceID string) (*store.Episode, error) {
	row := s.queryRow(ctx, `SELECT `+episodeColumns+` FROM episodes WHERE source_id = ?`, sourceID)
	ep, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("find episode", err)
	}
	return ep, nil
}

// AdvanceEpisodeStatus updates the status only when the stored status
// precedes the requested one. The comparison happens in the UPDATE itself.
func (s *Store) AdvanceEpisodeStatus(ctx context.Context, id string, status store.Status) error {
	if !status.Valid() {
		return services.Wrap(services.ErrValidation, "store", "advance status", fmt.Sprintf("unknown status %q", status), nil)
	}
	return s.advance(ctx, id, status, false)
}

// MarkEpisodeProcessed sets the processed flag and advances status to processed.
func (s *Store) MarkEpisodeProcessed(ctx context.Context, id string) error {
	return s.advance(ctx, id, store.StatusProcessed, true)
}

func (s *Store) advance(ctx context.Context, id string, status store.Status, markProcessed bool) error {
	_, stamp := nowStamp()
	earlier := earlierStatuses(status)

	if markProcessed {
		res, err := s.exec(ctx, `UPDATE episodes SET is_processed = ?, updated_at = ? WHERE id = ?`, true, stamp, id)
		if err != nil {
			return storeErr("mark processed", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return services.Wrap(services.ErrNotFound, "store", "mark processed", fmt.Sprintf("episode %s", id), nil)
		}
	}
	if len(earlier) == 0 {
		return nil
	}

	args := make([]any, 0, len(earlier)+3)
	args = append(args, string(status), stamp, id)
	for _, st := range earlier {
		args = append(args, string(st))
	}
	res, err := s.exec(ctx,
		`UPDATE episodes SET status = ?, updated_at = ? WHERE id = ? AND status IN (`+placeholders(len(earlier))+`)`,
		args...,
	)
	if err != nil {
		return storeErr("advance status", err)
	}
	if n, _ := res.RowsAffected(); n == 0 && !markProcessed {
		if _, err := s.GetEpisode(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func earlierStatuses(status store.Status) []store.Status {
	var out []store.Status
	for _, st := range []store.Status{
		store.StatusDownloaded,
		store.StatusTranscribed,
		store.StatusProcessed,
		store.StatusSummarized,
		store.StatusAnalyzed,
	} {
		if st.Before(status) {
			out = append(out, st)
		}
	}
	return out
}

// UpdateEpisodeSummary persists the generated summary.
func (s *Store) UpdateEpisodeSummary(ctx context.Context, id, summary string) error {
	_, stamp := nowStamp()
	res, err := s.exec(ctx, `UPDATE episodes SET summary = ?, updated_at = ? WHERE id = ?`, summary, stamp, id)
	if err != nil {
		return storeErr("update summary", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return services.Wrap(services.ErrNotFound, "store", "update summary", fmt.Sprintf("episode %s", id), nil)
	}
	return nil
}
