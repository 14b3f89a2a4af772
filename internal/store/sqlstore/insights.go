package sqlstore

import (
	"context"
	"database/sql"

	"buildvault/internal/store"
)

const insightColumns = "id, episode_id, category, content, confidence, segment_start, segment_end, created_at"

// InsertInsights bulk-inserts insights in one transaction.
func (s *Store) InsertInsights(ctx context.Context, insights []store.Insight) error {
	if len(insights) == 0 {
		return nil
	}
	now, stamp := nowStamp()
	query := s.rebind(`INSERT INTO insights (` + insightColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, in := range insights {
			if _, err := stmt.ExecContext(ctx,
				in.ID,
				in.EpisodeID,
				string(in.Category),
				in.Content,
				in.Confidence,
				in.SegmentStart,
				in.SegmentEnd,
				stamp,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return storeErr("insert insights", err)
	}
	for i := range insights {
		insights[i].CreatedAt = now
	}
	return nil
}

// ListInsights returns the episode's insights ordered by segment start.
func (s *Store) ListInsights(ctx context.Context, episodeID string) ([]store.Insight, error) {
	rows, err := s.query(ctx,
		`SELECT `+insightColumns+` FROM insights WHERE episode_id = ? ORDER BY segment_start, created_at, id`,
		episodeID,
	)
	if err != nil {
		return nil, storeErr("list insights", err)
	}
	defer rows.Close()

	var out []store.Insight
	for rows.Next() {
		var (
			in       store.Insight
			category string
			created  sql.NullString
		)
		if err := rows.Scan(
			&in.ID,
			&in.EpisodeID,
			&category,
			&in.Content,
			&in.Confidence,
			&in.SegmentStart,
			&in.SegmentEnd,
			&created,
		); err != nil {
			return nil, storeErr("scan insight", err)
		}
		in.Category, _ = store.ParseCategory(category)
		in.CreatedAt = parseTime(created)
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list insights", err)
	}
	return out, nil
}

// DeleteInsights removes every insight of the episode.
func (s *Store) DeleteInsights(ctx context.Context, episodeID string) error {
	if _, err := s.exec(ctx, `DELETE FROM insights WHERE episode_id = ?`, episodeID); err != nil {
		return storeErr("delete insights", err)
	}
	return nil
}
