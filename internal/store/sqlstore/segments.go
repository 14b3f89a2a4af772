package sqlstore

import (
	"context"
	"database/sql"
	"strings"

	"buildvault/internal/services"
	"buildvault/internal/store"
)

const segmentBaseColumns = "id, episode_id, start_time, end_time, speaker, raw_text, display_text, confidence, ai_enhanced, segment_type"

func (s *Store) segmentColumns() string {
	if s.caps.SegmentGroups {
		return segmentBaseColumns + ", segment_group"
	}
	return segmentBaseColumns
}

func (s *Store) scanSegment(scanner interface{ Scan(dest ...any) error }) (store.Segment, error) {
	var (
		seg   store.Segment
		group sql.NullString
	)
	dest := []any{
		&seg.ID,
		&seg.EpisodeID,
		&seg.StartTime,
		&seg.EndTime,
		&seg.Speaker,
		&seg.RawText,
		&seg.DisplayText,
		&seg.Confidence,
		&seg.AIEnhanced,
		&seg.SegmentType,
	}
	if s.caps.SegmentGroups {
		dest = append(dest, &group)
	}
	if err := scanner.Scan(dest...); err != nil {
		return store.Segment{}, err
	}
	seg.GroupID = group.String
	return seg, nil
}

// InsertSegments bulk-inserts segments in one transaction.
func (s *Store) InsertSegments(ctx context.Context, segments []store.Segment) error {
	if len(segments) == 0 {
		return nil
	}
	cols := s.segmentColumns()
	n := strings.Count(cols, ",") + 1
	query := s.rebind(`INSERT INTO segments (` + cols + `) VALUES (` + placeholders(n) + `)`)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, seg := range segments {
			args := []any{
				seg.ID,
				seg.EpisodeID,
				seg.StartTime,
				seg.EndTime,
				seg.Speaker,
				seg.RawText,
				seg.DisplayText,
				seg.Confidence,
				seg.AIEnhanced,
				seg.SegmentType,
			}
			if s.caps.SegmentGroups {
				args = append(args, nullableString(seg.GroupID))
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return storeErr("insert segments", err)
	}
	return nil
}

// ListSegments returns segments ordered by start time.
func (s *Store) ListSegments(ctx context.Context, episodeID string) ([]store.Segment, error) {
	rows, err := s.query(ctx,
		`SELECT `+s.segmentColumns()+` FROM segments WHERE episode_id = ? ORDER BY start_time, end_time, id`,
		episodeID,
	)
	if err != nil {
		return nil, storeErr("list segments", err)
	}
	defer rows.Close()

	var out []store.Segment
	for rows.Next() {
		seg, err := s.scanSegment(rows)
		if err != nil {
			return nil, storeErr("scan segment", err)
		}
		out = append(out, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list segments", err)
	}
	return out, nil
}

// AssignSegmentGroup stamps groupID on every listed segment.
func (s *Store) AssignSegmentGroup(ctx context.Context, groupID string, segmentIDs []string) error {
	if !s.caps.SegmentGroups {
		return services.Wrap(services.ErrCapabilityGap, "store", "assign segment group", "schema has no segment_group column", nil)
	}
	if len(segmentIDs) == 0 {
		return nil
	}
	args := make([]any, 0, len(segmentIDs)+1)
	args = append(args, groupID)
	for _, id := range segmentIDs {
		args = append(args, id)
	}
	if _, err := s.exec(ctx,
		`UPDATE segments SET segment_group = ? WHERE id IN (`+placeholders(len(segmentIDs))+`)`,
		args...,
	); err != nil {
		return storeErr("assign segment group", err)
	}
	return nil
}

// DeleteSegments removes every segment of the episode.
func (s *Store) DeleteSegments(ctx context.Context, episodeID string) error {
	if _, err := s.exec(ctx, `DELETE FROM segments WHERE episode_id = ?`, episodeID); err != nil {
		return storeErr("delete segments", err)
	}
	return nil
}
