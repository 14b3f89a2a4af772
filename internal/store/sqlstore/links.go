package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"buildvault/internal/services"
	"buildvault/internal/store"
)

const linkColumns = "id, episode_id, url, title, description, link_type, enriched, created_at"

func scanLink(scanner interface{ Scan(dest ...any) error }) (store.Link, error) {
	var (
		l       store.Link
		created sql.NullString
	)
	if err := scanner.Scan(&l.ID, &l.EpisodeID, &l.URL, &l.Title, &l.Description, &l.LinkType, &l.Enriched, &created); err != nil {
		return store.Link{}, err
	}
	l.CreatedAt = parseTime(created)
	return l, nil
}

// InsertLinks bulk-inserts links in one transaction.
func (s *Store) InsertLinks(ctx context.Context, links []store.Link) error {
	if len(links) == 0 {
		return nil
	}
	now, _ := nowStamp()
	query := s.rebind(`INSERT INTO episode_links (` + linkColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, l := range links {
			linkType := l.LinkType
			if linkType == "" {
				linkType = store.LinkTypeResource
			}
			// Offset by index so oldest-first ordering follows insertion order.
			created := now.Add(time.Duration(i) * time.Microsecond)
			if _, err := stmt.ExecContext(ctx,
				l.ID, l.EpisodeID, l.URL, l.Title, l.Description, linkType, l.Enriched, formatTime(created),
			); err != nil {
				return err
			}
			links[i].CreatedAt = created
			links[i].LinkType = linkType
		}
		return nil
	})
	if err != nil {
		return storeErr("insert links", err)
	}
	return nil
}

// ListLinks returns the episode's links in insertion order.
func (s *Store) ListLinks(ctx context.Context, episodeID string) ([]store.Link, error) {
	return s.listLinks(ctx, `SELECT `+linkColumns+` FROM episode_links WHERE episode_id = ? ORDER BY created_at, id`, episodeID)
}

// ListUnenrichedLinks returns up to limit unenriched links, oldest first.
func (s *Store) ListUnenrichedLinks(ctx context.Context, limit int) ([]store.Link, error) {
	if limit <= 0 {
		return nil, nil
	}
	return s.listLinks(ctx,
		`SELECT `+linkColumns+` FROM episode_links WHERE enriched = ? ORDER BY created_at, id LIMIT ?`,
		false, limit,
	)
}

// MarkLinkEnriched records the enrichment description.
func (s *Store) MarkLinkEnriched(ctx context.Context, id, description string) error {
	res, err := s.exec(ctx, `UPDATE episode_links SET enriched = ?, description = ? WHERE id = ?`, true, description, id)
	if err != nil {
		return storeErr("mark link enriched", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return services.Wrap(services.ErrNotFound, "store", "mark link enriched", fmt.Sprintf("link %s", id), nil)
	}
	return nil
}

func (s *Store) listLinks(ctx context.Context, query string, args ...any) ([]store.Link, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list links", err)
	}
	defer rows.Close()

	var out []store.Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, storeErr("scan link", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list links", err)
	}
	return out, nil
}

// DeleteLinks removes every link of the episode.
func (s *Store) DeleteLinks(ctx context.Context, episodeID string) error {
	if _, err := s.exec(ctx, `DELETE FROM episode_links WHERE episode_id = ?`, episodeID); err != nil {
		return storeErr("delete links", err)
	}
	return nil
}
