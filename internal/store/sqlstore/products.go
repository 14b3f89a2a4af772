package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"slices"

	"buildvault/internal/services"
	"buildvault/internal/store"
)

const productColumns = "name, category, description, mention_count, episode_ids, episode_mentions, updated_at"

func scanProduct(scanner interface{ Scan(dest ...any) error }) (*store.Product, error) {
	var (
		p        store.Product
		ids      string
		mentions string
		updated  sql.NullString
	)
	if err := scanner.Scan(&p.Name, &p.Category, &p.Description, &p.MentionCount, &ids, &mentions, &updated); err != nil {
		return nil, err
	}
	var err error
	if p.EpisodeIDs, err = decodeIDs(ids); err != nil {
		return nil, storeErr("scan product", err)
	}
	if p.EpisodeMentions, err = decodeMentions(mentions); err != nil {
		return nil, storeErr("scan product", err)
	}
	p.UpdatedAt = parseTime(updated)
	return &p, nil
}

// GetProduct returns the registry row for name, or nil when absent.
func (s *Store) GetProduct(ctx context.Context, name string) (*store.Product, error) {
	row := s.queryRow(ctx, `SELECT `+productColumns+` FROM products WHERE name = ?`, name)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("get product", err)
	}
	return p, nil
}

// InsertProduct registers a new product.
func (s *Store) InsertProduct(ctx context.Context, p *store.Product) error {
	if p == nil || p.Name == "" {
		return services.Wrap(services.ErrValidation, "store", "insert product", "name required", nil)
	}
	ids, mentions, err := encodeProductSets(p)
	if err != nil {
		return storeErr("insert product", err)
	}
	now, stamp := nowStamp()
	if _, err := s.exec(ctx,
		`INSERT INTO products (`+productColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Category, p.Description, p.MentionCount, ids, mentions, stamp,
	); err != nil {
		return storeErr("insert product", err)
	}
	p.UpdatedAt = now
	return nil
}

// UpdateProduct overwrites the mutable registry fields.
func (s *Store) UpdateProduct(ctx context.Context, p *store.Product) error {
	if p == nil || p.Name == "" {
		return services.Wrap(services.ErrValidation, "store", "update product", "name required", nil)
	}
	ids, mentions, err := encodeProductSets(p)
	if err != nil {
		return storeErr("update product", err)
	}
	now, stamp := nowStamp()
	res, err := s.exec(ctx,
		`UPDATE products SET category = ?, description = ?, mention_count = ?, episode_ids = ?, episode_mentions = ?, updated_at = ? WHERE name = ?`,
		p.Category, p.Description, p.MentionCount, ids, mentions, stamp, p.Name,
	)
	if err != nil {
		return storeErr("update product", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return services.Wrap(services.ErrNotFound, "store", "update product", p.Name, nil)
	}
	p.UpdatedAt = now
	return nil
}

// ListProducts returns the whole registry ordered by mention count.
func (s *Store) ListProducts(ctx context.Context) ([]store.Product, error) {
	return s.listProducts(ctx, `SELECT `+productColumns+` FROM products ORDER BY mention_count DESC, name`)
}

// ListProductsForEpisode returns products whose episode set contains episodeID.
func (s *Store) ListProductsForEpisode(ctx context.Context, episodeID string) ([]store.Product, error) {
	candidates, err := s.listProducts(ctx,
		`SELECT `+productColumns+` FROM products WHERE episode_ids LIKE ? ORDER BY mention_count DESC, name`,
		`%"`+episodeID+`"%`,
	)
	if err != nil {
		return nil, err
	}
	out := candidates[:0]
	for _, p := range candidates {
		if slices.Contains(p.EpisodeIDs, episodeID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) listProducts(ctx context.Context, query string, args ...any) ([]store.Product, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list products", err)
	}
	defer rows.Close()

	var out []store.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, storeErr("scan product", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list products", err)
	}
	return out, nil
}

func encodeProductSets(p *store.Product) (string, string, error) {
	ids, err := encodeIDs(store.UnionIDs(p.EpisodeIDs, nil))
	if err != nil {
		return "", "", err
	}
	mentions, err := encodeMentions(p.EpisodeMentions)
	if err != nil {
		return "", "", err
	}
	return ids, mentions, nil
}
