package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/MrSnakeDoc/sortmark/internal/domain"
)

// InsertBookmark stores tweet under id. A second insert with the same id is a no-op.
func (s *Store) InsertBookmark(ctx context.Context, id string, categoryID int64, tweet domain.Tweet) error {
	return insertBookmark(ctx, s.db, id, categoryID, tweet)
}

func insertBookmark(ctx context.Context, q queryer, id string, categoryID int64, tweet domain.Tweet) error {
	payload, err := domain.CanonicalJSON(tweet)
	if err != nil {
		return fmt.Errorf("%w: bookmark %s: %v", domain.ErrStorage, id, err)
	}

	if _, err := q.ExecContext(ctx,
		`INSERT OR IGNORE INTO bookmark (id, category_id, payload) VALUES (?, ?, ?)`,
		id, categoryID, payload); err != nil {
		return fmt.Errorf("%w: insert bookmark %s: %v", domain.ErrStorage, id, err)
	}
	return nil
}

// SaveBatch writes all entries, creating their categories as needed.
// Either every entry is persisted or none is.
func (s *Store) SaveBatch(ctx context.Context, entries []domain.BookmarkEntry) error {
	if len(entries) == 0 {
		return nil
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		ids := make(map[string]int64, len(entries))
		for _, e := range entries {
			catID, ok := ids[e.Category]
			if !ok {
				var err error
				if catID, err = getOrCreateCategory(ctx, tx, e.Category); err != nil {
					return err
				}
				ids[e.Category] = catID
			}
			if err := insertBookmark(ctx, tx, e.ID, catID, e.Tweet); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListBookmarks returns live bookmarks, newest first.
// A nil categoryID returns every category.
func (s *Store) ListBookmarks(ctx context.Context, categoryID *int64) ([]domain.Bookmark, error) {
	query := `
SELECT b.id, c.name, b.payload, b.created_at
FROM bookmark AS b
JOIN category AS c ON c.id = b.category_id
WHERE b.is_deleted = 0`
	var args []any
	if categoryID != nil {
		query += ` AND b.category_id = ?`
		args = append(args, *categoryID)
	}
	query += ` ORDER BY b.created_at DESC, b.rowid DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list bookmarks: %v", domain.ErrStorage, err)
	}
	defer rows.Close()

	bookmarks := []domain.Bookmark{}
	for rows.Next() {
		var (
			b       domain.Bookmark
			payload string
			created string
		)
		if err := rows.Scan(&b.ID, &b.Category, &payload, &created); err != nil {
			return nil, fmt.Errorf("%w: scan bookmark: %v", domain.ErrStorage, err)
		}
		tweet, err := domain.DecodeTweet([]byte(payload))
		if err != nil {
			return nil, fmt.Errorf("%w: bookmark %s: %v", domain.ErrStorage, b.ID, err)
		}
		b.Tweet = tweet
		b.CreatedAt = parseTime(created)
		bookmarks = append(bookmarks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list bookmarks: %v", domain.ErrStorage, err)
	}
	return bookmarks, nil
}
