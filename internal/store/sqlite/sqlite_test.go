package sqlite

import (
	"context"
	"encoding/json"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/sortmark/internal/domain"
)

// setupTestStore opens a fresh database file under t.TempDir().
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "data", "sortmark.db"))
	require.NoError(t, err, "failed to open test store")
	t.Cleanup(func() {
		assert.NoError(t, s.Close())
	})
	return s
}

func countRows(t *testing.T, s *Store, table string) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func testTweet(id, text string) domain.Tweet {
	return domain.Tweet{
		"tweet_id": json.Number(id),
		"text":     text,
		"user": map[string]any{
			"screen_name": "test_user",
			"name":        "Test User",
		},
	}
}

func TestInitSchemaIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.InitSchema(ctx), "iteration %d", i)
	}

	var tables int
	require.NoError(t, s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('category', 'bookmark')").Scan(&tables))
	assert.Equal(t, 2, tables)
}

func TestGetOrCreateCategory_SameNameSameID(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	first, err := s.GetOrCreateCategory(ctx, "テクノロジー")
	require.NoError(t, err)
	second, err := s.GetOrCreateCategory(ctx, "テクノロジー")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, countRows(t, s, "category"))

	other, err := s.GetOrCreateCategory(ctx, "News")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
	assert.Equal(t, 2, countRows(t, s, "category"))
}

func TestGetCategory(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	id, err := s.GetOrCreateCategory(ctx, "News")
	require.NoError(t, err)

	c, err := s.GetCategory(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "News", c.Name)
	assert.False(t, c.CreatedAt.IsZero(), "created_at should be assigned")

	_, err = s.GetCategory(ctx, id+100)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInsertBookmark_Idempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	catID, err := s.GetOrCreateCategory(ctx, "Tech")
	require.NoError(t, err)

	require.NoError(t, s.InsertBookmark(ctx, "bookmark_123", catID, testTweet("1", "first")))
	require.NoError(t, s.InsertBookmark(ctx, "bookmark_123", catID, testTweet("2", "second")))

	assert.Equal(t, 1, countRows(t, s, "bookmark"))

	got, err := s.ListBookmarks(ctx, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "first", got[0].Tweet["text"], "duplicate insert must not overwrite")
}

func TestInsertBookmark_PayloadRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	catID, err := s.GetOrCreateCategory(ctx, "Tech")
	require.NoError(t, err)

	tweet := testTweet("1790000000000000001", "これはテスト用のツイートです <b>&</b>")
	require.NoError(t, s.InsertBookmark(ctx, "b1", catID, tweet))

	var raw string
	require.NoError(t, s.db.QueryRow("SELECT payload FROM bookmark WHERE id = 'b1'").Scan(&raw))
	assert.Contains(t, raw, "これはテスト用のツイートです", "non-ASCII must be stored literally")
	assert.Contains(t, raw, "<b>&</b>", "HTML must not be escaped")
	assert.Contains(t, raw, "1790000000000000001")

	got, err := s.ListBookmarks(ctx, &catID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b1", got[0].ID)
	assert.Equal(t, "Tech", got[0].Category)
	assert.Equal(t, tweet, got[0].Tweet)
	assert.False(t, got[0].CreatedAt.IsZero())
}

func TestListBookmarks_UnionOfCategoriesExcludesDeleted(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveBatch(ctx, []domain.BookmarkEntry{
		{ID: "a1", Category: "Tech", Tweet: testTweet("1", "a1")},
		{ID: "b1", Category: "News", Tweet: testTweet("2", "b1")},
		{ID: "a2", Category: "Tech", Tweet: testTweet("3", "a2")},
		{ID: "b2", Category: "News", Tweet: testTweet("4", "b2")},
	}))
	_, err := s.db.ExecContext(ctx, "UPDATE bookmark SET is_deleted = 1 WHERE id = 'b2'")
	require.NoError(t, err)

	all, err := s.ListBookmarks(ctx, nil)
	require.NoError(t, err)

	categories, err := s.ListCategories(ctx)
	require.NoError(t, err)

	var union []string
	for _, c := range categories {
		id := c.ID
		part, err := s.ListBookmarks(ctx, &id)
		require.NoError(t, err)
		for _, b := range part {
			assert.Equal(t, c.Name, b.Category)
			union = append(union, b.ID)
		}
	}

	var allIDs []string
	for _, b := range all {
		allIDs = append(allIDs, b.ID)
	}
	assert.ElementsMatch(t, allIDs, union)
	assert.NotContains(t, allIDs, "b2")
	assert.Len(t, allIDs, 3)
}

func TestListBookmarks_NewestFirst(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveBatch(ctx, []domain.BookmarkEntry{
		{ID: "first", Category: "Tech", Tweet: testTweet("1", "first")},
		{ID: "second", Category: "Tech", Tweet: testTweet("2", "second")},
	}))
	require.NoError(t, s.SaveBatch(ctx, []domain.BookmarkEntry{
		{ID: "third", Category: "Tech", Tweet: testTweet("3", "third")},
	}))

	for i := 0; i < 2; i++ {
		got, err := s.ListBookmarks(ctx, nil)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "third", got[0].ID)
		assert.Equal(t, "second", got[1].ID)
		assert.Equal(t, "first", got[2].ID)
	}
}

func TestSaveBatch_RollsBackOnFailure(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	err := s.SaveBatch(ctx, []domain.BookmarkEntry{
		{ID: "ok", Category: "Tech", Tweet: testTweet("1", "ok")},
		// +Inf cannot be encoded as JSON.
		{ID: "bad", Category: "Tech", Tweet: domain.Tweet{"score": math.Inf(1)}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorage)

	assert.Equal(t, 0, countRows(t, s, "bookmark"))
	assert.Equal(t, 0, countRows(t, s, "category"))
}

func TestEnsureCategories(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureCategories(ctx, []string{"Tech", "News"}))
	require.NoError(t, s.EnsureCategories(ctx, []string{"News", "Food"}))

	categories, err := s.ListCategories(ctx)
	require.NoError(t, err)

	var names []string
	for _, c := range categories {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Tech", "News", "Food"}, names)
}

func TestPing(t *testing.T) {
	s := setupTestStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}
