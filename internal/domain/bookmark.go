package domain

import "time"

// Tweet is the raw bookmark payload exported from X.
// Its schema is not validated beyond being a JSON object.
type Tweet = map[string]any

// Bookmark represents a persisted, categorized bookmark.
type Bookmark struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// ID is a caller-generated unique token (UUID v4).
	ID string `json:"id"`

	// ─────────────────────────────
	// Classification
	// ─────────────────────────────

	// Category is the name of the owning category.
	Category string `json:"category"`

	// ─────────────────────────────
	// Payload
	// ─────────────────────────────

	// Tweet is the stored payload, decoded back from its canonical JSON.
	Tweet Tweet `json:"tweet"`

	// CreatedAt is assigned by the store on first insert.
	CreatedAt time.Time `json:"created_at"`
}

// BookmarkEntry is a bookmark about to be written.
// Entries are built once classification of a whole batch succeeded.
type BookmarkEntry struct {
	ID       string
	Category string
	Tweet    Tweet
}

// CategorizedBookmark is one element of an ingestion result.
type CategorizedBookmark struct {
	Category     string `json:"category"`
	TweetContent Tweet  `json:"tweet_content"`
}
