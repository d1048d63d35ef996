package domain

import "time"

// Category is a named classification bucket.
// Name is unique; categories are created lazily and never updated.
type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
