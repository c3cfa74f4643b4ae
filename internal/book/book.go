package book

import (
	"time"

	"github.com/google/uuid"
)

// Book is the catalog entity persisted in the books table. Extra holds
// the supplementary metadata fetched from Open Library at creation
// time; it is nil when enrichment found nothing or failed.
type Book struct {
	ID          uuid.UUID      `json:"id"`
	Title       string         `json:"title"`
	Author      string         `json:"author"`
	Year        int            `json:"year"`
	Genre       string         `json:"genre"`
	Pages       int            `json:"pages"`
	Available   bool           `json:"available"`
	ISBN        *string        `json:"isbn,omitempty"`
	Description *string        `json:"description,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// CreateParams carries the fields for a new book. ISBN must already be
// canonical (separators stripped) when set.
type CreateParams struct {
	Title       string
	Author      string
	Year        int
	Genre       string
	Pages       int
	ISBN        *string
	Description *string
	Extra       map[string]any
}

// UpdateParams is a partial update: nil fields are left untouched.
type UpdateParams struct {
	Title       *string
	Author      *string
	Year        *int
	Genre       *string
	Pages       *int
	ISBN        *string
	Description *string
	Available   *bool
}

// Filter selects books for listing and counting. Title and Author are
// case-insensitive substring matches; the rest are exact. Limit and
// Offset only apply to listing.
type Filter struct {
	Title     string
	Author    string
	Genre     string
	Year      *int
	Available *bool
	Limit     int
	Offset    int
}
