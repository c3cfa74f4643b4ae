package book

import (
	"context"

	"github.com/google/uuid"
)

//go:generate mockgen -source=ports.go -destination=mock_ports.go -package=book

// Repository stages book reads and writes against the current storage
// transaction (or the shared pool outside one). It never commits; the
// service decides transaction boundaries.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (*Book, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Book, error)
	Update(ctx context.Context, id uuid.UUID, params UpdateParams) (*Book, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	FindByFilters(ctx context.Context, f Filter) ([]Book, error)
	CountByFilters(ctx context.Context, f Filter) (int, error)
	FindByISBN(ctx context.Context, isbn string) (*Book, error)
}

// Enricher fetches supplementary metadata for a book, keyed by ISBN
// first and title+author as fallback. A lookup that finds nothing
// returns an empty map and no error.
type Enricher interface {
	Enrich(ctx context.Context, title, author, isbn string) (map[string]any, error)
}

// TxManager runs fn inside a single storage transaction, committing on
// nil and rolling back on error.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
