package book

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Earliest plausible publication year (first printed books).
const minYear = 1000

// Service owns the catalog business rules: validation, uniqueness
// checks, enrichment, and transaction boundaries. Handlers and
// repositories never enforce any of these.
type Service struct {
	repo     Repository
	enricher Enricher
	tx       TxManager
	log      *zap.Logger
}

func NewService(repo Repository, enricher Enricher, tx TxManager, log *zap.Logger) *Service {
	return &Service{repo: repo, enricher: enricher, tx: tx, log: log}
}

// Create validates the new book, rejects duplicates, attempts
// enrichment, and persists the result in one transaction. Enrichment
// failures degrade to "no metadata"; they never fail the create.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Book, error) {
	if err := validateYear(params.Year); err != nil {
		return nil, err
	}
	if err := validatePages(params.Pages); err != nil {
		return nil, err
	}

	if params.ISBN != nil {
		existing, err := s.repo.FindByISBN(ctx, *params.ISBN)
		if err != nil {
			return nil, &OpError{Op: "create", Err: err}
		}
		if existing != nil {
			return nil, &AlreadyExistsError{ISBN: *params.ISBN}
		}
	}

	dupes, err := s.repo.FindByFilters(ctx, Filter{
		Title:  params.Title,
		Author: params.Author,
		Year:   &params.Year,
		Limit:  1,
	})
	if err != nil {
		return nil, &OpError{Op: "create", Err: err}
	}
	if len(dupes) > 0 {
		return nil, &AlreadyExistsError{Title: params.Title, Author: params.Author, Year: params.Year}
	}

	params.Extra = s.enrich(ctx, params)

	var created *Book
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		b, err := s.repo.Create(ctx, params)
		if err != nil {
			return err
		}
		created = b
		return nil
	})
	if err != nil {
		return nil, &OpError{Op: "create", Err: err}
	}
	return created, nil
}

// GetByID returns the book or a NotFoundError carrying the id.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Book, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, &OpError{Op: "get", Err: err}
	}
	if b == nil {
		return nil, &NotFoundError{ID: id}
	}
	return b, nil
}

// Update applies only the fields present in params. A year or pages
// update is re-validated with the same rules as create.
func (s *Service) Update(ctx context.Context, id uuid.UUID, params UpdateParams) (*Book, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, &OpError{Op: "update", Err: err}
	}
	if existing == nil {
		return nil, &NotFoundError{ID: id}
	}

	if params.Year != nil {
		if err := validateYear(*params.Year); err != nil {
			return nil, err
		}
	}
	if params.Pages != nil {
		if err := validatePages(*params.Pages); err != nil {
			return nil, err
		}
	}

	var updated *Book
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		b, err := s.repo.Update(ctx, id, params)
		if err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, &OpError{Op: "update", Err: err}
	}
	if updated == nil {
		// Row vanished between lookup and update.
		return nil, &NotFoundError{ID: id}
	}
	return updated, nil
}

// Delete removes the book permanently.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	var deleted bool
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		ok, err := s.repo.Delete(ctx, id)
		if err != nil {
			return err
		}
		deleted = ok
		return nil
	})
	if err != nil {
		return &OpError{Op: "delete", Err: err}
	}
	if !deleted {
		return &NotFoundError{ID: id}
	}
	return nil
}

// List returns the filtered page plus the total matching count taken
// with the same filters, for client-side paging. The two reads share
// no snapshot beyond read-committed.
func (s *Service) List(ctx context.Context, f Filter) ([]Book, int, error) {
	items, err := s.repo.FindByFilters(ctx, f)
	if err != nil {
		return nil, 0, &OpError{Op: "list", Err: err}
	}
	total, err := s.repo.CountByFilters(ctx, f)
	if err != nil {
		return nil, 0, &OpError{Op: "list", Err: err}
	}
	return items, total, nil
}

// Checkout marks the book unavailable. Checking out a book that is
// already checked out is a conflict.
func (s *Service) Checkout(ctx context.Context, id uuid.UUID) (*Book, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, &OpError{Op: "checkout", Err: err}
	}
	if existing == nil {
		return nil, &NotFoundError{ID: id}
	}
	if !existing.Available {
		return nil, &NotAvailableError{ID: id}
	}
	return s.setAvailable(ctx, "checkout", id, false)
}

// Return marks the book available again. Returning an already
// available book is a no-op update, not an error.
func (s *Service) Return(ctx context.Context, id uuid.UUID) (*Book, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, &OpError{Op: "return", Err: err}
	}
	if existing == nil {
		return nil, &NotFoundError{ID: id}
	}
	return s.setAvailable(ctx, "return", id, true)
}

func (s *Service) setAvailable(ctx context.Context, op string, id uuid.UUID, available bool) (*Book, error) {
	var updated *Book
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		b, err := s.repo.Update(ctx, id, UpdateParams{Available: &available})
		if err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, &OpError{Op: op, Err: err}
	}
	if updated == nil {
		return nil, &NotFoundError{ID: id}
	}
	return updated, nil
}

// enrich calls Open Library and degrades to nil metadata on any
// failure or empty result, logging the reason.
func (s *Service) enrich(ctx context.Context, params CreateParams) map[string]any {
	isbn := ""
	if params.ISBN != nil {
		isbn = *params.ISBN
	}

	extra, err := s.enricher.Enrich(ctx, params.Title, params.Author, isbn)
	if err != nil {
		s.log.Warn("enrichment failed, creating book without metadata",
			zap.String("title", params.Title),
			zap.String("author", params.Author),
			zap.Error(err),
		)
		return nil
	}
	if len(extra) == 0 {
		return nil
	}
	return extra
}

func validateYear(year int) error {
	current := time.Now().Year()
	if year < minYear || year > current {
		return &ValidationError{
			Field:  "year",
			Value:  year,
			Reason: fmt.Sprintf("must be between %d and %d", minYear, current),
		}
	}
	return nil
}

func validatePages(pages int) error {
	if pages <= 0 {
		return &ValidationError{Field: "pages", Value: pages, Reason: "must be positive"}
	}
	return nil
}
