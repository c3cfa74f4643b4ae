package book

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"librarycatalog/internal/platform/postgres"
)

const bookColumns = "id, title, author, year, genre, pages, available, isbn, description, extra, created_at, updated_at"

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresRepo(pool *pgxpool.Pool) *PostgresRepo {
	return &PostgresRepo{pool: pool}
}

func (r *PostgresRepo) db(ctx context.Context) postgres.Querier {
	return postgres.QuerierFrom(ctx, r.pool)
}

func (r *PostgresRepo) Create(ctx context.Context, params CreateParams) (*Book, error) {
	query := fmt.Sprintf(`
		INSERT INTO books (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING %s`, bookColumns, bookColumns)

	extra, err := marshalExtra(params.Extra)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	row := r.db(ctx).QueryRow(ctx, query,
		uuid.New(), params.Title, params.Author, params.Year, params.Genre,
		params.Pages, true, params.ISBN, params.Description, extra, now, now,
	)
	return scanBook(row)
}

func (r *PostgresRepo) GetByID(ctx context.Context, id uuid.UUID) (*Book, error) {
	query := fmt.Sprintf("SELECT %s FROM books WHERE id = $1", bookColumns)

	b, err := scanBook(r.db(ctx).QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

func (r *PostgresRepo) Update(ctx context.Context, id uuid.UUID, params UpdateParams) (*Book, error) {
	sets, args := updateSet(params)
	args = append(args, id)

	query := fmt.Sprintf("UPDATE books SET %s WHERE id = $%d RETURNING %s",
		strings.Join(sets, ", "), len(args), bookColumns)

	b, err := scanBook(r.db(ctx).QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

func (r *PostgresRepo) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.db(ctx).Exec(ctx, "DELETE FROM books WHERE id = $1", id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepo) FindByFilters(ctx context.Context, f Filter) ([]Book, error) {
	where, args := whereClauses(f)

	query := fmt.Sprintf(`
		SELECT %s FROM books
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, bookColumns, where, len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) CountByFilters(ctx context.Context, f Filter) (int, error) {
	where, args := whereClauses(f)

	var total int
	err := r.db(ctx).QueryRow(ctx, "SELECT COUNT(*) FROM books "+where, args...).Scan(&total)
	return total, err
}

func (r *PostgresRepo) FindByISBN(ctx context.Context, isbn string) (*Book, error) {
	query := fmt.Sprintf("SELECT %s FROM books WHERE isbn = $1 LIMIT 1", bookColumns)

	b, err := scanBook(r.db(ctx).QueryRow(ctx, query, isbn))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

// whereClauses builds the shared predicate list for FindByFilters and
// CountByFilters, so list and total always agree.
func whereClauses(f Filter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}
	argn := 1

	if f.Title != "" {
		clauses = append(clauses, fmt.Sprintf("title ILIKE $%d", argn))
		args = append(args, "%"+f.Title+"%")
		argn++
	}
	if f.Author != "" {
		clauses = append(clauses, fmt.Sprintf("author ILIKE $%d", argn))
		args = append(args, "%"+f.Author+"%")
		argn++
	}
	if f.Genre != "" {
		clauses = append(clauses, fmt.Sprintf("genre = $%d", argn))
		args = append(args, f.Genre)
		argn++
	}
	if f.Year != nil {
		clauses = append(clauses, fmt.Sprintf("year = $%d", argn))
		args = append(args, *f.Year)
		argn++
	}
	if f.Available != nil {
		clauses = append(clauses, fmt.Sprintf("available = $%d", argn))
		args = append(args, *f.Available)
	}

	return "WHERE " + strings.Join(clauses, " AND "), args
}

// updateSet builds the SET list from the fields present in params.
// updated_at always advances.
func updateSet(params UpdateParams) ([]string, []any) {
	sets := []string{}
	args := []any{}

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.Title != nil {
		add("title", *params.Title)
	}
	if params.Author != nil {
		add("author", *params.Author)
	}
	if params.Year != nil {
		add("year", *params.Year)
	}
	if params.Genre != nil {
		add("genre", *params.Genre)
	}
	if params.Pages != nil {
		add("pages", *params.Pages)
	}
	if params.ISBN != nil {
		add("isbn", *params.ISBN)
	}
	if params.Description != nil {
		add("description", *params.Description)
	}
	if params.Available != nil {
		add("available", *params.Available)
	}
	add("updated_at", time.Now().UTC())

	return sets, args
}

func marshalExtra(extra map[string]any) ([]byte, error) {
	if extra == nil {
		return nil, nil
	}
	b, err := json.Marshal(extra)
	if err != nil {
		return nil, fmt.Errorf("marshal extra metadata: %w", err)
	}
	return b, nil
}

func scanBook(row pgx.Row) (*Book, error) {
	var (
		b     Book
		extra []byte
	)
	err := row.Scan(
		&b.ID, &b.Title, &b.Author, &b.Year, &b.Genre, &b.Pages, &b.Available,
		&b.ISBN, &b.Description, &extra, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(extra) > 0 {
		if err := json.Unmarshal(extra, &b.Extra); err != nil {
			return nil, fmt.Errorf("unmarshal extra metadata: %w", err)
		}
	}
	return &b, nil
}
