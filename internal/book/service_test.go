package book

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type serviceMocks struct {
	repo     *MockRepository
	enricher *MockEnricher
	tx       *MockTxManager
}

func newTestService(t *testing.T) (*Service, serviceMocks) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	m := serviceMocks{
		repo:     NewMockRepository(ctrl),
		enricher: NewMockEnricher(ctrl),
		tx:       NewMockTxManager(ctrl),
	}
	return NewService(m.repo, m.enricher, m.tx, zap.NewNop()), m
}

// passthroughTx runs the callback directly, standing in for a real
// transaction.
func passthroughTx(tx *MockTxManager) {
	tx.EXPECT().WithinTx(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	).AnyTimes()
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func boolPtr(b bool) *bool    { return &b }

func validCreateParams() CreateParams {
	return CreateParams{
		Title:  "The Go Programming Language",
		Author: "Alan Donovan",
		Year:   2015,
		Genre:  "Technology",
		Pages:  380,
	}
}

func TestService_Create_Validation(t *testing.T) {
	// No repo or enricher expectations: validation failures must not
	// touch storage or the network.
	tests := []struct {
		name   string
		mutate func(*CreateParams)
		field  string
	}{
		{"year in the future", func(p *CreateParams) { p.Year = time.Now().Year() + 1 }, "year"},
		{"year before printing", func(p *CreateParams) { p.Year = 999 }, "year"},
		{"zero pages", func(p *CreateParams) { p.Pages = 0 }, "pages"},
		{"negative pages", func(p *CreateParams) { p.Pages = -10 }, "pages"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, _ := newTestService(t)

			params := validCreateParams()
			tt.mutate(&params)

			created, err := service.Create(context.Background(), params)

			assert.Nil(t, created)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestService_Create_DuplicateISBN(t *testing.T) {
	service, m := newTestService(t)

	params := validCreateParams()
	params.ISBN = strPtr("9780134190440")

	m.repo.EXPECT().FindByISBN(gomock.Any(), "9780134190440").
		Return(&Book{ID: uuid.New()}, nil)

	created, err := service.Create(context.Background(), params)

	assert.Nil(t, created)
	var existsErr *AlreadyExistsError
	require.ErrorAs(t, err, &existsErr)
	assert.Equal(t, "9780134190440", existsErr.ISBN)
}

func TestService_Create_DuplicateTitleAuthorYear(t *testing.T) {
	service, m := newTestService(t)

	params := validCreateParams()

	m.repo.EXPECT().FindByFilters(gomock.Any(), Filter{
		Title:  params.Title,
		Author: params.Author,
		Year:   &params.Year,
		Limit:  1,
	}).Return([]Book{{ID: uuid.New()}}, nil)

	created, err := service.Create(context.Background(), params)

	assert.Nil(t, created)
	var existsErr *AlreadyExistsError
	require.ErrorAs(t, err, &existsErr)
	assert.Equal(t, params.Title, existsErr.Title)
}

func TestService_Create_Success(t *testing.T) {
	service, m := newTestService(t)
	passthroughTx(m.tx)

	params := validCreateParams()
	params.ISBN = strPtr("9780134190440")
	extra := map[string]any{"cover_url": "https://covers.openlibrary.org/b/id/1-L.jpg"}

	m.repo.EXPECT().FindByISBN(gomock.Any(), "9780134190440").Return(nil, nil)
	m.repo.EXPECT().FindByFilters(gomock.Any(), gomock.Any()).Return(nil, nil)
	m.enricher.EXPECT().Enrich(gomock.Any(), params.Title, params.Author, "9780134190440").
		Return(extra, nil)
	m.repo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, p CreateParams) (*Book, error) {
			assert.Equal(t, extra, p.Extra)
			return &Book{ID: uuid.New(), Title: p.Title, Extra: p.Extra, Available: true}, nil
		},
	)

	created, err := service.Create(context.Background(), params)

	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, extra, created.Extra)
	assert.True(t, created.Available)
}

func TestService_Create_EnrichmentFailureDoesNotFailCreate(t *testing.T) {
	service, m := newTestService(t)
	passthroughTx(m.tx)

	params := validCreateParams()

	m.repo.EXPECT().FindByFilters(gomock.Any(), gomock.Any()).Return(nil, nil)
	m.enricher.EXPECT().Enrich(gomock.Any(), params.Title, params.Author, "").
		Return(nil, context.DeadlineExceeded)
	m.repo.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, p CreateParams) (*Book, error) {
			assert.Nil(t, p.Extra)
			return &Book{ID: uuid.New(), Title: p.Title, Available: true}, nil
		},
	)

	created, err := service.Create(context.Background(), params)

	require.NoError(t, err)
	assert.Nil(t, created.Extra)
}

func TestService_GetByID_NotFound(t *testing.T) {
	service, m := newTestService(t)

	id := uuid.New()
	m.repo.EXPECT().GetByID(gomock.Any(), id).Return(nil, nil)

	b, err := service.GetByID(context.Background(), id)

	assert.Nil(t, b)
	var nfErr *NotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, id, nfErr.ID)
}

func TestService_Update_PartialGenreOnly(t *testing.T) {
	service, m := newTestService(t)
	passthroughTx(m.tx)

	id := uuid.New()
	existing := &Book{ID: id, Title: "Original", Genre: "Fiction", Year: 1984, Pages: 300}

	m.repo.EXPECT().GetByID(gomock.Any(), id).Return(existing, nil)
	m.repo.EXPECT().Update(gomock.Any(), id, UpdateParams{Genre: strPtr("Science Fiction")}).
		Return(&Book{ID: id, Title: "Original", Genre: "Science Fiction", Year: 1984, Pages: 300}, nil)

	updated, err := service.Update(context.Background(), id, UpdateParams{Genre: strPtr("Science Fiction")})

	require.NoError(t, err)
	assert.Equal(t, "Science Fiction", updated.Genre)
	assert.Equal(t, "Original", updated.Title)
}

func TestService_Update_InvalidYear(t *testing.T) {
	service, m := newTestService(t)

	id := uuid.New()
	m.repo.EXPECT().GetByID(gomock.Any(), id).Return(&Book{ID: id}, nil)

	updated, err := service.Update(context.Background(), id, UpdateParams{Year: intPtr(999)})

	assert.Nil(t, updated)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestService_Update_NotFound(t *testing.T) {
	service, m := newTestService(t)

	id := uuid.New()
	m.repo.EXPECT().GetByID(gomock.Any(), id).Return(nil, nil)

	updated, err := service.Update(context.Background(), id, UpdateParams{Genre: strPtr("History")})

	assert.Nil(t, updated)
	var nfErr *NotFoundError
	assert.ErrorAs(t, err, &nfErr)
}

func TestService_Delete(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		service, m := newTestService(t)
		passthroughTx(m.tx)

		id := uuid.New()
		m.repo.EXPECT().Delete(gomock.Any(), id).Return(true, nil)

		assert.NoError(t, service.Delete(context.Background(), id))
	})

	t.Run("not found", func(t *testing.T) {
		service, m := newTestService(t)
		passthroughTx(m.tx)

		id := uuid.New()
		m.repo.EXPECT().Delete(gomock.Any(), id).Return(false, nil)

		var nfErr *NotFoundError
		assert.ErrorAs(t, service.Delete(context.Background(), id), &nfErr)
	})
}

func TestService_List(t *testing.T) {
	service, m := newTestService(t)

	f := Filter{Genre: "History", Limit: 10, Offset: 20}
	books := []Book{{ID: uuid.New()}, {ID: uuid.New()}}

	m.repo.EXPECT().FindByFilters(gomock.Any(), f).Return(books, nil)
	m.repo.EXPECT().CountByFilters(gomock.Any(), f).Return(42, nil)

	items, total, err := service.List(context.Background(), f)

	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, 42, total)
}

func TestService_List_RepoError(t *testing.T) {
	service, m := newTestService(t)

	m.repo.EXPECT().FindByFilters(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("connection reset"))

	_, _, err := service.List(context.Background(), Filter{})

	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "list", opErr.Op)
}

func TestService_Checkout(t *testing.T) {
	t.Run("marks unavailable", func(t *testing.T) {
		service, m := newTestService(t)
		passthroughTx(m.tx)

		id := uuid.New()
		m.repo.EXPECT().GetByID(gomock.Any(), id).Return(&Book{ID: id, Available: true}, nil)
		m.repo.EXPECT().Update(gomock.Any(), id, UpdateParams{Available: boolPtr(false)}).
			Return(&Book{ID: id, Available: false}, nil)

		b, err := service.Checkout(context.Background(), id)

		require.NoError(t, err)
		assert.False(t, b.Available)
	})

	t.Run("already checked out", func(t *testing.T) {
		service, m := newTestService(t)

		id := uuid.New()
		m.repo.EXPECT().GetByID(gomock.Any(), id).Return(&Book{ID: id, Available: false}, nil)

		b, err := service.Checkout(context.Background(), id)

		assert.Nil(t, b)
		var naErr *NotAvailableError
		require.ErrorAs(t, err, &naErr)
		assert.Equal(t, id, naErr.ID)
	})
}

func TestService_Return_Idempotent(t *testing.T) {
	service, m := newTestService(t)
	passthroughTx(m.tx)

	id := uuid.New()
	m.repo.EXPECT().GetByID(gomock.Any(), id).Return(&Book{ID: id, Available: true}, nil)
	m.repo.EXPECT().Update(gomock.Any(), id, UpdateParams{Available: boolPtr(true)}).
		Return(&Book{ID: id, Available: true}, nil)

	b, err := service.Return(context.Background(), id)

	require.NoError(t, err)
	assert.True(t, b.Available)
}
