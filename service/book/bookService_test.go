package booksvc_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"liblending/model"
	bookrepo "liblending/repository/book"
	booksvc "liblending/service/book"
)

type repoMock struct {
	createFn         func(ctx context.Context, b *model.Book) error
	byIDFn           func(ctx context.Context, id int64) (*model.Book, error)
	byISBNFn         func(ctx context.Context, isbn string) (*model.Book, error)
	listFn           func(ctx context.Context) ([]model.Book, error)
	searchFn         func(ctx context.Context, query string) ([]model.Book, error)
	updateFn         func(ctx context.Context, b *model.Book) error
	addCopiesFn      func(ctx context.Context, bookID int64, n int) error
	deleteFn         func(ctx context.Context, id int64) error
	hasOutstandingFn func(ctx context.Context, bookID int64) (bool, error)
}

var _ bookrepo.Repo = (*repoMock)(nil)

func (m *repoMock) Create(ctx context.Context, b *model.Book) error { return m.createFn(ctx, b) }
func (m *repoMock) ByID(ctx context.Context, id int64) (*model.Book, error) {
	return m.byIDFn(ctx, id)
}
func (m *repoMock) ByISBN(ctx context.Context, isbn string) (*model.Book, error) {
	return m.byISBNFn(ctx, isbn)
}
func (m *repoMock) List(ctx context.Context) ([]model.Book, error) { return m.listFn(ctx) }
func (m *repoMock) Search(ctx context.Context, query string) ([]model.Book, error) {
	return m.searchFn(ctx, query)
}
func (m *repoMock) Update(ctx context.Context, b *model.Book) error { return m.updateFn(ctx, b) }
func (m *repoMock) AddCopies(ctx context.Context, bookID int64, n int) error {
	return m.addCopiesFn(ctx, bookID, n)
}
func (m *repoMock) Delete(ctx context.Context, id int64) error { return m.deleteFn(ctx, id) }
func (m *repoMock) HasOutstanding(ctx context.Context, bookID int64) (bool, error) {
	return m.hasOutstandingFn(ctx, bookID)
}
func (m *repoMock) ByIDForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*model.Book, error) {
	panic("not used")
}
func (m *repoMock) DecrementAvailable(ctx context.Context, tx *sql.Tx, bookID int64) error {
	panic("not used")
}
func (m *repoMock) IncrementAvailable(ctx context.Context, tx *sql.Tx, bookID int64) error {
	panic("not used")
}

func TestCreate_Validation(t *testing.T) {
	s := booksvc.New(&repoMock{})
	ctx := context.Background()

	cases := []model.Book{
		{Author: "a", ISBN: "i"},                                    // missing title
		{Title: "t", ISBN: "i"},                                     // missing author
		{Title: "t", Author: "a"},                                   // missing isbn
		{Title: "t", Author: "a", ISBN: "i", TotalCopies: -1},       // negative copies
		{Title: "t", Author: "a", ISBN: "i", BookType: "HOLOGRAM"},  // unknown type
	}
	for i, b := range cases {
		if err := s.Create(ctx, &b); !errors.Is(err, booksvc.ErrBadInput) {
			t.Fatalf("case %d: got %v; want ErrBadInput", i, err)
		}
	}
}

func TestCreate_Defaults(t *testing.T) {
	m := &repoMock{
		createFn: func(ctx context.Context, b *model.Book) error { return nil },
	}
	s := booksvc.New(m)

	b := &model.Book{Title: "Clean Code", Author: "Martin", ISBN: "9780132350884", TotalCopies: 3}
	if err := s.Create(context.Background(), b); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.BookType != model.BookPhysical {
		t.Fatalf("BookType = %q; want PHYSICAL default", b.BookType)
	}
	if b.LoanPeriodDays != model.DefaultLoanPeriodDays {
		t.Fatalf("LoanPeriodDays = %d; want %d", b.LoanPeriodDays, model.DefaultLoanPeriodDays)
	}
	if b.AvailableCopies != 3 {
		t.Fatalf("AvailableCopies = %d; want 3", b.AvailableCopies)
	}
}

func TestDetail_NotFound(t *testing.T) {
	m := &repoMock{
		byIDFn: func(ctx context.Context, id int64) (*model.Book, error) { return nil, sql.ErrNoRows },
	}
	s := booksvc.New(m)

	if _, err := s.Detail(context.Background(), 99); !errors.Is(err, booksvc.ErrNotFound) {
		t.Fatalf("got %v; want ErrNotFound", err)
	}
}

func TestSearch_EmptyQueryLists(t *testing.T) {
	listed := false
	m := &repoMock{
		listFn: func(ctx context.Context) ([]model.Book, error) { listed = true; return nil, nil },
		searchFn: func(ctx context.Context, query string) ([]model.Book, error) {
			t.Fatal("search must not run for empty query")
			return nil, nil
		},
	}
	s := booksvc.New(m)

	if _, err := s.Search(context.Background(), ""); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !listed {
		t.Fatal("expected fallback to List")
	}
}

func TestAddCopies_RejectsNonPositive(t *testing.T) {
	s := booksvc.New(&repoMock{})
	if err := s.AddCopies(context.Background(), 1, 0); !errors.Is(err, booksvc.ErrBadInput) {
		t.Fatalf("got %v; want ErrBadInput", err)
	}
}

func TestDelete_RefusedWhileInUse(t *testing.T) {
	m := &repoMock{
		hasOutstandingFn: func(ctx context.Context, bookID int64) (bool, error) { return true, nil },
		deleteFn: func(ctx context.Context, id int64) error {
			t.Fatal("delete must not run")
			return nil
		},
	}
	s := booksvc.New(m)

	if err := s.Delete(context.Background(), 1); !errors.Is(err, booksvc.ErrInUse) {
		t.Fatalf("got %v; want ErrInUse", err)
	}
}

func TestDelete_Clean(t *testing.T) {
	m := &repoMock{
		hasOutstandingFn: func(ctx context.Context, bookID int64) (bool, error) { return false, nil },
		deleteFn:         func(ctx context.Context, id int64) error { return nil },
	}
	s := booksvc.New(m)

	if err := s.Delete(context.Background(), 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}
