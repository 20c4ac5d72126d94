package booksvc

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"liblending/model"
	bookrepo "liblending/repository/book"
)

var (
	ErrNotFound      = errors.New("book not found")
	ErrDuplicateISBN = errors.New("isbn already registered")
	ErrInUse         = errors.New("book has outstanding borrowings or reservations")
	ErrBadInput      = errors.New("bad input")
)

type Service interface {
	Create(ctx context.Context, b *model.Book) error
	List(ctx context.Context) ([]model.Book, error)
	Detail(ctx context.Context, id int64) (*model.Book, error)
	Search(ctx context.Context, query string) ([]model.Book, error)
	Update(ctx context.Context, b *model.Book) error
	AddCopies(ctx context.Context, bookID int64, n int) error
	Delete(ctx context.Context, id int64) error
}

type service struct{ r bookrepo.Repo }

func New(r bookrepo.Repo) Service { return &service{r} }

func (s *service) Create(ctx context.Context, b *model.Book) error {
	if b.Title == "" || b.Author == "" || b.ISBN == "" {
		return ErrBadInput
	}
	if b.TotalCopies < 0 {
		return ErrBadInput
	}
	if b.BookType == "" {
		b.BookType = model.BookPhysical
	}
	if !model.IsValidBookType(string(b.BookType)) {
		return ErrBadInput
	}
	if b.LoanPeriodDays <= 0 {
		b.LoanPeriodDays = model.DefaultLoanPeriodDays
	}

	if err := s.r.Create(ctx, b); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrDuplicateISBN
		}
		return err
	}
	b.AvailableCopies = b.TotalCopies
	return nil
}

func (s *service) List(ctx context.Context) ([]model.Book, error) {
	return s.r.List(ctx)
}

func (s *service) Detail(ctx context.Context, id int64) (*model.Book, error) {
	b, err := s.r.ByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

func (s *service) Search(ctx context.Context, query string) ([]model.Book, error) {
	if query == "" {
		return s.r.List(ctx)
	}
	return s.r.Search(ctx, query)
}

func (s *service) Update(ctx context.Context, b *model.Book) error {
	if b.Title == "" || b.Author == "" {
		return ErrBadInput
	}
	if err := s.r.Update(ctx, b); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *service) AddCopies(ctx context.Context, bookID int64, n int) error {
	if n <= 0 {
		return ErrBadInput
	}
	if err := s.r.AddCopies(ctx, bookID, n); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Delete refuses while live borrowings or reservations still point at
// the book; the circulation trail must stay resolvable.
func (s *service) Delete(ctx context.Context, id int64) error {
	busy, err := s.r.HasOutstanding(ctx, id)
	if err != nil {
		return err
	}
	if busy {
		return ErrInUse
	}
	if err := s.r.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
