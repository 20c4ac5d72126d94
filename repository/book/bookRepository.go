// repository/book/repo.go
package bookrepo

import (
	"context"
	"database/sql"
	"errors"

	"liblending/model"
)

// Guarded-update sentinels. Services translate these into their own
// coded errors.
var (
	ErrNoAvailableCopies = errors.New("no available copies")
	ErrAtCapacity        = errors.New("available copies already at total")
)

type Repo interface {
	Create(ctx context.Context, b *model.Book) error
	ByID(ctx context.Context, id int64) (*model.Book, error)
	ByISBN(ctx context.Context, isbn string) (*model.Book, error)
	List(ctx context.Context) ([]model.Book, error)
	Search(ctx context.Context, query string) ([]model.Book, error)
	Update(ctx context.Context, b *model.Book) error
	AddCopies(ctx context.Context, bookID int64, n int) error
	Delete(ctx context.Context, id int64) error
	HasOutstanding(ctx context.Context, bookID int64) (bool, error)

	// Unit-of-work methods. The caller owns the transaction.
	ByIDForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*model.Book, error)
	DecrementAvailable(ctx context.Context, tx *sql.Tx, bookID int64) error
	IncrementAvailable(ctx context.Context, tx *sql.Tx, bookID int64) error
}

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db} }

const bookCols = `id, title, author, isbn, publisher, category,
       total_copies, available_copies, book_type, loan_period_days,
       is_reference, created_at, updated_at`

func scanBook(row interface{ Scan(...any) error }) (*model.Book, error) {
	b := &model.Book{}
	err := row.Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &b.Publisher, &b.Category,
		&b.TotalCopies, &b.AvailableCopies, &b.BookType, &b.LoanPeriodDays,
		&b.IsReference, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *repo) Create(ctx context.Context, b *model.Book) error {
	const q = `
INSERT INTO books (title, author, isbn, publisher, category,
                   total_copies, available_copies, book_type,
                   loan_period_days, is_reference)
VALUES ($1,$2,$3,$4,$5,$6,$6,$7,$8,$9)
RETURNING id, created_at, updated_at`
	return r.db.QueryRowContext(ctx, q,
		b.Title, b.Author, b.ISBN, b.Publisher, b.Category,
		b.TotalCopies, b.BookType, b.LoanPeriodDays, b.IsReference,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
}

func (r *repo) ByID(ctx context.Context, id int64) (*model.Book, error) {
	return scanBook(r.db.QueryRowContext(ctx,
		`SELECT `+bookCols+` FROM books WHERE id = $1`, id))
}

func (r *repo) ByISBN(ctx context.Context, isbn string) (*model.Book, error) {
	return scanBook(r.db.QueryRowContext(ctx,
		`SELECT `+bookCols+` FROM books WHERE isbn = $1`, isbn))
}

func (r *repo) List(ctx context.Context) ([]model.Book, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bookCols+` FROM books ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBooks(rows)
}

func (r *repo) Search(ctx context.Context, query string) ([]model.Book, error) {
	const q = `
SELECT ` + bookCols + `
FROM books
WHERE title ILIKE '%' || $1 || '%'
   OR author ILIKE '%' || $1 || '%'
   OR category ILIKE '%' || $1 || '%'
ORDER BY title`
	rows, err := r.db.QueryContext(ctx, q, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBooks(rows)
}

func collectBooks(rows *sql.Rows) ([]model.Book, error) {
	var out []model.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (r *repo) Update(ctx context.Context, b *model.Book) error {
	const q = `
UPDATE books
SET title = $2, author = $3, publisher = $4, category = $5,
    loan_period_days = $6, is_reference = $7, updated_at = now()
WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q,
		b.ID, b.Title, b.Author, b.Publisher, b.Category,
		b.LoanPeriodDays, b.IsReference)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AddCopies raises total and available together so the copy-accounting
// identity holds through catalog edits.
func (r *repo) AddCopies(ctx context.Context, bookID int64, n int) error {
	if n <= 0 {
		return errors.New("n must be > 0")
	}
	const q = `
UPDATE books
SET total_copies = total_copies + $2,
    available_copies = available_copies + $2,
    updated_at = now()
WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, bookID, n)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *repo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *repo) HasOutstanding(ctx context.Context, bookID int64) (bool, error) {
	const q = `
SELECT EXISTS (SELECT 1 FROM borrowings WHERE book_id = $1 AND is_returned = false)
    OR EXISTS (SELECT 1 FROM reservations WHERE book_id = $1 AND is_active = true)`
	var out bool
	err := r.db.QueryRowContext(ctx, q, bookID).Scan(&out)
	return out, err
}

func (r *repo) ByIDForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*model.Book, error) {
	return scanBook(tx.QueryRowContext(ctx,
		`SELECT `+bookCols+` FROM books WHERE id = $1 FOR UPDATE`, id))
}

// DecrementAvailable only succeeds while a copy is on the shelf. The
// guard makes the last-copy race serialize to a single winner.
func (r *repo) DecrementAvailable(ctx context.Context, tx *sql.Tx, bookID int64) error {
	const q = `
UPDATE books
SET available_copies = available_copies - 1, updated_at = now()
WHERE id = $1
  AND available_copies > 0`
	res, err := tx.ExecContext(ctx, q, bookID)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return ErrNoAvailableCopies
	}
	return nil
}

func (r *repo) IncrementAvailable(ctx context.Context, tx *sql.Tx, bookID int64) error {
	const q = `
UPDATE books
SET available_copies = available_copies + 1, updated_at = now()
WHERE id = $1
  AND available_copies < total_copies`
	res, err := tx.ExecContext(ctx, q, bookID)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return ErrAtCapacity
	}
	return nil
}
