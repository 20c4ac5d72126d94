// repository/borrowing/repo.go
package borrowrepo

import (
	"context"
	"database/sql"
	"time"

	"liblending/model"
)

type Repo interface {
	Insert(ctx context.Context, tx *sql.Tx, b *model.Borrowing) error
	ByID(ctx context.Context, id int64) (*model.Borrowing, error)
	ByIDForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*model.Borrowing, error)
	MarkReturned(ctx context.Context, tx *sql.Tx, id int64, returnDate time.Time, fine float64) (bool, error)
	Renew(ctx context.Context, id int64, newDue, renewedOn time.Time) (bool, error)
	ListByUser(ctx context.Context, userID int64) ([]model.Borrowing, error)
	ListOverdue(ctx context.Context, today time.Time) ([]model.Borrowing, error)
	UserHasBookOut(ctx context.Context, userID, bookID int64) (bool, error)
	MostBorrowed(ctx context.Context, limit int) ([]model.BookBorrowCount, error)
}

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db} }

const borrowCols = `id, user_id, book_id, borrow_date, due_date, return_date,
       fine, is_returned, renewal_count, max_renewals, last_renewal_date`

func scanBorrowing(row interface{ Scan(...any) error }) (*model.Borrowing, error) {
	b := &model.Borrowing{}
	err := row.Scan(&b.ID, &b.UserID, &b.BookID, &b.BorrowDate, &b.DueDate,
		&b.ReturnDate, &b.Fine, &b.IsReturned, &b.RenewalCount,
		&b.MaxRenewals, &b.LastRenewalDate)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *repo) Insert(ctx context.Context, tx *sql.Tx, b *model.Borrowing) error {
	const q = `
INSERT INTO borrowings (user_id, book_id, borrow_date, due_date, max_renewals)
VALUES ($1,$2,$3,$4,$5)
RETURNING id`
	return tx.QueryRowContext(ctx, q,
		b.UserID, b.BookID, b.BorrowDate, b.DueDate, b.MaxRenewals,
	).Scan(&b.ID)
}

func (r *repo) ByID(ctx context.Context, id int64) (*model.Borrowing, error) {
	return scanBorrowing(r.db.QueryRowContext(ctx,
		`SELECT `+borrowCols+` FROM borrowings WHERE id = $1`, id))
}

func (r *repo) ByIDForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*model.Borrowing, error) {
	return scanBorrowing(tx.QueryRowContext(ctx,
		`SELECT `+borrowCols+` FROM borrowings WHERE id = $1 FOR UPDATE`, id))
}

// MarkReturned is a no-op for an already-returned record; the guard
// keeps a double return from rewriting the stored fine.
func (r *repo) MarkReturned(ctx context.Context, tx *sql.Tx, id int64, returnDate time.Time, fine float64) (bool, error) {
	const q = `
UPDATE borrowings
SET return_date = $2, is_returned = true, fine = $3
WHERE id = $1
  AND is_returned = false`
	res, err := tx.ExecContext(ctx, q, id, returnDate, fine)
	if err != nil {
		return false, err
	}
	aff, _ := res.RowsAffected()
	return aff > 0, nil
}

func (r *repo) Renew(ctx context.Context, id int64, newDue, renewedOn time.Time) (bool, error) {
	const q = `
UPDATE borrowings
SET due_date = $2, renewal_count = renewal_count + 1, last_renewal_date = $3
WHERE id = $1
  AND is_returned = false
  AND renewal_count < max_renewals`
	res, err := r.db.ExecContext(ctx, q, id, newDue, renewedOn)
	if err != nil {
		return false, err
	}
	aff, _ := res.RowsAffected()
	return aff > 0, nil
}

func (r *repo) ListByUser(ctx context.Context, userID int64) ([]model.Borrowing, error) {
	const q = `
SELECT ` + borrowCols + `
FROM borrowings
WHERE user_id = $1
ORDER BY borrow_date DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBorrowings(rows)
}

func (r *repo) ListOverdue(ctx context.Context, today time.Time) ([]model.Borrowing, error) {
	const q = `
SELECT ` + borrowCols + `
FROM borrowings
WHERE is_returned = false
  AND due_date < $1
ORDER BY due_date`
	rows, err := r.db.QueryContext(ctx, q, today)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBorrowings(rows)
}

func (r *repo) UserHasBookOut(ctx context.Context, userID, bookID int64) (bool, error) {
	const q = `
SELECT EXISTS (
	SELECT 1 FROM borrowings
	WHERE user_id = $1 AND book_id = $2 AND is_returned = false)`
	var out bool
	err := r.db.QueryRowContext(ctx, q, userID, bookID).Scan(&out)
	return out, err
}

func (r *repo) MostBorrowed(ctx context.Context, limit int) ([]model.BookBorrowCount, error) {
	const q = `
SELECT b.id, b.title, b.author, COUNT(br.id) AS borrow_count
FROM books b
JOIN borrowings br ON br.book_id = b.id
GROUP BY b.id, b.title, b.author
ORDER BY borrow_count DESC, b.id
LIMIT $1`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BookBorrowCount
	for rows.Next() {
		var rc model.BookBorrowCount
		if err := rows.Scan(&rc.BookID, &rc.Title, &rc.Author, &rc.BorrowCount); err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

func collectBorrowings(rows *sql.Rows) ([]model.Borrowing, error) {
	var out []model.Borrowing
	for rows.Next() {
		b, err := scanBorrowing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}
