// repository/reservation/repo.go
package resrepo

import (
	"context"
	"database/sql"
	"time"

	"liblending/model"
)

type Repo interface {
	Insert(ctx context.Context, tx *sql.Tx, res *model.Reservation) error
	ByID(ctx context.Context, id int64) (*model.Reservation, error)
	ByIDForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*model.Reservation, error)
	ActiveByUser(ctx context.Context, userID int64) ([]model.Reservation, error)
	ActiveForBook(ctx context.Context, bookID int64) ([]model.Reservation, error)
	CountActiveByUser(ctx context.Context, tx *sql.Tx, userID int64) (int, error)
	CountActiveForBook(ctx context.Context, tx *sql.Tx, bookID int64) (int, error)
	CountWaitingForBook(ctx context.Context, bookID int64) (int, error)
	HasActiveForUserAndBook(ctx context.Context, tx *sql.Tx, userID, bookID int64) (bool, error)

	// Queue operations. Renumbering lives here and nowhere else.
	NextInQueue(ctx context.Context, tx *sql.Tx, bookID int64) (*model.Reservation, error)
	MarkAvailable(ctx context.Context, tx *sql.Tx, id int64, notifiedOn, pickupUntil time.Time) (bool, error)
	Deactivate(ctx context.Context, tx *sql.Tx, id int64, status model.ReservationStatus) (bool, error)
	ShiftQueuePositions(ctx context.Context, tx *sql.Tx, bookID int64, abovePosition int) error

	ListExpired(ctx context.Context, today time.Time) ([]model.Reservation, error)
}

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db} }

const resCols = `id, user_id, book_id, reservation_date, expiry_date,
       notification_date, is_active, queue_position, status`

func scanReservation(row interface{ Scan(...any) error }) (*model.Reservation, error) {
	res := &model.Reservation{}
	err := row.Scan(&res.ID, &res.UserID, &res.BookID, &res.ReservationDate,
		&res.ExpiryDate, &res.NotificationDate, &res.IsActive,
		&res.QueuePosition, &res.Status)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *repo) Insert(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `
INSERT INTO reservations (user_id, book_id, reservation_date, expiry_date,
                          is_active, queue_position, status)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING id`
	return tx.QueryRowContext(ctx, q,
		res.UserID, res.BookID, res.ReservationDate, res.ExpiryDate,
		res.IsActive, res.QueuePosition, res.Status,
	).Scan(&res.ID)
}

func (r *repo) ByID(ctx context.Context, id int64) (*model.Reservation, error) {
	return scanReservation(r.db.QueryRowContext(ctx,
		`SELECT `+resCols+` FROM reservations WHERE id = $1`, id))
}

func (r *repo) ByIDForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*model.Reservation, error) {
	return scanReservation(tx.QueryRowContext(ctx,
		`SELECT `+resCols+` FROM reservations WHERE id = $1 FOR UPDATE`, id))
}

func (r *repo) ActiveByUser(ctx context.Context, userID int64) ([]model.Reservation, error) {
	const q = `
SELECT ` + resCols + `
FROM reservations
WHERE user_id = $1 AND is_active = true
ORDER BY reservation_date`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReservations(rows)
}

func (r *repo) ActiveForBook(ctx context.Context, bookID int64) ([]model.Reservation, error) {
	const q = `
SELECT ` + resCols + `
FROM reservations
WHERE book_id = $1 AND is_active = true
ORDER BY queue_position`
	rows, err := r.db.QueryContext(ctx, q, bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReservations(rows)
}

func (r *repo) CountActiveByUser(ctx context.Context, tx *sql.Tx, userID int64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE user_id = $1 AND is_active = true`,
		userID).Scan(&n)
	return n, err
}

func (r *repo) CountActiveForBook(ctx context.Context, tx *sql.Tx, bookID int64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE book_id = $1 AND is_active = true`,
		bookID).Scan(&n)
	return n, err
}

func (r *repo) CountWaitingForBook(ctx context.Context, bookID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE book_id = $1 AND is_active = true AND status = 'WAITING'`,
		bookID).Scan(&n)
	return n, err
}

func (r *repo) HasActiveForUserAndBook(ctx context.Context, tx *sql.Tx, userID, bookID int64) (bool, error) {
	const q = `
SELECT EXISTS (
	SELECT 1 FROM reservations
	WHERE user_id = $1 AND book_id = $2 AND is_active = true)`
	var out bool
	err := tx.QueryRowContext(ctx, q, userID, bookID).Scan(&out)
	return out, err
}

// NextInQueue locks the head waiter so a concurrent return cannot
// promote the same reservation twice.
func (r *repo) NextInQueue(ctx context.Context, tx *sql.Tx, bookID int64) (*model.Reservation, error) {
	const q = `
SELECT ` + resCols + `
FROM reservations
WHERE book_id = $1 AND is_active = true AND status = 'WAITING'
ORDER BY queue_position
LIMIT 1
FOR UPDATE`
	return scanReservation(tx.QueryRowContext(ctx, q, bookID))
}

func (r *repo) MarkAvailable(ctx context.Context, tx *sql.Tx, id int64, notifiedOn, pickupUntil time.Time) (bool, error) {
	const q = `
UPDATE reservations
SET status = 'AVAILABLE', notification_date = $2, expiry_date = $3
WHERE id = $1
  AND is_active = true
  AND status = 'WAITING'`
	res, err := tx.ExecContext(ctx, q, id, notifiedOn, pickupUntil)
	if err != nil {
		return false, err
	}
	aff, _ := res.RowsAffected()
	return aff > 0, nil
}

// Deactivate moves an active reservation into a terminal status. The
// is_active guard makes cancel, fulfill and the expiry sweep each apply
// at most once per reservation.
func (r *repo) Deactivate(ctx context.Context, tx *sql.Tx, id int64, status model.ReservationStatus) (bool, error) {
	const q = `
UPDATE reservations
SET is_active = false, status = $2
WHERE id = $1
  AND is_active = true`
	res, err := tx.ExecContext(ctx, q, id, status)
	if err != nil {
		return false, err
	}
	aff, _ := res.RowsAffected()
	return aff > 0, nil
}

func (r *repo) ShiftQueuePositions(ctx context.Context, tx *sql.Tx, bookID int64, abovePosition int) error {
	const q = `
UPDATE reservations
SET queue_position = queue_position - 1
WHERE book_id = $1
  AND is_active = true
  AND queue_position > $2`
	_, err := tx.ExecContext(ctx, q, bookID, abovePosition)
	return err
}

func (r *repo) ListExpired(ctx context.Context, today time.Time) ([]model.Reservation, error) {
	const q = `
SELECT ` + resCols + `
FROM reservations
WHERE is_active = true
  AND expiry_date < $1
ORDER BY book_id, queue_position`
	rows, err := r.db.QueryContext(ctx, q, today)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReservations(rows)
}

func collectReservations(rows *sql.Rows) ([]model.Reservation, error) {
	var out []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}
