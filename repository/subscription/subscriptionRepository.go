// repository/subscription/repo.go
package subrepo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"liblending/model"
)

// ErrLimitReached reports a quota counter increment rejected by its
// tier-limit guard.
var ErrLimitReached = errors.New("borrow limit reached")

type Repo interface {
	ByUser(ctx context.Context, userID int64) (*model.Subscription, error)
	Insert(ctx context.Context, s *model.Subscription) error
	UpdatePlan(ctx context.Context, userID int64, tier model.SubscriptionTier, start time.Time, end *time.Time, active bool) error
	SetActive(ctx context.Context, userID int64, active bool) error
	SetAutoRenew(ctx context.Context, userID int64, autoRenew bool) error

	// Unit-of-work methods used inside the lending transaction.
	ByUserForUpdate(ctx context.Context, tx *sql.Tx, userID int64) (*model.Subscription, error)
	InsertTx(ctx context.Context, tx *sql.Tx, s *model.Subscription) error
	IncrementPhysical(ctx context.Context, tx *sql.Tx, userID int64, limit int) error
	IncrementDigital(ctx context.Context, tx *sql.Tx, userID int64, limit int) error
	DecrementPhysical(ctx context.Context, tx *sql.Tx, userID int64) error
	DecrementDigital(ctx context.Context, tx *sql.Tx, userID int64) error

	// Sweep queries and status-guarded transitions.
	ListExpired(ctx context.Context, now time.Time) ([]model.Subscription, error)
	DowngradeToFree(ctx context.Context, id int64, asOf time.Time) (bool, error)
	ListAutoRenewable(ctx context.Context, before time.Time) ([]model.Subscription, error)
	Renew(ctx context.Context, id int64, oldEnd time.Time, start time.Time, newEnd *time.Time) (bool, error)
	ExpiringBetween(ctx context.Context, from, to time.Time) ([]model.Subscription, error)
}

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db} }

const subCols = `id, user_id, tier, start_date, end_date, is_active, auto_renew,
       physical_books_borrowed, digital_books_borrowed, created_at, updated_at`

func scanSub(row interface{ Scan(...any) error }) (*model.Subscription, error) {
	s := &model.Subscription{}
	err := row.Scan(&s.ID, &s.UserID, &s.Tier, &s.StartDate, &s.EndDate,
		&s.IsActive, &s.AutoRenew, &s.PhysicalBooksBorrowed,
		&s.DigitalBooksBorrowed, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *repo) ByUser(ctx context.Context, userID int64) (*model.Subscription, error) {
	return scanSub(r.db.QueryRowContext(ctx,
		`SELECT `+subCols+` FROM subscriptions WHERE user_id = $1`, userID))
}

func (r *repo) Insert(ctx context.Context, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (user_id, tier, start_date, end_date, is_active, auto_renew)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id, created_at, updated_at`
	return r.db.QueryRowContext(ctx, q,
		s.UserID, s.Tier, s.StartDate, s.EndDate, s.IsActive, s.AutoRenew,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

func (r *repo) UpdatePlan(ctx context.Context, userID int64, tier model.SubscriptionTier, start time.Time, end *time.Time, active bool) error {
	const q = `
UPDATE subscriptions
SET tier = $2, start_date = $3, end_date = $4, is_active = $5, updated_at = now()
WHERE user_id = $1`
	res, err := r.db.ExecContext(ctx, q, userID, tier, start, end, active)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *repo) SetActive(ctx context.Context, userID int64, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET is_active = $2, updated_at = now() WHERE user_id = $1`,
		userID, active)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *repo) SetAutoRenew(ctx context.Context, userID int64, autoRenew bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET auto_renew = $2, updated_at = now() WHERE user_id = $1`,
		userID, autoRenew)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *repo) ByUserForUpdate(ctx context.Context, tx *sql.Tx, userID int64) (*model.Subscription, error) {
	return scanSub(tx.QueryRowContext(ctx,
		`SELECT `+subCols+` FROM subscriptions WHERE user_id = $1 FOR UPDATE`, userID))
}

func (r *repo) InsertTx(ctx context.Context, tx *sql.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (user_id, tier, start_date, end_date, is_active, auto_renew)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id, created_at, updated_at`
	return tx.QueryRowContext(ctx, q,
		s.UserID, s.Tier, s.StartDate, s.EndDate, s.IsActive, s.AutoRenew,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// Counter increments are limit-guarded in SQL so a quota can never be
// pushed past its tier cap, whatever the caller checked beforehand.
// limit < 0 means unlimited.
func (r *repo) IncrementPhysical(ctx context.Context, tx *sql.Tx, userID int64, limit int) error {
	const q = `
UPDATE subscriptions
SET physical_books_borrowed = physical_books_borrowed + 1, updated_at = now()
WHERE user_id = $1
  AND ($2 < 0 OR physical_books_borrowed < $2)`
	res, err := tx.ExecContext(ctx, q, userID, limit)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return ErrLimitReached
	}
	return nil
}

func (r *repo) IncrementDigital(ctx context.Context, tx *sql.Tx, userID int64, limit int) error {
	const q = `
UPDATE subscriptions
SET digital_books_borrowed = digital_books_borrowed + 1, updated_at = now()
WHERE user_id = $1
  AND ($2 < 0 OR digital_books_borrowed < $2)`
	res, err := tx.ExecContext(ctx, q, userID, limit)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return ErrLimitReached
	}
	return nil
}

// Decrements clamp at zero and never fail on an already-empty counter.
func (r *repo) DecrementPhysical(ctx context.Context, tx *sql.Tx, userID int64) error {
	const q = `
UPDATE subscriptions
SET physical_books_borrowed = physical_books_borrowed - 1, updated_at = now()
WHERE user_id = $1
  AND physical_books_borrowed > 0`
	_, err := tx.ExecContext(ctx, q, userID)
	return err
}

func (r *repo) DecrementDigital(ctx context.Context, tx *sql.Tx, userID int64) error {
	const q = `
UPDATE subscriptions
SET digital_books_borrowed = digital_books_borrowed - 1, updated_at = now()
WHERE user_id = $1
  AND digital_books_borrowed > 0`
	_, err := tx.ExecContext(ctx, q, userID)
	return err
}

func (r *repo) ListExpired(ctx context.Context, now time.Time) ([]model.Subscription, error) {
	const q = `
SELECT ` + subCols + `
FROM subscriptions
WHERE is_active = true
  AND tier <> 'FREE'
  AND end_date IS NOT NULL
  AND end_date < $1
ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSubs(rows)
}

// DowngradeToFree applies the period-boundary reset. The WHERE clause
// repeats the expiry condition so a concurrent sweep applies it once.
func (r *repo) DowngradeToFree(ctx context.Context, id int64, asOf time.Time) (bool, error) {
	const q = `
UPDATE subscriptions
SET tier = 'FREE', end_date = NULL, is_active = true,
    physical_books_borrowed = 0, digital_books_borrowed = 0, updated_at = now()
WHERE id = $1
  AND tier <> 'FREE'
  AND end_date IS NOT NULL
  AND end_date < $2`
	res, err := r.db.ExecContext(ctx, q, id, asOf)
	if err != nil {
		return false, err
	}
	aff, _ := res.RowsAffected()
	return aff > 0, nil
}

func (r *repo) ListAutoRenewable(ctx context.Context, before time.Time) ([]model.Subscription, error) {
	const q = `
SELECT ` + subCols + `
FROM subscriptions
WHERE auto_renew = true
  AND is_active = true
  AND end_date IS NOT NULL
  AND end_date <= $1
ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSubs(rows)
}

// Renew is guarded on the previous end date: if another renewal landed
// first the update matches nothing and the caller skips the row.
func (r *repo) Renew(ctx context.Context, id int64, oldEnd time.Time, start time.Time, newEnd *time.Time) (bool, error) {
	const q = `
UPDATE subscriptions
SET start_date = $3, end_date = $4, is_active = true, updated_at = now()
WHERE id = $1
  AND end_date = $2`
	res, err := r.db.ExecContext(ctx, q, id, oldEnd, start, newEnd)
	if err != nil {
		return false, err
	}
	aff, _ := res.RowsAffected()
	return aff > 0, nil
}

func (r *repo) ExpiringBetween(ctx context.Context, from, to time.Time) ([]model.Subscription, error) {
	const q = `
SELECT ` + subCols + `
FROM subscriptions
WHERE is_active = true
  AND end_date IS NOT NULL
  AND end_date BETWEEN $1 AND $2
ORDER BY end_date`
	rows, err := r.db.QueryContext(ctx, q, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSubs(rows)
}

func collectSubs(rows *sql.Rows) ([]model.Subscription, error) {
	var out []model.Subscription
	for rows.Next() {
		s, err := scanSub(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}
