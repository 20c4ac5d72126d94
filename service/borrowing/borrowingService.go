package borrowsvc

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"liblending/model"
	bookrepo "liblending/repository/book"
	borrowrepo "liblending/repository/borrowing"
	subrepo "liblending/repository/subscription"
)

// errors used by controllers

type ErrCode string

const (
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrNotBorrowable   ErrCode = "NOT_BORROWABLE"
	ErrQuotaExceeded   ErrCode = "QUOTA_EXCEEDED"
	ErrUnavailable     ErrCode = "UNAVAILABLE"
	ErrAlreadyReturned ErrCode = "ALREADY_RETURNED"
	ErrNotRenewable    ErrCode = "NOT_RENEWABLE"
	ErrForbidden       ErrCode = "FORBIDDEN"
)

type codedError struct{ code ErrCode }

func (e codedError) Error() string { return string(e.code) }
func (e codedError) Code() ErrCode { return e.code }
func makeErr(c ErrCode) error      { return codedError{code: c} }

// Code extracts error code
func Code(err error) ErrCode {
	var ce interface{ Code() ErrCode }
	if errors.As(err, &ce) {
		return ce.Code()
	}
	return ""
}

// Quota is the subscription tracker's transactional face; satisfied by
// the subscription service.
type Quota interface {
	ReserveQuota(ctx context.Context, tx *sql.Tx, userID int64, bookType model.BookType) error
	ReleaseQuota(ctx context.Context, tx *sql.Tx, userID int64, bookType model.BookType) error
}

// Queue promotes the head waiter when a copy comes back; satisfied by
// the reservation service.
type Queue interface {
	PromoteNext(ctx context.Context, tx *sql.Tx, bookID int64) error
}

// Holds answers whether anyone is waiting on a book; only consulted
// when the renewal-blocking policy is on.
type Holds interface {
	CountWaitingForBook(ctx context.Context, bookID int64) (int, error)
}

type Users interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

type Service interface {
	// Borrow runs ledger decrement, quota increment and record creation
	// as one transaction.
	Borrow(ctx context.Context, userID, bookID int64) (*model.Borrowing, error)

	// Return closes the borrowing, computes the fine, releases the copy
	// and quota, and promotes the next waiter in the same transaction.
	Return(ctx context.Context, borrowingID int64) (*model.Borrowing, error)

	Renew(ctx context.Context, borrowingID, userID int64) (*model.Borrowing, error)

	// CalculateFine is a pure projection; it never writes.
	CalculateFine(ctx context.Context, borrowingID int64) (float64, error)

	MyBorrowings(ctx context.Context, userID int64) ([]model.Borrowing, error)
	Overdue(ctx context.Context) ([]model.Borrowing, error)

	// MostBorrowed ranks titles by all-time borrow count.
	MostBorrowed(ctx context.Context, limit int) ([]model.BookBorrowCount, error)
}

// Config carries the circulation policy knobs.
type Config struct {
	DailyFineRate      float64
	RenewalDays        int
	RenewBlockedByHold bool
}

type service struct {
	db    *sql.DB
	r     borrowrepo.Repo
	books bookrepo.Repo
	users Users
	quota Quota
	queue Queue
	holds Holds
	cfg   Config
	now   func() time.Time
}

func New(db *sql.DB, r borrowrepo.Repo, books bookrepo.Repo, users Users, quota Quota, queue Queue, holds Holds, cfg Config) Service {
	return newService(db, r, books, users, quota, queue, holds, cfg, time.Now)
}

// NewWithClock fixes the time source for deterministic tests.
func NewWithClock(db *sql.DB, r borrowrepo.Repo, books bookrepo.Repo, users Users, quota Quota, queue Queue, holds Holds, cfg Config, now func() time.Time) Service {
	return newService(db, r, books, users, quota, queue, holds, cfg, now)
}

func newService(db *sql.DB, r borrowrepo.Repo, books bookrepo.Repo, users Users, quota Quota, queue Queue, holds Holds, cfg Config, now func() time.Time) Service {
	if cfg.DailyFineRate <= 0 {
		cfg.DailyFineRate = 0.50
	}
	if cfg.RenewalDays <= 0 {
		cfg.RenewalDays = 14
	}
	return &service{db: db, r: r, books: books, users: users, quota: quota, queue: queue, holds: holds, cfg: cfg, now: now}
}

func (s *service) Borrow(ctx context.Context, userID, bookID int64) (b *model.Borrowing, err error) {
	exists, err := s.users.Exists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, makeErr(ErrNotFound)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if b, err = s.borrow(ctx, tx, userID, bookID); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return b, nil
}

// borrow is the transactional body of Borrow. The gates run in policy
// order: reference flag, then quota, then availability — a FREE-tier
// user asking for a sold-out physical book is told about their quota,
// not about the shelf.
func (s *service) borrow(ctx context.Context, tx *sql.Tx, userID, bookID int64) (*model.Borrowing, error) {
	book, err := s.books.ByIDForUpdate(ctx, tx, bookID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, makeErr(ErrNotFound)
		}
		return nil, err
	}
	if book.IsReference {
		return nil, makeErr(ErrNotBorrowable)
	}

	if err := s.quota.ReserveQuota(ctx, tx, userID, book.BookType); err != nil {
		if errors.Is(err, subrepo.ErrLimitReached) {
			return nil, makeErr(ErrQuotaExceeded)
		}
		return nil, err
	}

	if book.AvailableCopies <= 0 {
		return nil, makeErr(ErrUnavailable)
	}
	if err := s.books.DecrementAvailable(ctx, tx, bookID); err != nil {
		if errors.Is(err, bookrepo.ErrNoAvailableCopies) {
			return nil, makeErr(ErrUnavailable)
		}
		return nil, err
	}

	today := s.now()
	b := &model.Borrowing{
		UserID:      userID,
		BookID:      bookID,
		BorrowDate:  today,
		DueDate:     today.AddDate(0, 0, book.LoanDays()),
		MaxRenewals: model.DefaultMaxRenewals,
	}
	if err := s.r.Insert(ctx, tx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *service) Return(ctx context.Context, borrowingID int64) (b *model.Borrowing, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	b, err = s.r.ByIDForUpdate(ctx, tx, borrowingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, makeErr(ErrNotFound)
		}
		return nil, err
	}
	if b.IsReturned {
		return nil, makeErr(ErrAlreadyReturned)
	}

	book, err := s.books.ByIDForUpdate(ctx, tx, b.BookID)
	if err != nil {
		return nil, err
	}

	today := s.now()
	fine := lateFine(b.DueDate, today, s.cfg.DailyFineRate)

	ok, err := s.r.MarkReturned(ctx, tx, b.ID, today, fine)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, makeErr(ErrAlreadyReturned)
	}

	if err = s.books.IncrementAvailable(ctx, tx, b.BookID); err != nil {
		return nil, err
	}
	if err = s.quota.ReleaseQuota(ctx, tx, b.UserID, book.BookType); err != nil {
		return nil, err
	}

	// Promotion belongs to the return itself, not to a follow-up call:
	// the freed copy is earmarked for the head waiter before anyone
	// else can observe it.
	if err = s.queue.PromoteNext(ctx, tx, b.BookID); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	b.ReturnDate = &today
	b.IsReturned = true
	b.Fine = fine
	return b, nil
}

func (s *service) Renew(ctx context.Context, borrowingID, userID int64) (*model.Borrowing, error) {
	b, err := s.r.ByID(ctx, borrowingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, makeErr(ErrNotFound)
		}
		return nil, err
	}
	if b.UserID != userID {
		return nil, makeErr(ErrForbidden)
	}

	today := s.now()
	if !b.CanRenew(today) {
		return nil, makeErr(ErrNotRenewable)
	}

	if s.cfg.RenewBlockedByHold {
		waiting, err := s.holds.CountWaitingForBook(ctx, b.BookID)
		if err != nil {
			return nil, err
		}
		if waiting > 0 {
			return nil, makeErr(ErrNotRenewable)
		}
	}

	newDue := b.DueDate.AddDate(0, 0, s.cfg.RenewalDays)
	ok, err := s.r.Renew(ctx, b.ID, newDue, today)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost a race against a return or another renewal.
		return nil, makeErr(ErrNotRenewable)
	}

	b.DueDate = newDue
	b.RenewalCount++
	b.LastRenewalDate = &today
	return b, nil
}

func (s *service) CalculateFine(ctx context.Context, borrowingID int64) (float64, error) {
	b, err := s.r.ByID(ctx, borrowingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, makeErr(ErrNotFound)
		}
		return 0, err
	}
	if b.IsReturned {
		return b.Fine, nil
	}
	return lateFine(b.DueDate, s.now(), s.cfg.DailyFineRate), nil
}

func (s *service) MyBorrowings(ctx context.Context, userID int64) ([]model.Borrowing, error) {
	return s.r.ListByUser(ctx, userID)
}

func (s *service) Overdue(ctx context.Context) ([]model.Borrowing, error) {
	return s.r.ListOverdue(ctx, s.now())
}

func (s *service) MostBorrowed(ctx context.Context, limit int) ([]model.BookBorrowCount, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	return s.r.MostBorrowed(ctx, limit)
}

// lateFine charges the daily rate per whole day past due. Accrual is
// uncapped.
func lateFine(due, asOf time.Time, rate float64) float64 {
	days := wholeDaysBetween(due, asOf)
	if days <= 0 {
		return 0
	}
	return float64(days) * rate
}

// wholeDaysBetween counts calendar days from a to b, ignoring the time
// of day on either side.
func wholeDaysBetween(a, b time.Time) int {
	a = time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	b = time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a) / (24 * time.Hour))
}
