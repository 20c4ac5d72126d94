package ressvc

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"liblending/model"
	resrepo "liblending/repository/reservation"
)

// errors used by controllers

type ErrCode string

const (
	ErrNotFound             ErrCode = "NOT_FOUND"
	ErrForbidden            ErrCode = "FORBIDDEN"
	ErrStillAvailable       ErrCode = "STILL_AVAILABLE"
	ErrAlreadyBorrowed      ErrCode = "ALREADY_BORROWED"
	ErrDuplicateReservation ErrCode = "DUPLICATE_RESERVATION"
	ErrLimitExceeded        ErrCode = "LIMIT_EXCEEDED"
	ErrAlreadyInactive      ErrCode = "ALREADY_INACTIVE"
	ErrNotReadyForPickup    ErrCode = "NOT_READY_FOR_PICKUP"
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

// Narrow views over the neighbouring repositories; satisfied by
// bookrepo.Repo, userrepo.Repo and borrowrepo.Repo.

type Books interface {
	ByIDForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*model.Book, error)
}

type Users interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

type Loans interface {
	UserHasBookOut(ctx context.Context, userID, bookID int64) (bool, error)
}

type Service interface {
	Reserve(ctx context.Context, userID, bookID int64) (*model.Reservation, error)
	Cancel(ctx context.Context, reservationID, userID int64) error
	Fulfill(ctx context.Context, reservationID int64) error
	MyReservations(ctx context.Context, userID int64) ([]model.Reservation, error)
	QueueForBook(ctx context.Context, bookID int64) ([]model.Reservation, error)

	// PromoteNext runs inside the return transaction: the head waiter,
	// if any, gets the pickup window. No waiter is not an error.
	PromoteNext(ctx context.Context, tx *sql.Tx, bookID int64) error

	// ProcessExpired is the reservation-expiry sweep.
	ProcessExpired(ctx context.Context) (int, error)
}

type service struct {
	db    *sql.DB
	r     resrepo.Repo
	books Books
	users Users
	loans Loans
	now   func() time.Time
}

func New(db *sql.DB, r resrepo.Repo, books Books, users Users, loans Loans) Service {
	return &service{db: db, r: r, books: books, users: users, loans: loans, now: time.Now}
}

// NewWithClock fixes the time source for deterministic tests.
func NewWithClock(db *sql.DB, r resrepo.Repo, books Books, users Users, loans Loans, now func() time.Time) Service {
	return &service{db: db, r: r, books: books, users: users, loans: loans, now: now}
}

func (s *service) Reserve(ctx context.Context, userID, bookID int64) (res *model.Reservation, err error) {
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

	book, err := s.books.ByIDForUpdate(ctx, tx, bookID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, makeErr(ErrNotFound)
		}
		return nil, err
	}
	if book.AvailableCopies > 0 {
		// Copies on the shelf: the user should borrow directly.
		return nil, makeErr(ErrStillAvailable)
	}

	hasOut, err := s.loans.UserHasBookOut(ctx, userID, bookID)
	if err != nil {
		return nil, err
	}
	if hasOut {
		return nil, makeErr(ErrAlreadyBorrowed)
	}

	dup, err := s.r.HasActiveForUserAndBook(ctx, tx, userID, bookID)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, makeErr(ErrDuplicateReservation)
	}

	mine, err := s.r.CountActiveByUser(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if mine >= model.MaxReservationsPerUser {
		return nil, makeErr(ErrLimitExceeded)
	}

	inLine, err := s.r.CountActiveForBook(ctx, tx, bookID)
	if err != nil {
		return nil, err
	}

	today := s.now()
	res = &model.Reservation{
		UserID:          userID,
		BookID:          bookID,
		ReservationDate: today,
		ExpiryDate:      today.AddDate(0, 0, model.ReservationValidDays),
		IsActive:        true,
		QueuePosition:   inLine + 1,
		Status:          model.ReservationWaiting,
	}
	if err = s.r.Insert(ctx, tx, res); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *service) Cancel(ctx context.Context, reservationID, userID int64) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := s.r.ByIDForUpdate(ctx, tx, reservationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return makeErr(ErrNotFound)
		}
		return err
	}
	if res.UserID != userID {
		return makeErr(ErrForbidden)
	}
	if !res.IsActive {
		return makeErr(ErrAlreadyInactive)
	}

	if err = s.retire(ctx, tx, res, model.ReservationCancelled); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *service) Fulfill(ctx context.Context, reservationID int64) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := s.r.ByIDForUpdate(ctx, tx, reservationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return makeErr(ErrNotFound)
		}
		return err
	}
	if res.Status != model.ReservationAvailable {
		return makeErr(ErrNotReadyForPickup)
	}

	// The earmarked copy converts to a borrowing through the normal
	// borrow path; availability is untouched here.
	if err = s.retire(ctx, tx, res, model.ReservationFulfilled); err != nil {
		return err
	}
	return tx.Commit()
}

// retire moves an active reservation to a terminal status and closes
// the gap it leaves in the book's queue. Every exit path from the
// active set goes through here so contiguity is enforced once.
func (s *service) retire(ctx context.Context, tx *sql.Tx, res *model.Reservation, status model.ReservationStatus) error {
	ok, err := s.r.Deactivate(ctx, tx, res.ID, status)
	if err != nil {
		return err
	}
	if !ok {
		return makeErr(ErrAlreadyInactive)
	}
	return s.r.ShiftQueuePositions(ctx, tx, res.BookID, res.QueuePosition)
}

func (s *service) MyReservations(ctx context.Context, userID int64) ([]model.Reservation, error) {
	return s.r.ActiveByUser(ctx, userID)
}

func (s *service) QueueForBook(ctx context.Context, bookID int64) ([]model.Reservation, error) {
	return s.r.ActiveForBook(ctx, bookID)
}

func (s *service) PromoteNext(ctx context.Context, tx *sql.Tx, bookID int64) error {
	res, err := s.r.NextInQueue(ctx, tx, bookID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}

	today := s.now()
	_, err = s.r.MarkAvailable(ctx, tx, res.ID, today, today.AddDate(0, 0, model.PickupWindowDays))
	return err
}

func (s *service) ProcessExpired(ctx context.Context) (n int, err error) {
	expired, err := s.r.ListExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if len(expired) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if n, err = s.retireExpired(ctx, tx, expired); err != nil {
		return n, err
	}
	if err = tx.Commit(); err != nil {
		return n, err
	}
	return n, nil
}

// retireExpired walks a listing of overdue reservations and retires the
// ones still active. Rows already retired by a concurrent sweep are
// skipped, so running the sweep again applies nothing.
func (s *service) retireExpired(ctx context.Context, tx *sql.Tx, expired []model.Reservation) (int, error) {
	n := 0
	for _, stale := range expired {
		// Re-read under lock: earlier renumbering in this same sweep
		// may have shifted the position we listed.
		res, err := s.r.ByIDForUpdate(ctx, tx, stale.ID)
		if err != nil {
			return n, err
		}
		if !res.IsActive {
			continue
		}
		if err := s.retire(ctx, tx, res, model.ReservationExpired); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
