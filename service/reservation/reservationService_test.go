package ressvc

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"liblending/model"
	resrepo "liblending/repository/reservation"

	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	insertFn         func(ctx context.Context, tx *sql.Tx, res *model.Reservation) error
	byIDFn           func(ctx context.Context, id int64) (*model.Reservation, error)
	byIDForUpdateFn  func(ctx context.Context, tx *sql.Tx, id int64) (*model.Reservation, error)
	activeByUserFn   func(ctx context.Context, userID int64) ([]model.Reservation, error)
	activeForBookFn  func(ctx context.Context, bookID int64) ([]model.Reservation, error)
	countByUserFn    func(ctx context.Context, tx *sql.Tx, userID int64) (int, error)
	countForBookFn   func(ctx context.Context, tx *sql.Tx, bookID int64) (int, error)
	countWaitingFn   func(ctx context.Context, bookID int64) (int, error)
	hasActiveFn      func(ctx context.Context, tx *sql.Tx, userID, bookID int64) (bool, error)
	nextInQueueFn    func(ctx context.Context, tx *sql.Tx, bookID int64) (*model.Reservation, error)
	markAvailableFn  func(ctx context.Context, tx *sql.Tx, id int64, notifiedOn, pickupUntil time.Time) (bool, error)
	deactivateFn     func(ctx context.Context, tx *sql.Tx, id int64, status model.ReservationStatus) (bool, error)
	shiftFn          func(ctx context.Context, tx *sql.Tx, bookID int64, abovePosition int) error
	listExpiredFn    func(ctx context.Context, today time.Time) ([]model.Reservation, error)
}

var _ resrepo.Repo = (*mockRepo)(nil)

func (m *mockRepo) Insert(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	return m.insertFn(ctx, tx, res)
}
func (m *mockRepo) ByID(ctx context.Context, id int64) (*model.Reservation, error) {
	return m.byIDFn(ctx, id)
}
func (m *mockRepo) ByIDForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*model.Reservation, error) {
	return m.byIDForUpdateFn(ctx, tx, id)
}
func (m *mockRepo) ActiveByUser(ctx context.Context, userID int64) ([]model.Reservation, error) {
	return m.activeByUserFn(ctx, userID)
}
func (m *mockRepo) ActiveForBook(ctx context.Context, bookID int64) ([]model.Reservation, error) {
	return m.activeForBookFn(ctx, bookID)
}
func (m *mockRepo) CountActiveByUser(ctx context.Context, tx *sql.Tx, userID int64) (int, error) {
	return m.countByUserFn(ctx, tx, userID)
}
func (m *mockRepo) CountActiveForBook(ctx context.Context, tx *sql.Tx, bookID int64) (int, error) {
	return m.countForBookFn(ctx, tx, bookID)
}
func (m *mockRepo) CountWaitingForBook(ctx context.Context, bookID int64) (int, error) {
	return m.countWaitingFn(ctx, bookID)
}
func (m *mockRepo) HasActiveForUserAndBook(ctx context.Context, tx *sql.Tx, userID, bookID int64) (bool, error) {
	return m.hasActiveFn(ctx, tx, userID, bookID)
}
func (m *mockRepo) NextInQueue(ctx context.Context, tx *sql.Tx, bookID int64) (*model.Reservation, error) {
	return m.nextInQueueFn(ctx, tx, bookID)
}
func (m *mockRepo) MarkAvailable(ctx context.Context, tx *sql.Tx, id int64, notifiedOn, pickupUntil time.Time) (bool, error) {
	return m.markAvailableFn(ctx, tx, id, notifiedOn, pickupUntil)
}
func (m *mockRepo) Deactivate(ctx context.Context, tx *sql.Tx, id int64, status model.ReservationStatus) (bool, error) {
	return m.deactivateFn(ctx, tx, id, status)
}
func (m *mockRepo) ShiftQueuePositions(ctx context.Context, tx *sql.Tx, bookID int64, abovePosition int) error {
	return m.shiftFn(ctx, tx, bookID, abovePosition)
}
func (m *mockRepo) ListExpired(ctx context.Context, today time.Time) ([]model.Reservation, error) {
	return m.listExpiredFn(ctx, today)
}

type mockUsers struct {
	existsFn func(ctx context.Context, id int64) (bool, error)
}

func (m *mockUsers) Exists(ctx context.Context, id int64) (bool, error) {
	return m.existsFn(ctx, id)
}

var now = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func TestReserve_UserMissing(t *testing.T) {
	ctx := context.Background()
	users := &mockUsers{existsFn: func(ctx context.Context, id int64) (bool, error) { return false, nil }}
	svc := NewWithClock(nil, &mockRepo{}, nil, users, nil, clock)

	_, err := svc.Reserve(ctx, 404, 1)
	require.Error(t, err)
	require.Equal(t, ErrNotFound, Code(err))
}

func TestPromoteNext_HeadWaiterGetsPickupWindow(t *testing.T) {
	ctx := context.Background()
	var markedID int64
	var until time.Time
	m := &mockRepo{
		nextInQueueFn: func(ctx context.Context, tx *sql.Tx, bookID int64) (*model.Reservation, error) {
			return &model.Reservation{ID: 31, BookID: bookID, QueuePosition: 1,
				Status: model.ReservationWaiting, IsActive: true}, nil
		},
		markAvailableFn: func(ctx context.Context, tx *sql.Tx, id int64, notifiedOn, pickupUntil time.Time) (bool, error) {
			markedID = id
			until = pickupUntil
			require.Equal(t, now, notifiedOn)
			return true, nil
		},
	}
	svc := NewWithClock(nil, m, nil, nil, nil, clock)

	require.NoError(t, svc.PromoteNext(ctx, nil, 5))
	require.Equal(t, int64(31), markedID)
	require.Equal(t, now.AddDate(0, 0, model.PickupWindowDays), until)
}

func TestPromoteNext_EmptyQueueIsNoop(t *testing.T) {
	ctx := context.Background()
	m := &mockRepo{
		nextInQueueFn: func(ctx context.Context, tx *sql.Tx, bookID int64) (*model.Reservation, error) {
			return nil, sql.ErrNoRows
		},
		markAvailableFn: func(ctx context.Context, tx *sql.Tx, id int64, notifiedOn, pickupUntil time.Time) (bool, error) {
			t.Fatal("nothing to mark")
			return false, nil
		},
	}
	svc := NewWithClock(nil, m, nil, nil, nil, clock)

	require.NoError(t, svc.PromoteNext(ctx, nil, 5))
}

func TestPromoteNext_RepoError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("db down")
	m := &mockRepo{
		nextInQueueFn: func(ctx context.Context, tx *sql.Tx, bookID int64) (*model.Reservation, error) {
			return nil, boom
		},
	}
	svc := NewWithClock(nil, m, nil, nil, nil, clock)

	require.ErrorIs(t, svc.PromoteNext(ctx, nil, 5), boom)
}

func TestRetire_RenumbersBehindTheGap(t *testing.T) {
	ctx := context.Background()
	var deactivated int64
	var shiftedAbove int
	m := &mockRepo{
		deactivateFn: func(ctx context.Context, tx *sql.Tx, id int64, status model.ReservationStatus) (bool, error) {
			deactivated = id
			require.Equal(t, model.ReservationCancelled, status)
			return true, nil
		},
		shiftFn: func(ctx context.Context, tx *sql.Tx, bookID int64, abovePosition int) error {
			shiftedAbove = abovePosition
			return nil
		},
	}
	s := &service{r: m, now: clock}

	res := &model.Reservation{ID: 8, BookID: 5, QueuePosition: 2, IsActive: true}
	require.NoError(t, s.retire(ctx, nil, res, model.ReservationCancelled))
	require.Equal(t, int64(8), deactivated)
	require.Equal(t, 2, shiftedAbove)
}

func TestRetire_LostRace(t *testing.T) {
	ctx := context.Background()
	m := &mockRepo{
		deactivateFn: func(ctx context.Context, tx *sql.Tx, id int64, status model.ReservationStatus) (bool, error) {
			return false, nil
		},
		shiftFn: func(ctx context.Context, tx *sql.Tx, bookID int64, abovePosition int) error {
			t.Fatal("must not renumber when nothing was deactivated")
			return nil
		},
	}
	s := &service{r: m, now: clock}

	err := s.retire(ctx, nil, &model.Reservation{ID: 8, BookID: 5, QueuePosition: 1}, model.ReservationExpired)
	require.Error(t, err)
	require.Equal(t, ErrAlreadyInactive, Code(err))
}

// --- expiry sweep ---

// expiredQueueFixture backs the repo mock with a mutable two-row queue
// so consecutive sweeps observe each other's writes.
func expiredQueueFixture() (*mockRepo, map[int64]*model.Reservation) {
	table := map[int64]*model.Reservation{
		21: {ID: 21, BookID: 5, QueuePosition: 1, IsActive: true, Status: model.ReservationWaiting},
		22: {ID: 22, BookID: 5, QueuePosition: 2, IsActive: true, Status: model.ReservationWaiting},
	}
	m := &mockRepo{
		byIDForUpdateFn: func(ctx context.Context, tx *sql.Tx, id int64) (*model.Reservation, error) {
			cp := *table[id]
			return &cp, nil
		},
		deactivateFn: func(ctx context.Context, tx *sql.Tx, id int64, status model.ReservationStatus) (bool, error) {
			row := table[id]
			if !row.IsActive {
				return false, nil
			}
			row.IsActive = false
			row.Status = status
			return true, nil
		},
		shiftFn: func(ctx context.Context, tx *sql.Tx, bookID int64, abovePosition int) error {
			for _, row := range table {
				if row.IsActive && row.BookID == bookID && row.QueuePosition > abovePosition {
					row.QueuePosition--
				}
			}
			return nil
		},
	}
	return m, table
}

func TestRetireExpired_SecondSweepAppliesNothing(t *testing.T) {
	ctx := context.Background()
	m, table := expiredQueueFixture()
	s := &service{r: m, now: clock}

	listing := []model.Reservation{*table[21], *table[22]}
	n, err := s.retireExpired(ctx, nil, listing)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, model.ReservationExpired, table[21].Status)
	require.Equal(t, model.ReservationExpired, table[22].Status)
	// Row 22 was listed at position 2 but renumbered to 1 when 21 left;
	// the re-read under lock retired it from its fresh position.
	require.Equal(t, 1, table[22].QueuePosition)

	n, err = s.retireExpired(ctx, nil, listing)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestProcessExpired_NothingToExpire(t *testing.T) {
	ctx := context.Background()
	m := &mockRepo{
		listExpiredFn: func(ctx context.Context, today time.Time) ([]model.Reservation, error) {
			require.Equal(t, now, today)
			return nil, nil
		},
	}
	// db is nil: an empty listing must never open a transaction.
	svc := NewWithClock(nil, m, nil, nil, nil, clock)

	n, err := svc.ProcessExpired(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestMyReservations_PassThrough(t *testing.T) {
	ctx := context.Background()
	m := &mockRepo{
		activeByUserFn: func(ctx context.Context, userID int64) ([]model.Reservation, error) {
			return []model.Reservation{{ID: 1, UserID: userID}}, nil
		},
	}
	svc := NewWithClock(nil, m, nil, nil, nil, clock)

	rows, err := svc.MyReservations(ctx, 7)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestCodeExtractor(t *testing.T) {
	require.Equal(t, ErrLimitExceeded, Code(makeErr(ErrLimitExceeded)))
	require.Equal(t, ErrCode(""), Code(errors.New("plain")))
}
