package subsvc

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"liblending/model"
	subrepo "liblending/repository/subscription"
)

// errors used by controllers

var (
	ErrSameTier     = errors.New("already on this tier")
	ErrInvalidTier  = errors.New("unknown subscription tier")
	ErrUserNotFound = errors.New("user not found")
)

type Service interface {
	// GetOrCreate returns the user's subscription, lazily creating a
	// FREE one on first access.
	GetOrCreate(ctx context.Context, userID int64) (*model.Subscription, error)

	Upgrade(ctx context.Context, userID int64, newTier model.SubscriptionTier) (*model.Subscription, error)
	Renew(ctx context.Context, userID int64) (*model.Subscription, error)
	Cancel(ctx context.Context, userID int64) error
	SetAutoRenew(ctx context.Context, userID int64, autoRenew bool) error
	ExpiringWithin(ctx context.Context, days int) ([]model.Subscription, error)

	// Quota methods run inside the lending transaction: gate plus
	// counter adjustment as one unit. A denied gate or a failed
	// limit guard both surface subrepo.ErrLimitReached.
	ReserveQuota(ctx context.Context, tx *sql.Tx, userID int64, bookType model.BookType) error
	ReleaseQuota(ctx context.Context, tx *sql.Tx, userID int64, bookType model.BookType) error

	// Sweeps. Both idempotent; each returns the number of rows it
	// actually transitioned.
	ProcessExpired(ctx context.Context) (int, error)
	ProcessAutoRenewals(ctx context.Context, horizon time.Duration) (int, error)
}

type service struct {
	r   subrepo.Repo
	now func() time.Time
}

func New(r subrepo.Repo) Service {
	return &service{r: r, now: time.Now}
}

// NewWithClock fixes the time source for deterministic tests.
func NewWithClock(r subrepo.Repo, now func() time.Time) Service {
	return &service{r: r, now: now}
}

func (s *service) GetOrCreate(ctx context.Context, userID int64) (*model.Subscription, error) {
	sub, err := s.r.ByUser(ctx, userID)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	sub = &model.Subscription{
		UserID:    userID,
		Tier:      model.TierFree,
		StartDate: s.now(),
		IsActive:  true,
	}
	if err := s.r.Insert(ctx, sub); err != nil {
		// A stale token can outlive its user; the lazy insert then
		// trips the user_id foreign key.
		return nil, mapMissingUser(err)
	}
	return sub, nil
}

func mapMissingUser(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
		return ErrUserNotFound
	}
	return err
}

func (s *service) Upgrade(ctx context.Context, userID int64, newTier model.SubscriptionTier) (*model.Subscription, error) {
	if !model.IsValidTier(string(newTier)) {
		return nil, ErrInvalidTier
	}
	sub, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub.Tier == newTier {
		return nil, ErrSameTier
	}

	now := s.now()
	end := model.EndDateFor(newTier, now)
	if err := s.r.UpdatePlan(ctx, userID, newTier, now, end, true); err != nil {
		return nil, err
	}

	// Tier change does not touch the borrow counters.
	sub.Tier = newTier
	sub.StartDate = now
	sub.EndDate = end
	sub.IsActive = true
	return sub, nil
}

func (s *service) Renew(ctx context.Context, userID int64) (*model.Subscription, error) {
	sub, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub.Tier == model.TierFree {
		return nil, ErrInvalidTier
	}

	now := s.now()
	end := model.EndDateFor(sub.Tier, now)
	if err := s.r.UpdatePlan(ctx, userID, sub.Tier, now, end, true); err != nil {
		return nil, err
	}

	sub.StartDate = now
	sub.EndDate = end
	sub.IsActive = true
	return sub, nil
}

func (s *service) Cancel(ctx context.Context, userID int64) error {
	if _, err := s.GetOrCreate(ctx, userID); err != nil {
		return err
	}
	return s.r.SetActive(ctx, userID, false)
}

func (s *service) SetAutoRenew(ctx context.Context, userID int64, autoRenew bool) error {
	if _, err := s.GetOrCreate(ctx, userID); err != nil {
		return err
	}
	return s.r.SetAutoRenew(ctx, userID, autoRenew)
}

func (s *service) ExpiringWithin(ctx context.Context, days int) ([]model.Subscription, error) {
	now := s.now()
	return s.r.ExpiringBetween(ctx, now, now.AddDate(0, 0, days))
}

func (s *service) ReserveQuota(ctx context.Context, tx *sql.Tx, userID int64, bookType model.BookType) error {
	sub, err := s.r.ByUserForUpdate(ctx, tx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		sub = &model.Subscription{
			UserID:    userID,
			Tier:      model.TierFree,
			StartDate: s.now(),
			IsActive:  true,
		}
		if err := s.r.InsertTx(ctx, tx, sub); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	now := s.now()
	limits := model.Tiers[sub.Tier]
	if bookType == model.BookPhysical {
		if !sub.CanBorrowPhysical(now) {
			return subrepo.ErrLimitReached
		}
		return s.r.IncrementPhysical(ctx, tx, userID, limits.PhysicalLimit)
	}
	if !sub.CanBorrowDigital(now) {
		return subrepo.ErrLimitReached
	}
	return s.r.IncrementDigital(ctx, tx, userID, limits.DigitalLimit)
}

func (s *service) ReleaseQuota(ctx context.Context, tx *sql.Tx, userID int64, bookType model.BookType) error {
	if bookType == model.BookPhysical {
		return s.r.DecrementPhysical(ctx, tx, userID)
	}
	return s.r.DecrementDigital(ctx, tx, userID)
}

// ProcessExpired downgrades lapsed paid subscriptions to FREE and zeroes
// both counters: the period boundary forfeits any unused quota.
func (s *service) ProcessExpired(ctx context.Context) (int, error) {
	now := s.now()
	expired, err := s.r.ListExpired(ctx, now)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, sub := range expired {
		ok, err := s.r.DowngradeToFree(ctx, sub.ID, now)
		if err != nil {
			return applied, err
		}
		if ok {
			applied++
		}
	}
	return applied, nil
}

func (s *service) ProcessAutoRenewals(ctx context.Context, horizon time.Duration) (int, error) {
	now := s.now()
	due, err := s.r.ListAutoRenewable(ctx, now.Add(horizon))
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, sub := range due {
		if sub.EndDate == nil {
			continue
		}
		ok, err := s.r.Renew(ctx, sub.ID, *sub.EndDate, now, model.EndDateFor(sub.Tier, now))
		if err != nil {
			return applied, err
		}
		if ok {
			applied++
		}
	}
	return applied, nil
}
