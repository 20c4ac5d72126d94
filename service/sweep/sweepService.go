package sweepsvc

import (
	"context"
	"log/slog"
	"time"
)

// ReservationSweeper and SubscriptionSweeper are satisfied by the
// reservation and subscription services.

type ReservationSweeper interface {
	ProcessExpired(ctx context.Context) (int, error)
}

type SubscriptionSweeper interface {
	ProcessExpired(ctx context.Context) (int, error)
	ProcessAutoRenewals(ctx context.Context, horizon time.Duration) (int, error)
}

// Result reports how many rows each sweep transitioned.
type Result struct {
	ExpiredReservations  int `json:"expired_reservations"`
	ExpiredSubscriptions int `json:"expired_subscriptions"`
	AutoRenewed          int `json:"auto_renewed"`
}

type Sweeper interface {
	// Run executes all three deadline sweeps. Each is idempotent, so
	// an external scheduler may trigger Run as often as it likes.
	Run(ctx context.Context) (Result, error)
}

type sweeper struct {
	res     ReservationSweeper
	subs    SubscriptionSweeper
	horizon time.Duration
	log     *slog.Logger
}

func New(res ReservationSweeper, subs SubscriptionSweeper, renewHorizon time.Duration, log *slog.Logger) Sweeper {
	return &sweeper{res: res, subs: subs, horizon: renewHorizon, log: log}
}

func (s *sweeper) Run(ctx context.Context) (Result, error) {
	var out Result
	var err error

	if out.ExpiredReservations, err = s.res.ProcessExpired(ctx); err != nil {
		return out, err
	}
	// Auto-renewals go first: a lapsed subscriber with auto-renew on is
	// renewed, not downgraded.
	if out.AutoRenewed, err = s.subs.ProcessAutoRenewals(ctx, s.horizon); err != nil {
		return out, err
	}
	if out.ExpiredSubscriptions, err = s.subs.ProcessExpired(ctx); err != nil {
		return out, err
	}

	s.log.Info("sweep",
		"expired_reservations", out.ExpiredReservations,
		"expired_subscriptions", out.ExpiredSubscriptions,
		"auto_renewed", out.AutoRenewed,
	)
	return out, nil
}
