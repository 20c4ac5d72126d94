package sweepsvc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type mockRes struct {
	n   int
	err error
}

func (m *mockRes) ProcessExpired(ctx context.Context) (int, error) { return m.n, m.err }

type mockSubs struct {
	expired    int
	renewed    int
	gotHorizon time.Duration
	err        error
}

func (m *mockSubs) ProcessExpired(ctx context.Context) (int, error) { return m.expired, m.err }
func (m *mockSubs) ProcessAutoRenewals(ctx context.Context, horizon time.Duration) (int, error) {
	m.gotHorizon = horizon
	return m.renewed, m.err
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRun_AggregatesCounts(t *testing.T) {
	subs := &mockSubs{expired: 2, renewed: 1}
	s := New(&mockRes{n: 3}, subs, 24*time.Hour, discard())

	out, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Result{ExpiredReservations: 3, ExpiredSubscriptions: 2, AutoRenewed: 1}, out)
	require.Equal(t, 24*time.Hour, subs.gotHorizon)
}

func TestRun_StopsOnFirstFailure(t *testing.T) {
	boom := errors.New("db down")
	s := New(&mockRes{err: boom}, &mockSubs{expired: 9}, time.Hour, discard())

	out, err := s.Run(context.Background())
	require.ErrorIs(t, err, boom)
	require.Zero(t, out.ExpiredSubscriptions)
}
