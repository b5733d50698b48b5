package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flardop/Advanced-Retro-sub001/internal/features/wallet"
	"github.com/flardop/Advanced-Retro-sub001/internal/features/wallet/wallettest"
	"github.com/flardop/Advanced-Retro-sub001/internal/notify"
	"github.com/flardop/Advanced-Retro-sub001/internal/testutil"
)

type sweeper struct {
	calls int
	n     int64
	err   error
}

func (s *sweeper) DeactivateExpired(context.Context) (int64, error) {
	s.calls++
	return s.n, s.err
}

type driftSpy struct {
	events []notify.WalletDrift
}

func (d *driftSpy) WalletDrift(e notify.WalletDrift) { d.events = append(d.events, e) }

func TestCheckWallets_ReportsDrift(t *testing.T) {
	ctx := context.Background()
	store := wallettest.NewStore()
	ledger := wallet.NewService(store, testutil.NewTx(store))

	for _, user := range []string{"u1", "u2"} {
		_, err := ledger.CreateTransaction(ctx, wallet.CreateInput{
			UserID:      user,
			AmountCents: 1000,
			Direction:   wallet.DirectionCredit,
			Kind:        wallet.KindManualAdjustment,
		})
		require.NoError(t, err)
	}
	store.Corrupt("u2", 9999)

	spy := &driftSpy{}
	s := NewScheduler(time.UTC, Specs{ReconcileBatch: 10}, &sweeper{}, ledger, spy)
	s.CheckWallets(ctx)

	require.Len(t, spy.events, 1)
	assert.Equal(t, "u2", spy.events[0].UserID)
	assert.Equal(t, int64(9999), spy.events[0].StoredCents)
	assert.Equal(t, int64(1000), spy.events[0].ComputedCents)
}

func TestSweepCoupons(t *testing.T) {
	sw := &sweeper{n: 3}
	s := NewScheduler(nil, Specs{}, sw, nil, nil)
	s.SweepCoupons(context.Background())
	assert.Equal(t, 1, sw.calls)

	sw.err = errors.New("db down")
	assert.NotPanics(t, func() { s.SweepCoupons(context.Background()) })
}

func TestStart_RejectsBadSpec(t *testing.T) {
	s := NewScheduler(time.UTC, Specs{CouponSweep: "every minute", WalletReconcile: "0 3 * * *"}, &sweeper{}, nil, nil)
	assert.Error(t, s.Start(context.Background()))
}

func TestRun_StopsOnCancel(t *testing.T) {
	s := NewScheduler(time.UTC, Specs{CouponSweep: "0 * * * *", WalletReconcile: "0 3 * * *"}, &sweeper{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
