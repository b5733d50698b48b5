package coupons_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flardop/Advanced-Retro-sub001/internal/common"
	"github.com/flardop/Advanced-Retro-sub001/internal/features/coupons"
	"github.com/flardop/Advanced-Retro-sub001/internal/features/coupons/coupontest"
	"github.com/flardop/Advanced-Retro-sub001/internal/testutil"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newService() (*coupons.Service, *coupontest.Store) {
	store := coupontest.NewStore()
	svc := coupons.NewService(store, testutil.NewTx(store))
	svc.SetClock(func() time.Time { return now })
	return svc, store
}

func ptr[T any](v T) *T { return &v }

func TestValidateForCheckout(t *testing.T) {
	svc, store := newService()
	ctx := context.Background()

	store.Put(&coupons.Coupon{ID: "c1", Code: "SAVE20", Type: coupons.TypePercent, Value: 20, MaxUses: 10, Active: true})
	store.Put(&coupons.Coupon{ID: "c2", Code: "OLD", Type: coupons.TypeFixed, Value: 500, MaxUses: 10, Active: true, ExpiresAt: ptr(now.Add(-time.Hour))})
	store.Put(&coupons.Coupon{ID: "c3", Code: "USED", Type: coupons.TypeFixed, Value: 500, MaxUses: 1, UsedCount: 1, Active: true})
	store.Put(&coupons.Coupon{ID: "c4", Code: "OFF", Type: coupons.TypeFixed, Value: 500, MaxUses: 1, Active: false})
	store.Put(&coupons.Coupon{ID: "c5", Code: "MINE", Type: coupons.TypeFixed, Value: 500, MaxUses: 1, Active: true, UserID: ptr("u1")})
	store.Put(&coupons.Coupon{ID: "c6", Code: "NOTHING", Type: coupons.TypeFixed, Value: 0, MaxUses: 1, Active: true})

	v, err := svc.ValidateForCheckout(ctx, " save20 ", "u1", 1000)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, int64(200), v.DiscountCents)

	v, err = svc.ValidateForCheckout(ctx, "MINE", "u1", 300)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, int64(300), v.DiscountCents)

	for _, code := range []string{"OLD", "USED", "OFF", "NOTHING", "UNKNOWN", "", "$$"} {
		v, err := svc.ValidateForCheckout(ctx, code, "u1", 1000)
		require.NoError(t, err, code)
		assert.Nil(t, v, code)
	}

	v, err = svc.ValidateForCheckout(ctx, "MINE", "u2", 1000)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestValidateForCheckout_StoreError(t *testing.T) {
	svc, store := newService()
	boom := errors.New("db down")
	store.Set("GetByCode", boom)

	_, err := svc.ValidateForCheckout(context.Background(), "SAVE20", "u1", 1000)
	assert.ErrorIs(t, err, boom)
}

func TestIssueForUser(t *testing.T) {
	svc, store := newService()

	c, err := svc.IssueForUser(context.Background(), coupons.IssueInput{
		UserID:        "u1",
		Type:          coupons.TypeFixed,
		Value:         500,
		Prefix:        "MYST",
		ExpiresInDays: 30,
		Metadata:      map[string]any{"source": "mystery_spin"},
	})
	require.NoError(t, err)
	assert.Regexp(t, `^MYST-`, c.Code)
	assert.Equal(t, 1, c.MaxUses)
	assert.True(t, c.Active)
	require.NotNil(t, c.UserID)
	assert.Equal(t, "u1", *c.UserID)
	require.NotNil(t, c.ExpiresAt)
	assert.Equal(t, now.AddDate(0, 0, 30), *c.ExpiresAt)
	assert.Equal(t, 1, store.Count())
}

func TestIssueForUser_RetriesCollisions(t *testing.T) {
	svc, store := newService()
	ctx := context.Background()
	store.Put(&coupons.Coupon{ID: "taken", Code: "AR-TAKE-N000", MaxUses: 1})

	calls := 0
	svc.SetCodeGenerator(func(string) string {
		calls++
		if calls < 3 {
			return "AR-TAKE-N000"
		}
		return "AR-FREE-0001"
	})

	c, err := svc.IssueForUser(ctx, coupons.IssueInput{UserID: "u1", Type: coupons.TypePercent, Value: 10})
	require.NoError(t, err)
	assert.Equal(t, "AR-FREE-0001", c.Code)
	assert.Equal(t, 3, calls)
}

func TestIssueForUser_GivesUpAfterFiveAttempts(t *testing.T) {
	svc, store := newService()
	store.Put(&coupons.Coupon{ID: "taken", Code: "AR-TAKE-N000", MaxUses: 1})

	calls := 0
	svc.SetCodeGenerator(func(string) string {
		calls++
		return "AR-TAKE-N000"
	})

	_, err := svc.IssueForUser(context.Background(), coupons.IssueInput{UserID: "u1", Type: coupons.TypePercent, Value: 10})
	assert.ErrorIs(t, err, common.ErrCouponCodeExhausted)
	assert.Equal(t, 5, calls)
}

func TestIssueForUser_Validation(t *testing.T) {
	svc, _ := newService()
	_, err := svc.IssueForUser(context.Background(), coupons.IssueInput{Type: coupons.TypePercent, Value: 10})
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = svc.IssueForUser(context.Background(), coupons.IssueInput{UserID: "u1", Type: "bogus", Value: 10})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestRedeemForOrder_OncePerOrder(t *testing.T) {
	svc, store := newService()
	ctx := context.Background()
	store.Put(&coupons.Coupon{ID: "c1", Code: "MULTI", Type: coupons.TypeFixed, Value: 100, MaxUses: 3, Active: true})

	ok, err := svc.RedeemForOrder(ctx, "c1", "order-1", "u1", 100)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.RedeemForOrder(ctx, "c1", "order-1", "u1", 100)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, store.Get("c1").UsedCount)

	ok, err = svc.RedeemForOrder(ctx, "c1", "order-2", "u1", 100)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, store.Get("c1").UsedCount)
}

func TestRedeemForOrder_Exhausted(t *testing.T) {
	svc, store := newService()
	ctx := context.Background()
	store.Put(&coupons.Coupon{ID: "c1", Code: "ONCE", Type: coupons.TypeFixed, Value: 100, MaxUses: 1, UsedCount: 1, Active: true})

	_, err := svc.RedeemForOrder(ctx, "c1", "order-9", "u1", 100)
	assert.ErrorIs(t, err, common.ErrCouponNotRedeemable)
	assert.Zero(t, store.Redemptions())
}

func TestRedeemForOrder_NothingToRedeem(t *testing.T) {
	svc, store := newService()
	ok, err := svc.RedeemForOrder(context.Background(), "c1", "order-1", "u1", 0)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, store.Redemptions())
}

func TestListForUserAndDeactivateExpired(t *testing.T) {
	svc, store := newService()
	ctx := context.Background()
	store.Put(&coupons.Coupon{ID: "c1", Code: "A", MaxUses: 1, Active: true, UserID: ptr("u1"), ExpiresAt: ptr(now.Add(-time.Minute))})
	store.Put(&coupons.Coupon{ID: "c2", Code: "B", MaxUses: 1, Active: true, UserID: ptr("u1")})
	store.Put(&coupons.Coupon{ID: "c3", Code: "C", MaxUses: 1, Active: true, UserID: ptr("u2")})

	list, err := svc.ListForUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c2", list[0].ID)

	empty, err := svc.ListForUser(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, empty)

	n, err := svc.DeactivateExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.False(t, store.Get("c1").Active)
	assert.True(t, store.Get("c2").Active)

	byID, err := svc.ByIDs(ctx, []string{"c1", "c3", "missing"})
	require.NoError(t, err)
	assert.Len(t, byID, 2)
	assert.Equal(t, "C", byID["c3"].Code)
}
