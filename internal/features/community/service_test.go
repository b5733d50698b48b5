package community

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flardop/Advanced-Retro-sub001/internal/common"
	"github.com/flardop/Advanced-Retro-sub001/internal/features/wallet"
	"github.com/flardop/Advanced-Retro-sub001/internal/features/wallet/wallettest"
	"github.com/flardop/Advanced-Retro-sub001/internal/notify"
	"github.com/flardop/Advanced-Retro-sub001/internal/testutil"
)

type listingStore struct {
	testutil.Failures

	mu       sync.Mutex
	listings map[string]*Listing
}

func (s *listingStore) GetListing(_ context.Context, id string) (*Listing, error) {
	if err := s.Err("GetListing"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (s *listingStore) UpdateDelivery(_ context.Context, id, status string) (*Listing, error) {
	if err := s.Err("UpdateDelivery"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[id]
	if !ok {
		return nil, nil
	}
	l.DeliveryStatus = status
	cp := *l
	return &cp, nil
}

type saleSpy struct {
	events []notify.SaleCredited
}

func (s *saleSpy) SaleCredited(e notify.SaleCredited) { s.events = append(s.events, e) }

func newSettlement(t *testing.T, listings ...*Listing) (*Service, *wallet.Service, *wallettest.Store, *listingStore, *saleSpy) {
	t.Helper()
	walletStore := wallettest.NewStore()
	ledger := wallet.NewService(walletStore, testutil.NewTx(walletStore))
	store := &listingStore{listings: map[string]*Listing{}}
	for _, l := range listings {
		store.listings[l.ID] = l
	}
	spy := &saleSpy{}
	return NewService(store, ledger, spy, 0.10), ledger, walletStore, store, spy
}

func delivered(id string) *Listing {
	email := "seller@example.com"
	return &Listing{
		ID:              id,
		UserID:          "seller",
		Title:           "Zelda Ocarina of Time PAL",
		PriceCents:      4995,
		ListingFeeCents: 100,
		Status:          "approved",
		DeliveryStatus:  DeliveryDelivered,
		SellerEmail:     &email,
	}
}

func TestCommissionCents(t *testing.T) {
	tests := []struct {
		price int64
		rate  float64
		want  int64
	}{
		{price: 4995, rate: 0.10, want: 500},
		{price: 1005, rate: 0.10, want: 101},
		{price: 1004, rate: 0.10, want: 100},
		{price: 1000, rate: 0, want: 0},
		{price: 1000, rate: -0.2, want: 0},
		{price: 1000, rate: 1.5, want: 1000},
		{price: 0, rate: 0.10, want: 0},
		{price: 333, rate: 0.15, want: 50},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CommissionCents(tt.price, tt.rate), "price=%d rate=%v", tt.price, tt.rate)
	}
}

func TestNetCents(t *testing.T) {
	assert.Equal(t, int64(4395), NetCents(4995, 500, 100))
	assert.Equal(t, int64(0), NetCents(100, 80, 50))
	assert.Equal(t, int64(100), NetCents(100, -5, -5))
	assert.Equal(t, int64(0), NetCents(-100, 0, 0))
}

func TestCreditSaleIfDelivered_CreditsOnce(t *testing.T) {
	svc, ledger, walletStore, _, spy := newSettlement(t)
	ctx := context.Background()
	listing := delivered("listing-1")

	first, err := svc.CreditSaleIfDelivered(ctx, SettleInput{Listing: listing, AdminID: "admin"})
	require.NoError(t, err)
	assert.True(t, first.Credited)
	assert.False(t, first.Duplicate)
	assert.Equal(t, int64(4395), first.AmountCents)
	require.NotNil(t, first.Transaction)
	assert.Equal(t, wallet.KindCommunitySaleCredit, first.Transaction.Kind)
	assert.Equal(t, "user_product_listing", *first.Transaction.ReferenceType)
	assert.Equal(t, "listing-1", *first.Transaction.ReferenceID)
	assert.Equal(t, int64(500), first.Transaction.Metadata["commission_cents"])
	assert.Equal(t, int64(4395), first.Account.BalanceCents)

	second, err := svc.CreditSaleIfDelivered(ctx, SettleInput{Listing: listing, AdminID: "admin"})
	require.NoError(t, err)
	assert.False(t, second.Credited)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Transaction.ID, second.Transaction.ID)

	snap, err := ledger.Snapshot(ctx, "seller", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4395), snap.Account.BalanceCents)
	assert.Len(t, walletStore.Transactions(), 1)

	require.Len(t, spy.events, 1)
	assert.Equal(t, "seller@example.com", spy.events[0].SellerEmail)
	assert.Equal(t, int64(4395), spy.events[0].NetCents)
}

func TestCreditSaleIfDelivered_ListingRateOverridesDefault(t *testing.T) {
	svc, _, _, _, _ := newSettlement(t)
	listing := delivered("listing-2")
	rate := 0.2
	listing.CommissionRate = &rate
	listing.ListingFeeCents = 0

	res, err := svc.CreditSaleIfDelivered(context.Background(), SettleInput{Listing: listing})
	require.NoError(t, err)
	assert.Equal(t, int64(3996), res.AmountCents)
	assert.Equal(t, int64(999), listing.CommissionCents)
}

func TestCreditSaleIfDelivered_Skips(t *testing.T) {
	svc, _, walletStore, _, spy := newSettlement(t)
	ctx := context.Background()

	shipped := delivered("l1")
	shipped.DeliveryStatus = DeliveryShipped

	noSeller := delivered("l2")
	noSeller.UserID = "  "

	noID := delivered("")

	free := delivered("l3")
	free.PriceCents = 100

	tests := []struct {
		name    string
		listing *Listing
		reason  string
	}{
		{"not delivered", shipped, ReasonNotDelivered},
		{"missing seller", noSeller, ReasonMissingReference},
		{"missing id", noID, ReasonMissingReference},
		{"fees eat the price", free, ReasonZeroNet},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.CreditSaleIfDelivered(ctx, SettleInput{Listing: tt.listing})
			require.NoError(t, err)
			assert.False(t, res.Credited)
			assert.Equal(t, tt.reason, res.Reason)
		})
	}

	_, err := svc.CreditSaleIfDelivered(ctx, SettleInput{})
	assert.ErrorIs(t, err, common.ErrValidation)

	assert.Empty(t, walletStore.Transactions())
	assert.Empty(t, spy.events)
}

func TestCreditSaleIfDelivered_DeliveredIsCaseInsensitive(t *testing.T) {
	svc, _, _, _, _ := newSettlement(t)
	listing := delivered("l4")
	listing.DeliveryStatus = " Delivered "

	res, err := svc.CreditSaleIfDelivered(context.Background(), SettleInput{Listing: listing})
	require.NoError(t, err)
	assert.True(t, res.Credited)
}

func TestUpdateDelivery(t *testing.T) {
	pending := delivered("listing-1")
	pending.DeliveryStatus = DeliveryPending
	svc, ledger, _, store, _ := newSettlement(t, pending)
	ctx := context.Background()

	res, err := svc.UpdateDelivery(ctx, DeliveryInput{ListingID: "listing-1", DeliveryStatus: "shipped", AdminID: "admin"})
	require.NoError(t, err)
	assert.Equal(t, DeliveryShipped, res.Listing.DeliveryStatus)
	assert.Equal(t, ReasonNotDelivered, res.WalletCredit.Reason)

	// Re-saving "delivered" must not pay twice.
	for i := 0; i < 3; i++ {
		res, err = svc.UpdateDelivery(ctx, DeliveryInput{ListingID: "listing-1", DeliveryStatus: "DELIVERED", AdminID: "admin"})
		require.NoError(t, err)
		assert.Equal(t, i == 0, res.WalletCredit.Credited)
	}

	snap, err := ledger.Snapshot(ctx, "seller", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4395), snap.Account.BalanceCents)

	stored, err := store.GetListing(ctx, "listing-1")
	require.NoError(t, err)
	assert.Equal(t, DeliveryDelivered, stored.DeliveryStatus)
}

func TestUpdateDelivery_Errors(t *testing.T) {
	svc, _, _, store, _ := newSettlement(t, delivered("listing-1"))
	ctx := context.Background()

	_, err := svc.UpdateDelivery(ctx, DeliveryInput{ListingID: "missing", DeliveryStatus: "delivered", AdminID: "admin"})
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = svc.UpdateDelivery(ctx, DeliveryInput{ListingID: "listing-1", DeliveryStatus: "lost", AdminID: "admin"})
	assert.ErrorIs(t, err, common.ErrValidation)

	boom := errors.New("db down")
	store.Set("UpdateDelivery", boom)
	_, err = svc.UpdateDelivery(ctx, DeliveryInput{ListingID: "listing-1", DeliveryStatus: "delivered", AdminID: "admin"})
	assert.ErrorIs(t, err, boom)
}

func TestUpdateDelivery_PayoutFailureIsReported(t *testing.T) {
	svc, _, walletStore, _, spy := newSettlement(t, delivered("listing-1"))
	walletStore.Set("InsertTransaction", errors.New("ledger unavailable"))

	res, err := svc.UpdateDelivery(context.Background(), DeliveryInput{ListingID: "listing-1", DeliveryStatus: "delivered", AdminID: "admin"})
	require.NoError(t, err)
	assert.Equal(t, DeliveryDelivered, res.Listing.DeliveryStatus)
	assert.False(t, res.WalletCredit.Credited)
	assert.Contains(t, res.WalletCredit.Error, "ledger unavailable")
	assert.Empty(t, spy.events)
}

func TestSettleListing_RetriesFailedPayout(t *testing.T) {
	svc, ledger, walletStore, _, spy := newSettlement(t, delivered("listing-1"))
	ctx := context.Background()

	walletStore.Set("InsertTransaction", errors.New("ledger unavailable"))
	res, err := svc.UpdateDelivery(ctx, DeliveryInput{ListingID: "listing-1", DeliveryStatus: "delivered", AdminID: "admin"})
	require.NoError(t, err)
	require.False(t, res.WalletCredit.Credited)

	walletStore.Set("InsertTransaction", nil)
	credit, err := svc.SettleListing(ctx, " listing-1 ", "admin")
	require.NoError(t, err)
	assert.True(t, credit.Credited)
	assert.Equal(t, int64(4395), credit.AmountCents)
	require.Len(t, spy.events, 1)

	// A second retry finds the existing ledger row.
	credit, err = svc.SettleListing(ctx, "listing-1", "admin")
	require.NoError(t, err)
	assert.False(t, credit.Credited)
	assert.True(t, credit.Duplicate)

	snap, err := ledger.Snapshot(ctx, "seller", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4395), snap.Account.BalanceCents)
}

func TestSettleListing_Errors(t *testing.T) {
	shipped := delivered("listing-2")
	shipped.DeliveryStatus = DeliveryShipped
	svc, _, _, store, _ := newSettlement(t, delivered("listing-1"), shipped)
	ctx := context.Background()

	_, err := svc.SettleListing(ctx, "  ", "admin")
	assert.ErrorIs(t, err, common.ErrValidation)

	_, err = svc.SettleListing(ctx, "missing", "admin")
	assert.ErrorIs(t, err, common.ErrNotFound)

	res, err := svc.SettleListing(ctx, "listing-2", "admin")
	require.NoError(t, err)
	assert.Equal(t, ReasonNotDelivered, res.Reason)

	boom := errors.New("db down")
	store.Set("GetListing", boom)
	_, err = svc.SettleListing(ctx, "listing-1", "admin")
	assert.ErrorIs(t, err, boom)
}
