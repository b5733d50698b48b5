package community

import (
	"context"
	"errors"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/flardop/Advanced-Retro-sub001/internal/common"
	"github.com/flardop/Advanced-Retro-sub001/internal/features/wallet"
	"github.com/flardop/Advanced-Retro-sub001/internal/notify"
)

// Store is the listing persistence. *Repository implements it.
type Store interface {
	GetListing(ctx context.Context, id string) (*Listing, error)
	UpdateDelivery(ctx context.Context, id, status string) (*Listing, error)
}

// Ledger credits sellers. *wallet.Service implements it.
type Ledger interface {
	CreateTransaction(ctx context.Context, in wallet.CreateInput) (*wallet.CreateResult, error)
}

// Notifier receives completed payouts.
type Notifier interface {
	SaleCredited(e notify.SaleCredited)
}

// Service settles delivered community sales.
type Service struct {
	store    Store
	ledger   Ledger
	notifier Notifier
	rate     float64
	now      func() time.Time
}

// NewService creates the settlement service. commissionRate applies to listings
// that do not carry their own rate.
func NewService(store Store, ledger Ledger, notifier Notifier, commissionRate float64) *Service {
	return &Service{
		store:    store,
		ledger:   ledger,
		notifier: notifier,
		rate:     commissionRate,
		now:      time.Now,
	}
}

// withCommission fills CommissionCents from the listing's own rate or the default one.
func (s *Service) withCommission(l *Listing) {
	rate := s.rate
	if l.CommissionRate != nil {
		rate = *l.CommissionRate
	}
	l.CommissionCents = CommissionCents(l.PriceCents, rate)
}

// CreditSaleIfDelivered credits the seller with the net amount of a delivered listing.
// The ledger reference (user_product_listing, listing id) makes repeated calls credit
// at most once; there is no separate lookup.
func (s *Service) CreditSaleIfDelivered(ctx context.Context, in SettleInput) (*SettlementResult, error) {
	l := in.Listing
	if l == nil {
		return nil, common.Invalid("Listing", "is required")
	}
	if !l.Delivered() {
		return &SettlementResult{Reason: ReasonNotDelivered}, nil
	}

	listingID := strings.TrimSpace(l.ID)
	sellerID := strings.TrimSpace(l.UserID)
	if listingID == "" || sellerID == "" {
		return &SettlementResult{Reason: ReasonMissingReference}, nil
	}

	s.withCommission(l)
	net := NetCents(l.PriceCents, l.CommissionCents, l.ListingFeeCents)
	if net <= 0 {
		return &SettlementResult{Reason: ReasonZeroNet}, nil
	}

	title := l.Title
	if strings.TrimSpace(title) == "" {
		title = "Product"
	}
	result, err := s.ledger.CreateTransaction(ctx, wallet.CreateInput{
		UserID:        sellerID,
		AmountCents:   net,
		Direction:     wallet.DirectionCredit,
		Status:        wallet.StatusAvailable,
		Kind:          wallet.KindCommunitySaleCredit,
		Description:   common.Truncate("Community sale payout: "+title, 500),
		ReferenceType: listingReference,
		ReferenceID:   listingID,
		Metadata: map[string]any{
			"listing_title":     l.Title,
			"gross_price_cents": max(0, l.PriceCents),
			"commission_cents":  l.CommissionCents,
			"listing_fee_cents": max(0, l.ListingFeeCents),
			"delivery_status":   l.DeliveryStatus,
		},
		CreatedBy: in.AdminID,
	})
	if err != nil {
		return nil, err
	}

	res := &SettlementResult{
		Credited:    !result.Duplicate,
		Duplicate:   result.Duplicate,
		AmountCents: net,
		Transaction: result.Transaction,
		Account:     result.Account,
	}
	if !res.Credited {
		return res, nil
	}

	log.WithFields(log.Fields{
		"listing_id": listingID,
		"seller_id":  sellerID,
		"net_cents":  net,
		"admin_id":   in.AdminID,
	}).Info("Community sale credited")

	if s.notifier != nil {
		e := notify.SaleCredited{
			ListingID:       listingID,
			SellerID:        sellerID,
			Title:           l.Title,
			GrossCents:      l.PriceCents,
			CommissionCents: l.CommissionCents,
			NetCents:        net,
			At:              s.now(),
		}
		if l.SellerEmail != nil {
			e.SellerEmail = *l.SellerEmail
		}
		s.notifier.SaleCredited(e)
	}
	return res, nil
}

// UpdateDelivery saves the delivery status and then settles the listing. The
// status change stands even if the payout fails; the failure is reported in
// WalletCredit.Error.
func (s *Service) UpdateDelivery(ctx context.Context, in DeliveryInput) (*DeliveryResult, error) {
	in.ListingID = strings.TrimSpace(in.ListingID)
	in.DeliveryStatus = strings.ToLower(strings.TrimSpace(in.DeliveryStatus))
	if err := common.ValidateStruct(in); err != nil {
		return nil, err
	}

	listing, err := s.store.UpdateDelivery(ctx, in.ListingID, in.DeliveryStatus)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, common.ErrNotFound
	}

	credit, err := s.CreditSaleIfDelivered(ctx, SettleInput{Listing: listing, AdminID: in.AdminID})
	if err != nil {
		if errors.Is(err, common.ErrLedgerNotProvisioned) {
			log.WithError(err).Warn("Wallet ledger missing, sale not credited")
		} else {
			log.WithError(err).WithField("listing_id", listing.ID).Error("Community sale payout failed")
		}
		credit = &SettlementResult{Error: err.Error()}
	}
	return &DeliveryResult{Listing: listing, WalletCredit: credit}, nil
}

// SettleListing re-runs settlement for a stored listing. Staff use it to retry a
// payout that failed after the delivery status was saved.
func (s *Service) SettleListing(ctx context.Context, listingID, adminID string) (*SettlementResult, error) {
	listingID = strings.TrimSpace(listingID)
	if listingID == "" {
		return nil, common.Invalid("ListingID", "is required")
	}

	listing, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing == nil {
		return nil, common.ErrNotFound
	}
	return s.CreditSaleIfDelivered(ctx, SettleInput{Listing: listing, AdminID: adminID})
}
