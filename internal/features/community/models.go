// Package community settles community marketplace sales: once an admin confirms
// delivery, the seller's wallet is credited with the net sale amount.
package community

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/flardop/Advanced-Retro-sub001/internal/features/wallet"
)

// Delivery statuses of a sold listing.
const (
	DeliveryPending    = "pending"
	DeliveryProcessing = "processing"
	DeliveryShipped    = "shipped"
	DeliveryDelivered  = "delivered"
	DeliveryCancelled  = "cancelled"
)

// Reasons a settlement did not credit anything.
const (
	ReasonNotDelivered     = "not_delivered"
	ReasonMissingReference = "missing_reference"
	ReasonZeroNet          = "zero_net"
)

const listingReference = "user_product_listing"

// Listing is a product a user sells through the store.
type Listing struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Title           string    `json:"title"`
	PriceCents      int64     `json:"price_cents"`
	CommissionRate  *float64  `json:"commission_rate"`
	CommissionCents int64     `json:"commission_cents"`
	ListingFeeCents int64     `json:"listing_fee_cents"`
	Status          string    `json:"status"`
	DeliveryStatus  string    `json:"delivery_status"`
	BuyerEmail      *string   `json:"buyer_email"`
	SellerEmail     *string   `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Delivered reports whether the buyer has the item.
func (l *Listing) Delivered() bool {
	return strings.EqualFold(strings.TrimSpace(l.DeliveryStatus), DeliveryDelivered)
}

// SettleInput asks to settle a listing on behalf of an admin.
type SettleInput struct {
	Listing *Listing
	AdminID string
}

// SettlementResult tells whether the seller was credited. Reason is set when
// nothing was attempted; Duplicate when the credit already existed.
type SettlementResult struct {
	Credited    bool                `json:"credited"`
	Duplicate   bool                `json:"duplicate"`
	Reason      string              `json:"reason,omitempty"`
	AmountCents int64               `json:"amount_cents,omitempty"`
	Transaction *wallet.Transaction `json:"transaction,omitempty"`
	Account     *wallet.Account     `json:"wallet,omitempty"`
	Error       string              `json:"error,omitempty"`
}

// DeliveryInput changes the delivery status of a listing.
type DeliveryInput struct {
	ListingID      string `validate:"required"`
	DeliveryStatus string `validate:"required,oneof=pending processing shipped delivered cancelled"`
	AdminID        string `validate:"required"`
}

// DeliveryResult is the updated listing plus what happened to the seller's wallet.
type DeliveryResult struct {
	Listing      *Listing          `json:"listing"`
	WalletCredit *SettlementResult `json:"wallet_credit"`
}

// CommissionCents returns price*rate rounded half up. Rates outside [0,1] are clamped.
func CommissionCents(priceCents int64, rate float64) int64 {
	if priceCents <= 0 || rate <= 0 {
		return 0
	}
	r := decimal.NewFromFloat(min(rate, 1))
	return decimal.NewFromInt(priceCents).Mul(r).Round(0).IntPart()
}

// NetCents is what the seller receives: price minus commission and listing fee, never negative.
func NetCents(priceCents, commissionCents, feeCents int64) int64 {
	return max(0, max(0, priceCents)-max(0, commissionCents)-max(0, feeCents))
}
