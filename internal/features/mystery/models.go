// Package mystery runs the Mystery Box: paid tickets are spun for weighted
// prizes that become coupons, wallet credit or physical rewards.
package mystery

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/flardop/Advanced-Retro-sub001/internal/features/coupons"
	"github.com/flardop/Advanced-Retro-sub001/internal/features/wallet"
)

// PrizeType decides what a won prize turns into.
type PrizeType string

const (
	PrizeCouponPercent PrizeType = "coupon_percent"
	PrizeCouponFixed   PrizeType = "coupon_fixed"
	PrizeWalletCredit  PrizeType = "wallet_credit"
	PrizePhysical      PrizeType = "physical"
	PrizeNone          PrizeType = "none"
)

// Spin statuses.
const (
	SpinWon  = "won"
	SpinLost = "lost"
)

// Ticket statuses.
const (
	TicketActive = "active"
	TicketUsed   = "used"
)

const (
	noPrizeLabel     = "No prize"
	spinReference    = "mystery_spin"
	defaultSpinLimit = 120
	maxSpinLimit     = 200
	maxBoxes         = 50
)

// Box is a purchasable ticket product.
type Box struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Slug             string    `json:"slug"`
	Description      string    `json:"description"`
	Image            *string   `json:"-"`
	Images           []byte    `json:"-"`
	ImageURL         string    `json:"image_url"`
	TicketPriceCents int64     `json:"ticket_price_cents"`
	Active           bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Prize belongs to one box. Stock nil means unlimited.
type Prize struct {
	ID          string         `json:"id"`
	BoxID       string         `json:"box_id"`
	Label       string         `json:"label"`
	PrizeType   PrizeType      `json:"prize_type"`
	Probability float64        `json:"probability"`
	Stock       *int           `json:"stock"`
	Metadata    map[string]any `json:"metadata"`
	Active      bool           `json:"is_active"`
	SortOrder   int            `json:"sort_order"`
}

// Ticket is a batch of spins bought by one order.
type Ticket struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	BoxID         string    `json:"box_id"`
	OrderID       *string   `json:"order_id"`
	QuantityTotal int       `json:"quantity_total"`
	QuantityUsed  int       `json:"quantity_used"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Available returns the unspent spins of the batch.
func (t *Ticket) Available() int {
	return max(0, t.QuantityTotal-t.QuantityUsed)
}

// Spin is the immutable record of one resolved spin.
type Spin struct {
	ID                  string         `json:"id"`
	UserID              string         `json:"user_id"`
	BoxID               string         `json:"box_id"`
	TicketID            string         `json:"ticket_id"`
	OrderID             *string        `json:"order_id"`
	PrizeID             *string        `json:"prize_id"`
	PrizeLabel          string         `json:"prize_label"`
	CouponID            *string        `json:"coupon_id"`
	WalletTransactionID *string        `json:"wallet_transaction_id"`
	Status              string         `json:"status"`
	Metadata            map[string]any `json:"metadata"`
	CreatedAt           time.Time      `json:"created_at"`
	RedeemedAt          *time.Time     `json:"redeemed_at"`
}

// SpinInput asks to spin a box. Email, when known, receives the result.
type SpinInput struct {
	UserID string `validate:"required"`
	BoxID  string `validate:"required"`
	Email  string
}

// SpinResult is what the player sees after a spin.
type SpinResult struct {
	Spin              *Spin               `json:"spin"`
	Box               *Box                `json:"box"`
	Prize             *Prize              `json:"prize"`
	Coupon            *coupons.Coupon     `json:"coupon"`
	WalletTransaction *wallet.Transaction `json:"wallet_transaction"`
	RemainingTickets  int                 `json:"remaining_tickets"`
}

// BoxView is a box with its prize table and the caller's spendable tickets.
type BoxView struct {
	*Box
	Gallery          []string `json:"gallery"`
	Prizes           []*Prize `json:"prizes"`
	AvailableTickets int      `json:"available_tickets"`
}

// SpinView is a history entry with its coupon attached.
type SpinView struct {
	*Spin
	Coupon *coupons.Coupon `json:"coupon"`
}

// GrantInput credits the tickets bought by a paid order.
type GrantInput struct {
	OrderID string `validate:"required"`
	UserID  string `validate:"required"`
	BoxID   string `validate:"required"`
	Units   int
}

// metaInt reads an integer from JSON-decoded metadata.
func metaInt(m map[string]any, key string) (int64, bool) {
	switch v := m[key].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int64(math.Round(v)), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return int64(math.Round(f)), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return int64(math.Round(f)), true
	}
	return 0, false
}

func metaString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}
