// Package orders reacts to the payment provider: a verified "order paid" signal
// marks the order paid, grants its Mystery Box tickets and redeems its coupon.
package orders

import "time"

// Order statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusPaid       = "paid"
	StatusCancelled  = "cancelled"
)

// EventOrderPaid is the only webhook event type acted upon.
const EventOrderPaid = "order.paid"

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-Webhook-Signature"

// Order is the part of a checkout order the payment flow needs.
type Order struct {
	ID                  string     `json:"id"`
	UserID              string     `json:"user_id"`
	CustomerEmail       *string    `json:"-"`
	Status              string     `json:"status"`
	TotalCents          int64      `json:"total_cents"`
	MysteryBoxID        *string    `json:"mystery_box_id"`
	MysteryTicketUnits  int        `json:"mystery_ticket_units"`
	CouponID            *string    `json:"coupon_id"`
	CouponDiscountCents int64      `json:"coupon_discount_cents"`
	PaidAt              *time.Time `json:"paid_at"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// PaidResult describes what MarkPaid did.
type PaidResult struct {
	Order            *Order `json:"order"`
	AlreadyProcessed bool   `json:"already_processed"`
	TicketsGranted   bool   `json:"tickets_granted"`
	CouponRedeemed   bool   `json:"coupon_redeemed"`
}

// WebhookEvent is the payment provider payload.
type WebhookEvent struct {
	Type    string `json:"type" binding:"required"`
	OrderID string `json:"order_id"`
}
