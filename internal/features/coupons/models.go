// Package coupons issues discount codes, prices them against a checkout
// subtotal and records their use by orders.
package coupons

import (
	"strings"
	"time"
)

// Type of discount.
type Type string

const (
	TypePercent   Type = "percent"
	TypeFixed     Type = "fixed"
	TypeFreeOrder Type = "free_order"
)

// ParseType maps free text to a Type, ignoring case and surrounding spaces.
// ok is false for anything that is not a coupon type.
func ParseType(s string) (t Type, ok bool) {
	switch t = Type(strings.ToLower(strings.TrimSpace(s))); t {
	case TypePercent, TypeFixed, TypeFreeOrder:
		return t, true
	}
	return "", false
}

const (
	defaultPrefix    = "AR"
	issueAttempts    = 5
	defaultListLimit = 100
	maxPrefixLen     = 12
)

// Coupon is a discount code. UserID nil means anyone may use it.
type Coupon struct {
	ID        string         `json:"id"`
	Code      string         `json:"code"`
	Type      Type           `json:"type"`
	Value     int64          `json:"value"`
	MaxUses   int            `json:"max_uses"`
	UsedCount int            `json:"used_count"`
	Active    bool           `json:"active"`
	UserID    *string        `json:"user_id"`
	CreatedBy *string        `json:"created_by"`
	ExpiresAt *time.Time     `json:"expires_at"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Expired reports whether the coupon is past its expiry at now.
func (c *Coupon) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}

// Exhausted reports whether every use has been consumed.
func (c *Coupon) Exhausted() bool {
	return c.UsedCount >= c.MaxUses
}

// Validation is a coupon accepted for a checkout together with its discount.
type Validation struct {
	Coupon        *Coupon `json:"coupon"`
	DiscountCents int64   `json:"discount_cents"`
}

// Redemption records one use of a coupon by an order.
type Redemption struct {
	ID            string    `json:"id"`
	CouponID      string    `json:"coupon_id"`
	OrderID       string    `json:"order_id"`
	UserID        string    `json:"user_id"`
	DiscountCents int64     `json:"discount_cents"`
	CreatedAt     time.Time `json:"created_at"`
}

// IssueInput describes a single-use coupon granted to one user.
type IssueInput struct {
	UserID        string `validate:"required"`
	Type          Type   `validate:"required,oneof=percent fixed free_order"`
	Value         int64  `validate:"gte=0"`
	Prefix        string
	ExpiresInDays int `validate:"gte=0"`
	CreatedBy     string
	Metadata      map[string]any
}
