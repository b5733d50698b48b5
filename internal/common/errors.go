// Package common holds the error sentinels and small helpers shared by every feature.
// Handlers switch on these errors to pick the HTTP status and the message shown to the client.
package common

import "errors"

// Generic errors
var (
	// ErrValidation wraps every rejected input; the wrapping message names the field.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
)

// Wallet errors
var (
	// ErrLedgerNotProvisioned means the wallet tables are missing and setup must be run.
	ErrLedgerNotProvisioned = errors.New("wallet ledger is not provisioned")
	// ErrInsufficientBalance is returned when a debit would take the balance below zero.
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrReferenceConflict means the idempotency reference already belongs to another user.
	ErrReferenceConflict = errors.New("reference already used by another account")
)

// Coupon errors
var (
	// ErrCouponCodeExhausted means no unique code could be generated after several attempts.
	ErrCouponCodeExhausted = errors.New("could not generate a unique coupon code")
	// ErrCouponNotRedeemable is returned when an order tries to use a coupon that is no longer valid.
	ErrCouponNotRedeemable = errors.New("coupon is not redeemable")
	// ErrCouponsNotProvisioned means the coupon tables are missing.
	ErrCouponsNotProvisioned = errors.New("coupon tables are not provisioned")
)

// Mystery box errors
var (
	// ErrMysteryNotProvisioned means the mystery box tables are missing.
	ErrMysteryNotProvisioned = errors.New("mystery box tables are not provisioned")
	// ErrBoxNotFound covers unknown and inactive boxes.
	ErrBoxNotFound = errors.New("mystery box not found")
	// ErrNoTickets is returned when the user has no unconsumed ticket for the box.
	ErrNoTickets = errors.New("no tickets available for this box")
	// ErrPrizeCatalogEmpty means the box has no active prize with positive weight.
	ErrPrizeCatalogEmpty = errors.New("mystery box has no configured prizes")
	// ErrSpinNotRedeemable is returned when a spin has nothing to claim or was already claimed.
	ErrSpinNotRedeemable = errors.New("spin cannot be redeemed")
)

// Order errors
var (
	// ErrInvalidSignature is returned when a payment webhook fails authentication.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrOrderState is returned when an order is in a status that cannot be paid.
	ErrOrderState = errors.New("order is in an unexpected status")
	// ErrMarketNotProvisioned means the order or listing tables are missing.
	ErrMarketNotProvisioned = errors.New("order and listing tables are not provisioned")
)

// Admin errors
var (
	// ErrUnauthorized means the request carried no valid identity.
	ErrUnauthorized = errors.New("authentication required")
	// ErrNotAdmin means the caller is authenticated but lacks the admin role.
	ErrNotAdmin = errors.New("admin privileges required")
	// ErrWrongPassword is returned for a failed admin login.
	ErrWrongPassword = errors.New("wrong email or password")
	// ErrTooManyAttempts locks the login after repeated failures.
	ErrTooManyAttempts = errors.New("too many attempts, try again in an hour")
)

// Rate limit errors
var (
	// ErrRateLimited is returned when the caller exceeded the request budget.
	ErrRateLimited = errors.New("too many requests")
)
