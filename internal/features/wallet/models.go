// Package wallet is the ledger of user money: an append-only transaction log
// plus one aggregate account row per user kept in step with it.
// models.go describes accounts, ledger entries and their balance effects.
package wallet

import "time"

// Direction tells whether an entry adds or removes money.
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// Status of a ledger entry.
type Status string

const (
	StatusPending   Status = "pending"   // credited but not yet spendable
	StatusAvailable Status = "available" // spendable
	StatusSpent     Status = "spent"     // debit already consumed
	StatusCancelled Status = "cancelled" // recorded, no balance effect
)

// Kind classifies the business event behind an entry.
type Kind string

const (
	KindManualAdjustment    Kind = "manual_adjustment"
	KindCommunitySaleCredit Kind = "community_sale_credit"
	KindCommissionReward    Kind = "commission_reward"
	KindWithdrawalRequest   Kind = "withdrawal_request"
	KindWalletSpend         Kind = "wallet_spend"
	KindReversal            Kind = "reversal"
	KindMysteryPrize        Kind = "mystery_prize"
)

var knownKinds = map[Kind]bool{
	KindManualAdjustment:    true,
	KindCommunitySaleCredit: true,
	KindCommissionReward:    true,
	KindWithdrawalRequest:   true,
	KindWalletSpend:         true,
	KindReversal:            true,
	KindMysteryPrize:        true,
}

// Field limits of the ledger table.
const (
	maxDescriptionLen   = 500
	maxReferenceTypeLen = 80
	maxReferenceIDLen   = 160

	defaultTxLimit = 25
	maxTxLimit     = 100

	defaultDriftBatch = 50
	maxDriftBatch     = 1000
)

// Account is the aggregate wallet of one user. It is created lazily and never deleted.
type Account struct {
	UserID              string    `json:"user_id"`
	BalanceCents        int64     `json:"balance_cents"`
	PendingCents        int64     `json:"pending_cents"`
	TotalEarnedCents    int64     `json:"total_earned_cents"`
	TotalWithdrawnCents int64     `json:"total_withdrawn_cents"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Transaction is an immutable ledger entry. AmountCents holds the magnitude, Direction the sign.
type Transaction struct {
	ID            string         `json:"id"`
	UserID        string         `json:"user_id"`
	AmountCents   int64          `json:"amount_cents"`
	Direction     Direction      `json:"direction"`
	Status        Status         `json:"status"`
	Kind          Kind           `json:"kind"`
	Description   string         `json:"description"`
	ReferenceType *string        `json:"reference_type"`
	ReferenceID   *string        `json:"reference_id"`
	Metadata      map[string]any `json:"metadata"`
	CreatedBy     *string        `json:"created_by"`
	CreatedAt     time.Time      `json:"created_at"`
}

// SignedAmount returns the amount with the sign of its direction.
func (t *Transaction) SignedAmount() int64 {
	if t.Direction == DirectionDebit {
		return -t.AmountCents
	}
	return t.AmountCents
}

// CreateInput is a request to append one ledger entry.
type CreateInput struct {
	UserID        string         `validate:"required,max=128"`
	AmountCents   int64          `validate:"gt=0"`
	Direction     Direction      `validate:"required,oneof=credit debit"`
	Status        Status         `validate:"omitempty,oneof=pending available spent cancelled"`
	Kind          Kind           `validate:"required"`
	Description   string
	ReferenceType string `validate:"required_with=ReferenceID"`
	ReferenceID   string `validate:"required_with=ReferenceType"`
	Metadata      map[string]any
	CreatedBy     string
}

// CreateResult is the outcome of CreateTransaction.
// Duplicate is true when the reference was already recorded; nothing was mutated then.
type CreateResult struct {
	Transaction *Transaction `json:"transaction"`
	Account     *Account     `json:"account"`
	Duplicate   bool         `json:"duplicate"`
}

// Snapshot is an account plus its most recent entries, newest first.
type Snapshot struct {
	Account      *Account       `json:"account"`
	Transactions []*Transaction `json:"transactions"`
}

// Delta is the change an entry applies to the aggregate account.
type Delta struct {
	BalanceCents        int64 `json:"balance_cents"`
	PendingCents        int64 `json:"pending_cents"`
	TotalEarnedCents    int64 `json:"total_earned_cents"`
	TotalWithdrawnCents int64 `json:"total_withdrawn_cents"`
}

// IsZero reports whether the delta changes nothing.
func (d Delta) IsZero() bool {
	return d == Delta{}
}

// Add sums two deltas.
func (d Delta) Add(o Delta) Delta {
	return Delta{
		BalanceCents:        d.BalanceCents + o.BalanceCents,
		PendingCents:        d.PendingCents + o.PendingCents,
		TotalEarnedCents:    d.TotalEarnedCents + o.TotalEarnedCents,
		TotalWithdrawnCents: d.TotalWithdrawnCents + o.TotalWithdrawnCents,
	}
}

// DeltaFor returns the account change caused by an entry:
//   - credit pending adds to pending
//   - credit available adds to balance and lifetime earned
//   - debit available/spent removes from balance (withdrawals also count as withdrawn)
//   - everything else (cancelled entries) is recorded without effect
func DeltaFor(direction Direction, status Status, kind Kind, amount int64) Delta {
	switch direction {
	case DirectionCredit:
		switch status {
		case StatusPending:
			return Delta{PendingCents: amount}
		case StatusAvailable:
			return Delta{BalanceCents: amount, TotalEarnedCents: amount}
		}
	case DirectionDebit:
		if status == StatusAvailable || status == StatusSpent {
			d := Delta{BalanceCents: -amount}
			if kind == KindWithdrawalRequest {
				d.TotalWithdrawnCents = amount
			}
			return d
		}
	}
	return Delta{}
}

// Entry is the part of a ledger row needed to fold balances.
type Entry struct {
	Direction   Direction
	Status      Status
	Kind        Kind
	AmountCents int64
}

// Fold recomputes the aggregate from a user's whole log.
func Fold(entries []Entry) Delta {
	var total Delta
	for _, e := range entries {
		total = total.Add(DeltaFor(e.Direction, e.Status, e.Kind, e.AmountCents))
	}
	return total
}

// Drift is a mismatch between the stored account and the folded log.
type Drift struct {
	UserID   string `json:"user_id"`
	Stored   Delta  `json:"stored"`
	Computed Delta  `json:"computed"`
}

func accountDelta(a *Account) Delta {
	if a == nil {
		return Delta{}
	}
	return Delta{
		BalanceCents:        a.BalanceCents,
		PendingCents:        a.PendingCents,
		TotalEarnedCents:    a.TotalEarnedCents,
		TotalWithdrawnCents: a.TotalWithdrawnCents,
	}
}
