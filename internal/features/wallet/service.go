// Package wallet: service.go holds the ledger rules: validation, idempotent
// writes, balance snapshots and reconciliation.
package wallet

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/flardop/Advanced-Retro-sub001/internal/common"
	"github.com/flardop/Advanced-Retro-sub001/internal/db/postgres"
)

// Store is the persistence the ledger needs. *Repository implements it.
type Store interface {
	FindByReference(ctx context.Context, kind Kind, refType, refID string) (*Transaction, error)
	EnsureAccount(ctx context.Context, userID string) error
	InsertTransaction(ctx context.Context, t *Transaction) (bool, error)
	ApplyDelta(ctx context.Context, userID string, d Delta) (*Account, error)
	GetAccount(ctx context.Context, userID string) (*Account, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]*Transaction, error)
	ListEntries(ctx context.Context, userID string) ([]Entry, error)
	ListRecentAccounts(ctx context.Context, limit int) ([]*Account, error)
}

// Service is the ledger store adapter used by every money movement.
type Service struct {
	store Store
	tx    postgres.Transactor
}

// NewService creates the wallet service.
func NewService(store Store, tx postgres.Transactor) *Service {
	return &Service{store: store, tx: tx}
}

// CreateTransaction appends one ledger entry and updates the account in the same
// database transaction. When the (kind, reference_type, reference_id) key already
// exists the stored entry is returned with Duplicate set and nothing changes.
//
// Called inside an outer WithinTx (a spin, a settlement) it joins that transaction.
func (s *Service) CreateTransaction(ctx context.Context, in CreateInput) (*CreateResult, error) {
	t, err := s.prepare(in)
	if err != nil {
		return nil, err
	}

	var result *CreateResult
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if t.ReferenceType != nil {
			existing, err := s.store.FindByReference(ctx, t.Kind, *t.ReferenceType, *t.ReferenceID)
			if err != nil {
				return err
			}
			if existing != nil {
				result, err = s.duplicate(ctx, existing, t.UserID)
				return err
			}
		}

		if err := s.store.EnsureAccount(ctx, t.UserID); err != nil {
			return err
		}

		inserted, err := s.store.InsertTransaction(ctx, t)
		if err != nil {
			return err
		}
		if !inserted {
			// Lost the race on the reference key to a concurrent writer.
			existing, err := s.store.FindByReference(ctx, t.Kind, *t.ReferenceType, *t.ReferenceID)
			if err != nil {
				return err
			}
			if existing == nil {
				return fmt.Errorf("wallet reference %s/%s vanished after conflict", *t.ReferenceType, *t.ReferenceID)
			}
			result, err = s.duplicate(ctx, existing, t.UserID)
			return err
		}

		account, err := s.applyDelta(ctx, t)
		if err != nil {
			return err
		}
		result = &CreateResult{Transaction: t, Account: account}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Duplicate {
		log.WithFields(log.Fields{
			"user_id":   t.UserID,
			"kind":      t.Kind,
			"direction": t.Direction,
			"status":    t.Status,
			"amount":    t.SignedAmount(),
			"tx_id":     t.ID,
		}).Info("Wallet transaction recorded")
	} else {
		log.WithFields(log.Fields{
			"user_id":        t.UserID,
			"kind":           t.Kind,
			"reference_type": *t.ReferenceType,
			"reference_id":   *t.ReferenceID,
		}).Debug("Wallet transaction already recorded")
	}
	return result, nil
}

// prepare validates the input and builds the row to insert.
func (s *Service) prepare(in CreateInput) (*Transaction, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	in.ReferenceType = common.Truncate(in.ReferenceType, maxReferenceTypeLen)
	in.ReferenceID = common.Truncate(in.ReferenceID, maxReferenceIDLen)
	if in.Status == "" {
		in.Status = StatusAvailable
	}
	if in.AmountCents <= 0 {
		return nil, fmt.Errorf("%w: %w", common.ErrValidation, common.ErrInvalidAmount)
	}
	if err := common.ValidateStruct(in); err != nil {
		return nil, err
	}
	if !knownKinds[in.Kind] {
		return nil, common.Invalid("Kind", fmt.Sprintf("%q is not a wallet transaction kind", in.Kind))
	}

	t := &Transaction{
		ID:          uuid.NewString(),
		UserID:      in.UserID,
		AmountCents: in.AmountCents,
		Direction:   in.Direction,
		Status:      in.Status,
		Kind:        in.Kind,
		Description: common.Truncate(in.Description, maxDescriptionLen),
		Metadata:    in.Metadata,
	}
	if t.Metadata == nil {
		t.Metadata = map[string]any{}
	}
	if in.ReferenceType != "" {
		t.ReferenceType = &in.ReferenceType
		t.ReferenceID = &in.ReferenceID
	}
	if createdBy := strings.TrimSpace(in.CreatedBy); createdBy != "" {
		t.CreatedBy = &createdBy
	}
	return t, nil
}

func (s *Service) applyDelta(ctx context.Context, t *Transaction) (*Account, error) {
	d := DeltaFor(t.Direction, t.Status, t.Kind, t.AmountCents)
	if d.IsZero() {
		account, err := s.store.GetAccount(ctx, t.UserID)
		if err != nil {
			return nil, err
		}
		return account, nil
	}
	return s.store.ApplyDelta(ctx, t.UserID, d)
}

func (s *Service) duplicate(ctx context.Context, existing *Transaction, userID string) (*CreateResult, error) {
	if existing.UserID != userID {
		return nil, common.ErrReferenceConflict
	}
	account, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &CreateResult{Transaction: existing, Account: account, Duplicate: true}, nil
}

// Snapshot returns the account (zeroed when none is stored) and the newest entries.
// txLimit is clamped to [1,100]; zero means the default of 25.
func (s *Service) Snapshot(ctx context.Context, userID string, txLimit int) (*Snapshot, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, common.Invalid("UserID", "is required")
	}

	account, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		account = &Account{UserID: userID}
	}

	txs, err := s.store.ListTransactions(ctx, userID, clampLimit(txLimit))
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []*Transaction{}
	}
	return &Snapshot{Account: account, Transactions: txs}, nil
}

// Reconcile folds the user's whole log and compares it with the stored account.
// It returns nil when they agree.
func (s *Service) Reconcile(ctx context.Context, userID string) (*Drift, error) {
	account, err := s.store.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.ListEntries(ctx, userID)
	if err != nil {
		return nil, err
	}

	stored := accountDelta(account)
	computed := Fold(entries)
	if stored == computed {
		return nil, nil
	}
	return &Drift{UserID: userID, Stored: stored, Computed: computed}, nil
}

// FindDrift reconciles the limit most recently updated accounts, at most maxDriftBatch.
func (s *Service) FindDrift(ctx context.Context, limit int) ([]Drift, error) {
	switch {
	case limit <= 0:
		limit = defaultDriftBatch
	case limit > maxDriftBatch:
		limit = maxDriftBatch
	}
	accounts, err := s.store.ListRecentAccounts(ctx, limit)
	if err != nil {
		return nil, err
	}

	var drifts []Drift
	for _, a := range accounts {
		d, err := s.Reconcile(ctx, a.UserID)
		if err != nil {
			return nil, fmt.Errorf("reconcile %s: %w", a.UserID, err)
		}
		if d != nil {
			log.WithFields(log.Fields{
				"user_id":  d.UserID,
				"stored":   d.Stored,
				"computed": d.Computed,
			}).Warn("Wallet drift detected")
			drifts = append(drifts, *d)
		}
	}
	return drifts, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultTxLimit
	}
	if limit > maxTxLimit {
		return maxTxLimit
	}
	return limit
}
