// Package wallettest provides an in-memory wallet.Store for tests.
package wallettest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/flardop/Advanced-Retro-sub001/internal/common"
	"github.com/flardop/Advanced-Retro-sub001/internal/features/wallet"
	"github.com/flardop/Advanced-Retro-sub001/internal/testutil"
)

// Store mirrors the constraints of the wallet tables: unique references
// and non-negative balances.
type Store struct {
	testutil.Failures

	mu       sync.Mutex
	accounts map[string]*wallet.Account
	txs      []*wallet.Transaction
	clock    time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		accounts: map[string]*wallet.Account{},
		clock:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Snapshot implements testutil.Snapshotter.
func (s *Store) Snapshot() func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts := make(map[string]*wallet.Account, len(s.accounts))
	for k, a := range s.accounts {
		cp := *a
		accounts[k] = &cp
	}
	txs := append([]*wallet.Transaction(nil), s.txs...)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.accounts = accounts
		s.txs = txs
	}
}

func (s *Store) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *Store) FindByReference(_ context.Context, kind wallet.Kind, refType, refID string) (*wallet.Transaction, error) {
	if err := s.Err("FindByReference"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.txs {
		if t.Kind == kind && t.ReferenceType != nil && *t.ReferenceType == refType && *t.ReferenceID == refID {
			return t, nil
		}
	}
	return nil, nil
}

func (s *Store) EnsureAccount(_ context.Context, userID string) error {
	if err := s.Err("EnsureAccount"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[userID]; !ok {
		now := s.tick()
		s.accounts[userID] = &wallet.Account{UserID: userID, CreatedAt: now, UpdatedAt: now}
	}
	return nil
}

func (s *Store) InsertTransaction(_ context.Context, t *wallet.Transaction) (bool, error) {
	if err := s.Err("InsertTransaction"); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ReferenceType != nil {
		for _, e := range s.txs {
			if e.Kind == t.Kind && e.ReferenceType != nil && *e.ReferenceType == *t.ReferenceType && *e.ReferenceID == *t.ReferenceID {
				return false, nil
			}
		}
	}
	t.CreatedAt = s.tick()
	cp := *t
	s.txs = append(s.txs, &cp)
	return true, nil
}

func (s *Store) ApplyDelta(_ context.Context, userID string, d wallet.Delta) (*wallet.Account, error) {
	if err := s.Err("ApplyDelta"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[userID]
	if !ok || a.BalanceCents+d.BalanceCents < 0 || a.PendingCents+d.PendingCents < 0 {
		return nil, common.ErrInsufficientBalance
	}
	a.BalanceCents += d.BalanceCents
	a.PendingCents += d.PendingCents
	a.TotalEarnedCents += d.TotalEarnedCents
	a.TotalWithdrawnCents += d.TotalWithdrawnCents
	a.UpdatedAt = s.tick()
	cp := *a
	return &cp, nil
}

func (s *Store) GetAccount(_ context.Context, userID string) (*wallet.Account, error) {
	if err := s.Err("GetAccount"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[userID]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (s *Store) ListTransactions(_ context.Context, userID string, limit int) ([]*wallet.Transaction, error) {
	if err := s.Err("ListTransactions"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*wallet.Transaction
	for i := len(s.txs) - 1; i >= 0 && len(out) < limit; i-- {
		if s.txs[i].UserID == userID {
			out = append(out, s.txs[i])
		}
	}
	return out, nil
}

func (s *Store) ListEntries(_ context.Context, userID string) ([]wallet.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []wallet.Entry
	for _, t := range s.txs {
		if t.UserID == userID {
			out = append(out, wallet.Entry{Direction: t.Direction, Status: t.Status, Kind: t.Kind, AmountCents: t.AmountCents})
		}
	}
	return out, nil
}

func (s *Store) ListRecentAccounts(_ context.Context, limit int) ([]*wallet.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*wallet.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Corrupt overwrites the stored balance without a ledger entry.
func (s *Store) Corrupt(userID string, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[userID]; ok {
		a.BalanceCents = balance
	}
}

// Transactions returns every stored entry, oldest first.
func (s *Store) Transactions() []*wallet.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*wallet.Transaction(nil), s.txs...)
}
