// Package coupontest provides an in-memory coupons.Store for tests.
package coupontest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/flardop/Advanced-Retro-sub001/internal/features/coupons"
	"github.com/flardop/Advanced-Retro-sub001/internal/testutil"
)

type redemptionKey struct{ couponID, orderID string }

// Store mirrors the unique code and (coupon, order) constraints.
type Store struct {
	testutil.Failures

	mu          sync.Mutex
	coupons     map[string]*coupons.Coupon
	order       []string
	redemptions map[redemptionKey]coupons.Redemption
	clock       time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		coupons:     map[string]*coupons.Coupon{},
		redemptions: map[redemptionKey]coupons.Redemption{},
		clock:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Snapshot implements testutil.Snapshotter.
func (s *Store) Snapshot() func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := make(map[string]*coupons.Coupon, len(s.coupons))
	for k, c := range s.coupons {
		cp := *c
		saved[k] = &cp
	}
	order := append([]string(nil), s.order...)
	redemptions := make(map[redemptionKey]coupons.Redemption, len(s.redemptions))
	for k, r := range s.redemptions {
		redemptions[k] = r
	}

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.coupons = saved
		s.order = order
		s.redemptions = redemptions
	}
}

// Put stores a coupon as is.
func (s *Store) Put(c *coupons.Coupon) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.Metadata == nil {
		c.Metadata = map[string]any{}
	}
	cp := *c
	s.coupons[c.ID] = &cp
	s.order = append(s.order, c.ID)
}

// Get returns a copy of the coupon with id, or nil.
func (s *Store) Get(id string) *coupons.Coupon {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.coupons[id]
	if !ok {
		return nil
	}
	cp := *c
	return &cp
}

// Count returns the number of stored coupons.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.coupons)
}

// Redemptions returns the number of recorded redemptions.
func (s *Store) Redemptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.redemptions)
}

func (s *Store) GetByCode(_ context.Context, code string) (*coupons.Coupon, error) {
	if err := s.Err("GetByCode"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.coupons {
		if c.Code == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) Insert(_ context.Context, c *coupons.Coupon) (bool, error) {
	if err := s.Err("Insert"); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.coupons {
		if e.Code == c.Code {
			return false, nil
		}
	}
	s.clock = s.clock.Add(time.Second)
	c.CreatedAt, c.UpdatedAt = s.clock, s.clock
	cp := *c
	s.coupons[c.ID] = &cp
	s.order = append(s.order, c.ID)
	return true, nil
}

func (s *Store) InsertRedemption(_ context.Context, r *coupons.Redemption) (bool, error) {
	if err := s.Err("InsertRedemption"); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := redemptionKey{r.CouponID, r.OrderID}
	if _, ok := s.redemptions[key]; ok {
		return false, nil
	}
	s.redemptions[key] = *r
	return true, nil
}

func (s *Store) IncrementUse(_ context.Context, couponID string) (bool, error) {
	if err := s.Err("IncrementUse"); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.coupons[couponID]
	if !ok || c.UsedCount >= c.MaxUses {
		return false, nil
	}
	c.UsedCount++
	return true, nil
}

func (s *Store) ListByUser(_ context.Context, userID string, limit int) ([]*coupons.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*coupons.Coupon
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		c, ok := s.coupons[s.order[i]]
		if ok && c.UserID != nil && *c.UserID == userID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) ListByIDs(_ context.Context, ids []string) ([]*coupons.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*coupons.Coupon
	for _, id := range ids {
		if c, ok := s.coupons[id]; ok {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeactivateExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, c := range s.coupons {
		if c.Active && c.ExpiresAt != nil && c.ExpiresAt.Before(now) {
			c.Active = false
			n++
		}
	}
	return n, nil
}
