package coupons

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/flardop/Advanced-Retro-sub001/internal/common"
	"github.com/flardop/Advanced-Retro-sub001/internal/db/postgres"
)

// Store is the coupon persistence. *Repository implements it.
type Store interface {
	GetByCode(ctx context.Context, code string) (*Coupon, error)
	Insert(ctx context.Context, c *Coupon) (bool, error)
	InsertRedemption(ctx context.Context, r *Redemption) (bool, error)
	IncrementUse(ctx context.Context, couponID string) (bool, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*Coupon, error)
	ListByIDs(ctx context.Context, ids []string) ([]*Coupon, error)
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

// Service issues, validates and redeems coupons.
type Service struct {
	store   Store
	tx      postgres.Transactor
	now     func() time.Time
	newCode func(prefix string) string
}

// NewService creates the coupon service.
func NewService(store Store, tx postgres.Transactor) *Service {
	return &Service{
		store:   store,
		tx:      tx,
		now:     time.Now,
		newCode: BuildCode,
	}
}

// ValidateForCheckout prices code for a user's checkout. A nil result with a nil
// error means the coupon cannot be used: unknown, inactive, expired, exhausted,
// owned by someone else or worth nothing on this subtotal.
func (s *Service) ValidateForCheckout(ctx context.Context, code, userID string, subtotalCents int64) (*Validation, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, nil
	}

	c, err := s.store.GetByCode(ctx, code)
	if err != nil || c == nil {
		return nil, err
	}

	switch {
	case !c.Active, c.Expired(s.now()), c.Exhausted():
		return nil, nil
	case c.UserID != nil && *c.UserID != userID:
		return nil, nil
	}

	discount := ComputeDiscount(c, subtotalCents)
	if discount <= 0 {
		return nil, nil
	}
	return &Validation{Coupon: c, DiscountCents: discount}, nil
}

// IssueForUser creates a single-use coupon owned by one user, retrying the code on collision.
// Inside an outer transaction it joins it.
func (s *Service) IssueForUser(ctx context.Context, in IssueInput) (*Coupon, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	if in.Type == "" {
		in.Type = TypePercent
	}
	if err := common.ValidateStruct(in); err != nil {
		return nil, err
	}

	now := s.now()
	c := &Coupon{
		Type:     in.Type,
		Value:    in.Value,
		MaxUses:  1,
		Active:   true,
		UserID:   &in.UserID,
		Metadata: in.Metadata,
	}
	if c.Metadata == nil {
		c.Metadata = map[string]any{}
	}
	if createdBy := strings.TrimSpace(in.CreatedBy); createdBy != "" {
		c.CreatedBy = &createdBy
	}
	if in.ExpiresInDays > 0 {
		expires := now.AddDate(0, 0, in.ExpiresInDays)
		c.ExpiresAt = &expires
	}

	for attempt := 1; attempt <= issueAttempts; attempt++ {
		c.ID = uuid.NewString()
		c.Code = s.newCode(in.Prefix)

		inserted, err := s.store.Insert(ctx, c)
		if err != nil {
			return nil, err
		}
		if inserted {
			log.WithFields(log.Fields{
				"user_id": in.UserID,
				"code":    c.Code,
				"type":    c.Type,
				"value":   c.Value,
			}).Info("Coupon issued")
			return c, nil
		}
		log.WithField("attempt", attempt).Debug("Coupon code collision, retrying")
	}
	return nil, common.ErrCouponCodeExhausted
}

// RedeemForOrder counts one use of the coupon by the order. A second call for the
// same order is a no-op and returns false. An exhausted coupon fails with
// ErrCouponNotRedeemable and the redemption is rolled back.
func (s *Service) RedeemForOrder(ctx context.Context, couponID, orderID, userID string, discountCents int64) (bool, error) {
	if couponID == "" || orderID == "" || discountCents <= 0 {
		return false, nil
	}

	redeemed := false
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		inserted, err := s.store.InsertRedemption(ctx, &Redemption{
			ID:            uuid.NewString(),
			CouponID:      couponID,
			OrderID:       orderID,
			UserID:        userID,
			DiscountCents: discountCents,
		})
		if err != nil || !inserted {
			return err
		}

		ok, err := s.store.IncrementUse(ctx, couponID)
		if err != nil {
			return err
		}
		if !ok {
			return common.ErrCouponNotRedeemable
		}
		redeemed = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if redeemed {
		log.WithFields(log.Fields{"coupon_id": couponID, "order_id": orderID}).Info("Coupon redeemed")
	}
	return redeemed, nil
}

// ListForUser returns the user's own coupons, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]*Coupon, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, common.Invalid("UserID", "is required")
	}
	list, err := s.store.ListByUser(ctx, userID, defaultListLimit)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*Coupon{}
	}
	return list, nil
}

// ByIDs loads coupons keyed by id. Unknown ids are absent from the map.
func (s *Service) ByIDs(ctx context.Context, ids []string) (map[string]*Coupon, error) {
	list, err := s.store.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*Coupon, len(list))
	for _, c := range list {
		out[c.ID] = c
	}
	return out, nil
}

// DeactivateExpired switches off coupons past their expiry.
func (s *Service) DeactivateExpired(ctx context.Context) (int64, error) {
	n, err := s.store.DeactivateExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.WithField("count", n).Info("Expired coupons deactivated")
	}
	return n, nil
}
