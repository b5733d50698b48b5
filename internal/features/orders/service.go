package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/flardop/Advanced-Retro-sub001/internal/common"
	"github.com/flardop/Advanced-Retro-sub001/internal/db/postgres"
	"github.com/flardop/Advanced-Retro-sub001/internal/features/mystery"
	"github.com/flardop/Advanced-Retro-sub001/internal/notify"
)

// Store is the order persistence. *Repository implements it.
type Store interface {
	ClaimPaid(ctx context.Context, id string, at time.Time) (*Order, error)
	GetOrder(ctx context.Context, id string) (*Order, error)
}

// TicketGranter credits bought spins. *mystery.Service implements it.
type TicketGranter interface {
	GrantTickets(ctx context.Context, in mystery.GrantInput) (bool, error)
}

// CouponRedeemer records the coupon used by an order. *coupons.Service implements it.
type CouponRedeemer interface {
	RedeemForOrder(ctx context.Context, couponID, orderID, userID string, discountCents int64) (bool, error)
}

// Notifier receives paid orders.
type Notifier interface {
	OrderPaid(e notify.OrderPaid)
}

// Service applies payment signals.
type Service struct {
	store    Store
	tx       postgres.Transactor
	tickets  TicketGranter
	coupons  CouponRedeemer
	notifier Notifier
	now      func() time.Time
}

// NewService creates the order service.
func NewService(store Store, tx postgres.Transactor, tickets TicketGranter, coupons CouponRedeemer, notifier Notifier) *Service {
	return &Service{
		store:    store,
		tx:       tx,
		tickets:  tickets,
		coupons:  coupons,
		notifier: notifier,
		now:      time.Now,
	}
}

// MarkPaid claims a pending order and applies its side effects in one transaction.
// Repeated signals for an order that is already paid return AlreadyProcessed.
func (s *Service) MarkPaid(ctx context.Context, orderID string) (*PaidResult, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, common.Invalid("OrderID", "is required")
	}

	var res *PaidResult
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		order, err := s.store.ClaimPaid(ctx, orderID, s.now())
		if err != nil {
			return err
		}
		if order == nil {
			return s.alreadyClaimed(ctx, orderID, &res)
		}
		res = &PaidResult{Order: order}

		if order.MysteryBoxID != nil && order.MysteryTicketUnits > 0 {
			granted, err := s.tickets.GrantTickets(ctx, mystery.GrantInput{
				OrderID: order.ID,
				UserID:  order.UserID,
				BoxID:   *order.MysteryBoxID,
				Units:   order.MysteryTicketUnits,
			})
			if err != nil {
				return fmt.Errorf("grant mystery tickets: %w", err)
			}
			res.TicketsGranted = granted
		}

		if order.CouponID != nil && order.CouponDiscountCents > 0 {
			redeemed, err := s.coupons.RedeemForOrder(ctx, *order.CouponID, order.ID, order.UserID, order.CouponDiscountCents)
			switch {
			case errors.Is(err, common.ErrCouponNotRedeemable):
				// The customer already paid the discounted total.
				log.WithFields(log.Fields{"order_id": order.ID, "coupon_id": *order.CouponID}).
					Warn("Coupon exhausted at payment time, redemption skipped")
			case err != nil:
				return fmt.Errorf("redeem coupon: %w", err)
			}
			res.CouponRedeemed = redeemed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if res.AlreadyProcessed {
		return res, nil
	}

	log.WithFields(log.Fields{
		"order_id":        orderID,
		"user_id":         res.Order.UserID,
		"total_cents":     res.Order.TotalCents,
		"tickets_granted": res.TicketsGranted,
		"coupon_redeemed": res.CouponRedeemed,
	}).Info("Order paid")

	if s.notifier != nil {
		e := notify.OrderPaid{
			OrderID:    res.Order.ID,
			UserID:     res.Order.UserID,
			TotalCents: res.Order.TotalCents,
			At:         s.now(),
		}
		if res.Order.CustomerEmail != nil {
			e.Email = *res.Order.CustomerEmail
		}
		if res.TicketsGranted {
			e.TicketsGranted = res.Order.MysteryTicketUnits
		}
		s.notifier.OrderPaid(e)
	}
	return res, nil
}

func (s *Service) alreadyClaimed(ctx context.Context, orderID string, res **PaidResult) error {
	existing, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if existing == nil {
		return common.ErrNotFound
	}
	switch existing.Status {
	case StatusPaid, StatusProcessing:
		*res = &PaidResult{Order: existing, AlreadyProcessed: true}
		return nil
	default:
		return fmt.Errorf("order %s is %q: %w", orderID, existing.Status, common.ErrOrderState)
	}
}
