package mystery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/flardop/Advanced-Retro-sub001/internal/common"
	"github.com/flardop/Advanced-Retro-sub001/internal/db/postgres"
	"github.com/flardop/Advanced-Retro-sub001/internal/features/catalog"
	"github.com/flardop/Advanced-Retro-sub001/internal/features/coupons"
	"github.com/flardop/Advanced-Retro-sub001/internal/features/wallet"
	"github.com/flardop/Advanced-Retro-sub001/internal/notify"
)

// Store is the mystery box persistence. *Repository implements it.
type Store interface {
	GetActiveBox(ctx context.Context, boxID string) (*Box, error)
	ListActiveBoxes(ctx context.Context, limit int) ([]*Box, error)
	ListActivePrizes(ctx context.Context, boxIDs []string) ([]*Prize, error)
	ConsumeTicket(ctx context.Context, userID string, ticketPriceCents int64) (*Ticket, error)
	AvailableTickets(ctx context.Context, userID string) (map[int64]int, error)
	DecrementStock(ctx context.Context, prizeID string) (bool, error)
	InsertSpin(ctx context.Context, s *Spin) error
	ListSpins(ctx context.Context, userID string, limit int) ([]*Spin, error)
	GetSpin(ctx context.Context, userID, spinID string) (*Spin, error)
	MarkRedeemed(ctx context.Context, userID, spinID string, at time.Time) (*Spin, error)
	InsertTicket(ctx context.Context, t *Ticket) (bool, error)
}

// CouponIssuer creates prize coupons. *coupons.Service implements it.
type CouponIssuer interface {
	IssueForUser(ctx context.Context, in coupons.IssueInput) (*coupons.Coupon, error)
	ByIDs(ctx context.Context, ids []string) (map[string]*coupons.Coupon, error)
}

// Ledger credits prize money. *wallet.Service implements it.
type Ledger interface {
	CreateTransaction(ctx context.Context, in wallet.CreateInput) (*wallet.CreateResult, error)
}

// Notifier receives committed spins.
type Notifier interface {
	SpinResolved(e notify.SpinResolved)
}

// Options tunes the spin.
type Options struct {
	// MaxReselect bounds how many times a prize lost to a stock race is redrawn.
	MaxReselect  int
	CouponPrefix string
	Rand         Random
}

// Service is the spin orchestrator.
type Service struct {
	store    Store
	tx       postgres.Transactor
	coupons  CouponIssuer
	ledger   Ledger
	notifier Notifier
	opts     Options
	now      func() time.Time
}

// NewService creates the mystery service.
func NewService(store Store, tx postgres.Transactor, issuer CouponIssuer, ledger Ledger, notifier Notifier, opts Options) *Service {
	if opts.MaxReselect < 1 {
		opts.MaxReselect = 1
	}
	if opts.CouponPrefix == "" {
		opts.CouponPrefix = "MYST"
	}
	if opts.Rand == nil {
		opts.Rand = NewRandom(time.Now().UnixNano())
	}
	return &Service{
		store:    store,
		tx:       tx,
		coupons:  issuer,
		ledger:   ledger,
		notifier: notifier,
		opts:     opts,
		now:      time.Now,
	}
}

// Spin consumes one ticket and resolves a prize in a single transaction.
// Either the ticket, the stock unit, the coupon or credit and the spin row are
// all committed, or none of them is.
func (s *Service) Spin(ctx context.Context, in SpinInput) (*SpinResult, error) {
	in.UserID = strings.TrimSpace(in.UserID)
	in.BoxID = strings.TrimSpace(in.BoxID)
	if err := common.ValidateStruct(in); err != nil {
		return nil, err
	}

	var res *SpinResult
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		box, err := s.store.GetActiveBox(ctx, in.BoxID)
		if err != nil {
			return err
		}
		if box == nil {
			return common.ErrBoxNotFound
		}

		prizes, err := s.store.ListActivePrizes(ctx, []string{box.ID})
		if err != nil {
			return err
		}
		if TotalWeight(prizes) <= 0 {
			return common.ErrPrizeCatalogEmpty
		}

		ticket, err := s.store.ConsumeTicket(ctx, in.UserID, box.TicketPriceCents)
		if err != nil {
			return err
		}
		if ticket == nil {
			return common.ErrNoTickets
		}
		log.WithFields(log.Fields{
			"ticket_id": ticket.ID,
			"left":      ticket.Available(),
		}).Debug("Mystery ticket consumed")

		prize, err := s.draw(ctx, prizes)
		if err != nil {
			return err
		}

		spin := &Spin{
			ID:         uuid.NewString(),
			UserID:     in.UserID,
			BoxID:      box.ID,
			TicketID:   ticket.ID,
			OrderID:    ticket.OrderID,
			PrizeLabel: noPrizeLabel,
			Status:     SpinLost,
			Metadata:   map[string]any{},
		}
		res = &SpinResult{Spin: spin, Box: box, Prize: prize}

		if prize != nil {
			spin.PrizeID = &prize.ID
			spin.PrizeLabel = prize.Label
			spin.Metadata["prize_type"] = string(prize.PrizeType)
			spin.Metadata["prize_metadata"] = prize.Metadata
			if prize.PrizeType != PrizeNone {
				spin.Status = SpinWon
			}
			if err := s.apply(ctx, res); err != nil {
				return err
			}
		}

		if err := s.store.InsertSpin(ctx, spin); err != nil {
			return err
		}

		available, err := s.store.AvailableTickets(ctx, in.UserID)
		if err != nil {
			return err
		}
		res.RemainingTickets = available[box.TicketPriceCents]
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id": in.UserID,
		"box_id":  in.BoxID,
		"spin_id": res.Spin.ID,
		"prize":   res.Spin.PrizeLabel,
		"status":  res.Spin.Status,
	}).Info("Mystery spin resolved")

	s.notify(in, res)
	return res, nil
}

// draw selects a prize and takes one unit of its stock. A prize whose stock ran
// out between selection and update is excluded and the draw repeated.
func (s *Service) draw(ctx context.Context, prizes []*Prize) (*Prize, error) {
	excluded := map[string]bool{}
	for attempt := 0; attempt <= s.opts.MaxReselect; attempt++ {
		candidates := make([]Candidate, 0, len(prizes))
		byID := make(map[string]*Prize, len(prizes))
		for _, p := range prizes {
			if excluded[p.ID] {
				continue
			}
			candidates = append(candidates, Candidate{ID: p.ID, Weight: p.Probability, Stock: p.Stock})
			byID[p.ID] = p
		}

		id, ok := SelectPrize(candidates, s.opts.Rand)
		if !ok {
			return nil, nil
		}
		p := byID[id]
		if p.Stock == nil {
			return p, nil
		}

		taken, err := s.store.DecrementStock(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			won := *p
			left := *p.Stock - 1
			won.Stock = &left
			return &won, nil
		}

		log.WithFields(log.Fields{"prize_id": p.ID, "attempt": attempt}).Debug("Prize stock taken concurrently, redrawing")
		excluded[p.ID] = true
	}
	return nil, nil
}

// apply turns the won prize into its reward inside the spin transaction.
func (s *Service) apply(ctx context.Context, res *SpinResult) error {
	prize, spin := res.Prize, res.Spin

	switch prize.PrizeType {
	case PrizeCouponPercent, PrizeCouponFixed:
		couponType := coupons.TypePercent
		if prize.PrizeType == PrizeCouponFixed {
			couponType = coupons.TypeFixed
		}
		if t, ok := coupons.ParseType(metaString(prize.Metadata, "coupon_type")); ok && t != coupons.TypeFreeOrder {
			couponType = t
		}
		value, _ := metaInt(prize.Metadata, "coupon_value")
		days, _ := metaInt(prize.Metadata, "expires_in_days")

		c, err := s.coupons.IssueForUser(ctx, coupons.IssueInput{
			UserID:        spin.UserID,
			Type:          couponType,
			Value:         max(0, value),
			Prefix:        s.opts.CouponPrefix,
			ExpiresInDays: int(max(0, days)),
			Metadata: map[string]any{
				"source":      spinReference,
				"box_id":      spin.BoxID,
				"prize_id":    prize.ID,
				"prize_label": prize.Label,
				"spin_id":     spin.ID,
			},
		})
		if err != nil {
			return fmt.Errorf("issue prize coupon: %w", err)
		}
		spin.CouponID = &c.ID
		res.Coupon = c

	case PrizeWalletCredit:
		amount, ok := metaInt(prize.Metadata, "credit_cents")
		if !ok || amount <= 0 {
			return fmt.Errorf("prize %s: wallet credit without a positive credit_cents", prize.ID)
		}
		result, err := s.ledger.CreateTransaction(ctx, wallet.CreateInput{
			UserID:        spin.UserID,
			AmountCents:   amount,
			Direction:     wallet.DirectionCredit,
			Status:        wallet.StatusAvailable,
			Kind:          wallet.KindMysteryPrize,
			Description:   "Mystery Box prize: " + prize.Label,
			ReferenceType: spinReference,
			ReferenceID:   spin.ID,
			Metadata: map[string]any{
				"box_id":   spin.BoxID,
				"prize_id": prize.ID,
			},
		})
		if err != nil {
			return fmt.Errorf("credit prize: %w", err)
		}
		spin.WalletTransactionID = &result.Transaction.ID
		res.WalletTransaction = result.Transaction
	}
	return nil
}

func (s *Service) notify(in SpinInput, res *SpinResult) {
	if s.notifier == nil {
		return
	}
	e := notify.SpinResolved{
		SpinID:           res.Spin.ID,
		UserID:           in.UserID,
		Email:            in.Email,
		BoxID:            res.Box.ID,
		BoxName:          res.Box.Name,
		PrizeLabel:       res.Spin.PrizeLabel,
		Won:              res.Spin.Status == SpinWon,
		RemainingTickets: res.RemainingTickets,
		At:               s.now(),
	}
	if res.Prize != nil {
		e.PrizeID = res.Prize.ID
		e.PrizeType = string(res.Prize.PrizeType)
	}
	if res.Coupon != nil {
		e.CouponCode = res.Coupon.Code
	}
	if res.WalletTransaction != nil {
		e.CreditCents = res.WalletTransaction.AmountCents
	}
	s.notifier.SpinResolved(e)
}

// ListBoxes returns the active boxes with their prizes. With a userID each box
// also carries the spins the user can spend on it.
func (s *Service) ListBoxes(ctx context.Context, userID string) ([]*BoxView, error) {
	boxes, err := s.store.ListActiveBoxes(ctx, maxBoxes)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(boxes))
	for _, b := range boxes {
		ids = append(ids, b.ID)
	}
	prizes, err := s.store.ListActivePrizes(ctx, ids)
	if err != nil {
		return nil, err
	}
	byBox := map[string][]*Prize{}
	for _, p := range prizes {
		byBox[p.BoxID] = append(byBox[p.BoxID], p)
	}

	available := map[int64]int{}
	if userID = strings.TrimSpace(userID); userID != "" {
		if available, err = s.store.AvailableTickets(ctx, userID); err != nil {
			return nil, err
		}
	}

	out := make([]*BoxView, 0, len(boxes))
	for _, b := range boxes {
		var image catalog.ImageSource
		if b.Image != nil {
			image = catalog.DelimitedImages(*b.Image)
		}
		b.ImageURL = catalog.ResolveImage(catalog.JSONImages(b.Images), image)
		gallery := catalog.ResolveImages(catalog.JSONImages(b.Images), image)

		boxPrizes := byBox[b.ID]
		if boxPrizes == nil {
			boxPrizes = []*Prize{}
		}
		out = append(out, &BoxView{Box: b, Gallery: gallery, Prizes: boxPrizes, AvailableTickets: available[b.TicketPriceCents]})
	}
	return out, nil
}

// ListSpins returns the user's spin history, newest first, with coupons attached.
func (s *Service) ListSpins(ctx context.Context, userID string, limit int) ([]*SpinView, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, common.Invalid("UserID", "is required")
	}
	if limit <= 0 {
		limit = defaultSpinLimit
	}
	limit = min(limit, maxSpinLimit)

	spins, err := s.store.ListSpins(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	var couponIDs []string
	seen := map[string]bool{}
	for _, sp := range spins {
		if sp.CouponID != nil && !seen[*sp.CouponID] {
			seen[*sp.CouponID] = true
			couponIDs = append(couponIDs, *sp.CouponID)
		}
	}
	byID := map[string]*coupons.Coupon{}
	if len(couponIDs) > 0 {
		if byID, err = s.coupons.ByIDs(ctx, couponIDs); err != nil {
			return nil, err
		}
	}

	out := make([]*SpinView, 0, len(spins))
	for _, sp := range spins {
		v := &SpinView{Spin: sp}
		if sp.CouponID != nil {
			v.Coupon = byID[*sp.CouponID]
		}
		out = append(out, v)
	}
	return out, nil
}

// GrantTickets credits the spins bought by an order. Granting the same order
// and box twice is a no-op that returns false.
func (s *Service) GrantTickets(ctx context.Context, in GrantInput) (bool, error) {
	if in.Units <= 0 {
		return false, nil
	}
	if err := common.ValidateStruct(in); err != nil {
		return false, err
	}

	orderID := in.OrderID
	inserted, err := s.store.InsertTicket(ctx, &Ticket{
		ID:            uuid.NewString(),
		UserID:        in.UserID,
		BoxID:         in.BoxID,
		OrderID:       &orderID,
		QuantityTotal: in.Units,
		Status:        TicketActive,
	})
	if err != nil {
		return false, err
	}
	if inserted {
		log.WithFields(log.Fields{
			"order_id": in.OrderID,
			"user_id":  in.UserID,
			"box_id":   in.BoxID,
			"units":    in.Units,
		}).Info("Mystery tickets granted")
	}
	return inserted, nil
}

// RedeemSpin marks a won physical prize as claimed. It can happen once.
func (s *Service) RedeemSpin(ctx context.Context, userID, spinID string) (*Spin, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(spinID) == "" {
		return nil, common.Invalid("SpinID", "is required")
	}

	spin, err := s.store.MarkRedeemed(ctx, userID, spinID, s.now())
	if err != nil {
		return nil, err
	}
	if spin != nil {
		log.WithFields(log.Fields{"user_id": userID, "spin_id": spinID}).Info("Mystery prize redeemed")
		return spin, nil
	}

	existing, err := s.store.GetSpin(ctx, userID, spinID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, common.ErrNotFound
	}
	return nil, common.ErrSpinNotRedeemable
}
