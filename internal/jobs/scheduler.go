// Package jobs runs the background maintenance (cron): the coupon expiry sweep
// and the wallet drift check.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/flardop/Advanced-Retro-sub001/internal/features/wallet"
	"github.com/flardop/Advanced-Retro-sub001/internal/notify"
)

// CouponSweeper deactivates expired coupons. *coupons.Service implements it.
type CouponSweeper interface {
	DeactivateExpired(ctx context.Context) (int64, error)
}

// DriftFinder compares accounts with their ledgers. *wallet.Service implements it.
type DriftFinder interface {
	FindDrift(ctx context.Context, limit int) ([]wallet.Drift, error)
}

// DriftNotifier alerts staff. *notify.Notifier implements it.
type DriftNotifier interface {
	WalletDrift(e notify.WalletDrift)
}

// Specs are the cron expressions of each job.
type Specs struct {
	CouponSweep     string
	WalletReconcile string
	ReconcileBatch  int
}

// Scheduler runs the background jobs.
type Scheduler struct {
	cron     *cron.Cron
	specs    Specs
	coupons  CouponSweeper
	wallets  DriftFinder
	notifier DriftNotifier
	loc      *time.Location
}

// NewScheduler creates the scheduler in the business time zone.
func NewScheduler(loc *time.Location, specs Specs, coupons CouponSweeper, wallets DriftFinder, notifier DriftNotifier) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		specs:    specs,
		coupons:  coupons,
		wallets:  wallets,
		notifier: notifier,
		loc:      loc,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.specs.CouponSweep, func() { s.SweepCoupons(ctx) }); err != nil {
		return fmt.Errorf("schedule coupon sweep %q: %w", s.specs.CouponSweep, err)
	}
	if _, err := s.cron.AddFunc(s.specs.WalletReconcile, func() { s.CheckWallets(ctx) }); err != nil {
		return fmt.Errorf("schedule wallet reconcile %q: %w", s.specs.WalletReconcile, err)
	}

	s.cron.Start()
	log.WithField("tz", s.loc.String()).Info("Job scheduler started")
	return nil
}

// Run starts the scheduler and stops it when ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}

// Stop waits for running jobs and stops the scheduler.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Job scheduler stopped")
}

// SweepCoupons deactivates coupons past their expiry.
func (s *Scheduler) SweepCoupons(ctx context.Context) {
	n, err := s.coupons.DeactivateExpired(ctx)
	if err != nil {
		log.WithError(err).Error("[CRON] Coupon sweep failed")
		return
	}
	log.WithField("count", n).Debug("[CRON] Coupon sweep done")
}

// CheckWallets reconciles the most recently updated accounts and reports drift.
func (s *Scheduler) CheckWallets(ctx context.Context) {
	drifts, err := s.wallets.FindDrift(ctx, s.specs.ReconcileBatch)
	if err != nil {
		log.WithError(err).Error("[CRON] Wallet reconcile failed")
		return
	}
	for _, d := range drifts {
		log.WithFields(log.Fields{
			"user_id":        d.UserID,
			"stored_cents":   d.Stored.BalanceCents,
			"computed_cents": d.Computed.BalanceCents,
		}).Warn("[CRON] Wallet drift detected")
		if s.notifier != nil {
			s.notifier.WalletDrift(notify.WalletDrift{
				UserID:        d.UserID,
				StoredCents:   d.Stored.BalanceCents,
				ComputedCents: d.Computed.BalanceCents,
			})
		}
	}
	log.WithField("drifted", len(drifts)).Debug("[CRON] Wallet reconcile done")
}
