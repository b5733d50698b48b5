// Package app wires the storefront reward engine: database pool, repositories,
// services, HTTP handlers, notifications and background jobs.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/flardop/Advanced-Retro-sub001/internal/auth"
	"github.com/flardop/Advanced-Retro-sub001/internal/config"
	"github.com/flardop/Advanced-Retro-sub001/internal/db/postgres"
	"github.com/flardop/Advanced-Retro-sub001/internal/features/admin"
	"github.com/flardop/Advanced-Retro-sub001/internal/features/community"
	"github.com/flardop/Advanced-Retro-sub001/internal/features/coupons"
	"github.com/flardop/Advanced-Retro-sub001/internal/features/mystery"
	"github.com/flardop/Advanced-Retro-sub001/internal/features/orders"
	"github.com/flardop/Advanced-Retro-sub001/internal/features/wallet"
	"github.com/flardop/Advanced-Retro-sub001/internal/jobs"
	"github.com/flardop/Advanced-Retro-sub001/internal/notify"
	"github.com/flardop/Advanced-Retro-sub001/internal/ratelimit"
	"github.com/flardop/Advanced-Retro-sub001/internal/server"
)

// App holds the long-running components.
type App struct {
	DB         *pgxpool.Pool
	Server     *server.Server
	Scheduler  *jobs.Scheduler
	Dispatcher *notify.Dispatcher

	closers []func()
}

// New builds the application. The order matters: each step uses the previous ones.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{}
	loc := cfg.Location()

	// === 1. Database ===
	if cfg.DBAutoMigrate {
		if err := postgres.RunMigrations(ctx, cfg.DatabaseDSN(), "up"); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}

	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	a.DB = pool
	a.closers = append(a.closers, pool.Close)

	// === 2. Rate limiter ===
	limiter, err := a.newLimiter(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	// === 3. Notifications ===
	notifier, err := a.newNotifier(cfg, loc)
	if err != nil {
		a.Close()
		return nil, err
	}

	// === 4. Repositories ===
	tx := postgres.NewTxManager(pool)
	walletRepo := wallet.NewRepository(pool)
	couponRepo := coupons.NewRepository(pool)
	mysteryRepo := mystery.NewRepository(pool)
	communityRepo := community.NewRepository(pool)
	orderRepo := orders.NewRepository(pool)
	adminRepo := admin.NewRepository(pool)

	// === 5. Services ===
	tokens := auth.NewTokens(cfg.JWTSecret)
	walletService := wallet.NewService(walletRepo, tx)
	couponService := coupons.NewService(couponRepo, tx)
	mysteryService := mystery.NewService(mysteryRepo, tx, couponService, walletService, notifier, mystery.Options{
		MaxReselect:  cfg.SpinMaxReselect,
		CouponPrefix: cfg.MysteryCouponPrefix,
	})
	communityService := community.NewService(communityRepo, walletService, notifier, cfg.CommunityCommissionRate)
	orderService := orders.NewService(orderRepo, tx, mysteryService, couponService, notifier)
	adminService := admin.NewService(adminRepo, tokens, cfg)

	// === 6. HTTP ===
	router := server.NewRouter(tokens, limiter, server.Limits{
		Default:       cfg.RateLimitRequests,
		DefaultWindow: cfg.RateLimitWindow,
		Spin:          cfg.SpinRateRequests,
		SpinWindow:    cfg.SpinRateWindow,
	}, server.Handlers{
		Wallet:    wallet.NewHandler(walletService),
		Coupons:   coupons.NewHandler(couponService),
		Mystery:   mystery.NewHandler(mysteryService),
		Community: community.NewHandler(communityService),
		Orders:    orders.NewHandler(orderService, cfg.PaymentWebhookSecret),
		Admin:     admin.NewHandler(adminService),
	}, cfg.IsDevelopment())
	a.Server = server.New(cfg, router)

	// === 7. Jobs ===
	a.Scheduler = jobs.NewScheduler(loc, jobs.Specs{
		CouponSweep:     cfg.JobsCouponSweepSpec,
		WalletReconcile: cfg.JobsWalletReconcileSpec,
		ReconcileBatch:  cfg.JobsReconcileBatch,
	}, couponService, walletService, notifier)

	return a, nil
}

func (a *App) newLimiter(ctx context.Context, cfg *config.Config) (ratelimit.Limiter, error) {
	if cfg.RateLimitBackend != "redis" {
		m := ratelimit.NewMemory()
		a.closers = append(a.closers, m.Close)
		return m, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	a.closers = append(a.closers, func() { _ = client.Close() })
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
	}
	log.WithField("addr", cfg.RedisAddr).Info("Rate limiter backed by Redis")
	return ratelimit.NewRedis(client, "ratelimit:"), nil
}

func (a *App) newNotifier(cfg *config.Config, loc *time.Location) (*notify.Notifier, error) {
	a.Dispatcher = notify.NewDispatcher(cfg.NotifyWorkers, cfg.NotifyQueueSize, cfg.NotifyTimeout)

	var mailer notify.Mailer = notify.LogMailer{}
	if cfg.SMTPHost != "" {
		mailer = notify.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	}

	var staff notify.StaffNotifier = notify.LogStaffNotifier{}
	if cfg.TelegramBotToken != "" {
		tg, err := notify.NewTelegramNotifier(cfg.TelegramBotToken, cfg.StaffChatID)
		if err != nil {
			return nil, err
		}
		staff = tg
	}

	events, err := notify.NewPublisher(cfg.EventsProvider, cfg.NatsURL, cfg.RabbitURL, cfg.RabbitExchange, cfg.EventSubjectBase)
	if err != nil {
		return nil, fmt.Errorf("events: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := events.Close(); err != nil {
			log.WithError(err).Warn("Closing event publisher failed")
		}
	})

	return notify.NewNotifier(a.Dispatcher, mailer, staff, events, loc), nil
}

// Run serves HTTP and runs the jobs until ctx is cancelled or one of them fails.
// The dispatcher is stopped last so notifications raised by in-flight requests still go out.
func (a *App) Run(ctx context.Context) error {
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		_ = a.Dispatcher.Start(dispatchCtx)
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Server.Run(gctx) })
	g.Go(func() error { return a.Scheduler.Run(gctx) })
	err := g.Wait()

	stopDispatch()
	<-dispatchDone
	return err
}

// Close releases the pool and connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
