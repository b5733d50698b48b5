package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/flardop/Advanced-Retro-sub001/internal/auth"
	"github.com/flardop/Advanced-Retro-sub001/internal/features/admin"
	"github.com/flardop/Advanced-Retro-sub001/internal/features/community"
	"github.com/flardop/Advanced-Retro-sub001/internal/features/coupons"
	"github.com/flardop/Advanced-Retro-sub001/internal/features/mystery"
	"github.com/flardop/Advanced-Retro-sub001/internal/features/orders"
	"github.com/flardop/Advanced-Retro-sub001/internal/features/wallet"
	"github.com/flardop/Advanced-Retro-sub001/internal/ratelimit"
	"github.com/flardop/Advanced-Retro-sub001/internal/server/middleware"
)

// Handlers groups the feature handlers mounted on the router.
type Handlers struct {
	Wallet    *wallet.Handler
	Coupons   *coupons.Handler
	Mystery   *mystery.Handler
	Community *community.Handler
	Orders    *orders.Handler
	Admin     *admin.Handler
}

// Limits are the request budgets per route group.
type Limits struct {
	Default       int
	DefaultWindow time.Duration
	Spin          int
	SpinWindow    time.Duration
}

// NewRouter builds the gin engine with every route.
func NewRouter(tokens *auth.Tokens, limiter ratelimit.Limiter, limits Limits, h Handlers, debug bool) *gin.Engine {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.RequestLogger(), middleware.Authenticate(tokens))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	limit := func(scope string) gin.HandlerFunc {
		return middleware.RateLimit(limiter, scope, limits.Default, limits.DefaultWindow)
	}

	api := r.Group("/api")

	api.POST("/webhooks/payments", limit("webhook"), h.Orders.HandlePaymentWebhook)
	api.POST("/admin/session", middleware.RateLimit(limiter, "admin_session", 10, time.Minute), h.Admin.HandleLogin)

	api.GET("/mystery/boxes", limit("mystery_boxes"), h.Mystery.HandleBoxes)

	user := api.Group("", middleware.RequireUser())
	{
		user.GET("/wallet", limit("wallet"), h.Wallet.HandleMyWallet)

		user.POST("/coupons/validate", limit("coupon_validate"), h.Coupons.HandleValidate)
		user.GET("/coupons/my", limit("coupons"), h.Coupons.HandleMine)

		user.POST("/mystery/spin", middleware.RateLimit(limiter, "mystery_spin", limits.Spin, limits.SpinWindow), h.Mystery.HandleSpin)
		user.GET("/mystery/spins", limit("mystery_spins"), h.Mystery.HandleSpins)
		user.POST("/mystery/spins/:id/redeem", limit("mystery_redeem"), h.Mystery.HandleRedeem)
	}

	staff := api.Group("/admin", middleware.RequireAdmin())
	{
		staff.GET("/wallets/:userId", h.Wallet.HandleUserWallet)
		staff.POST("/wallets/adjust", h.Wallet.HandleAdjust)
		staff.PUT("/listings/:id/delivery", h.Community.HandleDelivery)
		staff.POST("/listings/:id/settle", h.Community.HandleSettle)
	}

	return r
}
