package coupons

import (
	"github.com/gin-gonic/gin"

	"github.com/flardop/Advanced-Retro-sub001/internal/server/middleware"
	"github.com/flardop/Advanced-Retro-sub001/internal/server/response"
)

// Handler serves coupon endpoints.
type Handler struct {
	service *Service
}

// NewHandler creates the coupon handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type validateRequest struct {
	Code          string `json:"code" binding:"required,max=64"`
	SubtotalCents int64  `json:"subtotal_cents" binding:"gte=0"`
}

type validateResponse struct {
	Valid         bool    `json:"valid"`
	Coupon        *Coupon `json:"coupon,omitempty"`
	DiscountCents int64   `json:"discount_cents"`
}

// HandleValidate prices a code for the caller's cart. POST /api/coupons/validate
func (h *Handler) HandleValidate(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}

	v, err := h.service.ValidateForCheckout(c.Request.Context(), req.Code, middleware.UserID(c), req.SubtotalCents)
	if err != nil {
		response.Error(c, err)
		return
	}
	if v == nil {
		response.Success(c, "coupon not valid", validateResponse{})
		return
	}
	response.Success(c, "coupon valid", validateResponse{Valid: true, Coupon: v.Coupon, DiscountCents: v.DiscountCents})
}

// HandleMine lists the caller's coupons. GET /api/coupons/my
func (h *Handler) HandleMine(c *gin.Context) {
	list, err := h.service.ListForUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "coupons", list)
}
