// Package wallet: handlers.go exposes the ledger over HTTP.
package wallet

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/flardop/Advanced-Retro-sub001/internal/server/middleware"
	"github.com/flardop/Advanced-Retro-sub001/internal/server/response"
)

// Handler serves wallet endpoints.
type Handler struct {
	service *Service
}

// NewHandler creates the wallet handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandleMyWallet returns the caller's snapshot. GET /api/wallet?limit=25
func (h *Handler) HandleMyWallet(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	snap, err := h.service.Snapshot(c.Request.Context(), middleware.UserID(c), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "wallet", snap)
}

// HandleUserWallet returns any user's snapshot for staff. GET /api/admin/wallets/:userId
func (h *Handler) HandleUserWallet(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	snap, err := h.service.Snapshot(c.Request.Context(), c.Param("userId"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "wallet", snap)
}

type adjustRequest struct {
	UserID      string    `json:"user_id" binding:"required"`
	AmountCents int64     `json:"amount_cents" binding:"required,gt=0"`
	Direction   Direction `json:"direction" binding:"required,oneof=credit debit"`
	Description string    `json:"description" binding:"max=500"`
	// Optional idempotency key so a retried adjustment is applied once.
	ReferenceID string `json:"reference_id" binding:"max=160"`
}

// HandleAdjust records a manual adjustment. POST /api/admin/wallets/adjust
func (h *Handler) HandleAdjust(c *gin.Context) {
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}

	in := CreateInput{
		UserID:      req.UserID,
		AmountCents: req.AmountCents,
		Direction:   req.Direction,
		Status:      StatusAvailable,
		Kind:        KindManualAdjustment,
		Description: req.Description,
		CreatedBy:   middleware.UserID(c),
		Metadata:    map[string]any{"source": "admin_adjustment"},
	}
	if in.Description == "" {
		in.Description = "Manual wallet adjustment"
	}
	if req.ReferenceID != "" {
		in.ReferenceType = "admin_adjustment"
		in.ReferenceID = req.ReferenceID
	}

	result, err := h.service.CreateTransaction(c.Request.Context(), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Duplicate {
		response.Success(c, "adjustment already recorded", result)
		return
	}
	response.Created(c, "adjustment recorded", result)
}
