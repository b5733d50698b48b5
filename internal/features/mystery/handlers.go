package mystery

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/flardop/Advanced-Retro-sub001/internal/server/middleware"
	"github.com/flardop/Advanced-Retro-sub001/internal/server/response"
)

// Handler serves the Mystery Box endpoints.
type Handler struct {
	service *Service
}

// NewHandler creates the mystery handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandleBoxes lists active boxes. GET /api/mystery/boxes
// Anonymous callers get the catalog without ticket counts.
func (h *Handler) HandleBoxes(c *gin.Context) {
	boxes, err := h.service.ListBoxes(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "boxes", boxes)
}

type spinRequest struct {
	BoxID string `json:"box_id" binding:"required,max=64"`
}

// HandleSpin spends a ticket on a box. POST /api/mystery/spin
func (h *Handler) HandleSpin(c *gin.Context) {
	var req spinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}

	result, err := h.service.Spin(c.Request.Context(), SpinInput{
		UserID: middleware.UserID(c),
		BoxID:  req.BoxID,
		Email:  middleware.UserEmail(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "spin resolved", result)
}

// HandleSpins returns the caller's spin history. GET /api/mystery/spins?limit=120
func (h *Handler) HandleSpins(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	spins, err := h.service.ListSpins(c.Request.Context(), middleware.UserID(c), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "spins", spins)
}

// HandleRedeem claims a physical prize. POST /api/mystery/spins/:id/redeem
func (h *Handler) HandleRedeem(c *gin.Context) {
	spin, err := h.service.RedeemSpin(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "prize redeemed", spin)
}
