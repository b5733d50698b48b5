package community

import (
	"github.com/gin-gonic/gin"

	"github.com/flardop/Advanced-Retro-sub001/internal/server/middleware"
	"github.com/flardop/Advanced-Retro-sub001/internal/server/response"
)

// Handler serves the admin listing endpoints.
type Handler struct {
	service *Service
}

// NewHandler creates the community handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type deliveryRequest struct {
	DeliveryStatus string `json:"delivery_status" binding:"required"`
}

// HandleDelivery records a delivery status and settles the sale once delivered.
// PUT /api/admin/listings/:id/delivery
func (h *Handler) HandleDelivery(c *gin.Context) {
	var req deliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}

	result, err := h.service.UpdateDelivery(c.Request.Context(), DeliveryInput{
		ListingID:      c.Param("id"),
		DeliveryStatus: req.DeliveryStatus,
		AdminID:        middleware.UserID(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "delivery updated", result)
}

// HandleSettle retries the payout of a delivered listing.
// POST /api/admin/listings/:id/settle
func (h *Handler) HandleSettle(c *gin.Context) {
	result, err := h.service.SettleListing(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "listing settled", result)
}
