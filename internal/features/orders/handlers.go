package orders

import (
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	log "github.com/sirupsen/logrus"

	"github.com/flardop/Advanced-Retro-sub001/internal/server/response"
)

// Handler serves the payment webhook.
type Handler struct {
	service *Service
	secret  string
}

// NewHandler creates the webhook handler. secret signs every accepted payload.
func NewHandler(service *Service, secret string) *Handler {
	return &Handler{service: service, secret: secret}
}

// HandlePaymentWebhook applies a signed payment event. POST /api/webhooks/payments
func (h *Handler) HandlePaymentWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		response.BadRequest(c, err)
		return
	}
	if err := VerifySignature(h.secret, body, c.GetHeader(SignatureHeader)); err != nil {
		log.WithField("remote_addr", c.ClientIP()).Warn("Payment webhook rejected: bad signature")
		response.Error(c, err)
		return
	}

	var ev WebhookEvent
	if err := binding.JSON.BindBody(body, &ev); err != nil {
		response.BadRequest(c, err)
		return
	}
	if ev.Type != EventOrderPaid {
		response.Success(c, "event ignored", gin.H{"type": ev.Type})
		return
	}

	result, err := h.service.MarkPaid(c.Request.Context(), ev.OrderID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "order processed", result)
}
