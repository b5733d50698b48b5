package admin

import (
	"github.com/gin-gonic/gin"

	"github.com/flardop/Advanced-Retro-sub001/internal/server/response"
)

// Handler serves the admin session endpoint.
type Handler struct {
	service *Service
}

// NewHandler creates the admin handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// HandleLogin opens an admin session. POST /api/admin/session
func (h *Handler) HandleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err)
		return
	}

	session, err := h.service.Login(c.Request.Context(), LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		RemoteAddr: c.ClientIP(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "session opened", session)
}
