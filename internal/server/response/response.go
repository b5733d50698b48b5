// Package response writes the JSON envelopes returned by every endpoint
// and maps domain errors onto HTTP statuses.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/flardop/Advanced-Retro-sub001/internal/common"
)

// Envelope is the standard API response structure.
type Envelope struct {
	Status        string `json:"status"`
	Message       string `json:"message,omitempty"`
	Data          any    `json:"data,omitempty"`
	Error         string `json:"error,omitempty"`
	SetupRequired bool   `json:"setup_required,omitempty"`
}

// Success sends a 200 response.
func Success(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, Envelope{Status: "success", Message: message, Data: data})
}

// Created sends a 201 response.
func Created(c *gin.Context, message string, data any) {
	c.JSON(http.StatusCreated, Envelope{Status: "success", Message: message, Data: data})
}

// BadRequest reports a malformed request body.
func BadRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Envelope{Status: "error", Error: err.Error()})
}

// Error maps err to a status and writes it. Unexpected errors are logged and hidden.
func Error(c *gin.Context, err error) {
	status := StatusFor(err)
	body := Envelope{Status: "error", Error: err.Error()}

	switch {
	case status == http.StatusServiceUnavailable:
		body.SetupRequired = true
	case status >= http.StatusInternalServerError:
		log.WithError(err).WithFields(log.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("Request failed")
		body.Error = "internal error"
	}
	c.AbortWithStatusJSON(status, body)
}

var statusTable = []struct {
	err    error
	status int
}{
	{common.ErrValidation, http.StatusBadRequest},
	{common.ErrInvalidAmount, http.StatusBadRequest},
	{common.ErrUnauthorized, http.StatusUnauthorized},
	{common.ErrWrongPassword, http.StatusUnauthorized},
	{common.ErrInvalidSignature, http.StatusUnauthorized},
	{common.ErrNotAdmin, http.StatusForbidden},
	{common.ErrNotFound, http.StatusNotFound},
	{common.ErrBoxNotFound, http.StatusNotFound},
	{common.ErrNoTickets, http.StatusConflict},
	{common.ErrPrizeCatalogEmpty, http.StatusConflict},
	{common.ErrInsufficientBalance, http.StatusConflict},
	{common.ErrReferenceConflict, http.StatusConflict},
	{common.ErrCouponNotRedeemable, http.StatusConflict},
	{common.ErrSpinNotRedeemable, http.StatusConflict},
	{common.ErrOrderState, http.StatusConflict},
	{common.ErrTooManyAttempts, http.StatusTooManyRequests},
	{common.ErrRateLimited, http.StatusTooManyRequests},
	{common.ErrLedgerNotProvisioned, http.StatusServiceUnavailable},
	{common.ErrMysteryNotProvisioned, http.StatusServiceUnavailable},
	{common.ErrCouponsNotProvisioned, http.StatusServiceUnavailable},
	{common.ErrMarketNotProvisioned, http.StatusServiceUnavailable},
}

// StatusFor returns the HTTP status for err.
func StatusFor(err error) int {
	for _, entry := range statusTable {
		if errors.Is(err, entry.err) {
			return entry.status
		}
	}
	return http.StatusInternalServerError
}
