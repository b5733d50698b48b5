package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flardop/Advanced-Retro-sub001/internal/common"
)

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor(common.Invalid("BoxID", "is required")))
	assert.Equal(t, http.StatusNotFound, StatusFor(fmt.Errorf("spin: %w", common.ErrBoxNotFound)))
	assert.Equal(t, http.StatusConflict, StatusFor(common.ErrNoTickets))
	assert.Equal(t, http.StatusServiceUnavailable, StatusFor(fmt.Errorf("x: %w", common.ErrLedgerNotProvisioned)))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("connection refused")))
}

func TestErrorHidesInternalDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	Error(c, errors.New("dial tcp 10.0.0.1:5432: connection refused"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "internal error", body.Error)
}

func TestErrorFlagsSetupRequired(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	Error(c, fmt.Errorf("list boxes: %w", common.ErrMysteryNotProvisioned))

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.SetupRequired)
}
