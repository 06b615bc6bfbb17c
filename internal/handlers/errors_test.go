package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"hospital-booking-server/internal/lifecycle"
	"hospital-booking-server/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantCode   int
		wantDetail string
	}{
		{"invalid", &services.Error{Kind: services.ErrInvalid, Detail: "Date is in the past"}, http.StatusBadRequest, "Date is in the past"},
		{"forbidden", &services.Error{Kind: services.ErrForbidden, Detail: "Not your appointment"}, http.StatusForbidden, "Not your appointment"},
		{"not found", &services.Error{Kind: services.ErrNotFound, Detail: "Schedule not found"}, http.StatusNotFound, "Schedule not found"},
		{"conflict", &services.Error{Kind: services.ErrConflict, Detail: "Already booked"}, http.StatusConflict, "Already booked"},
		{"wrapped", fmt.Errorf("book: %w", &services.Error{Kind: services.ErrConflict, Detail: "Already booked"}), http.StatusConflict, "book: Already booked"},
		{"transition", fmt.Errorf("cancel: %w", lifecycle.ErrTransition), http.StatusBadRequest, "cancel: " + lifecycle.ErrTransition.Error()},
		{"unknown", errors.New("connection refused"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			respondError(c, zap.NewNop(), tt.err)

			assert.Equal(t, tt.wantCode, w.Code)
			var body struct {
				Status  int    `json:"status"`
				Message string `json:"message"`
				Detail  string `json:"detail"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Status)
			assert.Equal(t, "An error occurred", body.Message)
			assert.Equal(t, tt.wantDetail, body.Detail)
		})
	}
}

func TestCurrentUser_Missing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	_, _, ok := currentUser(c)

	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
