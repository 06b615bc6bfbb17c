package handlers

import (
	"errors"
	"net/http"

	"hospital-booking-server/internal/lifecycle"
	"hospital-booking-server/internal/middleware"
	"hospital-booking-server/internal/models"
	"hospital-booking-server/internal/services"
	"hospital-booking-server/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var errorStatus = []struct {
	kind error
	code int
}{
	{services.ErrInvalid, http.StatusBadRequest},
	{services.ErrUnauthorized, http.StatusUnauthorized},
	{services.ErrForbidden, http.StatusForbidden},
	{services.ErrNotFound, http.StatusNotFound},
	{services.ErrConflict, http.StatusConflict},
	{lifecycle.ErrTransition, http.StatusBadRequest},
}

// respondError writes the error envelope for a service error. Unknown errors
// are logged and reported as 500 without their text.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	for _, e := range errorStatus {
		if errors.Is(err, e.kind) {
			utils.Error(c, e.code, err.Error())
			return
		}
	}
	if log != nil {
		log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	utils.InternalServerError(c, "Internal server error")
}

// currentUser reads the authenticated caller set by AuthMiddleware.
func currentUser(c *gin.Context) (string, models.Role, bool) {
	id, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return "", "", false
	}
	role, _ := middleware.GetUserRoleFromContext(c)
	return id, role, true
}
