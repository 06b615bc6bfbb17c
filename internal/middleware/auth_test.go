package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"hospital-booking-server/internal/config"
	"hospital-booking-server/internal/models"
	"hospital-booking-server/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type users map[string]*models.User

func (u users) Get(_ context.Context, id string) (*models.User, error) {
	if user, ok := u[id]; ok {
		return user, nil
	}
	return nil, errors.New("record not found")
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:                 "access-secret",
		JWTRefreshSecret:          "refresh-secret",
		JWTExpirationMinutes:      15,
		JWTRefreshExpirationHours: 1,
	}
}

func setupRouter(cfg *config.Config, lookup UserLookup) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/doctor", AuthMiddleware(cfg, lookup), RoleAuthMiddleware(models.RoleDoctor), func(c *gin.Context) {
		id, _ := GetUserIDFromContext(c)
		c.String(http.StatusOK, id)
	})
	return r
}

func bearer(t *testing.T, cfg *config.Config, user *models.User) string {
	t.Helper()
	access, _, err := utils.GenerateTokens(user, cfg)
	require.NoError(t, err)
	return "Bearer " + access
}

func TestAuthMiddleware(t *testing.T) {
	cfg := testConfig()
	doctor := &models.User{Role: models.RoleDoctor, IsActive: true}
	doctor.ID = "doc-1"
	patient := &models.User{Role: models.RolePatient, IsActive: true}
	patient.ID = "pat-1"
	retired := &models.User{Role: models.RoleDoctor}
	retired.ID = "doc-2"
	r := setupRouter(cfg, users{doctor.ID: doctor, patient.ID: patient, retired.ID: retired})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer abc", http.StatusUnauthorized},
		{"wrong role", bearer(t, cfg, patient), http.StatusForbidden},
		{"inactive", bearer(t, cfg, retired), http.StatusForbidden},
		{"ok", bearer(t, cfg, doctor), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/doctor", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestAuthMiddleware_DeletedUser(t *testing.T) {
	cfg := testConfig()
	ghost := &models.User{Role: models.RoleDoctor, IsActive: true}
	ghost.ID = "gone"
	r := setupRouter(cfg, users{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/doctor", nil)
	req.Header.Set("Authorization", bearer(t, cfg, ghost))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Could not validate credentials")
}

func TestAuthMiddleware_RefreshTokenRejected(t *testing.T) {
	cfg := testConfig()
	doctor := &models.User{Role: models.RoleDoctor, IsActive: true}
	doctor.ID = "doc-1"
	r := setupRouter(cfg, nil)

	_, refresh, err := utils.GenerateTokens(doctor, cfg)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/doctor", nil)
	req.Header.Set("Authorization", "Bearer "+refresh)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
