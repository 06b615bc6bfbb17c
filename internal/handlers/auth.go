package handlers

import (
	"errors"
	"hospital-booking-server/internal/config"
	"hospital-booking-server/internal/services"
	"hospital-booking-server/internal/utils"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const refreshCookie = "refresh_token"

// AuthHandler handles sign-in, token rotation, registration and the caller's profile.
type AuthHandler struct {
	Auth     *services.AuthService
	Accounts *services.AccountService
	Cfg      *config.Config
	Log      *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(svc *services.Services, cfg *config.Config, log *zap.Logger) *AuthHandler {
	return &AuthHandler{Auth: svc.Auth, Accounts: svc.Accounts, Cfg: cfg, Log: log}
}

// TokenRequest is the OAuth2 password grant form.
type TokenRequest struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
}

// Token handles the form-encoded password login and returns a bare token pair.
func (h *AuthHandler) Token(c *gin.Context) {
	var req TokenRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	pair, user, err := h.Auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrUnauthorized) {
			c.Header("WWW-Authenticate", "Bearer")
		}
		respondError(c, h.Log, err)
		return
	}
	h.Log.Info("user signed in", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))

	h.setRefreshCookie(c, pair.RefreshToken, h.Cfg.JWTRefreshExpirationHours*60*60)
	c.JSON(http.StatusOK, pair)
}

// RefreshTokenRequest represents the request body for token refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// RefreshToken exchanges a refresh token, from the cookie or the body, for a new pair.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	token, err := c.Cookie(refreshCookie)
	if err != nil || token == "" {
		var req RefreshTokenRequest
		if !utils.BindAndValidate(c, &req) {
			return
		}
		token = req.RefreshToken
	}

	pair, err := h.Auth.Refresh(c.Request.Context(), token)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	h.setRefreshCookie(c, pair.RefreshToken, h.Cfg.JWTRefreshExpirationHours*60*60)
	utils.Success(c, "Access token refreshed successfully", pair)
}

// LogoutRequest represents the request body for user logout.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Logout revokes the refresh token and clears its cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req LogoutRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	if err := h.Auth.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		respondError(c, h.Log, err)
		return
	}
	h.setRefreshCookie(c, "", -1)
	utils.Success(c, "Logout successful. Refresh token has been invalidated.", nil)
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, value string, maxAge int) {
	c.SetCookie(refreshCookie, value, maxAge, "/", "", !h.Cfg.IsDevelopment(), true)
}

// RegisterPatientRequest is the patient self sign-up body.
type RegisterPatientRequest struct {
	Name        string `json:"name" binding:"required"`
	Password    string `json:"password" binding:"required,min=6"`
	DateOfBirth string `json:"dob" binding:"required,datetime=2006-01-02"`
	Phone       string `json:"phone" binding:"required,twphone"`
	Email       string `json:"email" binding:"required,email"`
	CardNumber  string `json:"card_number" binding:"required"`
}

// RegisterPatient handles patient self-registration.
func (h *AuthHandler) RegisterPatient(c *gin.Context) {
	var req RegisterPatientRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	user, err := h.Accounts.RegisterPatient(c.Request.Context(), services.PatientRegistration{
		Name:        req.Name,
		Password:    req.Password,
		DateOfBirth: req.DateOfBirth,
		Phone:       req.Phone,
		Email:       req.Email,
		CardNumber:  req.CardNumber,
	})
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Created(c, "Patient registered successfully", user)
}

// GetProfile handles fetching the currently authenticated user's profile.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		return
	}
	user, err := h.Accounts.Profile(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Profile fetched successfully", user)
}

// UpdateProfileRequest represents the request body for updating user profile.
type UpdateProfileRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1"`
	Email       *string `json:"email" binding:"omitempty,email"`
	Phone       *string `json:"phone" binding:"omitempty,twphone"`
	DateOfBirth *string `json:"dob" binding:"omitempty,datetime=2006-01-02"`
	Password    *string `json:"password" binding:"omitempty,min=6"`
}

// UpdateProfile handles updating the currently authenticated user's profile.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		return
	}
	var req UpdateProfileRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	user, err := h.Accounts.UpdateProfile(c.Request.Context(), userID, services.AccountUpdate{
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		DateOfBirth: req.DateOfBirth,
		Password:    req.Password,
	})
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Profile updated successfully", user)
}
