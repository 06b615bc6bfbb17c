package handlers

import (
	"context"

	"hospital-booking-server/internal/models"
	"hospital-booking-server/internal/services"
	"hospital-booking-server/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserHandler serves the admin account consoles for admins, doctors and patients.
// Each route is bound to one role.
type UserHandler struct {
	Accounts *services.AccountService
	Log      *zap.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(svc *services.Services, log *zap.Logger) *UserHandler {
	return &UserHandler{Accounts: svc.Accounts, Log: log}
}

// PageQuery is the skip/limit pair shared by list endpoints.
type PageQuery struct {
	Skip  int `form:"skip" binding:"omitempty,min=0"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=1000"`
}

// ListUsersQuery filters an account list.
type ListUsersQuery struct {
	PageQuery
	Specialty string `form:"specialty"`
}

// CreateUserRequest represents the request body for creating an account by an admin.
type CreateUserRequest struct {
	Name          string `json:"name" binding:"required"`
	LoginID       string `json:"login_id"`
	Email         string `json:"email" binding:"omitempty,email"`
	Password      string `json:"password" binding:"required,min=6"`
	Phone         string `json:"phone" binding:"omitempty,twphone"`
	DateOfBirth   string `json:"dob" binding:"omitempty,datetime=2006-01-02"`
	CardNumber    string `json:"card_number"`
	Specialty     string `json:"specialty"`
	IsSystemAdmin bool   `json:"is_system_admin"`
}

// UpdateUserRequest represents the request body for updating an account by an admin.
type UpdateUserRequest struct {
	Name          *string `json:"name" binding:"omitempty,min=1"`
	LoginID       *string `json:"login_id"`
	Email         *string `json:"email" binding:"omitempty,email"`
	Password      *string `json:"password" binding:"omitempty,min=6"`
	Phone         *string `json:"phone" binding:"omitempty,twphone"`
	DateOfBirth   *string `json:"dob" binding:"omitempty,datetime=2006-01-02"`
	CardNumber    *string `json:"card_number"`
	Specialty     *string `json:"specialty"`
	IsActive      *bool   `json:"is_active"`
	IsSystemAdmin *bool   `json:"is_system_admin"`
}

// List returns the accounts of role.
func (h *UserHandler) List(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q ListUsersQuery
		if !utils.BindQuery(c, &q) {
			return
		}
		users, err := h.Accounts.List(c.Request.Context(), role, q.Specialty, q.Skip, q.Limit)
		if err != nil {
			respondError(c, h.Log, err)
			return
		}
		utils.Success(c, "Users fetched successfully", users)
	}
}

// Get returns one account of role.
func (h *UserHandler) Get(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := h.Accounts.Get(c.Request.Context(), role, c.Param("id"))
		if err != nil {
			respondError(c, h.Log, err)
			return
		}
		utils.Success(c, "User fetched successfully", user)
	}
}

// Create adds an account of role.
func (h *UserHandler) Create(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID, _, ok := currentUser(c)
		if !ok {
			return
		}
		var req CreateUserRequest
		if !utils.BindAndValidate(c, &req) {
			return
		}
		user, err := h.Accounts.Create(c.Request.Context(), actorID, role, services.AccountInput{
			Name:          req.Name,
			LoginID:       req.LoginID,
			Email:         req.Email,
			Password:      req.Password,
			Phone:         req.Phone,
			DateOfBirth:   req.DateOfBirth,
			CardNumber:    req.CardNumber,
			Specialty:     req.Specialty,
			IsSystemAdmin: req.IsSystemAdmin,
		})
		if err != nil {
			respondError(c, h.Log, err)
			return
		}
		utils.Created(c, "User created successfully", user)
	}
}

// Update changes an account of role.
func (h *UserHandler) Update(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID, _, ok := currentUser(c)
		if !ok {
			return
		}
		var req UpdateUserRequest
		if !utils.BindAndValidate(c, &req) {
			return
		}
		user, err := h.Accounts.Update(c.Request.Context(), actorID, role, c.Param("id"), services.AccountUpdate{
			Name:          req.Name,
			LoginID:       req.LoginID,
			Email:         req.Email,
			Password:      req.Password,
			Phone:         req.Phone,
			DateOfBirth:   req.DateOfBirth,
			CardNumber:    req.CardNumber,
			Specialty:     req.Specialty,
			IsActive:      req.IsActive,
			IsSystemAdmin: req.IsSystemAdmin,
		})
		if err != nil {
			respondError(c, h.Log, err)
			return
		}
		utils.Success(c, "User updated successfully", user)
	}
}

// Delete removes an account of role.
func (h *UserHandler) Delete(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID, _, ok := currentUser(c)
		if !ok {
			return
		}
		if err := h.Accounts.Delete(c.Request.Context(), actorID, role, c.Param("id")); err != nil {
			respondError(c, h.Log, err)
			return
		}
		utils.Success(c, "User deleted successfully", nil)
	}
}

// SuspendPatient blocks a patient's online check-in.
func (h *UserHandler) SuspendPatient(c *gin.Context) {
	h.suspension(c, h.Accounts.Suspend, "Patient suspended")
}

// UnsuspendPatient lifts a patient's suspension.
func (h *UserHandler) UnsuspendPatient(c *gin.Context) {
	h.suspension(c, h.Accounts.Unsuspend, "Patient unsuspended")
}

func (h *UserHandler) suspension(c *gin.Context, change func(ctx context.Context, actorID, patientID string) (*models.User, error), message string) {
	actorID, _, ok := currentUser(c)
	if !ok {
		return
	}
	user, err := change(c.Request.Context(), actorID, c.Param("id"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, message, user)
}

// PatientInfractions lists a patient's infractions.
func (h *UserHandler) PatientInfractions(c *gin.Context) {
	infractions, err := h.Accounts.Infractions(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	utils.Success(c, "Infractions fetched successfully", infractions)
}

// PublicDoctors lists active doctors without authentication.
func (h *UserHandler) PublicDoctors(c *gin.Context) {
	doctors, err := h.Accounts.PublicDoctors(c.Request.Context(), c.Query("specialty"))
	if err != nil {
		respondError(c, h.Log, err)
		return
	}
	out := make([]gin.H, 0, len(doctors))
	for _, d := range doctors {
		out = append(out, gin.H{"id": d.ID, "name": d.Name, "specialty": d.Specialty})
	}
	utils.Success(c, "Doctors fetched successfully", out)
}
