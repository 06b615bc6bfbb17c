package routes

import (
	"context"
	"net/http"
	"time"

	"hospital-booking-server/internal/config"
	"hospital-booking-server/internal/handlers"
	"hospital-booking-server/internal/logger"
	"hospital-booking-server/internal/metrics"
	"hospital-booking-server/internal/middleware"
	"hospital-booking-server/internal/models"
	"hospital-booking-server/internal/repository"
	"hospital-booking-server/internal/services"
	"hospital-booking-server/internal/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Deps are what the router needs to build its handlers.
type Deps struct {
	Services *services.Services
	Store    repository.Store
	Config   *config.Config
	Log      *zap.Logger
	// Metrics is optional; nil disables /metrics and request metrics.
	Metrics *metrics.Metrics
	// Clock pins the export file name in tests.
	Clock services.Clock
}

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(d Deps) *gin.Engine {
	utils.RegisterValidators()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.GinMiddleware(d.Log))
	if d.Metrics != nil {
		router.Use(d.Metrics.GinMiddleware())
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{d.Config.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Disposition"}
	router.Use(cors.New(corsConfig))

	SetupRoutes(router, d)
	return router
}

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, d Deps) {
	svc, cfg, log := d.Services, d.Config, d.Log

	authHandler := handlers.NewAuthHandler(svc, cfg, log)
	userHandler := handlers.NewUserHandler(svc, log)
	scheduleHandler := handlers.NewScheduleHandler(svc, log)
	appointmentHandler := handlers.NewAppointmentHandler(svc, log)
	checkinHandler := handlers.NewCheckinHandler(svc, log)
	clinicHandler := handlers.NewClinicHandler(svc, log)
	leaveHandler := handlers.NewLeaveHandler(svc, log)
	medicalRecordHandler := handlers.NewMedicalRecordHandler(svc, log)
	notificationHandler := handlers.NewNotificationHandler(svc, log)
	adminHandler := handlers.NewAdminHandler(svc, d.Clock, log)

	adminOnly := middleware.RoleAuthMiddleware(models.RoleAdmin)
	doctorOnly := middleware.RoleAuthMiddleware(models.RoleDoctor)
	patientOnly := middleware.RoleAuthMiddleware(models.RolePatient)

	// Public routes (no authentication required)
	public := router.Group("/api/v1")
	{
		authRoutes := public.Group("/auth")
		{
			authRoutes.POST("/token", authHandler.Token)
			authRoutes.POST("/refresh-token", authHandler.RefreshToken)
			authRoutes.POST("/logout", authHandler.Logout)
		}
		public.POST("/register/patient", authHandler.RegisterPatient)
		public.GET("/public/doctors", userHandler.PublicDoctors)
		public.GET("/public/schedules", scheduleHandler.ListSchedules)
	}

	// Authenticated routes
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(cfg, d.Store.Users()))
	{
		private.GET("/profile/me", authHandler.GetProfile)
		private.PUT("/profile/me", authHandler.UpdateProfile)

		// Account management, one group per role
		for path, role := range map[string]models.Role{
			"/admins":   models.RoleAdmin,
			"/doctors":  models.RoleDoctor,
			"/patients": models.RolePatient,
		} {
			accounts := private.Group(path, adminOnly)
			accounts.GET("", userHandler.List(role))
			accounts.POST("", userHandler.Create(role))
			accounts.GET("/:id", userHandler.Get(role))
			accounts.PUT("/:id", userHandler.Update(role))
			accounts.DELETE("/:id", userHandler.Delete(role))
		}

		admin := private.Group("/admin", adminOnly)
		{
			admin.POST("/patients/:id/suspend", userHandler.SuspendPatient)
			admin.POST("/patients/:id/unsuspend", userHandler.UnsuspendPatient)
			admin.GET("/patients/:id/infractions", userHandler.PatientInfractions)

			admin.GET("/leave-requests", leaveHandler.ListPendingLeaveRequests)
			admin.PUT("/leave-requests/:schedule_id/approve", leaveHandler.ApproveLeave)
			admin.PUT("/leave-requests/:schedule_id/reject", leaveHandler.RejectLeave)

			admin.GET("/audit-logs", adminHandler.GetAuditLogs)
			admin.GET("/audit-logs/export", adminHandler.ExportAuditLogs)
			admin.GET("/dashboard", adminHandler.GetDashboard)
		}

		scheduleRoutes := private.Group("/schedules", adminOnly)
		{
			scheduleRoutes.GET("", scheduleHandler.ListSchedules)
			scheduleRoutes.POST("", scheduleHandler.CreateSchedule)
			scheduleRoutes.POST("/recurring", scheduleHandler.CreateRecurringSchedules)
			scheduleRoutes.DELETE("/recurring/:group_id", scheduleHandler.DeleteRecurringSchedules)
			scheduleRoutes.GET("/:id", scheduleHandler.GetSchedule)
			scheduleRoutes.PUT("/:id", scheduleHandler.UpdateSchedule)
			scheduleRoutes.DELETE("/:id", scheduleHandler.DeleteSchedule)
		}

		private.PATCH("/appointments/:id/status", adminOnly, appointmentHandler.UpdateAppointmentStatus)

		doctor := private.Group("/doctor", doctorOnly)
		{
			doctor.GET("/schedules", scheduleHandler.GetDoctorSchedules)
			doctor.GET("/appointments", appointmentHandler.GetDoctorAppointments)
			doctor.POST("/me/leave-requests", leaveHandler.RequestLeave)
			doctor.POST("/me/leave-requests/range", leaveHandler.RequestLeaveRange)

			// Clinic session for one of the doctor's schedules
			session := doctor.Group("/schedules/:id")
			{
				session.POST("/open-clinic", clinicHandler.OpenClinic)
				session.POST("/close-clinic", clinicHandler.CloseClinic)
				session.GET("/queue-status", clinicHandler.QueueStatus)
				session.GET("/waiting-patients", clinicHandler.WaitingPatients)
				session.POST("/call-next-patient", clinicHandler.CallNextPatient)
				session.POST("/checkins/:checkin_id/mark-no-show", clinicHandler.MarkNoShow)
				session.POST("/checkins/:checkin_id/re-check-in", clinicHandler.ReCheckIn)
				session.POST("/appointments/:appointment_id/manual-check-in", clinicHandler.ManualCheckIn)
				session.POST("/appointments/:appointment_id/start-consult", clinicHandler.StartConsultation)
				session.POST("/appointments/:appointment_id/complete", clinicHandler.CompleteAppointment)
			}
		}

		patient := private.Group("", patientOnly)
		{
			patient.GET("/patient/appointments", appointmentHandler.GetMyAppointments)
			patient.POST("/patient/appointments", appointmentHandler.CreateAppointment)
			patient.DELETE("/patient/appointments/:id", appointmentHandler.CancelAppointment)
			patient.POST("/checkin/:appointment_id", checkinHandler.CheckIn)
			patient.GET("/checkin/queue/:appointment_id", checkinHandler.GetQueueStatus)
		}

		// Medical Record routes
		medicalRecordRoutes := private.Group("/medical-records")
		{
			medicalRecordRoutes.POST("", doctorOnly, medicalRecordHandler.CreateMedicalRecord)
			medicalRecordRoutes.GET("", medicalRecordHandler.GetMedicalRecords)        // Visibility by role in service
			medicalRecordRoutes.GET("/:id", medicalRecordHandler.GetMedicalRecordByID) // Visibility by role in service
			medicalRecordRoutes.PUT("/:id", doctorOnly, medicalRecordHandler.UpdateMedicalRecord)
			medicalRecordRoutes.DELETE("/:id", doctorOnly, medicalRecordHandler.DeleteMedicalRecord)
		}

		notificationRoutes := private.Group("/notifications")
		{
			notificationRoutes.GET("", notificationHandler.GetNotifications)
			notificationRoutes.GET("/new", notificationHandler.GetNewNotifications)
			notificationRoutes.PATCH("/:id/read", notificationHandler.MarkNotificationAsRead)
		}
	}

	// Simple health check endpoint
	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := d.Store.Ping(ctx); err != nil {
			log.Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})
	if d.Metrics != nil {
		router.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}
}
