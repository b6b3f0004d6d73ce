package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uniportal/registrar-api/internal/handler"
	"github.com/uniportal/registrar-api/internal/middleware"
	"github.com/uniportal/registrar-api/internal/models"
	"github.com/uniportal/registrar-api/internal/repository"
	"github.com/uniportal/registrar-api/internal/service"
)

// Deps bundles everything route registration needs.
type Deps struct {
	Auth          *handler.AuthHandler
	Registrations *handler.RegistrationHandler
	Approvals     *handler.ApprovalHandler
	Notifications *handler.NotificationHandler
	Courses       *handler.CourseHandler
	Semesters     *handler.SemesterHandler
	Users         *handler.UserHandler
	Announcements *handler.AnnouncementHandler
	Stats         *handler.StatsHandler
	Dashboard     *handler.DashboardHandler
	Exports       *handler.ExportHandler

	AuthService *service.AuthService
	Metrics     *service.MetricsService
	UserRepo    *repository.UserRepository
}

// Register wires every API route onto the engine.
func Register(r *gin.Engine, deps Deps) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	v1 := r.Group("/api/v1")

	auth := v1.Group("/auth")
	{
		auth.POST("/login", deps.Auth.Login)
		auth.POST("/refresh", deps.Auth.Refresh)

		authed := auth.Group("")
		authed.Use(middleware.JWT(deps.AuthService))
		{
			authed.POST("/logout", deps.Auth.Logout)
			authed.POST("/change-password", middleware.Audit(deps.UserRepo, "CHANGE_PASSWORD", "auth"), deps.Auth.ChangePassword)
			authed.GET("/me", deps.Auth.Me)
		}
	}

	authenticated := v1.Group("")
	authenticated.Use(middleware.JWT(deps.AuthService))

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar, models.RoleFaculty)
	registrars := middleware.RequireRoles(models.RoleAdmin, models.RoleRegistrar)
	admins := middleware.RequireRoles(models.RoleAdmin)
	students := middleware.RequireRoles(models.RoleStudent)

	registrations := authenticated.Group("/registrations")
	{
		registrations.GET("", deps.Registrations.List)
		registrations.GET("/:id", deps.Registrations.Get)
		registrations.GET("/:id/export", deps.Exports.RegistrationPDF)

		registrations.POST("", students, deps.Registrations.Create)
		registrations.POST("/:id/courses", students, deps.Registrations.AddCourse)
		registrations.DELETE("/courses/:id", students, deps.Registrations.RemoveCourse)
		registrations.POST("/:id/submit", students, deps.Registrations.Submit)
		registrations.DELETE("/:id", students, deps.Registrations.Cancel)
	}

	approvals := authenticated.Group("/approvals")
	approvals.Use(staff)
	{
		approvals.GET("/pending", deps.Approvals.ListPending)
		approvals.POST("/uploads/:id/approve", deps.Approvals.Approve)
		approvals.POST("/uploads/:id/reject", deps.Approvals.Reject)
		approvals.POST("/uploads/bulk-approve", deps.Approvals.BulkApprove)
		approvals.POST("/registrations/:id/approve", deps.Approvals.ApproveRegistration)
		approvals.POST("/registrations/:id/reject", deps.Approvals.RejectRegistration)
	}

	courses := authenticated.Group("/courses")
	{
		courses.GET("", deps.Courses.List)
		courses.GET("/:id", deps.Courses.Get)
		courses.POST("", registrars, deps.Courses.Create)
		courses.PUT("/:id", registrars, deps.Courses.Update)
	}

	departments := authenticated.Group("/departments")
	{
		departments.GET("", deps.Courses.ListDepartments)
		departments.POST("", registrars, deps.Courses.CreateDepartment)
	}

	programs := authenticated.Group("/programs")
	{
		programs.GET("", deps.Courses.ListPrograms)
		programs.GET("/:id", deps.Courses.GetProgram)
		programs.POST("", registrars, deps.Courses.CreateProgram)
	}

	semesters := authenticated.Group("/semesters")
	{
		semesters.GET("", deps.Semesters.List)
		semesters.GET("/active", deps.Semesters.Active)
		semesters.GET("/:id", deps.Semesters.Get)
		semesters.POST("", registrars, deps.Semesters.Create)
		semesters.PUT("/:id", registrars, deps.Semesters.Update)
	}

	users := authenticated.Group("/users")
	users.Use(admins)
	{
		users.GET("", deps.Users.List)
		users.GET("/:id", deps.Users.Get)
		users.POST("", middleware.Audit(deps.UserRepo, "CREATE_USER", "users"), deps.Users.Create)
		users.PUT("/:id", middleware.Audit(deps.UserRepo, "UPDATE_USER", "users"), deps.Users.Update)
		users.DELETE("/:id", middleware.Audit(deps.UserRepo, "DEACTIVATE_USER", "users"), deps.Users.Deactivate)
	}

	studentsGroup := authenticated.Group("/students")
	{
		studentsGroup.GET("/:id", deps.Users.GetStudent)
		studentsGroup.POST("/:id/records", registrars, deps.Users.AddAcademicRecord)
	}

	announcements := authenticated.Group("/announcements")
	{
		announcements.GET("", deps.Announcements.List)
		announcements.GET("/:id", deps.Announcements.Get)
		announcements.POST("", registrars, deps.Announcements.Create)
		announcements.PUT("/:id", registrars, deps.Announcements.Update)
		announcements.DELETE("/:id", registrars, deps.Announcements.Delete)
	}

	notifications := authenticated.Group("/notifications")
	{
		notifications.GET("", deps.Notifications.List)
		notifications.GET("/unread-count", deps.Notifications.UnreadCount)
		notifications.POST("/:id/read", deps.Notifications.MarkRead)
		notifications.POST("/read-all", deps.Notifications.MarkAllRead)
	}

	stats := authenticated.Group("/stats")
	stats.Use(staff)
	{
		stats.GET("/overview", deps.Stats.Overview)
	}

	exports := authenticated.Group("/exports")
	exports.Use(registrars)
	{
		exports.GET("/uploads", deps.Exports.UploadsCSV)
	}

	authenticated.GET("/dashboard", deps.Dashboard.Summary)
}
