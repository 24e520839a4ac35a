package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/elibrary/internal/auth"
	"github.com/mrlokans/elibrary/internal/entities"
	"github.com/mrlokans/elibrary/internal/telemetry"
)

// NewRouter creates and configures the HTTP router with all endpoints.
// AuthService and AuthMiddleware are required; the other auth pieces are
// optional.
func NewRouter(cfg RouterConfig) *gin.Engine {
	registerValidators()

	router := gin.New()
	router.Use(gin.CustomRecovery(func(c *gin.Context, _ any) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, Response{Message: "Server error"})
	}))
	router.Use(RequestID())
	router.Use(RequestLogger())
	if cfg.Tracing {
		router.Use(telemetry.Middleware())
	}
	router.Use(exposeErrors(cfg.Development))

	// Apply security headers to all responses
	router.Use(auth.SecurityHeadersMiddleware())
	if cfg.SecureCookies {
		router.Use(auth.StrictTransportSecurityMiddleware())
	}

	// CSRF must run before session so that session context is preserved
	if len(cfg.CSRFSecret) > 0 {
		router.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.SecureCookies, cfg.AuthService))
	}

	// Session runs after CSRF so session context isn't overwritten by CSRF's request replacement
	if cfg.SessionManager != nil {
		router.Use(cfg.SessionManager.SessionLoadSave())
	}

	router.Use(cfg.AuthMiddleware.Handler())

	requireAuth := cfg.AuthMiddleware.RequireAuth()
	requireAdmin := cfg.AuthMiddleware.RequireRole(entities.RoleAdmin)

	// Health endpoints
	health := NewHealthController(cfg.Database, cfg.Version)
	router.GET("/health", health.Status)
	router.GET("/ping", health.Ping)

	api := router.Group("/api")
	api.GET("/health", health.Status)

	// Auth endpoints
	authController := NewAuthController(cfg.AuthService, cfg.SessionManager, cfg.Notifier, cfg.Auditor)
	authGroup := api.Group("/auth")
	authGroup.POST("/register", authController.Register)
	if cfg.LoginLimiter != nil {
		authGroup.POST("/login", cfg.LoginLimiter.RateLimitMiddleware(), authController.Login)
	} else {
		authGroup.POST("/login", authController.Login)
	}
	authGroup.GET("/csrf", authController.CSRFToken)
	authGroup.POST("/logout", requireAuth, authController.Logout)
	authGroup.GET("/me", requireAuth, authController.Me)
	authGroup.PUT("/password", requireAuth, authController.ChangePassword)

	// Catalog endpoints
	booksController := NewBooksController(cfg.Catalog, cfg.Lookup)
	api.GET("/books", booksController.List)
	api.GET("/books/:id", booksController.Get)
	api.POST("/books", requireAdmin, booksController.Create)
	api.PUT("/books/:id", requireAdmin, booksController.Update)
	api.DELETE("/books/:id", requireAdmin, booksController.Delete)
	if cfg.Lookup != nil {
		api.GET("/isbn/:isbn", requireAdmin, booksController.Lookup)
	}

	// Borrow endpoints. Return and renew keep both path styles.
	borrowController := NewBorrowController(cfg.Circulation)
	borrow := api.Group("/borrow", requireAuth)
	borrow.POST("", borrowController.Borrow)
	for _, method := range []string{http.MethodPost, http.MethodPut} {
		borrow.Handle(method, "/return/:id", borrowController.Return)
		borrow.Handle(method, "/:id/return", borrowController.Return)
		borrow.Handle(method, "/renew/:id", borrowController.Renew)
		borrow.Handle(method, "/:id/renew", borrowController.Renew)
	}
	borrow.GET("/my-books", borrowController.MyBooks)
	borrow.GET("/all", requireAdmin, borrowController.All)
	borrow.GET("/overdue", requireAdmin, borrowController.Overdue)
	borrow.POST("/:id/pay-fine", requireAdmin, borrowController.PayFine)

	// User administration endpoints
	usersController := NewUsersController(cfg.Members)
	usersGroup := api.Group("/users", requireAuth)
	usersGroup.PUT("/profile", usersController.UpdateProfile)
	usersGroup.GET("", requireAdmin, usersController.List)
	usersGroup.GET("/stats/dashboard", requireAdmin, usersController.Dashboard)
	usersGroup.GET("/:id", requireAdmin, usersController.Get)
	usersGroup.PUT("/:id", requireAdmin, usersController.Update)
	usersGroup.PUT("/:id/toggle-status", requireAdmin, usersController.ToggleStatus)

	// Review endpoints
	reviewsController := NewReviewsController(cfg.Reviews)
	reviewsGroup := api.Group("/reviews")
	reviewsGroup.GET("/book/:bookId", reviewsController.ByBook)
	reviewsGroup.GET("/book/:bookId/stats", reviewsController.Stats)
	reviewsGroup.GET("/my-reviews", requireAuth, reviewsController.Mine)
	reviewsGroup.POST("", requireAuth, reviewsController.Create)
	reviewsGroup.POST("/:id/helpful", requireAuth, reviewsController.Helpful)
	reviewsGroup.POST("/:id/report", requireAuth, reviewsController.Report)
	reviewsGroup.DELETE("/:id", requireAuth, reviewsController.Delete)

	// Notification endpoints
	if cfg.Sweeper != nil && cfg.Settings != nil {
		notificationsController := NewNotificationsController(cfg.Notifier, cfg.Sweeper, cfg.Scheduler, cfg.Settings)
		notificationsGroup := api.Group("/notifications", requireAdmin)
		if cfg.Notifier != nil {
			notificationsGroup.POST("/test-email", notificationsController.TestEmail)
		}
		notificationsGroup.POST("/send-immediate", notificationsController.SendImmediate)
		notificationsGroup.POST("/sweep/:kind", notificationsController.RunSweep)
		notificationsGroup.GET("/stats", notificationsController.Stats)
		notificationsGroup.GET("/schedule", notificationsController.GetSchedule)
		notificationsGroup.PUT("/schedule", notificationsController.UpdateSchedule)
	}

	// Audit trail
	if cfg.Auditor != nil {
		auditController := NewAuditController(cfg.Auditor)
		api.GET("/audit", requireAdmin, auditController.Events)
	}

	// Single-page front end
	if ui := NewUIController(cfg.StaticPath); ui != nil {
		router.NoRoute(ui.Serve)
	} else {
		router.NoRoute(notFound)
	}

	return router
}
