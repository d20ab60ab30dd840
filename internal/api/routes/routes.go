package routes

import (
	"path/filepath"

	"kaienv/internal/api/handlers"
	"kaienv/internal/api/middleware"
	"kaienv/internal/config"
	"kaienv/internal/gateway"
	"kaienv/internal/services"
	"kaienv/internal/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRoutes wires the API surface. Reads are open to any
// authenticated user; inventory and user-management mutations require
// the admin role.
func SetupRoutes(r *gin.Engine, cfg *config.Config, gw gateway.Gateway, sess *session.Context, log *zap.Logger) {
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.ErrorHandler(log))

	db := gw.DB()
	auditService := services.NewAuditService(db, log)

	authHandler := handlers.NewAuthHandler(gw, auditService)
	sessionHandler := handlers.NewSessionHandler(sess, auditService)
	vmHandler := handlers.NewVMHandler(services.NewVMService(db), auditService)
	groupHandler := handlers.NewGroupHandler(services.NewGroupService(db), auditService)
	typeHandler := handlers.NewServiceTypeHandler(services.NewServiceTypeService(db))
	profileHandler := handlers.NewProfileHandler(gw, auditService)
	auditHandler := handlers.NewAuditHandler(auditService)
	statsHandler := handlers.NewStatsHandler(services.NewStatsService(db))

	dataDir := "data"
	if cfg.Database.Type == "sqlite" {
		dataDir = filepath.Dir(cfg.Database.SQLite.Path)
	}
	backupHandler := handlers.NewBackupHandler(
		services.NewBackupService(dataDir, cfg.Backup.Dir), auditService)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		// Public endpoints
		auth := api.Group("/auth")
		{
			auth.POST("/signup", authHandler.Signup)
			auth.POST("/login", authHandler.Login)
		}

		// The embedded operator session drives the dashboard UI and
		// carries its own resolution state, so it stays outside the
		// bearer-token middleware.
		sessionGroup := api.Group("/session")
		{
			sessionGroup.GET("", sessionHandler.Get)
			sessionGroup.POST("/login", sessionHandler.Login)
			sessionGroup.POST("/logout", sessionHandler.Logout)
			sessionGroup.POST("/callback", sessionHandler.Callback)
			sessionGroup.PUT("/profile", sessionHandler.UpdateProfile)
		}

		// Protected endpoints
		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(gw))
		{
			protected.POST("/auth/logout", authHandler.Logout)
			protected.GET("/auth/me", authHandler.Me)

			vms := protected.Group("/vms")
			{
				vms.GET("", vmHandler.List)
				vms.GET("/:id", vmHandler.Get)
				vms.POST("", middleware.RequireRole("admin"), vmHandler.Create)
				vms.PUT("/:id", middleware.RequireRole("admin"), vmHandler.Update)
				vms.DELETE("/:id", middleware.RequireRole("admin"), vmHandler.Delete)
			}

			protected.GET("/service-types", typeHandler.List)

			groups := protected.Group("/groups")
			{
				groups.GET("", groupHandler.List)
				groups.POST("", middleware.RequireRole("admin"), groupHandler.Create)
				groups.PUT("/:id", middleware.RequireRole("admin"), groupHandler.Update)
				groups.DELETE("/:id", middleware.RequireRole("admin"), groupHandler.Delete)
				groups.POST("/move", middleware.RequireRole("admin"), groupHandler.Move)
			}

			profiles := protected.Group("/profiles")
			profiles.Use(middleware.RequireRole("admin"))
			{
				profiles.GET("", profileHandler.List)
				profiles.PUT("/:id", profileHandler.Update)
				profiles.DELETE("/:id", profileHandler.Delete)
			}

			protected.GET("/audit", middleware.RequireRole("admin"), auditHandler.List)
			protected.GET("/stats", statsHandler.Get)

			backups := protected.Group("/backups")
			backups.Use(middleware.RequireRole("admin"))
			{
				backups.GET("", backupHandler.List)
				backups.POST("", backupHandler.Create)
				backups.POST("/restore", backupHandler.Restore)
				backups.DELETE("/:name", backupHandler.Delete)
			}
		}
	}
}
