package api

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"realtors/auth"
	"realtors/config"
	"realtors/models"
	"realtors/services"
)

// AuditReader lists recent audit entries for the admin dashboard.
type AuditReader interface {
	RecentAudit(ctx context.Context, limit int) ([]models.AuditEntry, error)
}

// Handler serves the public and admin HTTP API.
type Handler struct {
	Props   *services.PropertyService
	Catalog *services.Catalog
	Auth    *auth.Authenticator
	Audit   AuditReader // nil when audit entries go to the tree store
}

func NewRouter(cfg config.ServerConfig, h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: !allowsAll(cfg.AllowedOrigins),
		MaxAge:           12 * time.Hour,
	}))

	h.RegisterRoutes(r)
	return r
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", h.Health)

	api := r.Group("/api")
	api.Use(h.OptionalSession())
	{
		api.GET("/properties", h.SearchProperties)
		api.GET("/properties/:id", h.GetProperty)
		api.POST("/properties/submissions", h.SubmitProperty)

		api.POST("/auth/login", h.Login)
		api.POST("/auth/logout", h.Logout)
		api.GET("/auth/session", h.CurrentSession)
	}

	admin := api.Group("/admin")
	admin.Use(h.AdminRequired())
	{
		admin.GET("/properties", h.ListAllProperties)
		admin.GET("/properties/export", h.ExportProperties)
		admin.POST("/properties", h.CreateProperty)
		admin.PATCH("/properties/:id", h.UpdateProperty)
		admin.PUT("/properties/:id", h.UpdateProperty)
		admin.DELETE("/properties/:id", h.DeleteProperty)
		admin.PUT("/properties/:id/approve", h.ApproveProperty)
		admin.GET("/audit", h.RecentAudit)
	}
}

func allowsAll(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
