package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/curriculum-api/internal/middleware"
	"github.com/noah-isme/curriculum-api/internal/models"
)

// Handlers groups the API handlers mounted under the API prefix. Extraction is optional.
type Handlers struct {
	Auth       *AuthHandler
	Curriculum *CurriculumHandler
	Import     *ImportHandler
	Extraction *ExtractionHandler
	Reports    *ReportHandler
	Audit      *AuditHandler
}

// RegisterRoutes mounts the API. Every route except login requires auth; admin-only routes
// are additionally guarded by role, on top of the gate checks inside the services.
func RegisterRoutes(api *gin.RouterGroup, h Handlers, auth gin.HandlerFunc) {
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	api.POST("/auth/login", h.Auth.Login)

	protected := api.Group("", auth)
	protected.GET("/auth/me", h.Auth.Me)

	cur := protected.Group("/curriculum")
	cur.GET("", h.Curriculum.List)
	cur.GET("/export", h.Curriculum.Export)
	cur.GET("/:id", h.Curriculum.Get)
	cur.POST("", adminOnly, h.Curriculum.Create)
	cur.PATCH("/:id", adminOnly, h.Curriculum.Update)
	cur.DELETE("/:id", adminOnly, h.Curriculum.Delete)

	cur.POST("/import/plan", h.Import.Plan)
	cur.POST("/import/commit", adminOnly, h.Import.Commit)

	if h.Extraction != nil {
		cur.POST("/extractions", adminOnly, h.Extraction.Submit)
		cur.GET("/extractions/:id", adminOnly, h.Extraction.Status)
	}

	cur.POST("/reports", h.Reports.Submit)
	cur.GET("/reports", h.Reports.List)
	cur.POST("/reports/:id/resolve", adminOnly, h.Reports.Resolve)

	protected.GET("/audit-logs", adminOnly, h.Audit.List)
}
